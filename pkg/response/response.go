package response

import (
	"net/http"

	"mesa/pkg/errors"
	"mesa/pkg/logger"
	"mesa/pkg/pagination"

	"github.com/gin-gonic/gin"
)

// Response 统一返回格式
type Response struct {
	Code    int               `json:"code"`
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// PageResponse 分页返回格式
type PageResponse struct {
	Code     int                  `json:"code"`
	Success  bool                 `json:"success"`
	Message  string               `json:"message"`
	Data     interface{}          `json:"data,omitempty"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

// ========== 基础返回方法 ==========

// Success 成功返回
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeSuccess,
		Success: true,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 成功返回（自定义消息）
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeSuccess,
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SuccessWithPage 分页成功返回
func SuccessWithPage(c *gin.Context, data interface{}, pageInfo *pagination.PageInfo) {
	c.JSON(http.StatusOK, PageResponse{
		Code:     errors.CodeSuccess,
		Success:  true,
		Message:  "success",
		Data:     data,
		PageInfo: pageInfo,
	})
}

// Error 通用错误返回
func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Success: false,
		Message: message,
	})
}

// ValidationError 字段级校验错误返回
func ValidationError(c *gin.Context, message string, fields map[string]string) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeInvalidParam,
		Success: false,
		Message: message,
		Errors:  fields,
	})
}

// FromError 根据错误类别返回，内部错误只记录日志不暴露细节
func FromError(c *gin.Context, err error, fallback string) {
	appErr, ok := errors.As(err)
	if !ok || appErr.Kind == errors.KindInternal {
		logger.GetLogger().WithError(err).Errorf("request %s %s failed", c.Request.Method, c.FullPath())
		ServerError(c, fallback)
		return
	}

	switch appErr.Kind {
	case errors.KindValidation:
		ValidationError(c, appErr.Message, appErr.Fields)
	case errors.KindForbidden:
		// 不透露具体缺少什么
		Forbidden(c, "权限不足")
	default:
		Error(c, appErr.Kind.Code(), appErr.Message)
	}
}

// ========== HTTP错误快捷方法 ==========

func BadRequest(c *gin.Context, message string) {
	Error(c, errors.CodeInvalidParam, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, errors.CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, errors.CodeForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, errors.CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, errors.CodeServerError, message)
}
