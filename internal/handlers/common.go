package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mesa/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// parseID 解析路径中的ID参数，失败时已写入响应
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "ID格式错误")
		return 0, false
	}
	return uint(id), true
}

// bindJSON 绑定并校验请求体，失败时返回字段级错误
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			response.ValidationError(c, "参数验证失败", fieldErrors(validationErrs))
			return false
		}
		response.BadRequest(c, "请求参数格式错误")
		return false
	}
	return true
}

func fieldErrors(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[toSnake(fe.Field())] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "min":
		return fmt.Sprintf("不能小于 %s", fe.Param())
	case "max":
		return fmt.Sprintf("不能大于 %s", fe.Param())
	case "email":
		return "邮箱格式不正确"
	case "oneof":
		return fmt.Sprintf("必须是 %s 之一", fe.Param())
	case "dive", "gt":
		return "取值无效"
	default:
		return fmt.Sprintf("校验失败（%s）", fe.Tag())
	}
}

// toSnake 结构体字段名转为请求中的下划线名称
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
