package errors

import (
	stderrors "errors"
	"fmt"
)

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500
)

// ========== 业务错误类型 ==========

// Kind 错误类别
type Kind int

const (
	KindInternal     Kind = iota // 基础设施故障
	KindValidation               // 参数校验失败，未修改任何数据
	KindNotFound                 // 资源不存在
	KindForbidden                // 无权访问
	KindBusinessRule             // 违反业务规则，如删除系统角色
	KindUnauthorized             // 未登录或凭证无效
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindBusinessRule:
		return "business_rule"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Code 错误类别对应的响应码
func (k Kind) Code() int {
	switch k {
	case KindValidation:
		return CodeInvalidParam
	case KindNotFound:
		return CodeNotFound
	case KindForbidden:
		return CodeForbidden
	case KindBusinessRule:
		return CodeConflict
	case KindUnauthorized:
		return CodeUnauthorized
	default:
		return CodeServerError
	}
}

// AppError 带类别的业务错误
type AppError struct {
	Kind    Kind
	Message string
	Fields  map[string]string // 字段级错误信息
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation 参数校验错误
func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

// ValidationField 单字段校验错误
func ValidationField(field, message string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: message,
		Fields:  map[string]string{field: message},
	}
}

// ValidationFields 多字段校验错误
func ValidationFields(fields map[string]string) *AppError {
	return &AppError{Kind: KindValidation, Message: "参数验证失败", Fields: fields}
}

func NotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func BusinessRule(message string) *AppError {
	return &AppError{Kind: KindBusinessRule, Message: message}
}

func Unauthorized(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

// Internal 包装基础设施错误
func Internal(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf 获取错误类别，非 AppError 视为内部错误
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is 判断错误是否属于指定类别
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// As 提取 AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}
