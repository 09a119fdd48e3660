package services

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// 服务层校验规则，与 HTTP 绑定使用同一套 validator 标签
const (
	ruleUsername       = "required,min=3,max=50,username"
	ruleEmail          = "required,email,max=100"
	ruleName           = "required,min=2,max=100"
	ruleRoleName       = "required,min=2,max=50"
	rulePermissionPart = "required,min=2,max=50,permission_part"
	ruleRestaurantCode = "required,min=2,max=50,restaurant_code"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	mustRegister(v, "username", isUsername)
	mustRegister(v, "permission_part", isPermissionPart)
	mustRegister(v, "restaurant_code", isRestaurantCode)
	return v
}

func mustRegister(v *validator.Validate, tag string, fn func(s string) bool) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("注册校验规则 %s 失败: %v", tag, err))
	}
}

// valid 按规则校验单个值
func valid(value, rule string) bool {
	return validate.Var(value, rule) == nil
}

func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// 字母、数字和下划线
func isUsername(s string) bool {
	for _, r := range s {
		if !(isLower(r) || (r >= 'A' && r <= 'Z') || isDigit(r) || r == '_') {
			return false
		}
	}
	return true
}

// 小写字母开头，之后为小写字母、数字和下划线
func isPermissionPart(s string) bool {
	for i, r := range s {
		if i == 0 && !isLower(r) {
			return false
		}
		if !(isLower(r) || isDigit(r) || r == '_') {
			return false
		}
	}
	return s != ""
}

// 小写字母或数字开头，之后可以有下划线和中划线
func isRestaurantCode(s string) bool {
	for i, r := range s {
		if isLower(r) || isDigit(r) {
			continue
		}
		if i > 0 && (r == '_' || r == '-') {
			continue
		}
		return false
	}
	return s != ""
}
