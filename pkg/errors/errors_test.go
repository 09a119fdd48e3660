package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindCodes(t *testing.T) {
	assert.Equal(t, CodeInvalidParam, KindValidation.Code())
	assert.Equal(t, CodeNotFound, KindNotFound.Code())
	assert.Equal(t, CodeForbidden, KindForbidden.Code())
	assert.Equal(t, CodeConflict, KindBusinessRule.Code())
	assert.Equal(t, CodeUnauthorized, KindUnauthorized.Code())
	assert.Equal(t, CodeServerError, KindInternal.Code())
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", BusinessRule("系统角色不允许删除"))
	assert.Equal(t, KindBusinessRule, KindOf(err))
	assert.True(t, Is(err, KindBusinessRule))
	assert.False(t, Is(nil, KindBusinessRule))

	appErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "系统角色不允许删除", appErr.Message)
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(stderrors.New("db down")))
}

func TestInternal_Unwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Internal("查询失败", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "查询失败: connection refused", err.Error())
}

func TestValidationField(t *testing.T) {
	err := ValidationField("name", "角色标识已存在")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, map[string]string{"name": "角色标识已存在"}, err.Fields)
}
