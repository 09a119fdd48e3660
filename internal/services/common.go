package services

import (
	"errors"
	"time"

	"mesa/internal/repository"
	apperrors "mesa/pkg/errors"
)

// Actor 发起操作的当前用户
type Actor struct {
	UserID       uint
	RestaurantID uint
}

const dateLayout = "2006-01-02"

// dateOnly 截断到当天零点，保留时区
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func uintPtr(v uint) *uint {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// lookupError 不存在转为NotFound，其余按内部错误处理
func lookupError(err error, notFoundMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(notFoundMsg)
	}
	return apperrors.Internal(notFoundMsg, err)
}

// isNotFound 仓储层不存在错误
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

// passThrough 已经是业务错误的原样返回，否则包装为内部错误
func passThrough(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Internal(message, err)
}
