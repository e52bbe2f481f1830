// internal/service/loyalty/domain/errors.go
package domain

import "github.com/pkg/errors"

// 错误分类。调用方通过 errors.Is 判断类别，具体原因包含在包装后的信息里。
var (
	ErrValidation          = errors.New("validation error")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
	ErrPersistence         = errors.New("persistence failure")
	ErrForbidden           = errors.New("forbidden")

	// ErrConcurrentModification 表示保存时版本号已被其他写入推进，属于持久化失败的一种
	ErrConcurrentModification = errors.Wrap(ErrPersistence, "account was modified concurrently")
)

func validationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// NotFoundf 构造一个 ErrNotFound 类别的错误
func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// Validationf 供应用层构造参数校验错误
func Validationf(format string, args ...interface{}) error {
	return validationf(format, args...)
}

// Persistence 把存储层的原始错误归类为持久化失败，保留原始信息
func Persistence(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	return errors.Wrapf(ErrPersistence, "%s: %v", op, err)
}
