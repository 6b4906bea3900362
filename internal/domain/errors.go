package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 业务错误类别，HTTP 层据此映射状态码。
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"     // 未提供调用者身份
	KindForbidden    ErrorKind = "forbidden"        // 身份有效但不拥有目标资源
	KindNotFound     ErrorKind = "not_found"        // 引用的实体不存在
	KindDuplicate    ErrorKind = "duplicate"        // 唯一约束冲突（如文件夹重名）
	KindValidation   ErrorKind = "validation_error" // 输入不符合结构规则
	KindExpired      ErrorKind = "expired"          // 撤销窗口已关闭
	KindRateLimited  ErrorKind = "rate_limited"     // 远程抓取层限流，编排器内部重试
	KindTokenExpired ErrorKind = "token_expired"    // 远程授权失效，批次立即中止
	KindInternal     ErrorKind = "internal"         // 其他内部错误
)

// Error 统一业务错误。所有失败都携带类别，不抛裸错误消息。
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error // 可选的底层错误
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap 返回底层错误。
func (e *Error) Unwrap() error {
	return e.Err
}

// Is 支持 errors.Is 按类别比较。
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// NewError 创建指定类别的业务错误。
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError 包装底层错误并附加类别。
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// ErrUnauthorized 创建未认证错误。
func ErrUnauthorized(message string) *Error { return NewError(KindUnauthorized, message) }

// ErrForbidden 创建无权限错误。
func ErrForbidden(message string) *Error { return NewError(KindForbidden, message) }

// ErrNotFound 创建实体不存在错误。
func ErrNotFound(message string) *Error { return NewError(KindNotFound, message) }

// ErrDuplicate 创建唯一约束冲突错误。
func ErrDuplicate(message string) *Error { return NewError(KindDuplicate, message) }

// ErrValidation 创建输入校验错误。
func ErrValidation(message string) *Error { return NewError(KindValidation, message) }

// ErrExpired 创建窗口过期错误。
func ErrExpired(message string) *Error { return NewError(KindExpired, message) }

// ErrRateLimited 创建限流错误。
func ErrRateLimited(message string) *Error { return NewError(KindRateLimited, message) }

// ErrTokenExpired 创建远程授权失效错误。
func ErrTokenExpired(message string) *Error { return NewError(KindTokenExpired, message) }

// KindOf 返回错误的业务类别；非业务错误归为 internal。
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind 判断错误是否属于指定类别。
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
