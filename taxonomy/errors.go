package taxonomy

import (
	"errors"
	"fmt"
)

// ErrorCode 统一错误码
type ErrorCode string

const (
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrCorruptIndex     ErrorCode = "CORRUPT_INDEX"
	ErrEmbeddingFailure ErrorCode = "EMBEDDING_FAILURE"
	ErrLLMFailure       ErrorCode = "LLM_FAILURE"
	ErrCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	ErrStorage          ErrorCode = "STORAGE"
)

// Error 结构化错误，携带错误码与底层原因
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层原因
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError 创建结构化错误
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause 附加底层原因
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable 标记错误可重试
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// CodeOf 提取错误链中的错误码，链上无结构化错误返回空
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode 判断错误是否携带指定错误码
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
