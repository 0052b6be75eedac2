package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 定义了业务错误的分类。
// 这四类错误都是调用边界上可恢复的，不会作为致命错误向上传播。
type Kind int

const (
	// KindNotFound 表示引用的名册条目、会话、催办或徽章不存在
	KindNotFound Kind = iota
	// KindInvalidState 表示请求在当前状态下不合法（如表情不在固定集合内、自我催办、跨项目目标）
	KindInvalidState
	// KindRateLimitExceeded 表示触发了每日催办上限
	KindRateLimitExceeded
	// KindConflict 表示并发的认领/切换输掉了竞争，调用方需要重试或等待人工处理
	KindConflict
)

// Error 是带分类的业务错误。
// Meta 携带希望返回给前端的附加字段（如剩余配额、字段级校验信息）。
type Error struct {
	Kind    Kind
	Message string
	Meta    map[string]any
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is 让 errors.Is 可以按分类哨兵进行匹配。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// 分类哨兵，供 errors.Is 使用。
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrRateLimitExceeded = &Error{Kind: KindRateLimitExceeded}
	ErrConflict          = &Error{Kind: KindConflict}
)

// NotFound 构造一个“目标不存在”错误。
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidState 构造一个“请求在当前状态下不合法”错误。
func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// RateLimitExceeded 构造一个“超出频率限制”错误。
func RateLimitExceeded(format string, args ...any) *Error {
	return &Error{Kind: KindRateLimitExceeded, Message: fmt.Sprintf(format, args...)}
}

// Conflict 构造一个“并发竞争失败”错误。
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// WithMeta 为错误附加一个返回给前端的字段。
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// Wrap 在保持分类不变的前提下包装底层错误。
func (e *Error) Wrap(err error) *Error {
	e.wrapped = err
	return e
}

// HTTPStatus 将错误分类映射到HTTP状态码。
// 未分类的错误一律按500处理。
func HTTPStatus(err error) int {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState:
		return http.StatusUnprocessableEntity
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Payload 生成返回给前端的JSON结构。
func Payload(err error) map[string]any {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return map[string]any{"error": "内部错误"}
	}
	body := map[string]any{"error": appErr.Message}
	for k, v := range appErr.Meta {
		body[k] = v
	}
	return body
}
