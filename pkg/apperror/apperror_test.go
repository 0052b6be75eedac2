package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("不存在"), http.StatusNotFound},
		{InvalidState("状态不对"), http.StatusUnprocessableEntity},
		{RateLimitExceeded("太快了"), http.StatusTooManyRequests},
		{Conflict("竞争失败"), http.StatusConflict},
		{errors.New("随便什么错误"), http.StatusInternalServerError},
		{fmt.Errorf("包了一层: %w", NotFound("不存在")), http.StatusNotFound},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, HTTPStatus(tc.err), "错误: %v", tc.err)
	}
}

func TestSentinelMatching(t *testing.T) {
	err := RateLimitExceeded("今日催办次数已用完")
	require.ErrorIs(t, err, ErrRateLimitExceeded)
	require.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("外层: %w", err)
	require.ErrorIs(t, wrapped, ErrRateLimitExceeded)
}

func TestWrapKeepsKindAndChain(t *testing.T) {
	cause := errors.New("底层数据库错误")
	err := Conflict("竞争失败").Wrap(cause)

	require.ErrorIs(t, err, ErrConflict)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "竞争失败")
	require.Contains(t, err.Error(), "底层数据库错误")
}

func TestPayloadIncludesMeta(t *testing.T) {
	err := RateLimitExceeded("今日催办次数已用完").
		WithMeta("remaining_today", 0).
		WithMeta("retry_after", "午夜后重试")

	body := Payload(err)
	require.Equal(t, "今日催办次数已用完", body["error"])
	require.Equal(t, 0, body["remaining_today"])
	require.Equal(t, "午夜后重试", body["retry_after"])

	// 未分类的错误不向前端泄露细节
	generic := Payload(errors.New("内部细节"))
	require.Equal(t, "内部错误", generic["error"])
}
