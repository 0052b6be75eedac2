package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestSignValidateRoundtrip(t *testing.T) {
	SetSecretKeyForTest(testKey())

	payload := SessionPayload{SessionID: "0192d1a0-0000-7000-8000-000000000001", ProjectID: 42}
	signed, err := Sign(payload)
	require.NoError(t, err)
	require.Contains(t, signed, ".")

	got, ok := Validate(signed)
	require.True(t, ok)
	require.Equal(t, payload, got)
}

func TestValidateRejectsTamperedPayload(t *testing.T) {
	SetSecretKeyForTest(testKey())

	signed, err := Sign(SessionPayload{SessionID: "abc", ProjectID: 1})
	require.NoError(t, err)

	forged, err := Sign(SessionPayload{SessionID: "abc", ProjectID: 2})
	require.NoError(t, err)

	// 把一个令牌的payload拼到另一个令牌的签名上
	parts := strings.SplitN(signed, ".", 2)
	forgedParts := strings.SplitN(forged, ".", 2)
	_, ok := Validate(forgedParts[0] + "." + parts[1])
	require.False(t, ok)
}

func TestValidateRejectsGarbage(t *testing.T) {
	SetSecretKeyForTest(testKey())

	for _, tokenStr := range []string{
		"",
		"no-dot-here",
		"!!!.???",
		"YWJj.",
		".YWJj",
	} {
		_, ok := Validate(tokenStr)
		require.False(t, ok, "应拒绝令牌 %q", tokenStr)
	}
}

func TestValidateRejectsTokenSignedWithOldKey(t *testing.T) {
	SetSecretKeyForTest(testKey())
	signed, err := Sign(SessionPayload{SessionID: "abc", ProjectID: 1})
	require.NoError(t, err)

	// 换密钥后旧令牌全部失效
	SetSecretKeyForTest([]byte("ffffffffffffffffffffffffffffffff"))
	_, ok := Validate(signed)
	require.False(t, ok)
}
