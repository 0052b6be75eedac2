package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// secretKey 是一个全局变量，用于存储服务器在启动时生成的32字节密钥。
var secretKey []byte

// SessionPayload 定义了访客会话令牌中被签名的数据结构。
// 它在注册时下发给浏览器Cookie，在后续每个请求中被校验。
type SessionPayload struct {
	SessionID string `json:"s"`
	ProjectID uint   `json:"p"`
}

// GenerateSecretKey 生成一个密码学安全的32字节随机密钥。
// 密钥只存在于内存中，进程重启后所有旧令牌自然失效，访客需要重新注册。
func GenerateSecretKey() {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		panic("无法生成安全的密钥: " + err.Error())
	}
	secretKey = key
	fmt.Println("HMAC密钥已成功生成。")
}

// SetSecretKeyForTest 仅供测试注入确定性密钥。
func SetSecretKeyForTest(key []byte) {
	secretKey = key
}

// Sign 将payload序列化并用HMAC-SHA256签名，返回 "payload.signature" 形式的令牌。
func Sign(payload SessionPayload) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", errors.New("无法序列化会话payload")
	}

	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	signature := mac.Sum(nil)

	encodedPayload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	encodedSignature := base64.RawURLEncoding.EncodeToString(signature)
	return encodedPayload + "." + encodedSignature, nil
}

// Validate 校验令牌的完整性，成功时返回其中的payload。
func Validate(tokenStr string) (SessionPayload, bool) {
	var payload SessionPayload

	parts := strings.SplitN(tokenStr, ".", 2)
	if len(parts) != 2 {
		return payload, false
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return payload, false
	}
	actualSignature, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return payload, false
	}

	// 重新计算预期的签名
	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	expectedSignature := mac.Sum(nil)

	// 使用 hmac.Equal 进行时间恒定的比较，防止时序攻击
	if !hmac.Equal(expectedSignature, actualSignature) {
		return payload, false
	}

	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return payload, false
	}
	return payload, true
}
