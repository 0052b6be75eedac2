package guest

import (
	"net/http"

	"github.com/TabloHub/tablo-guest-backend/pkg/token"
	"github.com/gin-gonic/gin"
)

const (
	// CookieName 是存放签名会话令牌的Cookie名
	CookieName = "guest-session"
	// CookieMaxAge 约一年，与项目生命周期同量级
	CookieMaxAge = 365 * 24 * 60 * 60
	// SessionKey 是已加载会话在Gin上下文中的键名
	SessionKey = "guestSession"
)

// SetSessionCookie 把签名后的会话令牌写入响应Cookie。
func SetSessionCookie(c *gin.Context, signedToken string) {
	c.SetCookie(CookieName, signedToken, CookieMaxAge, "/", "", false, true)
}

// RequireSessionMiddleware 校验会话令牌并把会话加载到Gin上下文中。
// 令牌无效、会话不存在或已被封禁时，请求被直接拒绝。
// 上层调用默认拿到的会话已经通过了这里的校验。
func RequireSessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(CookieName)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "缺少会话令牌，请先注册"})
			return
		}

		payload, ok := token.Validate(raw)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "会话令牌无效，请重新注册"})
			return
		}

		session, err := GetSessionByID(payload.SessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "会话不存在，请重新注册"})
			return
		}
		if session.Banned {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "该会话已被封禁"})
			return
		}

		c.Set(SessionKey, session)
		c.Next()
	}
}

// RequireCoordinatorMiddleware 在RequireSessionMiddleware之后使用，
// 只放行协调员会话，用于人工裁决等管理操作。
func RequireCoordinatorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := CurrentSession(c)
		if session == nil || !session.Coordinator {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "该操作需要协调员权限"})
			return
		}
		c.Next()
	}
}

// CurrentSession 从Gin上下文中取出已加载的会话。
func CurrentSession(c *gin.Context) *Session {
	value, exists := c.Get(SessionKey)
	if !exists {
		return nil
	}
	session, _ := value.(*Session)
	return session
}
