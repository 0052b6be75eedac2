package poke

import (
	"net/http"
	"strconv"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/gin-gonic/gin"
)

// SendRequestBody 定义了发送催办的请求体
type SendRequestBody struct {
	TargetID    string `json:"target_id" binding:"required"`
	Category    string `json:"category" binding:"required"`
	MessageKind string `json:"message_kind" binding:"required"`
	PresetKey   string `json:"preset_key"`
	Body        string `json:"body"`
}

// SubmitPoke 处理访客发送催办。
func SubmitPoke(c *gin.Context) {
	var body SendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	session := guest.CurrentSession(c)

	poke, err := Send(session, SendInput{
		TargetID:    body.TargetID,
		Category:    Category(body.Category),
		MessageKind: MessageKind(body.MessageKind),
		PresetKey:   body.PresetKey,
		CustomBody:  body.Body,
	})
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusCreated, poke)
}

// GetInbox 返回当前会话收到的催办。
func GetInbox(c *gin.Context) {
	session := guest.CurrentSession(c)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	pokes, err := ListInbox(session.UUID, limit)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"pokes": pokes})
}

// GetQuota 返回当前会话今日剩余的催办次数。
func GetQuota(c *gin.Context) {
	session := guest.CurrentSession(c)

	left, err := RemainingToday(session.UUID)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"daily_cap":       DailyCap,
		"remaining_today": left,
	})
}

// parsePokeID 从路径参数解析催办ID
func parsePokeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的催办ID"})
		return 0, false
	}
	return uint(id), true
}

// SubmitRead 将一条催办标记为已读。
func SubmitRead(c *gin.Context) {
	pokeID, ok := parsePokeID(c)
	if !ok {
		return
	}
	session := guest.CurrentSession(c)

	if err := MarkRead(pokeID, session.UUID); err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已标记为已读"})
}

// ReactRequestBody 定义了催办表情回应的请求体
type ReactRequestBody struct {
	Reaction string `json:"reaction" binding:"required"`
}

// SubmitReaction 处理接收方对催办的表情回应。
func SubmitReaction(c *gin.Context) {
	pokeID, ok := parsePokeID(c)
	if !ok {
		return
	}

	var body ReactRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	session := guest.CurrentSession(c)

	if err := React(pokeID, session.UUID, body.Reaction); err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "回应成功"})
}

// SubmitResolve 在被催办的事项完成后关闭催办。
func SubmitResolve(c *gin.Context) {
	pokeID, ok := parsePokeID(c)
	if !ok {
		return
	}
	session := guest.CurrentSession(c)

	if err := Resolve(pokeID, session.UUID); err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "催办已关闭"})
}
