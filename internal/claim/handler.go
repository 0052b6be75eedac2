package claim

import (
	"net/http"
	"strconv"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/gin-gonic/gin"
)

// parseEntryID 从路径参数解析名册条目ID
func parseEntryID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的名册条目ID"})
		return 0, false
	}
	return uint(id), true
}

// SubmitClaim 处理访客对名册条目的认领请求。
// 认领进入pending时按Conflict语义返回409，前端据此提示“已有人认领，等待人工审核”。
func SubmitClaim(c *gin.Context) {
	entryID, ok := parseEntryID(c)
	if !ok {
		return
	}
	session := guest.CurrentSession(c)

	status, err := Claim(session.UUID, entryID)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}

	if status == guest.VerificationPending {
		conflict := apperror.Conflict("该条目已被认领，您的请求已进入人工审核").
			WithMeta("status", string(status))
		c.JSON(apperror.HTTPStatus(conflict), apperror.Payload(conflict))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

// ResolveRequestBody 定义了人工裁决请求体
type ResolveRequestBody struct {
	WinningSessionID string `json:"winning_session_id" binding:"required"`
}

// SubmitResolve 处理协调员对认领冲突的人工裁决。
func SubmitResolve(c *gin.Context) {
	entryID, ok := parseEntryID(c)
	if !ok {
		return
	}

	var body ResolveRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	if err := Resolve(entryID, body.WinningSessionID); err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "裁决完成"})
}

// GetClaimed 返回一个条目当前是否存在verified认领者。
func GetClaimed(c *gin.Context) {
	entryID, ok := parseEntryID(c)
	if !ok {
		return
	}

	claimed, err := IsClaimed(entryID)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"claimed": claimed})
}
