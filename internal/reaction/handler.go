package reaction

import (
	"net/http"
	"strconv"

	"github.com/TabloHub/tablo-guest-backend/internal/content"
	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/pkg/actor"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/gin-gonic/gin"
)

// ToggleRequestBody 定义了反应切换请求体
type ToggleRequestBody struct {
	Reaction string `json:"reaction" binding:"required"`
}

// toggleHandler 是帖子和评论共用的切换处理逻辑
func toggleHandler(c *gin.Context, subjectKind content.SubjectKind) {
	subjectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的主体ID"})
		return
	}

	var body ToggleRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	session := guest.CurrentSession(c)
	outcome, err := Toggle(actor.NewGuest(session.UUID), session.ProjectID,
		subjectKind, uint(subjectID), body.Reaction)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// TogglePostReaction 切换当前访客对一条帖子的反应。
func TogglePostReaction(c *gin.Context) {
	toggleHandler(c, content.SubjectPost)
}

// ToggleCommentReaction 切换当前访客对一条评论的反应。
func ToggleCommentReaction(c *gin.Context) {
	toggleHandler(c, content.SubjectComment)
}

// GetPostReactions 返回一条帖子的反应汇总。
func GetPostReactions(c *gin.Context) {
	subjectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的主体ID"})
		return
	}

	summary, err := Summary(content.SubjectPost, uint(subjectID))
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": summary})
}
