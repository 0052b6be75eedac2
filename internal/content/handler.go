package content

import (
	"net/http"
	"strconv"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/gin-gonic/gin"
)

// PostRequestBody 定义了发帖请求体
type PostRequestBody struct {
	Body string `json:"body" binding:"required"`
}

// SubmitPost 处理访客发帖。
func SubmitPost(c *gin.Context) {
	var body PostRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	session := guest.CurrentSession(c)

	post, err := CreatePost(session.UUID, body.Body)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusCreated, post)
}

// SubmitComment 处理访客在帖子下发评论。
func SubmitComment(c *gin.Context) {
	postID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的帖子ID"})
		return
	}

	var body PostRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	session := guest.CurrentSession(c)

	comment, err := CreateComment(session.UUID, uint(postID), body.Body)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// GetPosts 返回当前项目的帖子列表。
func GetPosts(c *gin.Context) {
	session := guest.CurrentSession(c)

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	posts, err := ListPosts(session.ProjectID, limit)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}
