package guest

import (
	"net/http"

	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/gin-gonic/gin"
)

// RegisterRequestBody 定义了访客注册请求体。
// 项目码的换取和校验由外部的项目模块完成，这里拿到的已经是项目ID。
type RegisterRequestBody struct {
	ProjectID   uint   `json:"project_id" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Fingerprint string `json:"fingerprint"`
}

// SubmitRegister 处理访客注册，创建会话并把签名令牌写入Cookie。
func SubmitRegister(c *gin.Context) {
	var body RegisterRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	session, signedToken, err := Register(body.ProjectID, body.DisplayName, body.Fingerprint)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}

	SetSessionCookie(c, signedToken)
	c.JSON(http.StatusCreated, session)
}

// GetMe 返回当前会话的基本信息。
func GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentSession(c))
}
