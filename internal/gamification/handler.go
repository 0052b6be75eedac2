package gamification

import (
	"net/http"
	"strconv"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/gin-gonic/gin"
)

// GetProfile 返回当前会话的积分、等级、进度和徽章。
// “距下一等级的积分”和“进度百分比”是派生值，每次现算。
func GetProfile(c *gin.Context) {
	session := guest.CurrentSession(c)

	badges, err := ListBadges(session.UUID)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":     session.UUID,
		"display_name":   session.DisplayName,
		"points":         session.Points,
		"rank":           ProgressForPoints(session.Points),
		"posts_count":    session.PostsCount,
		"replies_count":  session.RepliesCount,
		"likes_given":    session.LikesGiven,
		"likes_received": session.LikesReceived,
		"badges":         badges,
	})
}

// MarkBadgeViewedHandler 将一枚徽章标记为已查看。
func MarkBadgeViewedHandler(c *gin.Context) {
	userBadgeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的徽章记录ID"})
		return
	}
	session := guest.CurrentSession(c)

	if err := MarkBadgeViewed(session.UUID, uint(userBadgeID)); err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已标记为已查看"})
}

// GetLeaderboardHandler 返回当前项目的积分排行榜。
func GetLeaderboardHandler(c *gin.Context) {
	session := guest.CurrentSession(c)

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	rows, err := GetLeaderboard(session.ProjectID, limit)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": rows})
}
