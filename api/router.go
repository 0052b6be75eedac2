package api

import (
	"github.com/TabloHub/tablo-guest-backend/internal/claim"
	"github.com/TabloHub/tablo-guest-backend/internal/content"
	"github.com/TabloHub/tablo-guest-backend/internal/gamification"
	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/poke"
	"github.com/TabloHub/tablo-guest-backend/internal/reaction"
	"github.com/gin-gonic/gin"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		// 会话注册是唯一无需会话的入口
		api.POST("/session/register", guest.SubmitRegister)

		authed := api.Group("", guest.RequireSessionMiddleware())
		{
			authed.GET("/session/me", guest.GetMe)

			// 名单与认领相关的路由组 /api/roster
			rosterRoutes := authed.Group("/roster")
			{
				rosterRoutes.GET("", claim.GetRoster)
				rosterRoutes.POST("/:id/claim", claim.SubmitClaim)
				rosterRoutes.GET("/:id/claimed", claim.GetClaimed)
				rosterRoutes.POST("/:id/resolve", guest.RequireCoordinatorMiddleware(), claim.SubmitResolve)
			}

			// 帖子与回复相关的路由组 /api/posts
			postRoutes := authed.Group("/posts")
			{
				postRoutes.GET("", content.GetPosts)
				postRoutes.POST("", content.SubmitPost)
				postRoutes.POST("/:id/comments", content.SubmitComment)
				postRoutes.POST("/:id/reactions", reaction.TogglePostReaction)
				postRoutes.GET("/:id/reactions", reaction.GetPostReactions)
			}
			authed.POST("/comments/:id/reactions", reaction.ToggleCommentReaction)

			// 催办相关的路由组 /api/pokes
			pokeRoutes := authed.Group("/pokes")
			{
				pokeRoutes.POST("", poke.SubmitPoke)
				pokeRoutes.GET("", poke.GetInbox)
				pokeRoutes.GET("/quota", poke.GetQuota)
				pokeRoutes.POST("/:id/read", poke.SubmitRead)
				pokeRoutes.POST("/:id/reaction", poke.SubmitReaction)
				pokeRoutes.POST("/:id/resolve", poke.SubmitResolve)
			}

			// 积分与徽章相关的路由
			authed.GET("/profile", gamification.GetProfile)
			authed.POST("/badges/:id/viewed", gamification.MarkBadgeViewedHandler)
			authed.GET("/leaderboard", gamification.GetLeaderboardHandler)
		}
	}
}
