package gamification

import (
	"fmt"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"gorm.io/gorm/clause"
)

// defaultBadges 是随应用一起发布的内置徽章定义。
// 种子数据用Key做幂等upsert，管理员可以在数据库中调整或停用。
var defaultBadges = []Badge{
	{Key: "first_post", Title: "破冰者", Tier: TierBronze, RewardPoints: 5, Criteria: `{"metric":"posts_count","op":">=","value":1}`, Active: true},
	{Key: "chatterbox", Title: "话痨", Tier: TierSilver, RewardPoints: 10, Criteria: `{"metric":"posts_count","op":">=","value":10}`, Active: true},
	{Key: "first_reply", Title: "捧场王", Tier: TierBronze, RewardPoints: 3, Criteria: `{"metric":"replies_count","op":">=","value":1}`, Active: true},
	{Key: "generous_heart", Title: "点赞狂魔", Tier: TierBronze, RewardPoints: 5, Criteria: `{"metric":"likes_given","op":">=","value":20}`, Active: true},
	{Key: "crowd_favorite", Title: "人气之星", Tier: TierSilver, RewardPoints: 10, Criteria: `{"metric":"likes_received","op":">=","value":25}`, Active: true},
	{Key: "century_club", Title: "百分俱乐部", Tier: TierGold, RewardPoints: 20, Criteria: `{"metric":"points","op":">=","value":100}`, Active: true},
}

// migrateDB 负责自动迁移数据库表结构并写入内置徽章
func migrateDB() error {
	if err := database.DB.AutoMigrate(&PointLogEntry{}, &Badge{}, &UserBadge{}); err != nil {
		return fmt.Errorf("无法迁移gamification表: %w", err)
	}

	// 只在首次出现时插入，不覆盖管理员的后续修改
	for _, badge := range defaultBadges {
		err := database.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&badge).Error
		if err != nil {
			return fmt.Errorf("无法写入内置徽章 %s: %w", badge.Key, err)
		}
	}

	fmt.Println("Gamification数据库表迁移成功。")
	return nil
}

// WarmupCache 重建排行榜镜像。调用方需要持有仓库写锁（启动时单线程可直接调用）。
func WarmupCache() error {
	return RebuildLeaderboard()
}

// PrimeCachedDB 是gamification模块的初始化总入口
func PrimeCachedDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	if err := WarmupCache(); err != nil {
		return err
	}
	return nil
}
