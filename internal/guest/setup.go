package guest

import (
	"fmt"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
)

// migrateDB 负责自动迁移数据库表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&Session{}); err != nil {
		return fmt.Errorf("无法迁移guest表: %w", err)
	}
	fmt.Println("Guest数据库表迁移成功。")
	return nil
}

// WarmupCache 从数据库加载所有已知的会话UUID，并预热到Redis的Set中
func WarmupCache() error {
	var sessions []Session
	if err := database.DB.Select("uuid").Find(&sessions).Error; err != nil {
		return fmt.Errorf("无法从数据库读取会话UUID: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("无现有会话数据，无需预热会话缓存。")
		return nil
	}

	sessionUUIDs := make([]interface{}, len(sessions))
	for i, s := range sessions {
		sessionUUIDs[i] = s.UUID
	}

	// 使用Pipeline批量将所有UUID添加到Redis的Set中
	pipe := database.RDB.Pipeline()
	// 先清空旧的缓存，确保数据一致性
	pipe.Del(database.Ctx, KnownSessionsKey)
	pipe.SAdd(database.Ctx, KnownSessionsKey, sessionUUIDs...)

	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("预热会话UUID到Redis失败: %w", err)
	}

	fmt.Printf("成功预热 %d 个会话UUID到Redis。\n", len(sessions))
	return nil
}

// PrimeCachedDB 是guest模块的初始化总入口
func PrimeCachedDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	if err := WarmupCache(); err != nil {
		return err
	}
	return nil
}
