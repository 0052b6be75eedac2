package poke

import (
	"fmt"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
)

// migrateDB 负责自动迁移数据库表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&Poke{}, &DailyLimit{}); err != nil {
		return fmt.Errorf("无法迁移poke表: %w", err)
	}
	fmt.Println("Poke数据库表迁移成功。")
	return nil
}

// PrimeCachedDB 是poke模块的初始化总入口
func PrimeCachedDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	if err := RebuildQuotaCache(); err != nil {
		return err
	}
	return nil
}
