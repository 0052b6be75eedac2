package content

import (
	"fmt"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
)

// PrimeDB 负责初始化content模块的数据库部分
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Post{}, &Comment{}); err != nil {
		return fmt.Errorf("无法迁移content表: %w", err)
	}
	fmt.Println("Content数据库表迁移成功。")
	return nil
}
