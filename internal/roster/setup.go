package roster

import (
	"fmt"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
)

// PrimeDB 负责初始化roster模块的数据库部分
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("无法迁移roster表: %w", err)
	}
	fmt.Println("Roster数据库表迁移成功。")
	return nil
}
