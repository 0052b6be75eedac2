package reaction

import (
	"fmt"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
)

// PrimeDB 负责初始化reaction模块的数据库部分
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("无法迁移reaction表: %w", err)
	}
	fmt.Println("Reaction数据库表迁移成功。")
	return nil
}
