// Package dbtest 为单元测试提供一个独立的内存SQLite数据库。
// 每个测试用例拿到互相隔离的数据库，并把Redis镜像标记为不可用，
// 使被测代码走数据库回退路径，测试无需真实的Redis服务。
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Setup 打开一个以测试名命名的内存数据库，迁移给定的模型，
// 并将其安装为全局连接。测试结束时自动关闭。
func Setup(t *testing.T, models ...interface{}) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("无法打开测试数据库: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("无法获取底层连接: %v", err)
	}
	// 单连接串行化所有访问，内存库在并发事务下也保持一致
	sqlDB.SetMaxOpenConns(1)

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("无法迁移测试表: %v", err)
		}
	}

	database.DB = db
	database.UpdateStatus(false, "")

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}
