package startup

import (
	"fmt"

	"github.com/TabloHub/tablo-guest-backend/internal/content"
	"github.com/TabloHub/tablo-guest-backend/internal/gamification"
	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/metadata"
	"github.com/TabloHub/tablo-guest-backend/internal/poke"
	"github.com/TabloHub/tablo-guest-backend/internal/reaction"
	"github.com/TabloHub/tablo-guest-backend/internal/roster"
)

// InitializeApplication 是应用首次启动时执行的总入口
func InitializeApplication() error {
	fmt.Println("开始应用首次初始化...")

	if err := metadata.PrimeDB(); err != nil {
		return err
	}
	if err := roster.PrimeDB(); err != nil {
		return err
	}
	if err := guest.PrimeCachedDB(); err != nil {
		return err
	}
	if err := content.PrimeDB(); err != nil {
		return err
	}
	if err := reaction.PrimeDB(); err != nil {
		return err
	}
	if err := poke.PrimeCachedDB(); err != nil {
		return err
	}
	if err := gamification.PrimeCachedDB(); err != nil {
		return err
	}

	fmt.Println("应用初始化完成！")
	return nil
}

// RebuildCache 是一个专门用于在运行时热重建Redis镜像的函数。
// 主数据库是事实来源，所有镜像都可以随时从它重建。
func RebuildCache() error {
	fmt.Println("开始缓存热重建...")

	if err := guest.WarmupCache(); err != nil {
		return err
	}
	if err := poke.RebuildQuotaCache(); err != nil {
		return err
	}

	gamification.LockRepository()
	defer gamification.UnlockRepository()
	if err := gamification.RebuildLeaderboard(); err != nil {
		return err
	}

	fmt.Println("缓存热重建完成。")
	return nil
}
