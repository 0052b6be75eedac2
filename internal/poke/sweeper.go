package poke

import (
	"fmt"
	"time"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/metadata"
	"github.com/TabloHub/tablo-guest-backend/pkg/lifecycle"
)

const (
	// sweepInterval 是过期清扫的执行频率
	sweepInterval = 1 * time.Hour
	// expireAfter 是催办在未处理状态下的存活时限
	expireAfter = 7 * 24 * time.Hour
)

// StartExpirySweeper 启动一个后台Goroutine，定期把超时未处理的催办标记为expired。
// 它接收一个lifecycle.Handle来管理其生命周期。
func StartExpirySweeper(handle *lifecycle.Handle) {
	defer handle.Close()
	fmt.Println("催办过期清扫器已启动。")

	for {
		if err := handle.Sleep(sweepInterval); err != nil {
			fmt.Println("催办过期清扫器: 休眠被中断，正在关闭...")
			return
		}

		if err := SweepExpired(time.Now()); err != nil {
			fmt.Printf("催办过期清扫器错误: %v\n", err)
		}
	}
}

// SweepExpired 把截止时间之前创建、仍处于sent或pending状态的催办标记为expired。
// 操作幂等，重复执行不会产生额外变更。
func SweepExpired(now time.Time) error {
	cutoff := now.Add(-expireAfter)

	result := database.DB.Model(&Poke{}).
		Where("status IN ? AND created_at < ?", []Status{StatusSent, StatusPending}, cutoff).
		Update("status", StatusExpired)
	if result.Error != nil {
		return fmt.Errorf("无法标记过期催办: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		fmt.Printf("催办过期清扫器: 标记了 %d 条过期催办。\n", result.RowsAffected)
	}

	if err := metadata.SetTimestamp(database.DB, metadata.LastPokeExpirySweepAtKey, now); err != nil {
		fmt.Printf("警告: 无法记录清扫时间戳: %v\n", err)
	}
	return nil
}
