package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TabloHub/tablo-guest-backend/internal/gamification"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/metadata"
	"github.com/TabloHub/tablo-guest-backend/pkg/lifecycle"
)

const reconcileInterval = 10 * time.Minute // 定时对账频率

var reconcileMutex sync.Mutex // 避免意外竞态

// StartReconcileScheduler 启动一个后台Goroutine来定期执行镜像对账。
// 它接收一个lifecycle.Handle来管理其生命周期。
func StartReconcileScheduler(handle *lifecycle.Handle) {
	defer handle.Close()
	fmt.Println("镜像对账调度器已启动。")

	for {
		// 使用可中断的休眠，收到停机信号时立刻从休眠中唤醒并退出
		if err := handle.Sleep(reconcileInterval); err != nil {
			fmt.Println("对账调度器: 休眠被中断，正在关闭...")
			return
		}

		if !database.IsRedisHealthy() {
			fmt.Println("对账调度器: 检测到Redis不可用，跳过本次对账。")
			continue
		}

		fmt.Println("对账调度器: 正在执行定时对账...")
		if err := ReconcileDirtySessions(handle.Ctx()); err != nil {
			if err != context.Canceled && err != context.DeadlineExceeded {
				fmt.Printf("对账调度器错误: 执行镜像对账失败: %v\n", err)
			}
		} else {
			fmt.Println("对账调度器: 镜像对账成功。")
		}
	}
}

// ReconcileDirtySessions 对自上次对账以来积分发生过变化的会话做增量校验：
// 用账本回放修复积分缓存，再把正确的积分写回排行榜镜像。
// 脏集合先整体转移到processing集合，处理期间新产生的脏会话留待下一轮。
func ReconcileDirtySessions(ctx context.Context) error {
	reconcileMutex.Lock()
	defer reconcileMutex.Unlock()

	// 1. 在仓库锁的保护下转移脏集合，避免和实时更新撕裂
	gamification.LockRepository()
	exists, err := database.RDB.Exists(ctx, gamification.DirtySetKey).Result()
	if err != nil {
		gamification.UnlockRepository()
		return fmt.Errorf("无法检查脏集合是否存在: %w", err)
	}
	if exists > 0 {
		if err := database.RDB.Rename(ctx, gamification.DirtySetKey, gamification.ProcessingDirtySetKey).Err(); err != nil {
			gamification.UnlockRepository()
			return fmt.Errorf("无法转移脏集合: %w", err)
		}
	}
	gamification.UnlockRepository()

	if exists == 0 {
		return markReconciled()
	}

	dirtyIDs, err := database.RDB.SMembers(ctx, gamification.ProcessingDirtySetKey).Result()
	if err != nil {
		return fmt.Errorf("无法读取待处理的脏会话: %w", err)
	}

	// 2. 逐个用账本回放校验积分缓存，并修复排行榜镜像
	repaired := 0
	for _, sessionID := range dirtyIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := gamification.ReconcileSession(sessionID); err != nil {
			fmt.Printf("对账警告: 会话 %s 的积分对账失败: %v\n", sessionID, err)
			continue
		}
		repaired++
	}

	// 3. 清理processing集合
	if err := database.RDB.Del(ctx, gamification.ProcessingDirtySetKey).Err(); err != nil {
		fmt.Printf("对账警告: 无法清理processing集合: %v\n", err)
	}

	fmt.Printf("对账调度器: 本轮校验了 %d 个脏会话。\n", repaired)
	return markReconciled()
}

func markReconciled() error {
	return metadata.SetTimestamp(database.DB, metadata.LastMirrorReconcileAtKey, time.Now())
}
