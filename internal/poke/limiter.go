package poke

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"gorm.io/gorm"
)

const (
	// quotaKeyPrefix 是Redis中每日配额计数器的键名前缀
	quotaKeyPrefix = "poke_quota:"
	// quotaTTL 覆盖整个日历日并留出缓冲，过期后键自动清理
	quotaTTL = 48 * time.Hour
)

// quotaMutex 协调配额快速路径与缓存重建之间的并发。
// 正常发送之间可以并发执行，只有重建需要独占。
var quotaMutex sync.RWMutex

// quotaKey 返回一个发送者在某个日历日的配额键
func quotaKey(senderID, day string) string {
	return quotaKeyPrefix + senderID + ":" + day
}

// QuotaReservation 封装了一次配额预占的回滚逻辑。
// 它被设计为在业务流程失败时，通过defer语句安全地执行补偿。
// Redis不可用时返回的是非活动预占，所有方法都是no-op，
// 此时限额完全由数据库事务路径兜底。
type QuotaReservation struct {
	key       string
	active    bool
	committed bool
}

// ReserveQuota 在Redis中为发送者原子地预占一次当日配额。
// 计数超过上限时立即回退并返回RateLimitExceeded，数据库事务不会被打开。
// 这条快速路径把高频超限请求挡在主数据库之外；最终裁决仍在数据库事务中。
func ReserveQuota(senderID string, now time.Time) (*QuotaReservation, error) {
	if !database.IsRedisHealthy() {
		return &QuotaReservation{}, nil
	}

	key := quotaKey(senderID, DateKey(now))

	// 成功路径上读锁的范围会延伸到数据库事务结束后，由Rollback释放
	quotaMutex.RLock()

	count, err := database.RDB.Incr(database.Ctx, key).Result()
	if err != nil {
		quotaMutex.RUnlock()
		return nil, fmt.Errorf("无法递增配额计数: %w", err)
	}
	if count == 1 {
		// 首次发送当天的配额键，设置过期时间
		if err := database.RDB.Expire(database.Ctx, key, quotaTTL).Err(); err != nil {
			fmt.Printf("警告: 无法为配额键 %s 设置过期时间: %v\n", key, err)
		}
	}

	if count > DailyCap {
		// 立即补偿本次递增，保持计数与真实发送数一致
		if err := database.RDB.Decr(database.Ctx, key).Err(); err != nil {
			fmt.Printf("警告: 配额超限补偿失败! key: %s, 错误: %v\n", key, err)
		}
		quotaMutex.RUnlock()
		return nil, overCapError()
	}

	return &QuotaReservation{key: key, active: true}, nil
}

// Commit 标记数据库事务已成功，阻止后续的回滚操作。
func (r *QuotaReservation) Commit() {
	r.committed = true
}

// RollbackUnlessCommitted 是一个用于defer调用的关键方法。
// 如果Commit()没有被调用，它会自动补偿之前的配额递增。
func (r *QuotaReservation) RollbackUnlessCommitted() {
	if !r.active {
		return
	}
	defer quotaMutex.RUnlock()

	if r.committed {
		return
	}

	if err := database.RDB.Decr(database.Ctx, r.key).Err(); err != nil {
		fmt.Printf("严重警告: 配额预占补偿失败! key: %s, 错误: %v\n", r.key, err)
	}
}

// RebuildQuotaCache 从数据库重建当日的配额计数缓存。
// 用于应用启动和Redis故障恢复。
func RebuildQuotaCache() error {
	fmt.Println("正在从数据库重建催办配额缓存...")

	quotaMutex.Lock()
	defer quotaMutex.Unlock()

	today := DateKey(time.Now())
	var limits []DailyLimit
	if err := database.DB.Where("date = ?", today).Find(&limits).Error; err != nil {
		return fmt.Errorf("无法从数据库读取当日配额: %w", err)
	}

	if len(limits) == 0 {
		fmt.Println("催办配额：当日无发送记录需要恢复。")
		return nil
	}

	pipe := database.RDB.Pipeline()
	for _, limit := range limits {
		key := quotaKey(limit.SenderID, limit.Date)
		pipe.Set(database.Ctx, key, limit.PokesSent, quotaTTL)
	}
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("批量写回配额计数到Redis失败: %w", err)
	}

	fmt.Printf("催办配额：成功恢复了 %d 个发送者的当日计数。\n", len(limits))
	return nil
}

// RemainingToday 返回发送者当日剩余的可发送数量。
// 优先读Redis计数，Redis不可用或键缺失时退回数据库。
func RemainingToday(senderID string) (int, error) {
	today := DateKey(time.Now())

	if database.IsRedisHealthy() {
		quotaMutex.RLock()
		count, err := database.RDB.Get(database.Ctx, quotaKey(senderID, today)).Int()
		quotaMutex.RUnlock()
		if err == nil {
			return remaining(count), nil
		}
		// 键不存在或读取失败，退回数据库路径
	}

	var limit DailyLimit
	err := database.DB.Where("sender_id = ? AND date = ?", senderID, today).First(&limit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 无记录说明今天还没发过
			return DailyCap, nil
		}
		return 0, fmt.Errorf("无法读取发送者 %s 的当日配额: %w", senderID, err)
	}
	return remaining(limit.PokesSent), nil
}

func remaining(sent int) int {
	if sent >= DailyCap {
		return 0
	}
	return DailyCap - sent
}
