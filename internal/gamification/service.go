package gamification

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/notify"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// badgeCriteria 是徽章条件JSON的结构
type badgeCriteria struct {
	Metric string `json:"metric"`
	Op     string `json:"op"`
	Value  int    `json:"value"`
}

// metricValue 从会话的反规范化计数中取出条件引用的指标值
func metricValue(session *guest.Session, metric string) (int, error) {
	switch metric {
	case "points":
		return session.Points, nil
	case "posts_count":
		return session.PostsCount, nil
	case "replies_count":
		return session.RepliesCount, nil
	case "likes_given":
		return session.LikesGiven, nil
	case "likes_received":
		return session.LikesReceived, nil
	default:
		return 0, fmt.Errorf("未知的徽章指标: %s", metric)
	}
}

// satisfied 判定一个指标值是否满足条件
func (c badgeCriteria) satisfied(value int) (bool, error) {
	switch c.Op {
	case ">=":
		return value >= c.Value, nil
	case ">":
		return value > c.Value, nil
	case "==":
		return value == c.Value, nil
	case "<=":
		return value <= c.Value, nil
	case "<":
		return value < c.Value, nil
	default:
		return false, fmt.Errorf("未知的徽章条件运算符: %s", c.Op)
	}
}

// Award 是积分发放的事务入口：追加账本、更新积分缓存与等级、判定徽章。
// 事务提交后同步排行榜镜像并发出徽章事件。
// 返回更新后的会话和本次新获得的徽章。
func Award(sessionID string, action Action, refID string) (*guest.Session, []Badge, error) {
	var session guest.Session
	var earned []Badge

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		// 会话行锁是本会话积分与徽章判定的互斥范围
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ?", sessionID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("会话 %s 不存在", sessionID)
			}
			return fmt.Errorf("无法锁定会话 %s: %w", sessionID, err)
		}

		var err error
		earned, err = AwardInTx(tx, &session, action, refID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	afterAwardCommitted(&session, earned)
	return &session, earned, nil
}

// AwardInTx 在调用方已持有会话行锁的事务中执行一次积分发放。
// 调用方负责在提交后调用 AfterAwardCommitted 完成镜像同步和事件发送。
// session 必须是本事务中加锁读出的行，发放后其积分字段会被就地更新。
func AwardInTx(tx *gorm.DB, session *guest.Session, action Action, refID string) ([]Badge, error) {
	delta, ok := pointTable[action]
	if !ok {
		return nil, apperror.InvalidState("未知的积分行为: %s", action)
	}

	if err := applyDelta(tx, session, action, delta, refID); err != nil {
		return nil, err
	}

	// 徽章判定可能因徽章奖励积分而连锁触发新的徽章，
	// 反复判定直到一轮没有新发放为止；轮数以徽章总数为上界。
	var earned []Badge
	for {
		newlyEarned, err := evaluateBadgesOnce(tx, session)
		if err != nil {
			return nil, err
		}
		if len(newlyEarned) == 0 {
			break
		}
		earned = append(earned, newlyEarned...)
	}
	return earned, nil
}

// applyDelta 追加一条账本记录并原子地更新会话的积分缓存和等级。
func applyDelta(tx *gorm.DB, session *guest.Session, action Action, delta int, refID string) error {
	entry := PointLogEntry{
		SessionID: session.UUID,
		Action:    action,
		Delta:     delta,
		RefID:     refID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("无法写入积分账本: %w", err)
	}

	session.Points += delta
	session.RankLevel = RankForPoints(session.Points)

	err := tx.Model(&guest.Session{}).
		Where("uuid = ?", session.UUID).
		Updates(map[string]interface{}{
			"points":     session.Points,
			"rank_level": session.RankLevel,
		}).Error
	if err != nil {
		return fmt.Errorf("无法更新会话 %s 的积分缓存: %w", session.UUID, err)
	}
	return nil
}

// evaluateBadgesOnce 对全部启用的徽章做一轮判定。
// 单个徽章的条件解析失败不会中断发放流程，只记录并继续判定其余徽章。
func evaluateBadgesOnce(tx *gorm.DB, session *guest.Session) ([]Badge, error) {
	var badges []Badge
	if err := tx.Where("active = ?", true).Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("无法读取徽章定义: %w", err)
	}

	var earned []Badge
	for _, badge := range badges {
		var crit badgeCriteria
		if err := json.Unmarshal([]byte(badge.Criteria), &crit); err != nil {
			fmt.Printf("警告: 徽章 %s 的条件无法解析，已跳过: %v\n", badge.Key, err)
			continue
		}

		value, err := metricValue(session, crit.Metric)
		if err != nil {
			fmt.Printf("警告: 徽章 %s 的条件无法判定，已跳过: %v\n", badge.Key, err)
			continue
		}
		ok, err := crit.satisfied(value)
		if err != nil {
			fmt.Printf("警告: 徽章 %s 的条件无法判定，已跳过: %v\n", badge.Key, err)
			continue
		}
		if !ok {
			continue
		}

		// 幂等保障：先查再插，唯一索引兜底并发竞争
		var existing int64
		err = tx.Model(&UserBadge{}).
			Where("session_id = ? AND badge_id = ?", session.UUID, badge.ID).
			Count(&existing).Error
		if err != nil {
			return nil, fmt.Errorf("无法查询徽章持有记录: %w", err)
		}
		if existing > 0 {
			continue
		}

		userBadge := UserBadge{
			SessionID: session.UUID,
			BadgeID:   badge.ID,
			IsNew:     true,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&userBadge)
		if result.Error != nil {
			return nil, fmt.Errorf("无法发放徽章 %s: %w", badge.Key, result.Error)
		}
		if result.RowsAffected == 0 {
			// 并发的另一次判定抢先发放了，视为已持有
			continue
		}

		// 徽章自身的积分奖励递归入账
		if badge.RewardPoints > 0 {
			refID := strconv.FormatUint(uint64(badge.ID), 10)
			if err := applyDelta(tx, session, ActionBadge, badge.RewardPoints, refID); err != nil {
				return nil, err
			}
		}
		earned = append(earned, badge)
	}
	return earned, nil
}

// afterAwardCommitted 在发放事务提交后同步排行榜镜像并发出徽章事件。
func afterAwardCommitted(session *guest.Session, earned []Badge) {
	SyncSessionMirror(session)
	for _, badge := range earned {
		notify.Emit(notify.Event{
			Kind:      notify.EventBadgeEarned,
			SessionID: session.UUID,
			RefID:     strconv.FormatUint(uint64(badge.ID), 10),
		})
	}
}

// AfterAwardCommitted 是afterAwardCommitted的导出入口，
// 供在自有事务中调用了AwardInTx的模块（content、reaction）在提交后使用。
func AfterAwardCommitted(session *guest.Session, earned []Badge) {
	afterAwardCommitted(session, earned)
}

// MarkBadgeViewed 将一枚徽章标记为已查看，幂等。
func MarkBadgeViewed(sessionID string, userBadgeID uint) error {
	var userBadge UserBadge
	err := database.DB.First(&userBadge, userBadgeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("徽章记录 %d 不存在", userBadgeID)
		}
		return fmt.Errorf("无法读取徽章记录 %d: %w", userBadgeID, err)
	}
	if userBadge.SessionID != sessionID {
		return apperror.InvalidState("不能查看他人的徽章")
	}
	if !userBadge.IsNew {
		return nil // 已查看过，无需操作
	}

	now := time.Now()
	return database.DB.Model(&userBadge).
		Updates(map[string]interface{}{
			"is_new":    false,
			"viewed_at": &now,
		}).Error
}

// RecomputePoints 通过回放账本重建一个会话的积分缓存和等级。
// 账本是事实来源，这个操作可以在任何时刻安全执行；
// 镜像对账调度器用它来校验脏会话的缓存一致性。
func RecomputePoints(sessionID string) (int, error) {
	var total int
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var session guest.Session
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ?", sessionID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("会话 %s 不存在", sessionID)
			}
			return err
		}

		var sum struct{ Total int }
		err := tx.Model(&PointLogEntry{}).
			Select("coalesce(sum(delta), 0) as total").
			Where("session_id = ?", sessionID).
			Scan(&sum).Error
		if err != nil {
			return fmt.Errorf("无法回放会话 %s 的积分账本: %w", sessionID, err)
		}

		total = sum.Total
		if session.Points == total {
			return nil
		}

		fmt.Printf("警告: 会话 %s 的积分缓存 (%d) 与账本 (%d) 不一致，已修复。\n",
			sessionID, session.Points, total)
		return tx.Model(&guest.Session{}).
			Where("uuid = ?", sessionID).
			Updates(map[string]interface{}{
				"points":     total,
				"rank_level": RankForPoints(total),
			}).Error
	})
	return total, err
}

// ListBadges 返回一个会话持有的全部徽章及其定义。
type OwnedBadge struct {
	UserBadgeID uint       `json:"user_badge_id"`
	Key         string     `json:"key"`
	Title       string     `json:"title"`
	Tier        BadgeTier  `json:"tier"`
	IsNew       bool       `json:"is_new"`
	EarnedAt    time.Time  `json:"earned_at"`
	ViewedAt    *time.Time `json:"viewed_at,omitempty"`
}

func ListBadges(sessionID string) ([]OwnedBadge, error) {
	var owned []OwnedBadge
	err := database.DB.Model(&UserBadge{}).
		Select("user_badges.id as user_badge_id, badges.key, badges.title, badges.tier, user_badges.is_new, user_badges.created_at as earned_at, user_badges.viewed_at").
		Joins("JOIN badges ON badges.id = user_badges.badge_id").
		Where("user_badges.session_id = ?", sessionID).
		Order("user_badges.created_at asc").
		Scan(&owned).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取会话 %s 的徽章: %w", sessionID, err)
	}
	return owned, nil
}
