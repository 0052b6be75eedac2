package poke

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/notify"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/internal/reaction"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// overCapError 构造超限错误，附带剩余数量和重试提示。
func overCapError() error {
	return apperror.RateLimitExceeded("今日催办次数已用完").
		WithMeta("remaining_today", 0).
		WithMeta("retry_after", "午夜后重试")
}

// SendInput 是发送催办的参数
type SendInput struct {
	TargetID    string
	Category    Category
	MessageKind MessageKind
	PresetKey   string
	CustomBody  string
}

// Send 发送一条催办。
//
// 限额的最终裁决在数据库事务中完成：锁定 (发送者, 日历日) 的计数行，
// 重新检查上限，递增并创建Poke，三步要么全部提交要么全部回滚。
// Redis上的配额预占只是快速路径，用补偿句柄保证与事务结果一致——
// 同一发送者的并发发送不可能让计数突破上限。
func Send(sender *guest.Session, input SendInput) (*Poke, error) {
	// 1. 业务校验，全部通过后才触碰计数
	if sender.Banned {
		return nil, apperror.InvalidState("封禁中的会话不能发送催办")
	}
	if input.TargetID == sender.UUID {
		return nil, apperror.InvalidState("不能催办自己").WithMeta("field", "target_id")
	}
	if !ValidCategory(input.Category) {
		return nil, apperror.InvalidState("未知的催办分类: %s", input.Category).WithMeta("field", "category")
	}

	target, err := guest.GetSessionByID(input.TargetID)
	if err != nil {
		return nil, err
	}
	if target.ProjectID != sender.ProjectID {
		return nil, apperror.InvalidState("目标会话不属于当前项目").WithMeta("field", "target_id")
	}

	body, err := resolveBody(sender, input)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	// 2. Redis快速路径预占配额，失败时在defer中自动补偿
	reservation, err := ReserveQuota(sender.UUID, now)
	if err != nil {
		return nil, err
	}
	defer reservation.RollbackUnlessCommitted()

	// 3. 数据库事务是限额的最终裁决者
	var poke Poke
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		limit, err := lockDailyLimit(tx, sender.UUID, DateKey(now))
		if err != nil {
			return err
		}

		// 行锁之下重新检查上限
		if limit.PokesSent >= DailyCap {
			return overCapError()
		}

		err = tx.Model(&DailyLimit{}).Where("id = ?", limit.ID).
			UpdateColumn("pokes_sent", gorm.Expr("pokes_sent + 1")).Error
		if err != nil {
			return fmt.Errorf("无法递增每日计数: %w", err)
		}

		poke = Poke{
			ProjectID:   sender.ProjectID,
			SenderID:    sender.UUID,
			TargetID:    target.UUID,
			Category:    input.Category,
			MessageKind: input.MessageKind,
			PresetKey:   input.PresetKey,
			Body:        body,
			Status:      StatusSent,
		}
		if err := tx.Create(&poke).Error; err != nil {
			return fmt.Errorf("无法创建催办记录: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 4. 事务成功，确认配额预占并发出通知
	reservation.Commit()
	notify.Emit(notify.Event{
		Kind:      notify.EventPokeReceived,
		SessionID: target.UUID,
		ActorID:   sender.UUID,
		RefID:     strconv.FormatUint(uint64(poke.ID), 10),
	})
	return &poke, nil
}

// lockDailyLimit 惰性创建并锁定 (发送者, 日历日) 的计数行。
// 唯一索引保证并发的首次发送只会创建一行，输掉创建竞争的一方
// 转而锁定已存在的行。
func lockDailyLimit(tx *gorm.DB, senderID, day string) (*DailyLimit, error) {
	var limit DailyLimit
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sender_id = ? AND date = ?", senderID, day).
		First(&limit).Error
	if err == nil {
		return &limit, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("无法锁定每日计数行: %w", err)
	}

	// 首次发送，惰性创建计数行
	fresh := DailyLimit{SenderID: senderID, Date: day}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh)
	if result.Error != nil {
		return nil, fmt.Errorf("无法创建每日计数行: %w", result.Error)
	}

	// 无论创建是否被并发抢先，重新加锁读取当前行
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sender_id = ? AND date = ?", senderID, day).
		First(&limit).Error
	if err != nil {
		return nil, fmt.Errorf("无法锁定每日计数行: %w", err)
	}
	return &limit, nil
}

// resolveBody 解析催办的展示文本。
// 普通访客只能使用预设消息；自定义文本是协调员的特权。
func resolveBody(sender *guest.Session, input SendInput) (string, error) {
	switch input.MessageKind {
	case MessagePreset:
		text, ok := PresetText(input.Category, input.PresetKey)
		if !ok {
			return "", apperror.InvalidState("预设消息 %q 不存在", input.PresetKey).
				WithMeta("field", "preset_key")
		}
		return text, nil
	case MessageCustom:
		if !sender.Coordinator {
			return "", apperror.InvalidState("自定义消息需要协调员权限").WithMeta("field", "message_kind")
		}
		if input.CustomBody == "" {
			return "", apperror.InvalidState("自定义消息不能为空").WithMeta("field", "body")
		}
		return input.CustomBody, nil
	default:
		return "", apperror.InvalidState("未知的消息类型: %s", input.MessageKind).
			WithMeta("field", "message_kind")
	}
}

// getPokeForTarget 读取一条催办并校验操作者是接收方。
func getPokeForTarget(pokeID uint, sessionID string) (*Poke, error) {
	var poke Poke
	if err := database.DB.First(&poke, pokeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("催办 %d 不存在", pokeID)
		}
		return nil, fmt.Errorf("无法读取催办 %d: %w", pokeID, err)
	}
	if poke.TargetID != sessionID {
		return nil, apperror.InvalidState("只有接收方可以处理这条催办")
	}
	return &poke, nil
}

// MarkRead 将催办标记为已读，幂等。已读的催办从sent进入pending。
func MarkRead(pokeID uint, sessionID string) error {
	poke, err := getPokeForTarget(pokeID, sessionID)
	if err != nil {
		return err
	}
	if poke.IsRead {
		return nil // 已读，无需操作
	}

	updates := map[string]interface{}{"is_read": true}
	if poke.Status == StatusSent {
		updates["status"] = StatusPending
	}
	return database.DB.Model(poke).Updates(updates).Error
}

// React 让接收方用固定集合中的表情回应催办，隐含已读。
func React(pokeID uint, sessionID string, emoji string) error {
	if !reaction.IsAllowedReaction(emoji) {
		return apperror.InvalidState("表情 %q 不在允许的集合内", emoji).
			WithMeta("field", "reaction").
			WithMeta("allowed", reaction.AllowedReactions)
	}

	poke, err := getPokeForTarget(pokeID, sessionID)
	if err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"reaction":   emoji,
		"reacted_at": &now,
		"is_read":    true,
	}
	if poke.Status == StatusSent {
		updates["status"] = StatusPending
	}
	return database.DB.Model(poke).Updates(updates).Error
}

// Resolve 在被催办的事项完成后关闭催办。
func Resolve(pokeID uint, sessionID string) error {
	poke, err := getPokeForTarget(pokeID, sessionID)
	if err != nil {
		return err
	}
	if poke.Status == StatusResolved {
		return nil // 已关闭，无需操作
	}

	now := time.Now()
	return database.DB.Model(poke).Updates(map[string]interface{}{
		"status":      StatusResolved,
		"resolved_at": &now,
		"is_read":     true,
	}).Error
}

// ListInbox 返回一个会话收到的催办，未读的排在前面。
func ListInbox(sessionID string, limit int) ([]Poke, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var pokes []Poke
	err := database.DB.
		Where("target_id = ?", sessionID).
		Order("is_read asc, id desc").
		Limit(limit).
		Find(&pokes).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取会话 %s 的催办收件箱: %w", sessionID, err)
	}
	return pokes, nil
}
