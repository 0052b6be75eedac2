package poke

import (
	"time"

	"gorm.io/gorm"
)

// Category 是催办的场景分类
type Category string

const (
	// CategoryVoting 催投票（模板评选等）
	CategoryVoting Category = "voting"
	// CategoryPhotoshoot 催拍摄（约拍时间确认）
	CategoryPhotoshoot Category = "photoshoot"
	// CategoryImageSelection 催选片
	CategoryImageSelection Category = "image_selection"
	// CategoryGeneral 普通提醒
	CategoryGeneral Category = "general"
)

// ValidCategory 检查分类是否合法
func ValidCategory(c Category) bool {
	switch c {
	case CategoryVoting, CategoryPhotoshoot, CategoryImageSelection, CategoryGeneral:
		return true
	}
	return false
}

// MessageKind 区分预设消息和自定义文本
type MessageKind string

const (
	// MessagePreset 从预设消息目录中选取
	MessagePreset MessageKind = "preset"
	// MessageCustom 自定义文本，仅协调员可用
	MessageCustom MessageKind = "custom"
)

// Status 是催办的生命周期状态
type Status string

const (
	// StatusSent 已发出，对方尚未查看
	StatusSent Status = "sent"
	// StatusPending 对方已查看，等待其完成被催办的事项
	StatusPending Status = "pending"
	// StatusResolved 被催办的事项已完成
	StatusResolved Status = "resolved"
	// StatusExpired 超过时限仍未处理，由后台清扫器标记
	StatusExpired Status = "expired"
)

// Poke 是一条定向催办。历史永久保留，既用于每日限额的核算也用于展示。
type Poke struct {
	// gorm.Model 包含 ID, CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	ProjectID uint `gorm:"index;not null" json:"project_id"`

	// SenderID 是发起方会话
	SenderID string `gorm:"index;not null;type:varchar(36)" json:"sender_id"`

	// TargetID 是接收方会话，必须与发起方同项目且不同人
	TargetID string `gorm:"index;not null;type:varchar(36)" json:"target_id"`

	Category    Category    `gorm:"not null" json:"category"`
	MessageKind MessageKind `gorm:"not null" json:"message_kind"`

	// PresetKey 在MessageKind为preset时指向预设目录
	PresetKey string `json:"preset_key,omitempty"`

	// Body 是展示文本：预设消息的展开或协调员的自定义文本
	Body string `json:"body"`

	Status Status `gorm:"index;not null;default:sent" json:"status"`

	// Reaction 是接收方的表情回应，取值限于固定的表情集合
	Reaction *string `json:"reaction,omitempty"`

	// IsRead 标记接收方是否已查看
	IsRead bool `gorm:"default:false" json:"is_read"`

	ReactedAt  *time.Time `json:"reacted_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// DailyLimit 是 (发送者, 日历日) 粒度的发送计数行。
// 不变量：PokesSent 永远不会超过 DailyCap，即便在并发发送下。
// 首次发送时惰性创建，之后在行锁保护下递增。
type DailyLimit struct {
	gorm.Model

	SenderID string `gorm:"uniqueIndex:idx_sender_date;not null;type:varchar(36)" json:"sender_id"`

	// Date 是服务器本地时区的日历日，格式 2006-01-02
	Date string `gorm:"uniqueIndex:idx_sender_date;not null;type:varchar(10)" json:"date"`

	PokesSent int `gorm:"default:0" json:"pokes_sent"`
}

// DailyCap 是每个发送者每天的催办上限
const DailyCap = 200

// DateKey 返回一个时间所属的日历日键
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
