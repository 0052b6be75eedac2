package gamification

import (
	"time"

	"gorm.io/gorm"
)

// Action 枚举了会产生积分的行为类型
type Action string

const (
	// ActionPost 发布帖子
	ActionPost Action = "post"
	// ActionReply 发布评论/回复
	ActionReply Action = "reply"
	// ActionLikeReceived 自己的内容收到表情反应
	ActionLikeReceived Action = "like_received"
	// ActionLikeGiven 给别人的内容做出表情反应
	ActionLikeGiven Action = "like_given"
	// ActionBadge 获得徽章的积分奖励，delta取自徽章定义
	ActionBadge Action = "badge"
)

// pointTable 是固定的行为积分表。正常运行中积分只增不减。
var pointTable = map[Action]int{
	ActionPost:         5,
	ActionReply:        3,
	ActionLikeReceived: 2,
	ActionLikeGiven:    1,
}

// PointLogEntry 是只追加的积分账本行。
// 账本是积分的事实来源；会话上缓存的Points字段是反规范化，
// 必须始终可以通过回放账本推导出来。
type PointLogEntry struct {
	// gorm.Model 包含 ID, CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	// SessionID 是获得积分的会话
	SessionID string `gorm:"index;not null;type:varchar(36)" json:"session_id"`

	// Action 是产生积分的行为类型
	Action Action `gorm:"not null" json:"action"`

	// Delta 是本行的积分增量
	Delta int `gorm:"not null" json:"delta"`

	// RefID 指向触发行为的相关实体（帖子ID、催办ID、徽章ID等），可为空
	RefID string `json:"ref_id,omitempty"`
}

// BadgeTier 是徽章的档次
type BadgeTier string

const (
	TierBronze BadgeTier = "bronze"
	TierSilver BadgeTier = "silver"
	TierGold   BadgeTier = "gold"
)

// Badge 是徽章定义，属于很少变动的静态参考数据。
// Criteria 存储机器可判定的条件JSON，例如 {"metric":"posts_count","op":">=","value":10}。
type Badge struct {
	gorm.Model

	// Key 是徽章的唯一机器标识，例如 "first_post"
	Key string `gorm:"uniqueIndex;not null" json:"key"`

	// Title 是展示名
	Title string `json:"title"`

	// Tier 是徽章档次 (bronze/silver/gold)
	Tier BadgeTier `gorm:"not null;default:bronze" json:"tier"`

	// RewardPoints 是获得徽章时的一次性积分奖励
	RewardPoints int `gorm:"default:0" json:"reward_points"`

	// Criteria 是条件JSON，解析失败的条件会被跳过而不是中断发放
	Criteria string `gorm:"not null" json:"criteria"`

	// Active 为false的徽章不参与判定
	Active bool `gorm:"default:true" json:"active"`
}

// UserBadge 记录一个会话获得的一枚徽章。
// (SessionID, BadgeID) 上的唯一索引保证同一徽章至多发放一次，
// 重复判定天然幂等。
type UserBadge struct {
	gorm.Model

	SessionID string `gorm:"uniqueIndex:idx_session_badge;not null;type:varchar(36)" json:"session_id"`
	BadgeID   uint   `gorm:"uniqueIndex:idx_session_badge;not null" json:"badge_id"`

	// IsNew 标记徽章尚未被持有者查看过
	IsNew bool `gorm:"default:true" json:"is_new"`

	// ViewedAt 是持有者首次查看的时间
	ViewedAt *time.Time `json:"viewed_at,omitempty"`
}
