package guest

import (
	"time"

	"gorm.io/gorm"
)

// VerificationStatus 表示一次身份认领的仲裁结果
type VerificationStatus string

const (
	// VerificationNone 表示会话尚未认领任何名册条目
	VerificationNone VerificationStatus = ""
	// VerificationVerified 表示认领已确认，本会话就是该名册条目对应的真人
	VerificationVerified VerificationStatus = "verified"
	// VerificationPending 表示条目已有确认的认领者，本次认领排队等待人工裁决
	VerificationPending VerificationStatus = "pending"
	// VerificationRejected 表示认领在人工裁决中被否决
	VerificationRejected VerificationStatus = "rejected"
)

// Session 定义了访客会话在数据库中的持久化模型。
// 一个会话对应一台设备/浏览器上的注册身份，通过项目码注册产生。
// 会话永远不会被硬删除，封禁通过Banned标志实现。
type Session struct {
	// UUID 是会话的主键，UUIDv7，注册时生成并签名下发到Cookie
	UUID string `gorm:"primarykey;type:varchar(36)" json:"id"`

	// ProjectID 是会话所属的班级项目
	ProjectID uint `gorm:"index;not null" json:"project_id"`

	// DisplayName 是访客注册时填写的显示名
	DisplayName string `json:"display_name"`

	// Fingerprint 是客户端上报的设备指纹，用于滥用排查
	Fingerprint string `json:"-"`

	// Banned 标记会话被封禁，封禁的会话不能执行任何写操作
	Banned bool `gorm:"default:false" json:"banned"`

	// ExtraMember 标记“编外成员”：算作参与者但不占名册名额
	ExtraMember bool `gorm:"default:false" json:"extra_member"`

	// Coordinator 标记班级协调员，拥有更高的催办权限
	Coordinator bool `gorm:"default:false" json:"coordinator"`

	// ClaimedEntryID 是会话认领的名册条目，未认领时为空
	ClaimedEntryID *uint `gorm:"index" json:"claimed_entry_id,omitempty"`

	// VerificationStatus 是认领的仲裁状态。
	// 不变量：同一名册条目同一时刻至多有一个verified的会话。
	VerificationStatus VerificationStatus `gorm:"index;default:''" json:"verification_status"`

	// Points 是积分账本的反规范化缓存，必须始终等于账本中该会话的delta之和
	Points int `gorm:"default:0" json:"points"`

	// RankLevel 是由累计积分推导出的等级，只用于展示
	RankLevel int `gorm:"default:1" json:"rank_level"`

	// --- 以下是用于徽章判定和展示的反规范化计数 ---

	PostsCount    int `gorm:"default:0" json:"posts_count"`
	RepliesCount  int `gorm:"default:0" json:"replies_count"`
	LikesGiven    int `gorm:"default:0" json:"likes_given"`
	LikesReceived int `gorm:"default:0" json:"likes_received"`

	// 部分gorm.Model，由GORM自动管理
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Name 实现 actor.Named，让会话可以作为反应/发帖的身份来源被解析。
func (s *Session) Name() string {
	return s.DisplayName
}
