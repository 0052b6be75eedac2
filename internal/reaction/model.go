package reaction

import (
	"github.com/TabloHub/tablo-guest-backend/internal/content"
	"github.com/TabloHub/tablo-guest-backend/pkg/actor"
	"gorm.io/gorm"
)

// AllowedReactions 是固定的5个表情符号集合，所有反应只能从中选取。
var AllowedReactions = []string{"💀", "😭", "🫡", "❤️", "👀"}

// IsAllowedReaction 检查一个表情是否在固定集合内。
func IsAllowedReaction(emoji string) bool {
	for _, allowed := range AllowedReactions {
		if emoji == allowed {
			return true
		}
	}
	return false
}

// Record 是通用的反应记录，帖子和评论共用同一张表。
// (SubjectKind, SubjectID, ActorKind, ActorID) 上的唯一索引保证
// 每个身份对每个主体至多持有一条反应；换表情是原地更新，
// 重选同一表情则按切换语义删除。
type Record struct {
	gorm.Model

	SubjectKind content.SubjectKind `gorm:"uniqueIndex:idx_subject_actor;not null" json:"subject_kind"`
	SubjectID   uint                `gorm:"uniqueIndex:idx_subject_actor;not null" json:"subject_id"`

	ActorKind actor.Kind `gorm:"uniqueIndex:idx_subject_actor;not null" json:"actor_kind"`
	ActorID   string     `gorm:"uniqueIndex:idx_subject_actor;not null" json:"actor_id"`

	Emoji string `gorm:"not null" json:"emoji"`
}
