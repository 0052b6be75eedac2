package content

import (
	"github.com/TabloHub/tablo-guest-backend/pkg/actor"
	"gorm.io/gorm"
)

// SubjectKind 区分可以被做出反应的内容类型
type SubjectKind string

const (
	// SubjectPost 帖子
	SubjectPost SubjectKind = "post"
	// SubjectComment 评论
	SubjectComment SubjectKind = "comment"
)

// Post 是项目留言墙上的一条帖子。
// 作者用 (AuthorKind, AuthorID) 的显式标签联合表示，
// 联系人和访客都可以发帖；AuthorName是创建时落盘的显示名快照。
type Post struct {
	gorm.Model

	ProjectID uint `gorm:"index;not null" json:"project_id"`

	AuthorKind actor.Kind `gorm:"not null" json:"author_kind"`
	AuthorID   string     `gorm:"index;not null" json:"author_id"`
	AuthorName string     `json:"author_name"`

	Body string `gorm:"not null" json:"body"`

	// LikesCount 是反应记录数的反规范化缓存，
	// 由反应切换操作在同一事务内显式维护，必须始终等于该帖子的反应记录数
	LikesCount int `gorm:"default:0" json:"likes_count"`

	// CommentsCount 是评论数的反规范化缓存
	CommentsCount int `gorm:"default:0" json:"comments_count"`
}

// Comment 是帖子下的一条评论。
type Comment struct {
	gorm.Model

	PostID    uint `gorm:"index;not null" json:"post_id"`
	ProjectID uint `gorm:"index;not null" json:"project_id"`

	AuthorKind actor.Kind `gorm:"not null" json:"author_kind"`
	AuthorID   string     `gorm:"index;not null" json:"author_id"`
	AuthorName string     `json:"author_name"`

	Body string `gorm:"not null" json:"body"`

	LikesCount int `gorm:"default:0" json:"likes_count"`
}
