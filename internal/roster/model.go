package roster

import "gorm.io/gorm"

// EntryKind 区分名册条目的身份类型
type EntryKind string

const (
	// KindStudent 表示学生条目
	KindStudent EntryKind = "student"
	// KindTeacher 表示教师条目
	KindTeacher EntryKind = "teacher"
)

// Entry 定义了项目名册中的一个预期参与者。
// 条目在名册导入时创建，之后只会被编辑，永远不会被删除；
// 它的存在与是否有真实访客认领无关。
type Entry struct {
	// gorm.Model 包含 ID, CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	// ProjectID 是条目所属的班级项目
	ProjectID uint `gorm:"index;not null" json:"project_id"`

	// DisplayName 是导入时登记的显示名，例如 "Kovács Anna"
	DisplayName string `gorm:"not null" json:"display_name"`

	// Kind 是条目的身份类型 (student/teacher)
	Kind EntryKind `gorm:"not null;default:student" json:"kind"`

	// ExternalID 是外部系统（如学校管理软件）中的可选标识
	ExternalID *string `json:"external_id,omitempty"`

	// Position 是条目在名册中的显示顺序
	Position int `gorm:"index" json:"position"`
}
