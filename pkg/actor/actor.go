package actor

import (
	"fmt"
)

// Kind 区分了两种可以发表内容和做出反应的身份来源。
type Kind string

const (
	// KindContact 表示后台联系人（下单的家长/老师），由外部CRM模块管理
	KindContact Kind = "contact"
	// KindGuest 表示通过项目码注册的访客会话
	KindGuest Kind = "guest"
)

// Actor 是“联系人或访客”的标签联合。
// 原始系统用双外键加运行时类型判断来表达这件事，
// 这里统一收敛成一个显式的 (Kind, ID) 值对象。
type Actor struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// Named 是身份解析的最小能力接口。
// 任何能够报出显示名的实体都可以作为Actor的解析结果。
type Named interface {
	Name() string
}

// Contact 是联系人侧的最小引用。联系人数据由外部模块持有，
// 这里只保留身份解析所需的字段。
type Contact struct {
	ContactID   string
	DisplayName string
}

func (c Contact) Name() string {
	return c.DisplayName
}

// NewContact 构造一个联系人Actor。
func NewContact(id string) Actor {
	return Actor{Kind: KindContact, ID: id}
}

// NewGuest 构造一个访客Actor。
func NewGuest(sessionID string) Actor {
	return Actor{Kind: KindGuest, ID: sessionID}
}

// Valid 检查Actor是否填写完整。
func (a Actor) Valid() bool {
	if a.ID == "" {
		return false
	}
	return a.Kind == KindContact || a.Kind == KindGuest
}

// String 返回 "kind:id" 形式的紧凑表示，用于日志和Redis成员名。
func (a Actor) String() string {
	return fmt.Sprintf("%s:%s", a.Kind, a.ID)
}

// Parse 从 "kind:id" 形式还原Actor。
func Parse(s string) (Actor, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			a := Actor{Kind: Kind(s[:i]), ID: s[i+1:]}
			if !a.Valid() {
				return Actor{}, fmt.Errorf("无效的actor表示: %q", s)
			}
			return a, nil
		}
	}
	return Actor{}, fmt.Errorf("无效的actor表示: %q", s)
}
