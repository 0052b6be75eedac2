package notify

import (
	"fmt"
	"sync"
)

// EventKind 枚举了核心向外部通知系统发出的事件类型。
type EventKind string

const (
	// EventPokeReceived 表示某个会话收到了一条新的催办
	EventPokeReceived EventKind = "poke_received"
	// EventReactionReceived 表示某个会话的内容收到了新的表情反应
	EventReactionReceived EventKind = "reaction_received"
	// EventBadgeEarned 表示某个会话获得了新徽章
	EventBadgeEarned EventKind = "badge_earned"
)

// Event 是核心发出的通知事件。
// 核心只负责持久化状态并发出事件，推送和界面提醒由外部的通知模块完成。
type Event struct {
	Kind EventKind
	// SessionID 是事件的接收方会话
	SessionID string
	// ActorID 是触发事件的会话（徽章事件中为空）
	ActorID string
	// RefID 指向相关实体（催办ID、反应主体ID、徽章ID）
	RefID string
}

// Notifier 是通知投递的外部边界接口。
type Notifier interface {
	Notify(event Event)
}

// logNotifier 是默认实现，只把事件打到日志。
// 真实部署中由邮件/推送模块替换。
type logNotifier struct{}

func (logNotifier) Notify(event Event) {
	fmt.Printf("通知事件: kind=%s session=%s actor=%s ref=%s\n",
		event.Kind, event.SessionID, event.ActorID, event.RefID)
}

var (
	mu       sync.RWMutex
	notifier Notifier = logNotifier{}
)

// SetNotifier 替换全局的通知实现。传入nil会恢复为日志实现。
func SetNotifier(n Notifier) {
	mu.Lock()
	defer mu.Unlock()
	if n == nil {
		notifier = logNotifier{}
		return
	}
	notifier = n
}

// Emit 发出一个通知事件。调用方不关心投递结果。
func Emit(event Event) {
	mu.RLock()
	n := notifier
	mu.RUnlock()
	n.Notify(event)
}
