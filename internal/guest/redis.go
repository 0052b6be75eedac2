package guest

// 定义与访客会话相关的Redis键名
const (
	// KnownSessionsKey 是一个Set，用于快速判断一个UUID是否是已注册的合法会话。
	// Key: known_sessions
	// Member: Session UUID (e.g., "018f4e2a-....")
	KnownSessionsKey = "known_sessions"
)
