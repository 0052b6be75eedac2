package gamification

import (
	"fmt"
	"sync"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/redis/go-redis/v9"
)

// --- Redis 键名常量 ---

const (
	// leaderboardKeyPrefix 是每个项目积分排行榜ZSET的键名前缀。
	// Key: session:ranking:<projectID>
	// Score: 会话的累计积分
	// Member: 会话UUID
	leaderboardKeyPrefix = "session:ranking:"

	// DirtySetKey 是一个Set，存储自上次对账以来积分发生变化的会话UUID。
	// 对账调度器用它做增量校验。
	DirtySetKey = "session:dirty"

	// ProcessingDirtySetKey 在对账过程中暂存正在处理的脏会话。
	ProcessingDirtySetKey = "session:dirty:processing"
)

// LeaderboardKey 返回一个项目的排行榜键名。
func LeaderboardKey(projectID uint) string {
	return fmt.Sprintf("%s%d", leaderboardKeyPrefix, projectID)
}

// repoMutex 保护本模块管理的Redis键在对账与实时更新之间的并发访问。
var repoMutex sync.RWMutex

// LockRepository 获取模块镜像键的写锁。
func LockRepository() {
	repoMutex.Lock()
}

// UnlockRepository 释放写锁。
func UnlockRepository() {
	repoMutex.Unlock()
}

// RLockRepository 获取模块镜像键的读锁。
func RLockRepository() {
	repoMutex.RLock()
}

// RUnlockRepository 释放读锁。
func RUnlockRepository() {
	repoMutex.RUnlock()
}

// SyncSessionMirror 在积分事务提交后，把会话的最新积分写入排行榜镜像，
// 并将其标记为脏以供对账。镜像是可重建的，Redis不可用时静默跳过。
func SyncSessionMirror(session *guest.Session) {
	if !database.IsRedisHealthy() {
		return
	}

	RLockRepository()
	defer RUnlockRepository()

	pipe := database.RDB.Pipeline()
	pipe.ZAdd(database.Ctx, LeaderboardKey(session.ProjectID), redis.Z{
		Score:  float64(session.Points),
		Member: session.UUID,
	})
	pipe.SAdd(database.Ctx, DirtySetKey, session.UUID)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		// 镜像写入失败不影响已提交的主数据，等待对账修复
		fmt.Printf("警告: 排行榜镜像同步失败 (会话 %s): %v\n", session.UUID, err)
	}
}

// ReconcileSession 对单个会话做一次完整对账：
// 账本回放修复积分缓存，再把正确的积分写回排行榜镜像。
func ReconcileSession(sessionID string) error {
	if _, err := RecomputePoints(sessionID); err != nil {
		return err
	}

	var session guest.Session
	if err := database.DB.Where("uuid = ?", sessionID).First(&session).Error; err != nil {
		return fmt.Errorf("无法读取会话 %s: %w", sessionID, err)
	}

	if !database.IsRedisHealthy() {
		return nil
	}
	RLockRepository()
	defer RUnlockRepository()
	return database.RDB.ZAdd(database.Ctx, LeaderboardKey(session.ProjectID), redis.Z{
		Score:  float64(session.Points),
		Member: session.UUID,
	}).Err()
}

// RebuildLeaderboard 从数据库全量重建所有项目的排行榜镜像。
// 用于启动预热和Redis故障恢复。调用方需要持有仓库写锁。
func RebuildLeaderboard() error {
	var sessions []guest.Session
	if err := database.DB.Select("uuid", "project_id", "points").Find(&sessions).Error; err != nil {
		return fmt.Errorf("无法从数据库读取会话积分: %w", err)
	}

	// 按项目分组，减少Pipeline调用次数
	byProject := make(map[uint][]redis.Z)
	for _, s := range sessions {
		byProject[s.ProjectID] = append(byProject[s.ProjectID], redis.Z{
			Score:  float64(s.Points),
			Member: s.UUID,
		})
	}

	pipe := database.RDB.Pipeline()
	for projectID, members := range byProject {
		key := LeaderboardKey(projectID)
		pipe.Del(database.Ctx, key)
		pipe.ZAdd(database.Ctx, key, members...)
	}
	pipe.Del(database.Ctx, DirtySetKey)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("重建排行榜镜像失败: %w", err)
	}

	fmt.Printf("成功重建 %d 个项目的排行榜镜像。\n", len(byProject))
	return nil
}

// LeaderboardRow 是排行榜查询的一行结果。
type LeaderboardRow struct {
	SessionID   string `json:"session_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
	RankLevel   int    `json:"rank_level"`
}

// GetLeaderboard 返回一个项目积分最高的前limit个会话。
// 优先从Redis镜像读取排序，Redis不可用时退回数据库排序。
func GetLeaderboard(projectID uint, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 10
	}

	if database.IsRedisHealthy() {
		rows, err := leaderboardFromRedis(projectID, limit)
		if err == nil {
			return rows, nil
		}
		fmt.Printf("警告: 从Redis读取排行榜失败，退回数据库: %v\n", err)
	}
	return leaderboardFromDB(projectID, limit)
}

func leaderboardFromRedis(projectID uint, limit int) ([]LeaderboardRow, error) {
	RLockRepository()
	members, err := database.RDB.ZRevRangeWithScores(
		database.Ctx, LeaderboardKey(projectID), 0, int64(limit-1)).Result()
	RUnlockRepository()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []LeaderboardRow{}, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.Member.(string)
	}

	var sessions []guest.Session
	if err := database.DB.Where("uuid IN ?", ids).Find(&sessions).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*guest.Session, len(sessions))
	for i := range sessions {
		byID[sessions[i].UUID] = &sessions[i]
	}

	rows := make([]LeaderboardRow, 0, len(members))
	for _, m := range members {
		session, ok := byID[m.Member.(string)]
		if !ok {
			continue
		}
		rows = append(rows, LeaderboardRow{
			SessionID:   session.UUID,
			DisplayName: session.DisplayName,
			Points:      session.Points,
			RankLevel:   session.RankLevel,
		})
	}
	return rows, nil
}

func leaderboardFromDB(projectID uint, limit int) ([]LeaderboardRow, error) {
	var sessions []guest.Session
	err := database.DB.
		Where("project_id = ?", projectID).
		Order("points desc, uuid asc").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("无法从数据库读取排行榜: %w", err)
	}

	rows := make([]LeaderboardRow, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, LeaderboardRow{
			SessionID:   s.UUID,
			DisplayName: s.DisplayName,
			Points:      s.Points,
			RankLevel:   s.RankLevel,
		})
	}
	return rows, nil
}
