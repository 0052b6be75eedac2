package gamification

import (
	"sync"
	"testing"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database/dbtest"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupGamificationDB(t *testing.T) {
	t.Helper()
	dbtest.Setup(t, &guest.Session{}, &PointLogEntry{}, &Badge{}, &UserBadge{})
}

func newSession(t *testing.T, projectID uint) *guest.Session {
	t.Helper()
	session := &guest.Session{
		UUID:        uuid.NewString(),
		ProjectID:   projectID,
		DisplayName: "访客",
		RankLevel:   1,
	}
	require.NoError(t, database.DB.Create(session).Error)
	return session
}

func newBadge(t *testing.T, key, criteria string, reward int) *Badge {
	t.Helper()
	badge := &Badge{
		Key:          key,
		Title:        key,
		Tier:         TierBronze,
		RewardPoints: reward,
		Criteria:     criteria,
		Active:       true,
	}
	require.NoError(t, database.DB.Create(badge).Error)
	return badge
}

func ledgerSum(t *testing.T, sessionID string) int {
	t.Helper()
	var sum struct{ Total int }
	require.NoError(t, database.DB.Model(&PointLogEntry{}).
		Select("coalesce(sum(delta), 0) as total").
		Where("session_id = ?", sessionID).
		Scan(&sum).Error)
	return sum.Total
}

func TestAwardAppendsLedgerAndUpdatesCache(t *testing.T) {
	setupGamificationDB(t)
	session := newSession(t, 1)

	updated, earned, err := Award(session.UUID, ActionPost, "post:1")
	require.NoError(t, err)
	require.Empty(t, earned)
	require.Equal(t, 5, updated.Points)
	require.Equal(t, 1, updated.RankLevel)

	var entries []PointLogEntry
	require.NoError(t, database.DB.Where("session_id = ?", session.UUID).Find(&entries).Error)
	require.Len(t, entries, 1)
	require.Equal(t, ActionPost, entries[0].Action)
	require.Equal(t, 5, entries[0].Delta)
	require.Equal(t, "post:1", entries[0].RefID)

	require.Equal(t, updated.Points, ledgerSum(t, session.UUID))
}

func TestAwardRejectsUnknownAction(t *testing.T) {
	setupGamificationDB(t)
	session := newSession(t, 1)

	_, _, err := Award(session.UUID, Action("superlike"), "")
	require.ErrorIs(t, err, apperror.ErrInvalidState)
	require.Equal(t, 0, ledgerSum(t, session.UUID))
}

func TestAwardMissingSession(t *testing.T) {
	setupGamificationDB(t)

	_, _, err := Award(uuid.NewString(), ActionPost, "")
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRankCrossesThresholdExactly(t *testing.T) {
	setupGamificationDB(t)
	session := newSession(t, 1)

	// 4次发帖 = 20分，仍是1级
	for i := 0; i < 4; i++ {
		_, _, err := Award(session.UUID, ActionPost, "")
		require.NoError(t, err)
	}
	updated, _, err := Award(session.UUID, ActionPost, "")
	require.NoError(t, err)

	// 第5次正好到25分，升到2级
	require.Equal(t, 25, updated.Points)
	require.Equal(t, 2, updated.RankLevel)
}

func TestBadgeAwardedOnceWithReward(t *testing.T) {
	setupGamificationDB(t)
	session := newSession(t, 1)
	badge := newBadge(t, "first_post", `{"metric":"posts_count","op":">=","value":1}`, 5)

	// 模拟content模块在同一事务中先更新了发帖计数
	session.PostsCount = 1
	require.NoError(t, database.DB.Model(&guest.Session{}).
		Where("uuid = ?", session.UUID).Update("posts_count", 1).Error)

	_, earned, err := Award(session.UUID, ActionPost, "")
	require.NoError(t, err)
	require.Len(t, earned, 1)
	require.Equal(t, badge.Key, earned[0].Key)

	// 发帖5分 + 徽章奖励5分
	require.Equal(t, 10, ledgerSum(t, session.UUID))

	// 再次满足条件不会重复发放
	_, earned, err = Award(session.UUID, ActionPost, "")
	require.NoError(t, err)
	require.Empty(t, earned)

	var held int64
	require.NoError(t, database.DB.Model(&UserBadge{}).
		Where("session_id = ?", session.UUID).Count(&held).Error)
	require.EqualValues(t, 1, held)
	require.Equal(t, 15, ledgerSum(t, session.UUID))
}

func TestBadgeRewardCascadesIntoNextBadge(t *testing.T) {
	setupGamificationDB(t)
	session := newSession(t, 1)
	newBadge(t, "starter", `{"metric":"points","op":">=","value":5}`, 100)
	newBadge(t, "collector", `{"metric":"points","op":">=","value":50}`, 1)

	updated, earned, err := Award(session.UUID, ActionPost, "")
	require.NoError(t, err)

	// 发帖5分触发starter(+100)，连锁触发collector(+1)
	require.Len(t, earned, 2)
	require.Equal(t, 106, updated.Points)
	require.Equal(t, updated.Points, ledgerSum(t, session.UUID))
	require.Equal(t, 3, updated.RankLevel)
}

func TestBadgeWithBrokenCriteriaIsSkipped(t *testing.T) {
	setupGamificationDB(t)
	session := newSession(t, 1)
	newBadge(t, "broken", `{not json`, 50)
	newBadge(t, "fine", `{"metric":"points","op":">=","value":5}`, 2)

	_, earned, err := Award(session.UUID, ActionPost, "")
	require.NoError(t, err)
	require.Len(t, earned, 1)
	require.Equal(t, "fine", earned[0].Key)
}

func TestConcurrentAwardsKeepLedgerConsistent(t *testing.T) {
	setupGamificationDB(t)
	session := newSession(t, 1)

	const awards = 20
	var wg sync.WaitGroup
	for i := 0; i < awards; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := Award(session.UUID, ActionReply, "")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	var got guest.Session
	require.NoError(t, database.DB.Where("uuid = ?", session.UUID).First(&got).Error)
	require.Equal(t, awards*3, got.Points)
	require.Equal(t, got.Points, ledgerSum(t, session.UUID))
	require.Equal(t, RankForPoints(got.Points), got.RankLevel)
}

func TestRecomputePointsRepairsDriftedCache(t *testing.T) {
	setupGamificationDB(t)
	session := newSession(t, 1)

	_, _, err := Award(session.UUID, ActionPost, "")
	require.NoError(t, err)
	_, _, err = Award(session.UUID, ActionReply, "")
	require.NoError(t, err)

	// 人为制造缓存漂移
	require.NoError(t, database.DB.Model(&guest.Session{}).
		Where("uuid = ?", session.UUID).Update("points", 999).Error)

	total, err := RecomputePoints(session.UUID)
	require.NoError(t, err)
	require.Equal(t, 8, total)

	var got guest.Session
	require.NoError(t, database.DB.Where("uuid = ?", session.UUID).First(&got).Error)
	require.Equal(t, 8, got.Points)
	require.Equal(t, RankForPoints(8), got.RankLevel)
}

func TestMarkBadgeViewed(t *testing.T) {
	setupGamificationDB(t)
	session := newSession(t, 1)
	other := newSession(t, 1)
	newBadge(t, "first_post", `{"metric":"posts_count","op":">=","value":1}`, 0)

	require.NoError(t, database.DB.Model(&guest.Session{}).
		Where("uuid = ?", session.UUID).Update("posts_count", 1).Error)
	_, earned, err := Award(session.UUID, ActionPost, "")
	require.NoError(t, err)
	require.Len(t, earned, 1)

	var userBadge UserBadge
	require.NoError(t, database.DB.Where("session_id = ?", session.UUID).First(&userBadge).Error)
	require.True(t, userBadge.IsNew)

	// 他人不能替持有者标记
	require.ErrorIs(t, MarkBadgeViewed(other.UUID, userBadge.ID), apperror.ErrInvalidState)

	require.NoError(t, MarkBadgeViewed(session.UUID, userBadge.ID))
	require.NoError(t, MarkBadgeViewed(session.UUID, userBadge.ID)) // 幂等

	require.NoError(t, database.DB.First(&userBadge, userBadge.ID).Error)
	require.False(t, userBadge.IsNew)
	require.NotNil(t, userBadge.ViewedAt)
}

func TestGetLeaderboardFallsBackToDB(t *testing.T) {
	setupGamificationDB(t)

	low := newSession(t, 1)
	high := newSession(t, 1)
	otherProject := newSession(t, 2)

	_, _, err := Award(low.UUID, ActionReply, "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, _, err = Award(high.UUID, ActionPost, "")
		require.NoError(t, err)
	}
	_, _, err = Award(otherProject.UUID, ActionPost, "")
	require.NoError(t, err)

	rows, err := GetLeaderboard(1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, high.UUID, rows[0].SessionID)
	require.Equal(t, 15, rows[0].Points)
	require.Equal(t, low.UUID, rows[1].SessionID)
}
