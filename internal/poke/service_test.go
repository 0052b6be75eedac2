package poke

import (
	"sync"
	"testing"
	"time"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database/dbtest"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/metadata"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupPokeDB(t *testing.T) {
	t.Helper()
	dbtest.Setup(t, &guest.Session{}, &Poke{}, &DailyLimit{}, &metadata.Metadata{})
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

func newCoordinator(t *testing.T, projectID uint) *guest.Session {
	t.Helper()
	session := newSession(t, projectID)
	session.Coordinator = true
	require.NoError(t, database.DB.Model(&guest.Session{}).
		Where("uuid = ?", session.UUID).Update("coordinator", true).Error)
	return session
}

func presetInput(targetID string) SendInput {
	return SendInput{
		TargetID:    targetID,
		Category:    CategoryVoting,
		MessageKind: MessagePreset,
		PresetKey:   "vote_now",
	}
}

func seedDailyCount(t *testing.T, senderID string, sent int) {
	t.Helper()
	require.NoError(t, database.DB.Create(&DailyLimit{
		SenderID:  senderID,
		Date:      DateKey(time.Now()),
		PokesSent: sent,
	}).Error)
}

func TestSendCreatesPokeAndCountsIt(t *testing.T) {
	setupPokeDB(t)
	sender := newSession(t, 1)
	target := newSession(t, 1)

	poke, err := Send(sender, presetInput(target.UUID))
	require.NoError(t, err)
	require.Equal(t, StatusSent, poke.Status)
	require.Equal(t, sender.UUID, poke.SenderID)
	require.Equal(t, target.UUID, poke.TargetID)
	require.Equal(t, "模板投票还没投哦，快去选一个吧！", poke.Body)
	require.False(t, poke.IsRead)

	var limit DailyLimit
	require.NoError(t, database.DB.
		Where("sender_id = ? AND date = ?", sender.UUID, DateKey(time.Now())).
		First(&limit).Error)
	require.Equal(t, 1, limit.PokesSent)

	left, err := RemainingToday(sender.UUID)
	require.NoError(t, err)
	require.Equal(t, DailyCap-1, left)
}

func TestSendValidations(t *testing.T) {
	setupPokeDB(t)
	sender := newSession(t, 1)
	target := newSession(t, 1)
	outsider := newSession(t, 2)

	// 自我催办
	_, err := Send(sender, presetInput(sender.UUID))
	require.ErrorIs(t, err, apperror.ErrInvalidState)

	// 跨项目目标
	_, err = Send(sender, presetInput(outsider.UUID))
	require.ErrorIs(t, err, apperror.ErrInvalidState)

	// 目标不存在
	_, err = Send(sender, presetInput(uuid.NewString()))
	require.ErrorIs(t, err, apperror.ErrNotFound)

	// 未知分类
	input := presetInput(target.UUID)
	input.Category = Category("gossip")
	_, err = Send(sender, input)
	require.ErrorIs(t, err, apperror.ErrInvalidState)

	// 未知预设键
	input = presetInput(target.UUID)
	input.PresetKey = "nonexistent"
	_, err = Send(sender, input)
	require.ErrorIs(t, err, apperror.ErrInvalidState)

	// 封禁的发送者
	banned := newSession(t, 1)
	banned.Banned = true
	_, err = Send(banned, presetInput(target.UUID))
	require.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestSendCustomBodyIsCoordinatorPrivilege(t *testing.T) {
	setupPokeDB(t)
	regular := newSession(t, 1)
	coordinator := newCoordinator(t, 1)
	target := newSession(t, 1)

	input := SendInput{
		TargetID:    target.UUID,
		Category:    CategoryGeneral,
		MessageKind: MessageCustom,
		CustomBody:  "周五彩排别迟到",
	}

	_, err := Send(regular, input)
	require.ErrorIs(t, err, apperror.ErrInvalidState)

	poke, err := Send(coordinator, input)
	require.NoError(t, err)
	require.Equal(t, "周五彩排别迟到", poke.Body)
	require.Equal(t, MessageCustom, poke.MessageKind)
}

func TestSendEnforcesDailyCap(t *testing.T) {
	setupPokeDB(t)
	sender := newSession(t, 1)
	target := newSession(t, 1)
	seedDailyCount(t, sender.UUID, DailyCap)

	_, err := Send(sender, presetInput(target.UUID))
	require.ErrorIs(t, err, apperror.ErrRateLimitExceeded)

	left, err := RemainingToday(sender.UUID)
	require.NoError(t, err)
	require.Equal(t, 0, left)

	// 计数没有被失败的发送污染
	var limit DailyLimit
	require.NoError(t, database.DB.
		Where("sender_id = ?", sender.UUID).First(&limit).Error)
	require.Equal(t, DailyCap, limit.PokesSent)
}

func TestSendConcurrentNeverExceedsCap(t *testing.T) {
	setupPokeDB(t)
	sender := newSession(t, 1)
	target := newSession(t, 1)

	// 今天只剩5个名额，10个并发发送最多成功5个
	seedDailyCount(t, sender.UUID, DailyCap-5)

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, capped := 0, 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Send(sender, presetInput(target.UUID))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			default:
				require.ErrorIs(t, err, apperror.ErrRateLimitExceeded)
				capped++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, succeeded)
	require.Equal(t, attempts-5, capped)

	var limit DailyLimit
	require.NoError(t, database.DB.Where("sender_id = ?", sender.UUID).First(&limit).Error)
	require.Equal(t, DailyCap, limit.PokesSent, "并发下计数不能突破上限")

	var created int64
	require.NoError(t, database.DB.Model(&Poke{}).
		Where("sender_id = ?", sender.UUID).Count(&created).Error)
	require.EqualValues(t, 5, created)
}

func TestMarkReadMovesSentToPending(t *testing.T) {
	setupPokeDB(t)
	sender := newSession(t, 1)
	target := newSession(t, 1)

	poke, err := Send(sender, presetInput(target.UUID))
	require.NoError(t, err)

	// 只有接收方可以标记
	require.ErrorIs(t, MarkRead(poke.ID, sender.UUID), apperror.ErrInvalidState)

	require.NoError(t, MarkRead(poke.ID, target.UUID))
	require.NoError(t, MarkRead(poke.ID, target.UUID)) // 幂等

	var got Poke
	require.NoError(t, database.DB.First(&got, poke.ID).Error)
	require.True(t, got.IsRead)
	require.Equal(t, StatusPending, got.Status)
}

func TestReactValidatesEmojiAndImpliesRead(t *testing.T) {
	setupPokeDB(t)
	sender := newSession(t, 1)
	target := newSession(t, 1)

	poke, err := Send(sender, presetInput(target.UUID))
	require.NoError(t, err)

	require.ErrorIs(t, React(poke.ID, target.UUID, "👍"), apperror.ErrInvalidState)
	require.NoError(t, React(poke.ID, target.UUID, "🫡"))

	var got Poke
	require.NoError(t, database.DB.First(&got, poke.ID).Error)
	require.NotNil(t, got.Reaction)
	require.Equal(t, "🫡", *got.Reaction)
	require.NotNil(t, got.ReactedAt)
	require.True(t, got.IsRead)
	require.Equal(t, StatusPending, got.Status)
}

func TestResolveClosesPoke(t *testing.T) {
	setupPokeDB(t)
	sender := newSession(t, 1)
	target := newSession(t, 1)

	poke, err := Send(sender, presetInput(target.UUID))
	require.NoError(t, err)

	require.NoError(t, Resolve(poke.ID, target.UUID))
	require.NoError(t, Resolve(poke.ID, target.UUID)) // 幂等

	var got Poke
	require.NoError(t, database.DB.First(&got, poke.ID).Error)
	require.Equal(t, StatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)
}

func TestListInboxUnreadFirst(t *testing.T) {
	setupPokeDB(t)
	sender := newSession(t, 1)
	target := newSession(t, 1)

	first, err := Send(sender, presetInput(target.UUID))
	require.NoError(t, err)
	second, err := Send(sender, presetInput(target.UUID))
	require.NoError(t, err)
	require.NoError(t, MarkRead(second.ID, target.UUID))

	inbox, err := ListInbox(target.UUID, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	require.Equal(t, first.ID, inbox[0].ID, "未读的排在已读之前")
	require.Equal(t, second.ID, inbox[1].ID)

	// 别人的收件箱是空的
	inbox, err = ListInbox(sender.UUID, 10)
	require.NoError(t, err)
	require.Empty(t, inbox)
}

func TestSweepExpiredMarksStalePokes(t *testing.T) {
	setupPokeDB(t)
	sender := newSession(t, 1)
	target := newSession(t, 1)

	stale, err := Send(sender, presetInput(target.UUID))
	require.NoError(t, err)
	resolved, err := Send(sender, presetInput(target.UUID))
	require.NoError(t, err)
	require.NoError(t, Resolve(resolved.ID, target.UUID))
	fresh, err := Send(sender, presetInput(target.UUID))
	require.NoError(t, err)

	// 把前两条的创建时间拨回8天前
	old := time.Now().Add(-8 * 24 * time.Hour)
	for _, id := range []uint{stale.ID, resolved.ID} {
		require.NoError(t, database.DB.Model(&Poke{}).
			Where("id = ?", id).UpdateColumn("created_at", old).Error)
	}

	require.NoError(t, SweepExpired(time.Now()))
	require.NoError(t, SweepExpired(time.Now())) // 幂等

	var gotStale Poke
	require.NoError(t, database.DB.First(&gotStale, stale.ID).Error)
	require.Equal(t, StatusExpired, gotStale.Status)

	// 已完成的催办不会被标记为过期
	var gotResolved Poke
	require.NoError(t, database.DB.First(&gotResolved, resolved.ID).Error)
	require.Equal(t, StatusResolved, gotResolved.Status)

	// 未超时的不受影响
	var gotFresh Poke
	require.NoError(t, database.DB.First(&gotFresh, fresh.ID).Error)
	require.Equal(t, StatusSent, gotFresh.Status)

	// 清扫时间戳被记录
	ts, err := metadata.GetTimestamp(database.DB, metadata.LastPokeExpirySweepAtKey)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestRemainingTodayWithoutAnySends(t *testing.T) {
	setupPokeDB(t)
	sender := newSession(t, 1)

	left, err := RemainingToday(sender.UUID)
	require.NoError(t, err)
	require.Equal(t, DailyCap, left)
}
