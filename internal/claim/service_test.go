package claim

import (
	"sync"
	"testing"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database/dbtest"
	"github.com/TabloHub/tablo-guest-backend/internal/roster"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupClaimDB(t *testing.T) {
	t.Helper()
	dbtest.Setup(t, &roster.Entry{}, &guest.Session{})
}

func newEntry(t *testing.T, projectID uint) *roster.Entry {
	t.Helper()
	entry := &roster.Entry{
		ProjectID:   projectID,
		DisplayName: "张三",
		Kind:        roster.KindStudent,
	}
	require.NoError(t, database.DB.Create(entry).Error)
	return entry
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

func reload(t *testing.T, id string) *guest.Session {
	t.Helper()
	var session guest.Session
	require.NoError(t, database.DB.Where("uuid = ?", id).First(&session).Error)
	return &session
}

func TestClaimFirstClaimantVerified(t *testing.T) {
	setupClaimDB(t)
	entry := newEntry(t, 1)
	session := newSession(t, 1)

	status, err := Claim(session.UUID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, guest.VerificationVerified, status)

	got := reload(t, session.UUID)
	require.NotNil(t, got.ClaimedEntryID)
	require.Equal(t, entry.ID, *got.ClaimedEntryID)

	claimed, err := IsClaimed(entry.ID)
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestClaimSecondClaimantGoesPending(t *testing.T) {
	setupClaimDB(t)
	entry := newEntry(t, 1)
	first := newSession(t, 1)
	second := newSession(t, 1)

	status, err := Claim(first.UUID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, guest.VerificationVerified, status)

	status, err = Claim(second.UUID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, guest.VerificationPending, status)

	// 先到者保持verified，不受后续认领影响
	require.Equal(t, guest.VerificationVerified, reload(t, first.UUID).VerificationStatus)
}

func TestClaimIsIdempotentPerSession(t *testing.T) {
	setupClaimDB(t)
	entry := newEntry(t, 1)
	session := newSession(t, 1)

	for i := 0; i < 3; i++ {
		status, err := Claim(session.UUID, entry.ID)
		require.NoError(t, err)
		require.Equal(t, guest.VerificationVerified, status)
	}

	var count int64
	require.NoError(t, database.DB.Model(&guest.Session{}).
		Where("claimed_entry_id = ?", entry.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestClaimRejectedStaysRejected(t *testing.T) {
	setupClaimDB(t)
	entry := newEntry(t, 1)
	loser := newSession(t, 1)
	winner := newSession(t, 1)

	_, err := Claim(loser.UUID, entry.ID)
	require.NoError(t, err)
	_, err = Claim(winner.UUID, entry.ID)
	require.NoError(t, err)
	require.NoError(t, Resolve(entry.ID, winner.UUID))

	// 被否决的会话重复认领同一条目不会复活
	status, err := Claim(loser.UUID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, guest.VerificationRejected, status)
}

func TestClaimRejectsCrossProject(t *testing.T) {
	setupClaimDB(t)
	entry := newEntry(t, 1)
	session := newSession(t, 2)

	_, err := Claim(session.UUID, entry.ID)
	require.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestClaimMissingEntryOrSession(t *testing.T) {
	setupClaimDB(t)
	entry := newEntry(t, 1)
	session := newSession(t, 1)

	_, err := Claim(session.UUID, entry.ID+1000)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = Claim(uuid.NewString(), entry.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestResolveTransfersVerification(t *testing.T) {
	setupClaimDB(t)
	entry := newEntry(t, 1)
	first := newSession(t, 1)
	second := newSession(t, 1)

	_, err := Claim(first.UUID, entry.ID)
	require.NoError(t, err)
	_, err = Claim(second.UUID, entry.ID)
	require.NoError(t, err)

	// 人工裁决：后到的才是真人
	require.NoError(t, Resolve(entry.ID, second.UUID))

	require.Equal(t, guest.VerificationRejected, reload(t, first.UUID).VerificationStatus)
	require.Equal(t, guest.VerificationVerified, reload(t, second.UUID).VerificationStatus)

	claimed, err := IsClaimed(entry.ID)
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestResolveRequiresWinnerToHaveClaimed(t *testing.T) {
	setupClaimDB(t)
	entry := newEntry(t, 1)
	bystander := newSession(t, 1)

	err := Resolve(entry.ID, bystander.UUID)
	require.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestConcurrentClaimsProduceSingleVerified(t *testing.T) {
	setupClaimDB(t)
	entry := newEntry(t, 1)

	const claimants = 10
	sessions := make([]*guest.Session, claimants)
	for i := range sessions {
		sessions[i] = newSession(t, 1)
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := Claim(id, entry.ID)
			require.NoError(t, err)
		}(s.UUID)
	}
	wg.Wait()

	var verified, pending int64
	require.NoError(t, database.DB.Model(&guest.Session{}).
		Where("claimed_entry_id = ? AND verification_status = ?", entry.ID, guest.VerificationVerified).
		Count(&verified).Error)
	require.NoError(t, database.DB.Model(&guest.Session{}).
		Where("claimed_entry_id = ? AND verification_status = ?", entry.ID, guest.VerificationPending).
		Count(&pending).Error)

	require.EqualValues(t, 1, verified, "同一条目同一时刻至多一个verified认领者")
	require.EqualValues(t, claimants-1, pending)
}

func TestSummarizeProject(t *testing.T) {
	setupClaimDB(t)
	claimedEntry := newEntry(t, 1)
	contested := newEntry(t, 1)
	untouched := newEntry(t, 1)

	owner := newSession(t, 1)
	_, err := Claim(owner.UUID, claimedEntry.ID)
	require.NoError(t, err)

	_, err = Claim(newSession(t, 1).UUID, contested.ID)
	require.NoError(t, err)
	_, err = Claim(newSession(t, 1).UUID, contested.ID)
	require.NoError(t, err)
	_, err = Claim(newSession(t, 1).UUID, contested.ID)
	require.NoError(t, err)

	summary, err := SummarizeProject(1)
	require.NoError(t, err)

	require.True(t, summary[claimedEntry.ID].Claimed)
	require.Equal(t, 0, summary[claimedEntry.ID].PendingCount)

	require.True(t, summary[contested.ID].Claimed)
	require.Equal(t, 2, summary[contested.ID].PendingCount)

	_, ok := summary[untouched.ID]
	require.False(t, ok)
}
