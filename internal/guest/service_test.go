package guest

import (
	"testing"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database/dbtest"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/TabloHub/tablo-guest-backend/pkg/token"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupGuestDB(t *testing.T) {
	t.Helper()
	dbtest.Setup(t, &Session{})
	token.SetSecretKeyForTest([]byte("0123456789abcdef0123456789abcdef"))
}

func TestRegisterCreatesSessionAndSignedToken(t *testing.T) {
	setupGuestDB(t)

	session, signed, err := Register(42, "  Kovács Anna  ", "fp-123")
	require.NoError(t, err)
	require.True(t, IsValidUUID(session.UUID))
	require.Equal(t, "Kovács Anna", session.DisplayName)
	require.EqualValues(t, 42, session.ProjectID)
	require.Equal(t, 1, session.RankLevel)
	require.Equal(t, VerificationNone, session.VerificationStatus)

	payload, ok := token.Validate(signed)
	require.True(t, ok)
	require.Equal(t, session.UUID, payload.SessionID)
	require.EqualValues(t, 42, payload.ProjectID)

	got, err := GetSessionByID(session.UUID)
	require.NoError(t, err)
	require.Equal(t, session.UUID, got.UUID)
}

func TestRegisterValidations(t *testing.T) {
	setupGuestDB(t)

	_, _, err := Register(1, "   ", "")
	require.ErrorIs(t, err, apperror.ErrInvalidState)

	_, _, err = Register(0, "有名字", "")
	require.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestIsKnownSessionFallsBackToDB(t *testing.T) {
	setupGuestDB(t)

	session, _, err := Register(1, "访客", "")
	require.NoError(t, err)

	known, err := IsKnownSession(session.UUID)
	require.NoError(t, err)
	require.True(t, known)

	known, err = IsKnownSession(uuid.NewString())
	require.NoError(t, err)
	require.False(t, known)

	known, err = IsKnownSession("")
	require.NoError(t, err)
	require.False(t, known)
}

func TestBanKeepsSessionRow(t *testing.T) {
	setupGuestDB(t)

	session, _, err := Register(1, "捣乱的人", "")
	require.NoError(t, err)

	require.NoError(t, Ban(session.UUID))

	// 封禁不是删除，行及其历史数据保留
	got, err := GetSessionByID(session.UUID)
	require.NoError(t, err)
	require.True(t, got.Banned)

	require.ErrorIs(t, Ban(uuid.NewString()), apperror.ErrNotFound)
}

func TestGetSessionByIDNotFound(t *testing.T) {
	setupGuestDB(t)

	_, err := GetSessionByID(uuid.NewString())
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSessionName(t *testing.T) {
	s := &Session{DisplayName: "Kovács Anna"}
	require.Equal(t, "Kovács Anna", s.Name())
}
