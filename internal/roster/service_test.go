package roster

import (
	"testing"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database/dbtest"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/stretchr/testify/require"
)

func seedEntries(t *testing.T) {
	t.Helper()
	entries := []Entry{
		{ProjectID: 1, DisplayName: "Kovács Anna", Kind: KindStudent, Position: 2},
		{ProjectID: 1, DisplayName: "Nagy Péter", Kind: KindStudent, Position: 1},
		{ProjectID: 1, DisplayName: "Szabó tanárnő", Kind: KindTeacher, Position: 3},
		{ProjectID: 2, DisplayName: "别的班", Kind: KindStudent, Position: 1},
	}
	for i := range entries {
		require.NoError(t, database.DB.Create(&entries[i]).Error)
	}
}

func TestListByProjectOrdersByPosition(t *testing.T) {
	dbtest.Setup(t, &Entry{})
	seedEntries(t)

	entries, err := ListByProject(1)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "Nagy Péter", entries[0].DisplayName)
	require.Equal(t, "Kovács Anna", entries[1].DisplayName)
	require.Equal(t, "Szabó tanárnő", entries[2].DisplayName)
}

func TestCountByKind(t *testing.T) {
	dbtest.Setup(t, &Entry{})
	seedEntries(t)

	counts, err := CountByKind(1)
	require.NoError(t, err)
	require.EqualValues(t, 2, counts[KindStudent])
	require.EqualValues(t, 1, counts[KindTeacher])
}

func TestGetEntryByIDNotFound(t *testing.T) {
	dbtest.Setup(t, &Entry{})

	_, err := GetEntryByID(404)
	require.ErrorIs(t, err, apperror.ErrNotFound)
}
