package bulk

import (
	"errors"
	"testing"
	"time"

	"github.com/propbill/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImportRun(t *testing.T) {
	started := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		run, err := NewImportRun("imp-1", "accounts.xlsx", 2048, started)
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, "imp-1", run.ImportID)
		assert.Empty(t, run.Status)
		assert.Zero(t, run.Duration())
	})

	tests := []struct {
		name     string
		importID string
		fileName string
		size     int64
		code     string
	}{
		{"missing import id", " ", "a.csv", 1, "INVALID_IMPORT_ID"},
		{"missing file name", "imp-1", "", 1, "INVALID_FILE_NAME"},
		{"negative size", "imp-1", "a.csv", -1, "INVALID_FILE_SIZE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImportRun(tt.importID, tt.fileName, tt.size, started)
			var domainErr *shared.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, tt.code, domainErr.Code)
		})
	}
}

func TestImportRun_Complete(t *testing.T) {
	started := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	run, err := NewImportRun("imp-1", "accounts.xlsx", 10, started)
	require.NoError(t, err)

	counts := ImportCounts{Rows: 5, Providers: 2, Properties: 3, Tenants: 4, UtilityAccounts: 4, Skipped: 1}
	require.NoError(t, run.Complete(counts, started.Add(3*time.Second)))

	assert.Equal(t, ImportStatusCompleted, run.Status)
	assert.Equal(t, 13, run.Counts.Written())
	assert.Equal(t, 3*time.Second, run.Duration())

	err = run.Fail(counts, errors.New("late"), started)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestImportRun_Fail(t *testing.T) {
	run, err := NewImportRun("imp-1", "accounts.xlsx", 10, time.Now())
	require.NoError(t, err)

	require.NoError(t, run.Fail(ImportCounts{Providers: 2}, errors.New("quota exceeded"), time.Now()))
	assert.Equal(t, ImportStatusFailed, run.Status)
	assert.Equal(t, "quota exceeded", run.Error)
	assert.Equal(t, 2, run.Counts.Providers)
	assert.True(t, ImportStatusFailed.IsValid())
	assert.False(t, ImportStatus("pending").IsValid())

	assert.ErrorIs(t, run.Complete(ImportCounts{}, time.Now()), shared.ErrInvalidState)
}
