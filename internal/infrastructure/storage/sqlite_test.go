package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/crypto_intel/internal/domain"
)

func newTestStore(t *testing.T, max int) *JournalStore {
	t.Helper()
	s, err := NewJournalStore(":memory:", max)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJournalStore_AppendAndRecent(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	at := time.Date(2024, 2, 3, 4, 5, 6, 7, time.UTC)

	entry := &domain.ErrorLogEntry{
		Type:      domain.EntryRecoveryAttempt,
		Severity:  domain.SeverityWarning,
		Message:   "Recovery attempt 1",
		Timestamp: at,
		Details:   map[string]any{"subsystems": []string{"data_service"}, "attempt": 1},
	}
	require.NoError(t, s.Append(ctx, entry))
	assert.Equal(t, int64(1), entry.ID)
	require.NoError(t, s.Append(ctx, &domain.ErrorLogEntry{Type: "x", Severity: domain.SeverityInfo, Message: "no details", Timestamp: at}))

	got, err := s.Recent(ctx, 20)
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, domain.EntryRecoveryAttempt, first.Type)
	assert.Equal(t, domain.SeverityWarning, first.Severity)
	assert.True(t, at.Equal(first.Timestamp))
	assert.Equal(t, float64(1), first.Details["attempt"], "numbers decode as float64")
	assert.Equal(t, []any{"data_service"}, first.Details["subsystems"])
	assert.Nil(t, got[1].Details)
}

func TestJournalStore_RecentIsOldestFirstAndLimited(t *testing.T) {
	s := newTestStore(t, 100)
	ctx := context.Background()
	for i := 1; i <= 6; i++ {
		require.NoError(t, s.Append(ctx, &domain.ErrorLogEntry{Type: "t", Severity: domain.SeverityInfo, Message: fmt.Sprint(i)}))
	}

	got, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "4", got[0].Message)
	assert.Equal(t, "6", got[2].Message)

	none, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJournalStore_Retention(t *testing.T) {
	s := newTestStore(t, 5)
	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		require.NoError(t, s.Append(ctx, &domain.ErrorLogEntry{Type: "t", Severity: domain.SeverityError, Message: fmt.Sprint(i)}))
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	got, err := s.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "8", got[0].Message, "oldest entries evicted first")
	assert.Equal(t, int64(12), got[4].ID)
}

func TestJournalStore_ZeroTimestampIsStamped(t *testing.T) {
	s := newTestStore(t, 5)
	e := &domain.ErrorLogEntry{Type: "t", Severity: domain.SeverityInfo, Message: "m"}
	require.NoError(t, s.Append(context.Background(), e))
	assert.False(t, e.Timestamp.IsZero())
}
