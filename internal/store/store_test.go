package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttvsnap/ttvsnap/internal/models"
)

func newSQLite(t *testing.T) CaptureStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "captures.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newMemory(t *testing.T) CaptureStore {
	t.Helper()
	return NewMemoryStore()
}

func capture(channel string, at time.Time) *models.Capture {
	return &models.Capture{
		Channel:    channel,
		Path:       "/out/" + at.Format("2006-01-02_15-04-05") + ".jpg",
		SourceURL:  "https://x/img-0x0.jpg",
		CapturedAt: at,
		Marker:     at.Format(time.RFC1123),
		SizeBytes:  1234,
	}
}

// runStoreTests exercises the CaptureStore contract against both implementations.
func runStoreTests(t *testing.T, factory func(t *testing.T) CaptureStore) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("record and latest", func(t *testing.T) {
		s := factory(t)

		_, ok, err := s.Latest(ctx, "alpha")
		require.NoError(t, err)
		assert.False(t, ok)

		first := capture("alpha", base)
		first.FirstOfSession = true
		require.NoError(t, s.Record(ctx, first))
		assert.NotZero(t, first.ID)
		assert.False(t, first.SavedAt.IsZero())

		second := capture("alpha", base.Add(5*time.Minute))
		second.ThumbnailPath = "/out/thumb.jpg"
		require.NoError(t, s.Record(ctx, second))
		require.NoError(t, s.Record(ctx, capture("beta", base.Add(time.Hour))))

		latest, ok, err := s.Latest(ctx, "alpha")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, second.Path, latest.Path)
		assert.Equal(t, "/out/thumb.jpg", latest.ThumbnailPath)
		assert.Equal(t, second.CapturedAt, latest.CapturedAt)
		assert.Equal(t, second.Marker, latest.Marker)
		assert.Equal(t, int64(1234), latest.SizeBytes)
		assert.False(t, latest.FirstOfSession)
	})

	t.Run("list and count", func(t *testing.T) {
		s := factory(t)
		for i := 0; i < 5; i++ {
			require.NoError(t, s.Record(ctx, capture("alpha", base.Add(time.Duration(i)*time.Minute))))
		}
		require.NoError(t, s.Record(ctx, capture("beta", base)))

		list, err := s.List(ctx, "alpha", 3)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, base.Add(4*time.Minute), list[0].CapturedAt)
		assert.Equal(t, base.Add(2*time.Minute), list[2].CapturedAt)

		all, err := s.List(ctx, "", 0)
		require.NoError(t, err)
		assert.Len(t, all, 6)

		n, err := s.Count(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		n, err = s.Count(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)
	})

	t.Run("prune", func(t *testing.T) {
		s := factory(t)
		old := capture("alpha", base)
		old.SavedAt = base
		fresh := capture("alpha", base.Add(time.Minute))
		fresh.SavedAt = base.Add(48 * time.Hour)
		require.NoError(t, s.Record(ctx, old))
		require.NoError(t, s.Record(ctx, fresh))

		removed, err := s.Prune(ctx, base.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		n, err := s.Count(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("rejects invalid capture", func(t *testing.T) {
		s := factory(t)
		err := s.Record(ctx, &models.Capture{Channel: "alpha"})
		assert.Error(t, err)
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, newSQLite)
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, newMemory)
}

func TestNewSQLiteStoreCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "captures.db")
	s, err := NewSQLiteStoreWithRetention(dbPath, 30, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestSQLiteStoreReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "captures.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, capture("alpha", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStoreLimitDropsOldest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStoreWithLimit(2)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, capture("somechan", base.Add(time.Duration(i)*time.Minute))))
	}

	n, err := s.Count(ctx, "somechan")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := s.List(ctx, "somechan", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, base.Add(2*time.Minute), list[0].CapturedAt.UTC())
	assert.Equal(t, base.Add(time.Minute), list[1].CapturedAt.UTC())
	assert.Equal(t, int64(3), list[0].ID)
}

func TestJournalSinkRecords(t *testing.T) {
	s := NewMemoryStore()
	sink := NewJournalSink(s)
	assert.Equal(t, "journal", sink.Name())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Publish(context.Background(), *capture("somechan", at)))

	latest, ok, err := s.Latest(context.Background(), "somechan")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at, latest.CapturedAt.UTC())
	assert.NotEmpty(t, latest.ID)
}
