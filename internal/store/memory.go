package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ttvsnap/ttvsnap/internal/errors"
	"github.com/ttvsnap/ttvsnap/internal/models"
)

// MemoryStore is an in-memory CaptureStore used when no database path is configured.
// It is thread-safe and supports concurrent access.
type MemoryStore struct {
	mu       sync.RWMutex
	captures []*models.Capture
	nextID   int64
	limit    int
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// NewMemoryStoreWithLimit creates an in-memory store that keeps at most limit
// captures, dropping the oldest recorded first. A limit of zero keeps everything.
func NewMemoryStoreWithLimit(limit int) *MemoryStore {
	return &MemoryStore{nextID: 1, limit: limit}
}

// Record stores a copy of c and sets its ID.
func (s *MemoryStore) Record(_ context.Context, c *models.Capture) error {
	if err := c.Validate(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "record capture", Err: err}
	}
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.nextID
	s.nextID++
	stored := *c
	s.captures = append(s.captures, &stored)
	if s.limit > 0 && len(s.captures) > s.limit {
		s.captures = append(s.captures[:0], s.captures[len(s.captures)-s.limit:]...)
	}
	return nil
}

// Latest returns the most recent capture for channel.
func (s *MemoryStore) Latest(ctx context.Context, channel string) (*models.Capture, bool, error) {
	list, _ := s.List(ctx, channel, 1)
	if len(list) == 0 {
		return nil, false, nil
	}
	return list[0], true, nil
}

// List returns copies of the stored captures newest first.
func (s *MemoryStore) List(_ context.Context, channel string, limit int) ([]*models.Capture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Capture
	for _, c := range s.captures {
		if channel != "" && c.Channel != channel {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CapturedAt.Equal(out[j].CapturedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CapturedAt.After(out[j].CapturedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored captures for channel.
func (s *MemoryStore) Count(ctx context.Context, channel string) (int64, error) {
	list, _ := s.List(ctx, channel, 0)
	return int64(len(list)), nil
}

// Prune deletes captures saved before cutoff.
func (s *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.captures[:0]
	var removed int64
	for _, c := range s.captures {
		if c.SavedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.captures = kept
	return removed, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
