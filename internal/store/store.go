// Package store keeps a journal of saved captures.
package store

import (
	"context"
	"time"

	"github.com/ttvsnap/ttvsnap/internal/models"
)

// CaptureStore records captures and answers simple queries about them.
type CaptureStore interface {
	Record(ctx context.Context, c *models.Capture) error
	Latest(ctx context.Context, channel string) (*models.Capture, bool, error)
	// List returns captures newest first. An empty channel lists all channels;
	// limit <= 0 means no limit.
	List(ctx context.Context, channel string, limit int) ([]*models.Capture, error)
	Count(ctx context.Context, channel string) (int64, error)
	// Prune deletes captures saved before cutoff and returns how many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
