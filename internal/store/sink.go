package store

import (
	"context"

	"github.com/ttvsnap/ttvsnap/internal/models"
)

// JournalSink records every published capture in a CaptureStore.
type JournalSink struct {
	store CaptureStore
}

// NewJournalSink wraps s so the grab loop can publish to it.
func NewJournalSink(s CaptureStore) *JournalSink {
	return &JournalSink{store: s}
}

func (j *JournalSink) Name() string {
	return "journal"
}

func (j *JournalSink) Publish(ctx context.Context, c models.Capture) error {
	return j.store.Record(ctx, &c)
}
