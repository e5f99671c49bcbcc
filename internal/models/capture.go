package models

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// Capture is one preview image saved to disk.
type Capture struct {
	ID            int64     `json:"id,omitempty"`
	Channel       string    `json:"channel"`
	Path          string    `json:"path"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	SourceURL     string    `json:"source_url"`
	CapturedAt    time.Time `json:"captured_at"`
	Marker        string    `json:"marker"`
	SizeBytes     int64     `json:"size_bytes"`
	SavedAt       time.Time `json:"saved_at"`
	// Title and GameName describe the stream at capture time.
	Title    string `json:"title,omitempty"`
	GameName string `json:"game_name,omitempty"`
	// FirstOfSession is set on the first capture after the channel went live.
	FirstOfSession bool `json:"first_of_session,omitempty"`
}

// Validate checks that the capture can be stored.
func (c *Capture) Validate() error {
	if strings.TrimSpace(c.Channel) == "" {
		return errors.New("channel is required")
	}
	if strings.TrimSpace(c.Path) == "" {
		return errors.New("path is required")
	}
	if c.CapturedAt.IsZero() {
		return errors.New("captured_at is required")
	}
	if c.SizeBytes < 0 {
		return errors.New("size cannot be negative")
	}
	return nil
}

// RelativePath returns Path relative to base using forward slashes, falling
// back to the file name when Path is outside base.
func (c *Capture) RelativePath(base string) string {
	rel, err := filepath.Rel(base, c.Path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(c.Path)
	}
	return filepath.ToSlash(rel)
}
