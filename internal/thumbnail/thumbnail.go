// Package thumbnail shells out to ImageMagick to produce small copies of captures.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ttvsnap/ttvsnap/internal/errors"
)

const (
	DefaultCommand  = "convert"
	DefaultGeometry = "x144"
)

// Generator runs `<command> <src> -thumbnail <geometry> <dst>`.
type Generator struct {
	Command  string
	Geometry string
}

// New returns a Generator with defaults for empty fields.
func New(command, geometry string) *Generator {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	if strings.TrimSpace(geometry) == "" {
		geometry = DefaultGeometry
	}
	return &Generator{Command: command, Geometry: geometry}
}

// CheckAvailable runs `<command> -version` and fails if it cannot be executed.
func (g *Generator) CheckAvailable(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, g.Command, "-version")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s -version: %w: %s", g.Command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Generate writes the thumbnail of src next to it and returns its path.
func (g *Generator) Generate(ctx context.Context, src string) (string, error) {
	dst := ThumbPath(src)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.Command, src, "-thumbnail", g.Geometry, dst)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", &errors.ErrThumbnail{Path: src, Err: err}
	}
	return dst, nil
}

// ThumbPath inserts _thumb before the extension: a/b.jpg -> a/b_thumb.jpg.
func ThumbPath(src string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + "_thumb" + ext
}
