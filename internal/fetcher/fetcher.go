// Package fetcher downloads preview images with conditional requests and stores
// each new one under a name derived from its freshness headers.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ttvsnap/ttvsnap/internal/errors"
	"github.com/ttvsnap/ttvsnap/internal/transport"
	"github.com/ttvsnap/ttvsnap/pkg/freshness"
)

const (
	// DefaultExtension is used when the image URL path has no suffix.
	DefaultExtension = "bin"

	dayLayout  = "2006-01-02"
	fileLayout = "2006-01-02_15-04-05"
)

// Outcome distinguishes the two successful fetch results.
type Outcome int

const (
	NotModified Outcome = iota
	Saved
)

func (o Outcome) String() string {
	if o == Saved {
		return "saved"
	}
	return "not_modified"
}

// Result describes a successful fetch. Only Saved results carry a path and marker.
type Result struct {
	Outcome    Outcome
	Path       string
	Marker     string
	CapturedAt time.Time
	Tier       freshness.Tier
	Size       int64
}

// Options configures a Fetcher.
type Options struct {
	OutputDir string
	// DaySubdir nests files under a YYYY-MM-DD directory.
	DaySubdir  bool
	HTTPClient *http.Client
}

// Fetcher performs conditional GETs of preview images.
type Fetcher struct {
	outputDir string
	daySubdir bool
	client    *http.Client
}

// New creates a Fetcher. A nil HTTPClient gets a client that does not follow redirects.
func New(opts Options) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		client = transport.NewClient(transport.Options{NoRedirects: true})
	}
	return &Fetcher{
		outputDir: opts.OutputDir,
		daySubdir: opts.DaySubdir,
		client:    client,
	}
}

// Fetch requests imageURL, sending marker as If-Modified-Since when non-empty.
// 304 yields NotModified with nothing written. 200 with usable freshness headers
// is written to disk and yields Saved. Everything else is an *errors.ErrImageFetch.
func (f *Fetcher) Fetch(ctx context.Context, imageURL, marker string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return Result{}, &errors.ErrImageFetch{URL: imageURL, Err: err}
	}
	if marker != "" {
		req.Header.Set("If-Modified-Since", marker)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, &errors.ErrImageFetch{URL: imageURL, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return Result{Outcome: NotModified}, nil
	case http.StatusOK:
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Result{}, &errors.ErrImageFetch{URL: imageURL, Status: resp.StatusCode}
	}

	fresh, err := freshness.Derive(resp.Header)
	if err != nil {
		return Result{}, &errors.ErrImageFetch{URL: imageURL, Status: resp.StatusCode, Err: err}
	}

	dest, err := f.Path(fresh.CapturedAt, imageURL)
	if err != nil {
		return Result{}, err
	}

	size, err := writeFile(dest, resp.Body)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Outcome:    Saved,
		Path:       dest,
		Marker:     fresh.Marker,
		CapturedAt: fresh.CapturedAt,
		Tier:       fresh.Tier,
		Size:       size,
	}, nil
}

// Path returns where an image captured at capturedAt from imageURL is stored,
// creating the day directory when enabled.
func (f *Fetcher) Path(capturedAt time.Time, imageURL string) (string, error) {
	capturedAt = capturedAt.UTC()
	dir := f.outputDir
	if f.daySubdir {
		dir = filepath.Join(dir, capturedAt.Format(dayLayout))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}
	name := capturedAt.Format(fileLayout) + "." + Extension(imageURL)
	return filepath.Join(dir, name), nil
}

// Extension returns the suffix of the URL path without the dot, or DefaultExtension.
func Extension(imageURL string) string {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return DefaultExtension
	}
	return ext
}

// writeFile streams body into a temporary sibling and renames it over dest,
// so a failed download never leaves a truncated image behind.
func writeFile(dest string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".ttvsnap-*")
	if err != nil {
		return 0, &errors.ErrFileWrite{Path: dest, Err: err}
	}
	tmpName := tmp.Name()

	size, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return 0, &errors.ErrFileWrite{Path: dest, Err: fmt.Errorf("write body: %w", err)}
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return 0, &errors.ErrFileWrite{Path: dest, Err: err}
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return 0, &errors.ErrFileWrite{Path: dest, Err: err}
	}
	return size, nil
}
