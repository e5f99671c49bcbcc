// Package freshness derives a capture timestamp and a conditional-request marker
// from the caching headers of an image response.
package freshness

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ttvsnap/ttvsnap/internal/errors"
)

// Tier identifies which header combination produced a Result.
type Tier int

const (
	TierNone Tier = iota
	// TierLastModified uses Last-Modified verbatim.
	TierLastModified
	// TierAge uses Date minus Age.
	TierAge
	// TierExpires uses Expires minus Cache-Control max-age.
	TierExpires
)

func (t Tier) String() string {
	switch t {
	case TierLastModified:
		return "last-modified"
	case TierAge:
		return "date-age"
	case TierExpires:
		return "expires-max-age"
	default:
		return "none"
	}
}

// Result is the outcome of Derive.
type Result struct {
	// CapturedAt is the moment the image was considered current, in UTC.
	CapturedAt time.Time
	// Marker is the value to send as If-Modified-Since on the next request.
	Marker string
	Tier   Tier
}

// Derive applies the tiers in priority order and returns the first that matches.
// It fails with *errors.ErrNoFreshness when no tier is usable.
func Derive(h http.Header) (Result, error) {
	if lm := strings.TrimSpace(h.Get("Last-Modified")); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			return Result{CapturedAt: t.UTC(), Marker: lm, Tier: TierLastModified}, nil
		}
	}

	if age, ok := parseAge(h.Get("Age")); ok {
		if date, err := http.ParseTime(strings.TrimSpace(h.Get("Date"))); err == nil {
			captured := date.Add(-age).UTC()
			return Result{CapturedAt: captured, Marker: FormatMarker(captured), Tier: TierAge}, nil
		}
	}

	if maxAge, ok := ParseMaxAge(h.Values("Cache-Control")...); ok {
		if expires, err := http.ParseTime(strings.TrimSpace(h.Get("Expires"))); err == nil {
			captured := expires.Add(-maxAge).UTC()
			return Result{CapturedAt: captured, Marker: FormatMarker(captured), Tier: TierExpires}, nil
		}
	}

	return Result{}, &errors.ErrNoFreshness{}
}

// FormatMarker renders t as an HTTP-date.
func FormatMarker(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// ParseMaxAge extracts the max-age directive from one or more Cache-Control values.
func ParseMaxAge(values ...string) (time.Duration, bool) {
	for _, value := range values {
		for _, directive := range strings.Split(value, ",") {
			name, arg, found := strings.Cut(strings.TrimSpace(directive), "=")
			if !found || !strings.EqualFold(strings.TrimSpace(name), "max-age") {
				continue
			}
			secs, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(arg), `"`), 10, 64)
			if err != nil {
				return 0, false
			}
			return seconds(secs)
		}
	}
	return 0, false
}

func parseAge(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return seconds(secs)
}

// maxSeconds is the largest whole-second count a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// seconds converts a header delta-seconds value. Negative values and values
// a Duration cannot represent are unusable.
func seconds(secs int64) (time.Duration, bool) {
	if secs < 0 || secs > maxSeconds {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
