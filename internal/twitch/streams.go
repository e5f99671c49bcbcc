package twitch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/ttvsnap/ttvsnap/internal/errors"
)

// StreamState is the channel state reported by one poll.
type StreamState int

const (
	StreamOffline StreamState = iota
	StreamLive
	StreamAPIError
)

func (s StreamState) String() string {
	switch s {
	case StreamOffline:
		return "offline"
	case StreamLive:
		return "live"
	case StreamAPIError:
		return "api_error"
	default:
		return "unknown"
	}
}

// StreamInfo is the subset of the Helix stream object kept for logs and notifications.
type StreamInfo struct {
	Title       string
	GameName    string
	ViewerCount int64
	StartedAt   time.Time
}

// PollResult is the outcome of one Poll. Header and Status are always set so the
// caller can inspect the raw response for auth failures.
type PollResult struct {
	State           StreamState
	PreviewTemplate string
	Stream          StreamInfo
	APIError        *errors.ErrAPI
	Status          int
	Header          http.Header
}

// InvalidToken reports whether the response flags the bearer token as rejected.
func (r *PollResult) InvalidToken() bool {
	return r != nil && IsInvalidToken(r.Header)
}

// StreamPoller asks Helix whether one channel is live.
type StreamPoller struct {
	cfg     Config
	channel string
}

// NewStreamPoller creates a poller for channel.
func NewStreamPoller(cfg Config, channel string) *StreamPoller {
	return &StreamPoller{cfg: cfg.withDefaults(), channel: strings.ToLower(strings.TrimSpace(channel))}
}

// Channel returns the polled login name.
func (p *StreamPoller) Channel() string {
	return p.channel
}

// Poll queries /helix/streams for the channel. Transport failures and
// undecodable bodies are returned as errors, except that a response flagged
// as invalid_token is always returned as a result.
func (p *StreamPoller) Poll(ctx context.Context, token string) (*PollResult, error) {
	query := url.Values{}
	query.Set("user_login", p.channel)

	resp, err := getHelix(ctx, p.cfg, "/helix/streams", query, token)
	if err != nil {
		return nil, err
	}

	result := &PollResult{Status: resp.Status, Header: resp.Header, State: StreamAPIError}
	valid := gjson.ValidBytes(resp.Body)

	if !valid {
		if result.InvalidToken() {
			result.APIError = &errors.ErrAPI{Status: resp.Status, Code: "invalid_token"}
			return result, nil
		}
		return nil, fmt.Errorf("helix /helix/streams: malformed response (status %d): %s", resp.Status, truncate(resp.Body))
	}

	doc := gjson.ParseBytes(resp.Body)

	if apiErr := doc.Get("error"); apiErr.Exists() {
		status := int(doc.Get("status").Int())
		if status == 0 {
			status = resp.Status
		}
		result.APIError = &errors.ErrAPI{
			Status:  status,
			Code:    apiErr.String(),
			Message: doc.Get("message").String(),
		}
		return result, nil
	}

	data := doc.Get("data")
	if !data.IsArray() {
		if result.InvalidToken() {
			result.APIError = &errors.ErrAPI{Status: resp.Status, Code: "invalid_token"}
			return result, nil
		}
		return nil, fmt.Errorf("helix /helix/streams: unexpected document format (status %d)", resp.Status)
	}

	streams := data.Array()
	if len(streams) == 0 {
		result.State = StreamOffline
		return result, nil
	}

	first := streams[0]
	template := first.Get("thumbnail_url").String()
	if template == "" {
		return nil, fmt.Errorf("helix /helix/streams: live stream without thumbnail_url")
	}

	result.State = StreamLive
	result.PreviewTemplate = template
	result.Stream = StreamInfo{
		Title:       first.Get("title").String(),
		GameName:    first.Get("game_name").String(),
		ViewerCount: first.Get("viewer_count").Int(),
		StartedAt:   first.Get("started_at").Time(),
	}
	return result, nil
}

// IsInvalidToken reports whether any WWW-Authenticate header carries invalid_token.
func IsInvalidToken(h http.Header) bool {
	for _, v := range h.Values("WWW-Authenticate") {
		if strings.Contains(v, "invalid_token") {
			return true
		}
	}
	return false
}

// PreviewURL fills the size placeholders of a preview template with 0,
// which asks the CDN for the canonical image size.
func PreviewURL(template string) string {
	return strings.NewReplacer("{width}", "0", "{height}", "0").Replace(template)
}
