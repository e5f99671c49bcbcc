// Package grabber runs the poll, authenticate, fetch and dedupe loop for one channel.
package grabber

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ttvsnap/ttvsnap/internal/credentials"
	"github.com/ttvsnap/ttvsnap/internal/errors"
	"github.com/ttvsnap/ttvsnap/internal/fetcher"
	"github.com/ttvsnap/ttvsnap/internal/logging"
	"github.com/ttvsnap/ttvsnap/internal/metrics"
	"github.com/ttvsnap/ttvsnap/internal/models"
	"github.com/ttvsnap/ttvsnap/internal/twitch"
)

const (
	// DefaultInterval is the poll interval used when none is configured.
	DefaultInterval = 301 * time.Second
	// MinInterval is the shortest poll interval the loop accepts.
	MinInterval = 60 * time.Second
	// ErrorBackoff is the pause after a failed poll, exchange or fetch.
	ErrorBackoff = 90 * time.Second
)

// Logger is the logging surface the loop writes to.
type Logger interface {
	DebugWithContext(ctx context.Context, message string, fields ...interface{})
	InfoWithContext(ctx context.Context, message string, fields ...interface{})
	WarnWithContext(ctx context.Context, message string, fields ...interface{})
	ErrorWithContext(ctx context.Context, message string, fields ...interface{})
}

// Authenticator exchanges client credentials and checks tokens.
type Authenticator interface {
	Exchange(ctx context.Context) (string, error)
	Validate(ctx context.Context, token string) (bool, error)
}

// Poller reports whether the channel is live.
type Poller interface {
	Poll(ctx context.Context, token string) (*twitch.PollResult, error)
	Channel() string
}

// ImageFetcher performs the conditional image download.
type ImageFetcher interface {
	Fetch(ctx context.Context, url, marker string) (fetcher.Result, error)
}

// Thumbnailer produces a small copy of a saved capture.
type Thumbnailer interface {
	Generate(ctx context.Context, src string) (string, error)
}

// Sink receives every saved capture. Sink errors never stop the loop.
type Sink interface {
	Name() string
	Publish(ctx context.Context, c models.Capture) error
}

// Alerter delivers short operational messages, such as the channel going live.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Pause is what the loop does after a cycle.
type Pause int

const (
	// PauseNone starts the next cycle immediately.
	PauseNone Pause = iota
	// PauseInterval waits the configured poll interval.
	PauseInterval
	// PauseBackoff waits the error backoff.
	PauseBackoff
)

func (p Pause) String() string {
	switch p {
	case PauseInterval:
		return "interval"
	case PauseBackoff:
		return "backoff"
	default:
		return "none"
	}
}

// Deps are the collaborators of a Grabber. Thumbnailer, Sinks, Alerts,
// TokenChanges, Metrics and Clock are optional.
type Deps struct {
	Auth        Authenticator
	Poller      Poller
	Fetcher     ImageFetcher
	Tokens      credentials.Store
	Thumbnailer Thumbnailer
	Sinks       []Sink
	Alerts      Alerter
	// TokenChanges signals that the token cache was rewritten by another process.
	TokenChanges <-chan struct{}
	Logger       Logger
	Metrics      *metrics.Metrics
	Clock        clockwork.Clock
}

// Config holds the pacing of the loop.
type Config struct {
	Interval time.Duration
	Backoff  time.Duration
}

// Grabber owns the access token and freshness marker for one channel.
// Only the loop goroutine mutates them; Status may be called from anywhere.
type Grabber struct {
	auth    Authenticator
	poller  Poller
	fetcher ImageFetcher
	tokens  credentials.Store
	thumbs  Thumbnailer
	sinks   []Sink
	alerts  Alerter
	changes <-chan struct{}
	logger  Logger
	metrics *metrics.Metrics
	clock   clockwork.Clock

	interval time.Duration
	backoff  time.Duration

	token           string
	marker          string
	sessionCaptured bool

	mu     sync.RWMutex
	status models.GrabStatus
}

// New creates a Grabber. Zero durations in cfg take the defaults.
func New(deps Deps, cfg Config) *Grabber {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = ErrorBackoff
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}

	return &Grabber{
		auth:     deps.Auth,
		poller:   deps.Poller,
		fetcher:  deps.Fetcher,
		tokens:   deps.Tokens,
		thumbs:   deps.Thumbnailer,
		sinks:    deps.Sinks,
		alerts:   deps.Alerts,
		changes:  deps.TokenChanges,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		interval: cfg.Interval,
		backoff:  cfg.Backoff,
		status: models.GrabStatus{
			Channel:   deps.Poller.Channel(),
			StartedAt: deps.Clock.Now().UTC(),
		},
	}
}

// Run bootstraps authentication and loops until ctx is done or a fatal error
// occurs. Only thumbnail failures and token cache I/O errors are fatal.
func (g *Grabber) Run(ctx context.Context) error {
	if err := g.Bootstrap(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pause, err := g.Cycle(ctx)
		if err != nil {
			return err
		}

		delay := g.delay(pause)
		if g.metrics != nil {
			g.metrics.RecordSleep(pause.String())
		}
		if delay <= 0 {
			continue
		}

		g.logger.DebugWithContext(ctx, "sleeping", "reason", pause.String(), "seconds", delay.Seconds())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.clock.After(delay):
		}
	}
}

// Bootstrap loads the cached token or exchanges credentials for a new one,
// then checks the token for logging purposes only.
func (g *Grabber) Bootstrap(ctx context.Context) error {
	ctx, _ = logging.EnsureCorrelationID(ctx)

	token, ok, err := g.tokens.Load()
	if err != nil {
		return err
	}

	if ok {
		g.logger.InfoWithContext(ctx, "loaded cached access token")
		g.setToken(token)
	} else {
		g.logger.InfoWithContext(ctx, "no cached access token, exchanging client credentials")
		if err := g.refreshToken(ctx); err != nil {
			if !isExchangeFailure(err) {
				return err
			}
			g.logger.WarnWithContext(ctx, "continuing without access token", "error", err)
		}
	}

	valid, err := g.auth.Validate(ctx, g.token)
	switch {
	case err != nil:
		g.logger.WarnWithContext(ctx, "could not validate access token", "error", err)
	case valid:
		g.logger.InfoWithContext(ctx, "access token accepted")
	default:
		g.logger.WarnWithContext(ctx, "access token not accepted")
	}

	return nil
}

// Cycle runs one poll and its follow-up work and reports how to pause.
// A non-nil error is fatal to the loop.
func (g *Grabber) Cycle(ctx context.Context) (Pause, error) {
	ctx, _ = logging.NewCorrelationScope(ctx)

	if err := g.reloadToken(ctx); err != nil {
		return PauseNone, err
	}

	result, err := g.poller.Poll(ctx, g.token)
	g.markPolled()
	if err != nil {
		g.recordPoll("transport_error")
		g.fail(ctx, "stream poll failed", err)
		return PauseBackoff, nil
	}

	if result.InvalidToken() || (g.token == "" && result.Status == 401) {
		g.recordPoll("invalid_token")
		g.logger.WarnWithContext(ctx, "access token rejected, exchanging client credentials", "status", result.Status)

		if err := g.refreshToken(ctx); err != nil {
			if !isExchangeFailure(err) {
				return PauseNone, err
			}
			g.fail(ctx, "token exchange failed", err)
			g.alert(ctx, fmt.Sprintf("%s: token exchange failed: %v", g.poller.Channel(), err))
			return PauseBackoff, nil
		}
		return PauseNone, nil
	}

	switch result.State {
	case twitch.StreamAPIError:
		g.recordPoll("api_error")
		var apiErr error = &errors.ErrAPI{Status: result.Status}
		if result.APIError != nil {
			apiErr = result.APIError
		}
		g.fail(ctx, "stream poll returned an error", apiErr)
		return PauseBackoff, nil

	case twitch.StreamOffline:
		g.recordPoll("offline")
		g.setLive(ctx, false, twitch.StreamInfo{})
		g.clearError()
		return PauseInterval, nil
	}

	g.recordPoll("live")
	g.setLive(ctx, true, result.Stream)
	return g.capture(ctx, result)
}

func (g *Grabber) capture(ctx context.Context, result *twitch.PollResult) (Pause, error) {
	url := twitch.PreviewURL(result.PreviewTemplate)

	fetched, err := g.fetcher.Fetch(ctx, url, g.marker)
	if err != nil {
		g.recordFetch("error")
		g.fail(ctx, "image fetch failed", err, "url", url)
		return PauseBackoff, nil
	}

	if fetched.Outcome == fetcher.NotModified {
		g.recordFetch("not_modified")
		g.logger.DebugWithContext(ctx, "image not modified", "url", url, "marker", g.marker)
		g.clearError()
		return PauseInterval, nil
	}

	g.recordFetch("saved")
	g.marker = fetched.Marker
	g.logger.InfoWithContext(ctx, "saved image",
		"path", fetched.Path,
		"captured_at", fetched.CapturedAt.Format(time.RFC3339),
		"freshness", fetched.Tier.String(),
		"bytes", fetched.Size,
	)

	c := models.Capture{
		Channel:        g.poller.Channel(),
		Path:           fetched.Path,
		SourceURL:      url,
		CapturedAt:     fetched.CapturedAt,
		Marker:         fetched.Marker,
		SizeBytes:      fetched.Size,
		SavedAt:        g.clock.Now().UTC(),
		Title:          result.Stream.Title,
		GameName:       result.Stream.GameName,
		FirstOfSession: !g.sessionCaptured,
	}
	g.sessionCaptured = true

	if g.thumbs != nil {
		thumb, err := g.thumbs.Generate(ctx, fetched.Path)
		if err != nil {
			g.logger.ErrorWithContext(ctx, "thumbnail generation failed", "path", fetched.Path, "error", err)
			return PauseNone, err
		}
		c.ThumbnailPath = thumb
		g.logger.DebugWithContext(ctx, "created thumbnail", "path", thumb)
	}

	g.publish(ctx, c)
	g.recordCapture(c)
	return PauseInterval, nil
}

func (g *Grabber) publish(ctx context.Context, c models.Capture) {
	for _, sink := range g.sinks {
		if err := sink.Publish(ctx, c); err != nil {
			g.logger.WarnWithContext(ctx, "capture sink failed", "sink", sink.Name(), "path", c.Path, "error", err)
			g.recordSink(sink.Name(), "error")
			continue
		}
		g.recordSink(sink.Name(), "success")
	}
}

// refreshToken clears the current token, exchanges credentials and persists
// the result. Exchange failures leave the token empty.
func (g *Grabber) refreshToken(ctx context.Context) error {
	g.setToken("")

	token, err := g.auth.Exchange(ctx)
	if err != nil {
		g.recordExchange("failure")
		return err
	}
	g.recordExchange("success")

	if err := g.tokens.Save(token); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}
	g.setToken(token)
	g.logger.InfoWithContext(ctx, "obtained new access token")
	return nil
}

// reloadToken picks up a token written to the cache by another process.
// Writes made by refreshToken itself reload the same value and change nothing.
func (g *Grabber) reloadToken(ctx context.Context) error {
	select {
	case <-g.changes:
	default:
		return nil
	}

	token, ok, err := g.tokens.Load()
	if err != nil {
		return err
	}
	if !ok || token == g.token {
		return nil
	}

	g.setToken(token)
	g.logger.InfoWithContext(ctx, "reloaded access token from cache")
	return nil
}

func isExchangeFailure(err error) bool {
	var exchangeErr *errors.ErrTokenExchange
	return stderrors.As(err, &exchangeErr)
}

func (g *Grabber) delay(p Pause) time.Duration {
	switch p {
	case PauseInterval:
		return g.interval
	case PauseBackoff:
		return g.backoff
	default:
		return 0
	}
}

// Status returns a copy of the current loop state.
func (g *Grabber) Status() models.GrabStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := g.status
	if s.LastPollAt != nil {
		t := *s.LastPollAt
		s.LastPollAt = &t
	}
	if s.LastCapture != nil {
		c := *s.LastCapture
		s.LastCapture = &c
	}
	return s
}

// Marker returns the freshness marker of the newest saved image.
func (g *Grabber) Marker() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status.Marker
}

// Token returns the access token currently in use.
func (g *Grabber) Token() string {
	return g.token
}

func (g *Grabber) setToken(token string) {
	g.token = token
	g.mu.Lock()
	g.status.TokenPresent = token != ""
	g.mu.Unlock()
}

func (g *Grabber) setLive(ctx context.Context, live bool, stream twitch.StreamInfo) {
	g.mu.Lock()
	was := g.status.Live
	g.status.Live = live
	g.status.LastPollResult = "offline"
	if live {
		g.status.LastPollResult = "live"
	}
	g.mu.Unlock()

	if live != was {
		fields := []interface{}{"channel", g.status.Channel, "live", live}
		if live {
			fields = append(fields,
				"title", stream.Title,
				"game", stream.GameName,
				"viewers", stream.ViewerCount,
			)
			if !stream.StartedAt.IsZero() {
				fields = append(fields, "started_at", stream.StartedAt.UTC().Format(time.RFC3339))
			}
		}
		g.logger.InfoWithContext(ctx, "channel state changed", fields...)
		if live {
			g.alert(ctx, liveMessage(g.status.Channel, stream))
		}
	}
	if !live {
		g.sessionCaptured = false
	}
	if g.metrics != nil {
		g.metrics.SetChannelLive(live)
	}
}

// liveMessage renders the go-live alert: "<channel> is live: <title> [<game>]".
func liveMessage(channel string, stream twitch.StreamInfo) string {
	msg := channel + " is live"
	if stream.Title != "" {
		msg += ": " + stream.Title
	}
	if stream.GameName != "" {
		msg += " [" + stream.GameName + "]"
	}
	return msg
}

// alert sends text through the configured Alerter. Failures are only logged.
func (g *Grabber) alert(ctx context.Context, text string) {
	if g.alerts == nil {
		return
	}
	if err := g.alerts.Alert(ctx, text); err != nil {
		g.logger.WarnWithContext(ctx, "alert failed", "error", err)
	}
}

func (g *Grabber) markPolled() {
	now := g.clock.Now().UTC()
	g.mu.Lock()
	g.status.LastPollAt = &now
	g.mu.Unlock()
}

func (g *Grabber) fail(ctx context.Context, message string, err error, fields ...interface{}) {
	g.logger.ErrorWithContext(ctx, message, append(fields, "error", err)...)
	g.mu.Lock()
	g.status.LastError = err.Error()
	g.status.LastPollResult = "error"
	g.mu.Unlock()
}

func (g *Grabber) clearError() {
	g.mu.Lock()
	g.status.LastError = ""
	g.mu.Unlock()
}

func (g *Grabber) recordCapture(c models.Capture) {
	g.mu.Lock()
	g.status.Marker = c.Marker
	g.status.LastCapture = &c
	g.status.Captures++
	g.status.LastError = ""
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.SetLastCapture(c.CapturedAt)
	}
}

func (g *Grabber) recordPoll(result string) {
	if g.metrics != nil {
		g.metrics.RecordPoll(result)
	}
}

func (g *Grabber) recordFetch(result string) {
	if g.metrics != nil {
		g.metrics.RecordImageFetch(result)
	}
}

func (g *Grabber) recordExchange(result string) {
	if g.metrics != nil {
		g.metrics.RecordAuthExchange(result)
	}
}

func (g *Grabber) recordSink(name, status string) {
	if g.metrics != nil {
		g.metrics.RecordSink(name, status)
	}
}
