package grabber

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttvsnap/ttvsnap/internal/credentials"
	"github.com/ttvsnap/ttvsnap/internal/errors"
	"github.com/ttvsnap/ttvsnap/internal/fetcher"
	"github.com/ttvsnap/ttvsnap/internal/logging"
	"github.com/ttvsnap/ttvsnap/internal/metrics"
	"github.com/ttvsnap/ttvsnap/internal/models"
	"github.com/ttvsnap/ttvsnap/internal/twitch"
)

// MockAuth hands out tokens in order and records calls.
type MockAuth struct {
	mu        sync.Mutex
	tokens    []string
	err       error
	exchanges int
	validated []string
}

func (m *MockAuth) Exchange(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges++
	if m.err != nil {
		return "", m.err
	}
	if len(m.tokens) == 0 {
		return "", &errors.ErrTokenExchange{Status: 400, Body: `{"message":"no more tokens"}`}
	}
	token := m.tokens[0]
	m.tokens = m.tokens[1:]
	return token, nil
}

func (m *MockAuth) Validate(ctx context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validated = append(m.validated, token)
	return token != "", nil
}

func (m *MockAuth) Exchanges() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exchanges
}

type pollStep struct {
	result *twitch.PollResult
	err    error
}

// MockPoller replays steps; the last step repeats.
type MockPoller struct {
	mu     sync.Mutex
	steps  []pollStep
	tokens []string
}

func (m *MockPoller) Poll(ctx context.Context, token string) (*twitch.PollResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	step := m.steps[0]
	if len(m.steps) > 1 {
		m.steps = m.steps[1:]
	}
	return step.result, step.err
}

func (m *MockPoller) Channel() string { return "somechannel" }

func (m *MockPoller) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens...)
}

type fetchCall struct {
	url    string
	marker string
}

// MockFetcher replays results; the last one repeats.
type MockFetcher struct {
	mu      sync.Mutex
	results []fetcher.Result
	errs    []error
	calls   []fetchCall
}

func (m *MockFetcher) Fetch(ctx context.Context, url, marker string) (fetcher.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fetchCall{url: url, marker: marker})
	i := len(m.calls) - 1
	var err error
	if len(m.errs) > 0 {
		err = m.errs[min(i, len(m.errs)-1)]
	}
	if err != nil {
		return fetcher.Result{}, err
	}
	return m.results[min(i, len(m.results)-1)], nil
}

type memTokens struct {
	token   string
	saved   []string
	loadErr error
	saveErr error
}

func (m *memTokens) Load() (string, bool, error) {
	if m.loadErr != nil {
		return "", false, m.loadErr
	}
	return m.token, m.token != "", nil
}

func (m *memTokens) Save(token string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.token = token
	m.saved = append(m.saved, token)
	return nil
}

type fakeThumbs struct {
	err   error
	calls []string
}

func (f *fakeThumbs) Generate(ctx context.Context, src string) (string, error) {
	f.calls = append(f.calls, src)
	if f.err != nil {
		return "", f.err
	}
	return strings.TrimSuffix(src, ".jpg") + "_thumb.jpg", nil
}

type fakeSink struct {
	name     string
	err      error
	captures []models.Capture
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Publish(ctx context.Context, c models.Capture) error {
	f.captures = append(f.captures, c)
	return f.err
}

type fakeAlerts struct {
	err      error
	messages []string
}

func (f *fakeAlerts) Alert(ctx context.Context, text string) error {
	f.messages = append(f.messages, text)
	return f.err
}

func offline() pollStep {
	return pollStep{result: &twitch.PollResult{State: twitch.StreamOffline, Status: 200, Header: http.Header{}}}
}

func live() pollStep {
	return pollStep{result: &twitch.PollResult{
		State:           twitch.StreamLive,
		Status:          200,
		Header:          http.Header{},
		PreviewTemplate: "https://x/img-{width}x{height}.jpg",
	}}
}

func invalidToken() pollStep {
	h := http.Header{}
	h.Set("WWW-Authenticate", `OAuth realm="TwitchTV", error="invalid_token"`)
	return pollStep{result: &twitch.PollResult{State: twitch.StreamAPIError, Status: 401, Header: h}}
}

func saved(path, marker string) fetcher.Result {
	return fetcher.Result{
		Outcome:    fetcher.Saved,
		Path:       path,
		Marker:     marker,
		CapturedAt: time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC),
		Size:       10,
	}
}

type harness struct {
	auth    *MockAuth
	poller  *MockPoller
	fetcher *MockFetcher
	tokens  *memTokens
	clock   clockwork.FakeClock
	metrics *metrics.Metrics
	logs    *bytes.Buffer
}

func newHarness(steps ...pollStep) *harness {
	return &harness{
		auth:    &MockAuth{tokens: []string{"fresh"}},
		poller:  &MockPoller{steps: steps},
		fetcher: &MockFetcher{results: []fetcher.Result{saved("/out/a.jpg", "m1")}},
		tokens:  &memTokens{token: "cached"},
		clock:   clockwork.NewFakeClock(),
		metrics: metrics.NewMetrics("test"),
		logs:    &bytes.Buffer{},
	}
}

func (h *harness) grabber(mutate ...func(*Deps)) *Grabber {
	deps := Deps{
		Auth:    h.auth,
		Poller:  h.poller,
		Fetcher: h.fetcher,
		Tokens:  h.tokens,
		Logger:  logging.NewLogger(logging.WithOutput(h.logs), logging.WithLevel(logging.LevelDebug)),
		Metrics: h.metrics,
		Clock:   h.clock,
	}
	for _, m := range mutate {
		m(&deps)
	}
	return New(deps, Config{Interval: 301 * time.Second, Backoff: 90 * time.Second})
}

var _ credentials.Store = (*memTokens)(nil)

func TestBootstrapUsesCachedToken(t *testing.T) {
	h := newHarness(offline())
	g := h.grabber()

	require.NoError(t, g.Bootstrap(context.Background()))
	assert.Equal(t, "cached", g.Token())
	assert.Equal(t, 0, h.auth.Exchanges())
	assert.Equal(t, []string{"cached"}, h.auth.validated)
	assert.True(t, g.Status().TokenPresent)
}

func TestBootstrapExchangesAndPersists(t *testing.T) {
	h := newHarness(offline())
	h.tokens.token = ""
	g := h.grabber()

	require.NoError(t, g.Bootstrap(context.Background()))
	assert.Equal(t, "fresh", g.Token())
	assert.Equal(t, []string{"fresh"}, h.tokens.saved)
	assert.Equal(t, []string{"fresh"}, h.auth.validated)
}

func TestBootstrapContinuesWithoutTokenOnExchangeFailure(t *testing.T) {
	h := newHarness(offline())
	h.tokens.token = ""
	h.auth.tokens = nil
	g := h.grabber()

	require.NoError(t, g.Bootstrap(context.Background()))
	assert.Empty(t, g.Token())
	assert.Empty(t, h.tokens.saved)
	assert.Contains(t, h.logs.String(), "continuing without access token")
}

func TestBootstrapCacheReadErrorIsFatal(t *testing.T) {
	h := newHarness(offline())
	h.tokens.loadErr = &errors.ErrFileRead{Path: "/cache/access_token.txt", Err: os.ErrPermission}
	g := h.grabber()

	err := g.Bootstrap(context.Background())
	var readErr *errors.ErrFileRead
	assert.True(t, stderrors.As(err, &readErr))
}

func TestCycleOffline(t *testing.T) {
	h := newHarness(offline())
	g := h.grabber()
	require.NoError(t, g.Bootstrap(context.Background()))

	pause, err := g.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PauseInterval, pause)
	assert.Empty(t, h.fetcher.calls)
	assert.False(t, g.Status().Live)
	assert.Equal(t, []string{"cached"}, h.poller.Tokens())
}

func TestCycleLiveFetchesCanonicalURL(t *testing.T) {
	h := newHarness(live())
	sink := &fakeSink{name: "journal"}
	g := h.grabber(func(d *Deps) { d.Sinks = []Sink{sink} })
	require.NoError(t, g.Bootstrap(context.Background()))

	pause, err := g.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PauseInterval, pause)

	require.Len(t, h.fetcher.calls, 1)
	assert.Equal(t, fetchCall{url: "https://x/img-0x0.jpg", marker: ""}, h.fetcher.calls[0])
	assert.Equal(t, "m1", g.Marker())

	require.Len(t, sink.captures, 1)
	c := sink.captures[0]
	assert.Equal(t, "somechannel", c.Channel)
	assert.Equal(t, "/out/a.jpg", c.Path)
	assert.Equal(t, "https://x/img-0x0.jpg", c.SourceURL)
	assert.True(t, c.FirstOfSession)

	status := g.Status()
	assert.True(t, status.Live)
	assert.Equal(t, int64(1), status.Captures)
	require.NotNil(t, status.LastCapture)
	assert.Equal(t, "/out/a.jpg", status.LastCapture.Path)
}

func TestCycleMarkerOnlyAdvancesOnSave(t *testing.T) {
	h := newHarness(live())
	h.fetcher.results = []fetcher.Result{
		saved("/out/a.jpg", "m1"),
		{Outcome: fetcher.NotModified},
		{},
		saved("/out/b.jpg", "m2"),
	}
	h.fetcher.errs = []error{nil, nil, &errors.ErrImageFetch{URL: "https://x/img-0x0.jpg", Status: 500}, nil}
	g := h.grabber()
	require.NoError(t, g.Bootstrap(context.Background()))

	var pauses []Pause
	for i := 0; i < 4; i++ {
		pause, err := g.Cycle(context.Background())
		require.NoError(t, err)
		pauses = append(pauses, pause)
	}

	assert.Equal(t, []Pause{PauseInterval, PauseInterval, PauseBackoff, PauseInterval}, pauses)
	markers := make([]string, 0, len(h.fetcher.calls))
	for _, c := range h.fetcher.calls {
		markers = append(markers, c.marker)
	}
	assert.Equal(t, []string{"", "m1", "m1", "m1"}, markers)
	assert.Equal(t, "m2", g.Marker())
}

func TestCycleInvalidTokenRefreshesWithoutSleep(t *testing.T) {
	h := newHarness(invalidToken(), live())
	sink := &fakeSink{name: "journal"}
	g := h.grabber(func(d *Deps) { d.Sinks = []Sink{sink} })
	require.NoError(t, g.Bootstrap(context.Background()))

	pause, err := g.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PauseNone, pause)
	assert.Equal(t, 1, h.auth.Exchanges())
	assert.Equal(t, []string{"fresh"}, h.tokens.saved)
	assert.Empty(t, h.fetcher.calls)
	assert.Empty(t, sink.captures)

	pause, err = g.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PauseInterval, pause)
	assert.Equal(t, []string{"cached", "fresh"}, h.poller.Tokens())
	assert.Len(t, h.fetcher.calls, 1)
}

func TestCycleInvalidTokenExchangeFailureBacksOff(t *testing.T) {
	h := newHarness(invalidToken())
	h.auth.tokens = nil
	g := h.grabber()
	require.NoError(t, g.Bootstrap(context.Background()))

	pause, err := g.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PauseBackoff, pause)
	assert.Empty(t, g.Token())
	assert.False(t, g.Status().TokenPresent)
	assert.Empty(t, h.fetcher.calls)
}

func TestCycleUnauthorizedWithoutTokenRefreshes(t *testing.T) {
	unauthorized := pollStep{result: &twitch.PollResult{State: twitch.StreamAPIError, Status: 401, Header: http.Header{}}}
	h := newHarness(unauthorized, offline())
	h.tokens.token = ""
	h.auth.tokens = nil
	g := h.grabber()
	require.NoError(t, g.Bootstrap(context.Background()))

	h.auth.tokens = []string{"later"}
	pause, err := g.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PauseNone, pause)
	assert.Equal(t, "later", g.Token())
}

func TestCycleTokenPersistFailureIsFatal(t *testing.T) {
	h := newHarness(invalidToken())
	g := h.grabber()
	require.NoError(t, g.Bootstrap(context.Background()))

	h.tokens.saveErr = &errors.ErrFileWrite{Path: "/cache/access_token.txt", Err: os.ErrPermission}
	_, err := g.Cycle(context.Background())
	var writeErr *errors.ErrFileWrite
	assert.True(t, stderrors.As(err, &writeErr))
}

func TestCycleReloadsTokenWrittenByAnotherProcess(t *testing.T) {
	h := newHarness(offline())
	changes := make(chan struct{}, 1)
	g := h.grabber(func(d *Deps) { d.TokenChanges = changes })
	require.NoError(t, g.Bootstrap(context.Background()))

	_, err := g.Cycle(context.Background())
	require.NoError(t, err)

	h.tokens.token = "rotated"
	changes <- struct{}{}

	_, err = g.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cached", "rotated"}, h.poller.Tokens())
	assert.Equal(t, "rotated", g.Token())
	assert.Contains(t, h.logs.String(), "reloaded access token from cache")
	assert.Equal(t, 0, h.auth.Exchanges())
}

func TestCycleTokenReloadReadErrorIsFatal(t *testing.T) {
	h := newHarness(offline())
	changes := make(chan struct{}, 1)
	g := h.grabber(func(d *Deps) { d.TokenChanges = changes })
	require.NoError(t, g.Bootstrap(context.Background()))

	h.tokens.loadErr = &errors.ErrFileRead{Path: "/cache/access_token.txt", Err: os.ErrPermission}
	changes <- struct{}{}

	_, err := g.Cycle(context.Background())
	var readErr *errors.ErrFileRead
	assert.True(t, stderrors.As(err, &readErr))
	assert.Empty(t, h.poller.Tokens())
}

func TestCycleBackoffCases(t *testing.T) {
	apiErr := pollStep{result: &twitch.PollResult{
		State:    twitch.StreamAPIError,
		Status:   429,
		Header:   http.Header{},
		APIError: &errors.ErrAPI{Status: 429, Code: "Too Many Requests"},
	}}

	tests := []struct {
		name string
		step pollStep
		logs string
	}{
		{name: "transport error", step: pollStep{err: stderrors.New("connection refused")}, logs: "stream poll failed"},
		{name: "api error", step: apiErr, logs: "Too Many Requests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.step)
			g := h.grabber()
			require.NoError(t, g.Bootstrap(context.Background()))

			pause, err := g.Cycle(context.Background())
			require.NoError(t, err)
			assert.Equal(t, PauseBackoff, pause)
			assert.Empty(t, h.fetcher.calls)
			assert.Contains(t, h.logs.String(), tt.logs)
			assert.NotEmpty(t, g.Status().LastError)
		})
	}
}

func TestCycleThumbnail(t *testing.T) {
	h := newHarness(live())
	thumbs := &fakeThumbs{}
	sink := &fakeSink{name: "journal"}
	g := h.grabber(func(d *Deps) {
		d.Thumbnailer = thumbs
		d.Sinks = []Sink{sink}
	})
	require.NoError(t, g.Bootstrap(context.Background()))

	_, err := g.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/a.jpg"}, thumbs.calls)
	require.Len(t, sink.captures, 1)
	assert.Equal(t, "/out/a_thumb.jpg", sink.captures[0].ThumbnailPath)
}

func TestCycleThumbnailFailureIsFatal(t *testing.T) {
	h := newHarness(live())
	thumbs := &fakeThumbs{err: &errors.ErrThumbnail{Path: "/out/a.jpg", Err: stderrors.New("exit status 1")}}
	g := h.grabber(func(d *Deps) { d.Thumbnailer = thumbs })
	require.NoError(t, g.Bootstrap(context.Background()))

	_, err := g.Cycle(context.Background())
	var thumbErr *errors.ErrThumbnail
	assert.True(t, stderrors.As(err, &thumbErr))
}

func TestCycleSinkErrorsAreNotFatal(t *testing.T) {
	h := newHarness(live())
	broken := &fakeSink{name: "s3", err: stderrors.New("bucket gone")}
	ok := &fakeSink{name: "journal"}
	g := h.grabber(func(d *Deps) { d.Sinks = []Sink{broken, ok} })
	require.NoError(t, g.Bootstrap(context.Background()))

	pause, err := g.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PauseInterval, pause)
	assert.Len(t, ok.captures, 1)
	assert.Equal(t, "m1", g.Marker())
	assert.Contains(t, h.logs.String(), "bucket gone")
}

func TestFirstOfSessionResetsWhenOffline(t *testing.T) {
	h := newHarness(live(), live(), offline(), live())
	h.fetcher.results = []fetcher.Result{saved("/out/a.jpg", "m1"), saved("/out/b.jpg", "m2"), saved("/out/c.jpg", "m3")}
	sink := &fakeSink{name: "telegram"}
	g := h.grabber(func(d *Deps) { d.Sinks = []Sink{sink} })
	require.NoError(t, g.Bootstrap(context.Background()))

	for i := 0; i < 4; i++ {
		_, err := g.Cycle(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, sink.captures, 3)
	assert.True(t, sink.captures[0].FirstOfSession)
	assert.False(t, sink.captures[1].FirstOfSession)
	assert.True(t, sink.captures[2].FirstOfSession)
}

func TestGoingLiveAlertsAndLogsStreamInfo(t *testing.T) {
	stream := live()
	stream.result.Stream = twitch.StreamInfo{
		Title:       "speedrunning all night",
		GameName:    "Celeste",
		ViewerCount: 1234,
		StartedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	h := newHarness(offline(), stream, stream, offline(), stream)
	h.fetcher.results = []fetcher.Result{saved("/out/a.jpg", "m1"), saved("/out/b.jpg", "m2"), saved("/out/c.jpg", "m3")}
	alerts := &fakeAlerts{}
	sink := &fakeSink{name: "journal"}
	g := h.grabber(func(d *Deps) {
		d.Alerts = alerts
		d.Sinks = []Sink{sink}
	})
	require.NoError(t, g.Bootstrap(context.Background()))

	for i := 0; i < 5; i++ {
		_, err := g.Cycle(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		"somechannel is live: speedrunning all night [Celeste]",
		"somechannel is live: speedrunning all night [Celeste]",
	}, alerts.messages)

	logs := h.logs.String()
	assert.Contains(t, logs, "channel state changed")
	assert.Contains(t, logs, "speedrunning all night")
	assert.Contains(t, logs, "Celeste")
	assert.Contains(t, logs, "1234")
	assert.Contains(t, logs, "2024-05-01T12:00:00Z")

	require.NotEmpty(t, sink.captures)
	assert.Equal(t, "speedrunning all night", sink.captures[0].Title)
	assert.Equal(t, "Celeste", sink.captures[0].GameName)
}

func TestLiveMessageWithoutStreamInfo(t *testing.T) {
	assert.Equal(t, "somechannel is live", liveMessage("somechannel", twitch.StreamInfo{}))
	assert.Equal(t, "somechannel is live: hello", liveMessage("somechannel", twitch.StreamInfo{Title: "hello"}))
}

func TestExchangeFailureAlerts(t *testing.T) {
	h := newHarness(invalidToken())
	h.auth.tokens = nil
	alerts := &fakeAlerts{err: stderrors.New("telegram down")}
	g := h.grabber(func(d *Deps) { d.Alerts = alerts })
	require.NoError(t, g.Bootstrap(context.Background()))

	pause, err := g.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PauseBackoff, pause)

	require.Len(t, alerts.messages, 1)
	assert.Contains(t, alerts.messages[0], "somechannel: token exchange failed")
	assert.Contains(t, h.logs.String(), "alert failed")
}

func TestRunPacesWithClock(t *testing.T) {
	h := newHarness(invalidToken(), offline())
	g := h.grabber()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	// invalid token -> immediate retry -> offline -> waits the interval
	h.clock.BlockUntil(1)
	assert.Len(t, h.poller.Tokens(), 2)

	h.clock.Advance(300 * time.Second)
	assert.Len(t, h.poller.Tokens(), 2)

	h.clock.Advance(time.Second)
	h.clock.BlockUntil(1)
	assert.Len(t, h.poller.Tokens(), 3)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunBacksOffAfterErrors(t *testing.T) {
	h := newHarness(pollStep{err: stderrors.New("timeout")}, offline())
	g := h.grabber()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	h.clock.BlockUntil(1)
	assert.Len(t, h.poller.Tokens(), 1)

	h.clock.Advance(89 * time.Second)
	assert.Len(t, h.poller.Tokens(), 1)

	h.clock.Advance(time.Second)
	h.clock.BlockUntil(1)
	assert.Len(t, h.poller.Tokens(), 2)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunStopsOnThumbnailFailure(t *testing.T) {
	h := newHarness(live())
	g := h.grabber(func(d *Deps) {
		d.Thumbnailer = &fakeThumbs{err: &errors.ErrThumbnail{Path: "/out/a.jpg", Err: stderrors.New("exit status 1")}}
	})

	err := g.Run(context.Background())
	var thumbErr *errors.ErrThumbnail
	assert.True(t, stderrors.As(err, &thumbErr))
}

func TestPauseString(t *testing.T) {
	assert.Equal(t, "none", PauseNone.String())
	assert.Equal(t, "interval", PauseInterval.String())
	assert.Equal(t, "backoff", PauseBackoff.String())
}

// TestEndToEnd drives the real Helix client and image fetcher against test servers.
func TestEndToEnd(t *testing.T) {
	const lastModified = "Wed, 01 May 2024 12:30:45 GMT"
	var imageRequests []string

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		imageRequests = append(imageRequests, r.URL.Path)
		if r.Header.Get("If-Modified-Since") == lastModified {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Last-Modified", lastModified)
		_, _ = w.Write([]byte("jpeg"))
	}))
	defer cdn.Close()

	helix := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/helix/streams":
			_, _ = w.Write([]byte(`{"data":[{"thumbnail_url":"` + cdn.URL + `/img-{width}x{height}.jpg"}]}`))
		case "/helix/users":
			_, _ = w.Write([]byte(`{"data":[{"login":"jtv"}]}`))
		case "/oauth2/token":
			_, _ = w.Write([]byte(`{"access_token":"tok"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer helix.Close()

	out := t.TempDir()
	tokens, err := credentials.NewFileStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	cfg := twitch.Config{ClientID: "cid", ClientSecret: "secret", APIBaseURL: helix.URL, AuthBaseURL: helix.URL}
	g := New(Deps{
		Auth:    twitch.NewAuthClient(cfg),
		Poller:  twitch.NewStreamPoller(cfg, "somechannel"),
		Fetcher: fetcher.New(fetcher.Options{OutputDir: out}),
		Tokens:  tokens,
		Clock:   clockwork.NewFakeClock(),
	}, Config{})

	require.NoError(t, g.Bootstrap(context.Background()))
	cached, ok, err := tokens.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", cached)

	for i := 0; i < 2; i++ {
		pause, err := g.Cycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, PauseInterval, pause)
	}

	assert.Equal(t, []string{"/img-0x0.jpg", "/img-0x0.jpg"}, imageRequests)
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-05-01_12-30-45.jpg", entries[0].Name())
	assert.Equal(t, int64(1), g.Status().Captures)
}
