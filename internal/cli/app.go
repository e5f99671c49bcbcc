package cli

import (
	"context"
	"fmt"

	"github.com/ttvsnap/ttvsnap/internal/config"
	"github.com/ttvsnap/ttvsnap/internal/credentials"
	"github.com/ttvsnap/ttvsnap/internal/fetcher"
	"github.com/ttvsnap/ttvsnap/internal/grabber"
	"github.com/ttvsnap/ttvsnap/internal/logging"
	"github.com/ttvsnap/ttvsnap/internal/metrics"
	"github.com/ttvsnap/ttvsnap/internal/mirror"
	"github.com/ttvsnap/ttvsnap/internal/store"
	"github.com/ttvsnap/ttvsnap/internal/telegram"
	"github.com/ttvsnap/ttvsnap/internal/thumbnail"
	"github.com/ttvsnap/ttvsnap/internal/transport"
	"github.com/ttvsnap/ttvsnap/internal/twitch"
)

// memoryJournalLimit bounds the in-memory journal that backs /captures when
// no journal database is configured.
const memoryJournalLimit = 1000

// app is a fully wired grabber with its optional journal and metrics.
type app struct {
	grabber *grabber.Grabber
	journal store.CaptureStore
	metrics *metrics.Metrics
	tokens  *credentials.FileStore
}

func (a *app) Close() error {
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}

// twitchConfig builds the shared Helix settings from cfg and the client secret.
func twitchConfig(cfg *config.Config, secret string) twitch.Config {
	return twitch.Config{
		ClientID:     cfg.Twitch.ClientID,
		ClientSecret: secret,
		APIBaseURL:   cfg.Twitch.APIBaseURL,
		AuthBaseURL:  cfg.Twitch.AuthBaseURL,
		HTTPClient: transport.NewClient(transport.Options{
			Timeout:   cfg.Twitch.Timeout,
			UserAgent: UserAgent(),
			UTLS:      cfg.Twitch.UTLS,
		}),
	}
}

// buildApp wires every component described by a validated cfg.
func buildApp(ctx context.Context, cfg *config.Config, secret string, logger *logging.Logger) (*app, error) {
	tokens, err := credentials.NewFileStore(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	tc := twitchConfig(cfg, secret)
	m := metrics.NewMetrics("ttvsnap")

	imageFetcher := fetcher.New(fetcher.Options{
		OutputDir: cfg.OutputDir,
		DaySubdir: cfg.Subdir,
		HTTPClient: transport.NewClient(transport.Options{
			Timeout:     cfg.Twitch.Timeout,
			UserAgent:   UserAgent(),
			UTLS:        cfg.Twitch.UTLS,
			NoRedirects: true,
		}),
	})

	a := &app{metrics: m, tokens: tokens}

	var (
		sinks  []grabber.Sink
		alerts grabber.Alerter
	)
	switch {
	case cfg.Journal.Path != "":
		journal, err := store.NewSQLiteStoreWithRetention(cfg.Journal.Path, cfg.Journal.RetentionDays, logger)
		if err != nil {
			return nil, err
		}
		a.journal = journal
	case cfg.Server.Listen != "":
		a.journal = store.NewMemoryStoreWithLimit(memoryJournalLimit)
	}
	if a.journal != nil {
		sinks = append(sinks, store.NewJournalSink(a.journal))
	}

	if cfg.Telegram.Enabled {
		bot, err := telegram.NewTGBotAPIClient(cfg.Telegram.BotToken)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("telegram: %w", err)
		}
		sinks = append(sinks, telegram.NewNotifier(bot, cfg.Telegram.ChatID, cfg.Telegram.EveryCapture))
		alerts = telegram.NewAlerter(bot, cfg.Telegram.ChatID)
	}

	if cfg.S3.Enabled {
		mirrorSink, err := mirror.New(ctx, mirror.Config{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			BaseDir:         cfg.OutputDir,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		sinks = append(sinks, mirrorSink)
	}

	deps := grabber.Deps{
		Auth:    twitch.NewAuthClient(tc),
		Poller:  twitch.NewStreamPoller(tc, cfg.Channel),
		Fetcher: imageFetcher,
		Tokens:  tokens,
		Sinks:   sinks,
		Alerts:  alerts,
		Logger:  logger.With("channel", cfg.Channel),
		Metrics: m,
	}
	if changes, err := tokens.Watch(ctx); err != nil {
		logger.Warn("not watching token cache", "path", tokens.Path(), "error", err)
	} else {
		deps.TokenChanges = changes
	}
	if cfg.Thumbnail.Enabled {
		deps.Thumbnailer = thumbnail.New(cfg.Thumbnail.Command, cfg.Thumbnail.Geometry)
	}

	a.grabber = grabber.New(deps, grabber.Config{
		Interval: cfg.Interval,
		Backoff:  cfg.ErrorBackoff,
	})
	return a, nil
}
