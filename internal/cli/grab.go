package cli

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ttvsnap/ttvsnap/internal/api"
	"github.com/ttvsnap/ttvsnap/internal/config"
	"github.com/ttvsnap/ttvsnap/internal/errors"
	"github.com/ttvsnap/ttvsnap/internal/thumbnail"
	"golang.org/x/sync/errgroup"
)

// grabCmd represents the grab command
var grabCmd = &cobra.Command{
	Use:   "grab <channel> <output_dir>",
	Short: "Poll a channel and save preview snapshots",
	Long: `Poll a Twitch channel and save its live preview image whenever it changes.

Files are named after the image's capture time in UTC
(YYYY-MM-DD_HH-MM-SS.<ext>), optionally inside a per-day directory.
The loop runs until interrupted.

Examples:
  # Poll every 5 minutes
  ttvsnap grab somechannel ./snaps --client-id abc --client-secret-file ./secret

  # Poll every 2 minutes, one directory per day, with thumbnails
  ttvsnap grab somechannel ./snaps --interval 120 --subdir --thumbnail

  # Expose /health, /status and /metrics and keep a capture journal
  ttvsnap grab somechannel ./snaps --listen :9100 --index-db ./captures.db`,
	Args: cobra.ExactArgs(2),
	RunE: runGrab,
}

var grabFlags struct {
	Interval         int
	Subdir           bool
	Thumbnail        bool
	ClientID         string
	ClientSecretFile string
	CacheDir         string
	Listen           string
	IndexDB          string
	NotifyEvery      bool
}

func init() {
	f := grabCmd.Flags()
	f.IntVar(&grabFlags.Interval, "interval", int(config.DefaultInterval/time.Second), "Seconds between polls (minimum 60)")
	f.BoolVar(&grabFlags.Subdir, "subdir", false, "Save into a YYYY-MM-DD subdirectory")
	f.BoolVar(&grabFlags.Thumbnail, "thumbnail", false, "Generate a thumbnail next to each capture")
	f.StringVar(&grabFlags.ClientID, "client-id", "", "Twitch application client ID")
	f.StringVar(&grabFlags.ClientSecretFile, "client-secret-file", "", "File containing the Twitch client secret")
	f.StringVar(&grabFlags.CacheDir, "cache-dir", "", "Directory for the cached access token")
	f.StringVar(&grabFlags.Listen, "listen", "", "Address for the status server (disabled when empty)")
	f.StringVar(&grabFlags.IndexDB, "index-db", "", "SQLite capture journal path (disabled when empty)")
	f.BoolVar(&grabFlags.NotifyEvery, "notify-every", false, "Send a Telegram message for every capture, not only the first of a session")

	RootCmd.AddCommand(grabCmd)
}

// applyGrabFlags copies explicitly set flags over cfg.
func applyGrabFlags(cmd *cobra.Command, args []string, cfg *config.Config) {
	cfg.Channel = args[0]
	cfg.OutputDir = args[1]

	f := cmd.Flags()
	if f.Changed("interval") {
		cfg.Interval = time.Duration(grabFlags.Interval) * time.Second
	}
	if f.Changed("subdir") {
		cfg.Subdir = grabFlags.Subdir
	}
	if f.Changed("thumbnail") {
		cfg.Thumbnail.Enabled = grabFlags.Thumbnail
	}
	if f.Changed("client-id") {
		cfg.Twitch.ClientID = grabFlags.ClientID
	}
	if f.Changed("client-secret-file") {
		cfg.Twitch.ClientSecretFile = grabFlags.ClientSecretFile
	}
	if f.Changed("cache-dir") {
		cfg.CacheDir = grabFlags.CacheDir
	}
	if f.Changed("listen") {
		cfg.Server.Listen = grabFlags.Listen
	}
	if f.Changed("index-db") {
		cfg.Journal.Path = grabFlags.IndexDB
	}
	if f.Changed("notify-every") {
		cfg.Telegram.EveryCapture = grabFlags.NotifyEvery
	}
}

func runGrab(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyGrabFlags(cmd, args, cfg)

	if err := cfg.Validate(); err != nil {
		return &errors.ErrConfigValidation{Err: err}
	}
	secret, err := config.ReadClientSecret(cfg.Twitch.ClientSecretFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Thumbnail.Enabled {
		if err := thumbnail.New(cfg.Thumbnail.Command, cfg.Thumbnail.Geometry).CheckAvailable(ctx); err != nil {
			return &errors.ErrConfigValidation{Err: err}
		}
	}

	a, err := buildApp(ctx, cfg, secret, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close capture journal", "error", err)
		}
	}()

	logger.Info("starting grabber",
		"channel", cfg.Channel,
		"output_dir", cfg.OutputDir,
		"interval_seconds", cfg.Interval.Seconds(),
		"subdir", cfg.Subdir,
		"thumbnail", cfg.Thumbnail.Enabled,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.grabber.Run(gctx)
	})

	if cfg.Server.Listen != "" {
		srv := api.NewServer(a.grabber, a.journal, a.metrics, logger, cfg.Server.ShutdownTimeout)
		g.Go(func() error {
			return srv.Serve(gctx, cfg.Server.Listen)
		})
	}

	err = g.Wait()
	if stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("grabber stopped")
		return nil
	}
	return err
}
