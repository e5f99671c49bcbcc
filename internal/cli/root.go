package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/ttvsnap/ttvsnap/internal/config"
	"github.com/ttvsnap/ttvsnap/internal/logging"
)

// Version is stamped at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "0.4.0"

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config   string
	EnvFile  string
	LogLevel string
	Verbose  bool
	JSON     bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "ttvsnap",
	Short: "ttvsnap - Twitch stream preview snapshot grabber",
	Long: `ttvsnap watches one Twitch channel and saves a copy of its live preview
image every time the image changes.

Usage:
  ttvsnap [command] [flags]

Available Commands:
  grab       Poll a channel and save preview snapshots (main mode)
  token      Exchange client credentials and cache the access token
  check      Validate configuration, credentials and tools
  captures   List captures recorded in the journal
  version    Print version information

Use "ttvsnap [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var globalFlags GlobalFlags

// InitRoot initializes the root command with global flags
func InitRoot() {
	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", "", "Path to configuration file (default $"+config.EnvConfigPath+")")
	RootCmd.PersistentFlags().StringVar(&globalFlags.EnvFile, "env-file", ".env", "Path to .env file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable debug logging")
	RootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format")

	RootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ttvsnap",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd)
	},
}

func printVersion(cmd *cobra.Command) {
	info := GetVersionInfo()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, UserAgent())
	fmt.Fprintln(out, "Go Version:", info.GoVersion)
	fmt.Fprintln(out, "OS/Arch:", info.OS+"/"+info.Arch)
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// UserAgent is sent on every outgoing request.
func UserAgent() string {
	return "ttvsnap/" + Version
}

// loadConfig merges defaults, the optional config file and the environment.
// Without --config the file comes from TTVSNAP_CONFIG_PATH, which .env may set.
// Command flags are applied by the caller on top.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(globalFlags.EnvFile); err != nil {
		return nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if globalFlags.Config != "" {
		cfg, err = config.Load(globalFlags.Config)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(cfg)

	if globalFlags.LogLevel != "" {
		cfg.Log.Level = globalFlags.LogLevel
	}
	if globalFlags.Verbose {
		cfg.Log.Level = string(logging.LevelDebug)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(logging.WithLevel(level))
}
