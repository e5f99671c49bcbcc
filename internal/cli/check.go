package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/ttvsnap/ttvsnap/internal/config"
	"github.com/ttvsnap/ttvsnap/internal/credentials"
	"github.com/ttvsnap/ttvsnap/internal/store"
	"github.com/ttvsnap/ttvsnap/internal/thumbnail"
	"github.com/ttvsnap/ttvsnap/internal/twitch"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [channel output_dir]",
	Short: "Validate configuration, credentials and tools",
	Long: `Run the startup validations of "ttvsnap grab" without starting the loop.

This command checks:
- Configuration validity (channel and output directory when given)
- Client secret file
- Token cache and whether the cached token is accepted by Twitch
- Thumbnail tool, when thumbnails are enabled
- Capture journal, when configured

Example:
  ttvsnap check somechannel ./snaps --config ttvsnap.yaml`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("accepts 0 or 2 args, received %d", len(args))
		}
		return nil
	},
	RunE: runCheck,
}

func init() {
	RootCmd.AddCommand(checkCmd)
}

// CheckResult represents the result of a single check
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

const (
	statusOK      = "OK"
	statusWarning = "WARNING"
	statusFail    = "FAIL"
)

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return outputCheckResults(cmd.OutOrStdout(), []CheckResult{{
			Name:    "Configuration",
			Status:  statusFail,
			Message: fmt.Sprintf("Failed to load configuration: %v", err),
		}})
	}
	if len(args) == 2 {
		cfg.Channel = args[0]
		cfg.OutputDir = args[1]
	}

	results := []CheckResult{checkConfig(cfg, len(args) == 2)}

	secretResult, secret := checkSecret(cfg)
	results = append(results, secretResult)
	results = append(results, checkToken(cmd.Context(), cfg, secret))

	if cfg.Thumbnail.Enabled {
		results = append(results, checkThumbnail(cmd.Context(), cfg))
	}
	if cfg.Journal.Path != "" {
		results = append(results, checkJournal(cmd.Context(), cfg))
	}

	return outputCheckResults(cmd.OutOrStdout(), results)
}

func checkConfig(cfg *config.Config, full bool) CheckResult {
	result := CheckResult{Name: "Configuration", Status: statusOK}

	var err error
	if full {
		err = cfg.Validate()
	} else {
		err = cfg.Twitch.Validate()
	}
	if err != nil {
		result.Status = statusFail
		result.Message = fmt.Sprintf("Configuration validation failed: %v", err)
		return result
	}

	if full {
		result.Message = fmt.Sprintf("Channel %s, output %s", cfg.Channel, cfg.OutputDir)
		result.Details = fmt.Sprintf("interval=%s subdir=%t thumbnail=%t", cfg.Interval, cfg.Subdir, cfg.Thumbnail.Enabled)
	} else {
		result.Message = "Twitch settings valid (no channel given)"
	}
	return result
}

func checkSecret(cfg *config.Config) (CheckResult, string) {
	result := CheckResult{Name: "Client secret", Status: statusOK}

	if cfg.Twitch.ClientSecretFile == "" {
		result.Status = statusFail
		result.Message = "No client secret file configured"
		return result, ""
	}

	secret, err := config.ReadClientSecret(cfg.Twitch.ClientSecretFile)
	if err != nil {
		result.Status = statusFail
		result.Message = err.Error()
		return result, ""
	}

	result.Message = fmt.Sprintf("Read from %s", cfg.Twitch.ClientSecretFile)
	return result, secret
}

func checkToken(ctx context.Context, cfg *config.Config, secret string) CheckResult {
	result := CheckResult{Name: "Access token", Status: statusOK}

	tokens, err := credentials.NewFileStore(cfg.CacheDir)
	if err != nil {
		result.Status = statusFail
		result.Message = err.Error()
		return result
	}
	result.Details = tokens.Path()

	token, ok, err := tokens.Load()
	switch {
	case err != nil:
		result.Status = statusFail
		result.Message = err.Error()
		return result
	case !ok:
		result.Status = statusWarning
		result.Message = "No cached token; one will be requested at startup"
		return result
	}

	if cfg.Twitch.ClientID == "" {
		result.Status = statusWarning
		result.Message = "Cached token present, not validated without a client ID"
		return result
	}

	valid, err := twitch.NewAuthClient(twitchConfig(cfg, secret)).Validate(ctx, token)
	switch {
	case err != nil:
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Could not validate cached token: %v", err)
	case !valid:
		result.Status = statusWarning
		result.Message = "Cached token was rejected; it will be replaced at startup"
	default:
		result.Message = "Cached token accepted"
	}
	return result
}

func checkThumbnail(ctx context.Context, cfg *config.Config) CheckResult {
	result := CheckResult{Name: "Thumbnail tool", Status: statusOK}

	gen := thumbnail.New(cfg.Thumbnail.Command, cfg.Thumbnail.Geometry)
	if err := gen.CheckAvailable(ctx); err != nil {
		result.Status = statusFail
		result.Message = err.Error()
		return result
	}

	result.Message = fmt.Sprintf("%s is available", gen.Command)
	return result
}

func checkJournal(ctx context.Context, cfg *config.Config) CheckResult {
	result := CheckResult{Name: "Capture journal", Status: statusOK}

	journal, err := store.NewSQLiteStore(cfg.Journal.Path)
	if err != nil {
		result.Status = statusFail
		result.Message = fmt.Sprintf("Failed to open journal: %v", err)
		return result
	}
	defer journal.Close()

	count, err := journal.Count(ctx, "")
	if err != nil {
		result.Status = statusFail
		result.Message = err.Error()
		return result
	}

	result.Message = fmt.Sprintf("%d captures recorded", count)
	result.Details = cfg.Journal.Path
	return result
}

func outputCheckResults(w io.Writer, results []CheckResult) error {
	if globalFlags.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return checkFailure(results)
	}
	return outputCheckResultsTable(w, results)
}

func checkFailure(results []CheckResult) error {
	for _, r := range results {
		if r.Status == statusFail {
			return fmt.Errorf("check failed")
		}
	}
	return nil
}

func outputCheckResultsTable(w io.Writer, results []CheckResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tMESSAGE\tDETAILS")

	for _, r := range results {
		statusIcon := "✓"
		if r.Status == statusFail {
			statusIcon = "✗"
		} else if r.Status == statusWarning {
			statusIcon = "!"
		}

		details := r.Details
		if details == "" {
			details = "-"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, statusIcon+" "+r.Status, r.Message, details)
	}

	if err := tw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing tabwriter: %v\n", err)
	}

	fmt.Fprintln(w)
	if err := checkFailure(results); err != nil {
		fmt.Fprintln(w, "✗ Some checks failed. Please review the output above.")
		return err
	}
	fmt.Fprintln(w, "✓ All checks passed!")
	return nil
}
