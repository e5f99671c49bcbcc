package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/ttvsnap/ttvsnap/internal/errors"
	"github.com/ttvsnap/ttvsnap/internal/models"
	"github.com/ttvsnap/ttvsnap/internal/store"
)

// capturesCmd represents the captures command
var capturesCmd = &cobra.Command{
	Use:     "captures",
	Aliases: []string{"ls"},
	Short:   "List captures recorded in the journal",
	Long: `List captures recorded by "ttvsnap grab --index-db", newest first.

Examples:
  # Last 20 captures
  ttvsnap captures --index-db ./captures.db

  # Last 5 captures of one channel as JSON
  ttvsnap captures --index-db ./captures.db --channel somechannel --limit 5 --json`,
	Args: cobra.NoArgs,
	RunE: runCaptures,
}

var capturesFlags struct {
	IndexDB string
	Channel string
	Limit   int
}

func init() {
	capturesCmd.Flags().StringVar(&capturesFlags.IndexDB, "index-db", "", "SQLite capture journal path")
	capturesCmd.Flags().StringVar(&capturesFlags.Channel, "channel", "", "Only show captures of this channel")
	capturesCmd.Flags().IntVar(&capturesFlags.Limit, "limit", 20, "Maximum number of captures to show (0 for all)")

	RootCmd.AddCommand(capturesCmd)
}

func runCaptures(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("index-db") {
		cfg.Journal.Path = capturesFlags.IndexDB
	}
	if cfg.Journal.Path == "" {
		return &errors.ErrConfigValidation{Err: fmt.Errorf("no capture journal configured (use --index-db)")}
	}

	journal, err := store.NewSQLiteStore(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer journal.Close()

	list, err := journal.List(cmd.Context(), capturesFlags.Channel, capturesFlags.Limit)
	if err != nil {
		return err
	}

	if globalFlags.JSON {
		if list == nil {
			list = []*models.Capture{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	return outputCapturesTable(cmd.OutOrStdout(), list)
}

func outputCapturesTable(w io.Writer, list []*models.Capture) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No captures recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCHANNEL\tCAPTURED AT\tSIZE\tPATH")
	for _, c := range list {
		path := c.Path
		if c.FirstOfSession {
			path += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			c.ID,
			c.Channel,
			c.CapturedAt.UTC().Format(time.RFC3339),
			c.SizeBytes,
			path,
		)
	}
	return tw.Flush()
}
