package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ttvsnap/ttvsnap/internal/config"
	"github.com/ttvsnap/ttvsnap/internal/credentials"
	"github.com/ttvsnap/ttvsnap/internal/errors"
	"github.com/ttvsnap/ttvsnap/internal/twitch"
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Exchange client credentials and cache the access token",
	Long: `Request a new app access token with the client credentials grant and
write it to the token cache used by "ttvsnap grab".

The token itself is never printed.

Example:
  ttvsnap token --client-id abc --client-secret-file ./secret`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

var tokenFlags struct {
	ClientID         string
	ClientSecretFile string
	CacheDir         string
}

func init() {
	tokenCmd.Flags().StringVar(&tokenFlags.ClientID, "client-id", "", "Twitch application client ID")
	tokenCmd.Flags().StringVar(&tokenFlags.ClientSecretFile, "client-secret-file", "", "File containing the Twitch client secret")
	tokenCmd.Flags().StringVar(&tokenFlags.CacheDir, "cache-dir", "", "Directory for the cached access token")

	RootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("client-id") {
		cfg.Twitch.ClientID = tokenFlags.ClientID
	}
	if cmd.Flags().Changed("client-secret-file") {
		cfg.Twitch.ClientSecretFile = tokenFlags.ClientSecretFile
	}
	if cmd.Flags().Changed("cache-dir") {
		cfg.CacheDir = tokenFlags.CacheDir
	}

	if err := cfg.Twitch.Validate(); err != nil {
		return &errors.ErrConfigValidation{Err: err}
	}
	if strings.TrimSpace(cfg.CacheDir) == "" {
		return &errors.ErrConfigValidation{Err: fmt.Errorf("cache_dir is required")}
	}
	secret, err := config.ReadClientSecret(cfg.Twitch.ClientSecretFile)
	if err != nil {
		return err
	}

	tokens, err := credentials.NewFileStore(cfg.CacheDir)
	if err != nil {
		return err
	}

	token, err := twitch.NewAuthClient(twitchConfig(cfg, secret)).Exchange(cmd.Context())
	if err != nil {
		return err
	}
	if err := tokens.Save(token); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "access token written to %s\n", tokens.Path())
	return nil
}
