package cli

import (
	stderrors "errors"
	"fmt"
	"os"
	"sync"

	"github.com/ttvsnap/ttvsnap/internal/errors"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitConfig    = 2
	ExitThumbnail = 3
)

var initOnce sync.Once

// InitCLI registers the global flags. Subcommands register themselves in init().
func InitCLI() {
	initOnce.Do(InitRoot)
}

// IsCLIInitialized reports whether InitCLI has run.
func IsCLIInitialized() bool {
	return RootCmd.PersistentFlags().Lookup("config") != nil
}

// Execute runs the root command with args and returns its error unchanged.
func Execute(args []string) error {
	RootCmd.SetArgs(args)
	return RootCmd.Execute()
}

// ExecuteWithErrorCode runs the root command, prints any error to stderr
// and maps it to a process exit code.
func ExecuteWithErrorCode(args []string) int {
	err := Execute(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode classifies err. Configuration problems and a broken thumbnail
// tool get their own codes so wrappers can tell them from runtime failures.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		validation *errors.ErrConfigValidation
		notFound   *errors.ErrConfigNotFound
		parse      *errors.ErrConfigParse
		thumb      *errors.ErrThumbnail
	)
	switch {
	case stderrors.As(err, &validation), stderrors.As(err, &notFound), stderrors.As(err, &parse):
		return ExitConfig
	case stderrors.As(err, &thumb):
		return ExitThumbnail
	default:
		return ExitFailure
	}
}
