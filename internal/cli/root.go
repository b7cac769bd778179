// Package cli implements the cobra command surface: authorize, config,
// view, and run.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ardeaf/redelete/internal/config"
	"github.com/ardeaf/redelete/internal/logger"
)

var (
	// version is set by goreleaser ldflags.
	version = "dev"

	// verbose enables debug logging.
	verbose bool

	// store is the injected account store used by all commands.
	store *config.Store
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "redelete",
	Short: "Deletes your reddit comments and submissions",
	Long: `Redelete authorizes against your reddit account and deletes your
historical comments and submissions, subject to per-account filter rules
(minimum score, age, excluded subreddits).`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// SetStore injects the account store used by all commands.
func SetStore(s *config.Store) {
	store = s
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")

	// Use PersistentPreRunE to set verbose mode before any command executes
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return nil
	}
}
