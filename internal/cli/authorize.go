package cli

import (
	"github.com/spf13/cobra"

	"github.com/ardeaf/redelete/internal/reddit"
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Authorize this application with your reddit account",
	Long: `Opens a browser to reddit's authorization page and captures the
redirect on a local port. The resulting token is saved so the run command
can act on the account later.`,
	Args: cobra.NoArgs,
	RunE: runAuthorize,
}

func init() {
	rootCmd.AddCommand(authorizeCmd)
}

func runAuthorize(cmd *cobra.Command, _ []string) error {
	authorizer := reddit.NewAuthorizer(store)
	username, err := authorizer.Authorize(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Authorized account %s\n", username)
	return nil
}
