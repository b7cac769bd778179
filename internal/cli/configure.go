package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ardeaf/redelete/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config <username>",
	Short: "Set filter options for an account",
	Long: `Set default filter options for an authorized account.

Filters prevent deletion: records younger than --max-hours, scoring above
--min-score, or posted in an excluded subreddit are kept. Set a numeric
filter to 0 to remove it.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfig,
}

var viewCmd = &cobra.Command{
	Use:   "view <username>",
	Short: "View saved filter settings for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

// Flags for config.
var (
	minScore       int
	maxHours       int
	addExcluded    []string
	removeExcluded []string
)

func init() {
	configCmd.Flags().IntVarP(&minScore, "min-score", "s", 0,
		"keep records scoring above this value (0 removes the filter)")
	configCmd.Flags().IntVarP(&maxHours, "max-hours", "t", 0,
		"keep records made within this many hours (0 removes the filter)")
	configCmd.Flags().StringArrayVarP(&addExcluded, "add-excluded", "a", nil,
		"add subreddits to the exclusion list")
	configCmd.Flags().StringArrayVarP(&removeExcluded, "remove-excluded", "r", nil,
		"remove subreddits from the exclusion list")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(viewCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	username := args[0]
	changed := false

	if cmd.Flags().Changed("min-score") {
		if err := store.SetMinimumScore(username, minScore); err != nil {
			return err
		}
		if minScore > 0 {
			cmd.Printf("Set minimum score to %d\n", minScore)
		} else {
			cmd.Println("Removed minimum score filter.")
		}
		changed = true
	}
	if cmd.Flags().Changed("max-hours") {
		if err := store.SetMaxHours(username, maxHours); err != nil {
			return err
		}
		if maxHours > 0 {
			cmd.Printf("Set max hours to %d\n", maxHours)
		} else {
			cmd.Println("Removed max hours filter.")
		}
		changed = true
	}
	if len(addExcluded) > 0 {
		if err := store.AddExcludedSubreddits(username, addExcluded...); err != nil {
			return err
		}
		changed = true
	}
	if len(removeExcluded) > 0 {
		if err := store.RemoveExcludedSubreddits(username, removeExcluded...); err != nil {
			return err
		}
		changed = true
	}

	if !changed {
		return errors.New("no filter options given, see --help")
	}
	return nil
}

func runView(cmd *cobra.Command, args []string) error {
	account, err := store.Account(args[0])
	if err != nil {
		if errors.Is(err, config.ErrAccountNotFound) {
			cmd.Println("Unable to find that username. Did you authorize this app with that reddit account yet?")
			return nil
		}
		return err
	}

	cmd.Printf("Settings for: %s\n", account.Username)
	if len(account.ExcludedSubreddits) > 0 {
		cmd.Printf("Excluded subreddits: %s\n", strings.Join(account.ExcludedSubreddits, ", "))
	} else {
		cmd.Println("Not excluding any subreddits.")
	}
	if account.MaxHours != nil {
		plural := "s"
		if *account.MaxHours == 1 {
			plural = ""
		}
		cmd.Printf("Not deleting any records made within %d hour%s.\n", *account.MaxHours, plural)
	} else {
		cmd.Println("No time minimum before deleting records.")
	}
	if account.MinimumScore != nil {
		cmd.Printf("Only deleting records with a score of %d or less.\n", *account.MinimumScore)
	} else {
		cmd.Println("No score limit set.")
	}
	return nil
}
