package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ardeaf/redelete/internal/config"
	"github.com/ardeaf/redelete/internal/filter"
	"github.com/ardeaf/redelete/internal/reddit"
)

var runCmd = &cobra.Command{
	Use:   "run <username>",
	Short: "Fetch and delete matching comments and submissions",
	Long: `Fetches the account's full comment and submission history, applies
the saved filters, and deletes whatever matches. With --dry-run the matching
records are only printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var dryRun bool

func init() {
	runCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false,
		"print the records that would be deleted without deleting them")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	username := args[0]

	account, err := store.Account(username)
	if err != nil {
		if errors.Is(err, config.ErrAccountNotFound) {
			cmd.Printf("%s is not a saved username in your config. Try authorizing that username first.\n", username)
			return nil
		}
		return err
	}

	client := reddit.NewClient(store, username)
	records, err := fetchAll(cmd, client)
	if err != nil {
		return err
	}

	var matched []reddit.DeletionInfo
	for _, record := range records {
		if filter.ShouldDelete(account, record) {
			matched = append(matched, record)
		}
	}

	if len(matched) == 0 {
		cmd.Println("No comments or submissions to delete.")
		return nil
	}

	cmd.Println("Comments/submissions to delete:")
	for _, record := range matched {
		printRecord(cmd, record)
	}

	if dryRun {
		cmd.Printf("Dry run: %d records would be deleted.\n", len(matched))
		return nil
	}

	if !confirmDeletion(cmd, len(matched)) {
		cmd.Println("Aborted.")
		return nil
	}

	for _, record := range matched {
		if err := client.Delete(cmd.Context(), record.Name); err != nil {
			return err
		}
	}
	cmd.Printf("Deleted %d records.\n", len(matched))
	return nil
}

// fetchAll gathers comments and submissions concurrently.
func fetchAll(cmd *cobra.Command, client *reddit.Client) ([]reddit.DeletionInfo, error) {
	type fetchResult struct {
		records []reddit.DeletionInfo
		err     error
	}

	comments := make(chan fetchResult, 1)
	posts := make(chan fetchResult, 1)
	go func() {
		records, err := client.Comments(cmd.Context())
		comments <- fetchResult{records: records, err: err}
	}()
	go func() {
		records, err := client.Posts(cmd.Context())
		posts <- fetchResult{records: records, err: err}
	}()

	commentResult, postResult := <-comments, <-posts
	if commentResult.err != nil {
		return nil, fmt.Errorf("fetch comments: %w", commentResult.err)
	}
	if postResult.err != nil {
		return nil, fmt.Errorf("fetch submissions: %w", postResult.err)
	}
	return append(commentResult.records, postResult.records...), nil
}

func printRecord(cmd *cobra.Command, record reddit.DeletionInfo) {
	switch record.Kind {
	case reddit.KindComment:
		cmd.Printf("comment @ /r/%s:\n%s\n\n", record.Subreddit, record.Body)
	case reddit.KindPost:
		cmd.Printf("submission @ /r/%s:\n%s\n", record.Subreddit, record.Title)
		if record.Selftext != "" {
			cmd.Println(record.Selftext)
		}
		if record.URL != "" {
			cmd.Println(record.URL)
		}
		cmd.Println()
	}
}

// confirmDeletion prompts before deleting when attached to a terminal.
// Non-interactive runs proceed without a prompt.
func confirmDeletion(cmd *cobra.Command, count int) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}

	cmd.Printf("Delete %d records? This cannot be undone. [y/N]: ", count)
	reader := bufio.NewReader(cmd.InOrStdin())
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}
