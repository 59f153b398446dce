package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print a job's run history",
	Long: `Print a job's run history as JSON: the live segment by default, or
one archive segment with --archive.

Examples:
  lakeferry history --job 42
  lakeferry history --job 42 --archive 2
  lakeferry history --job 42 --list-archives`,
	RunE: runHistory,
}

var (
	historyJobID   string
	historyArchive int
	historyList    bool
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVarP(&historyJobID, "job", "j", "", "Job id (required)")
	historyCmd.Flags().IntVar(&historyArchive, "archive", 0, "Archive segment index (0 = live segment)")
	historyCmd.Flags().BoolVar(&historyList, "list-archives", false, "List archive segment indices instead")
	_ = historyCmd.MarkFlagRequired("job")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := buildApp(appConfig, nil)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build service", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if historyList {
		indices, err := a.orch.ListArchives(historyJobID)
		if err != nil {
			return exitError(foundry.ExitFileNotFound, "Failed to list archives", err)
		}
		return enc.Encode(indices)
	}

	records, err := a.orch.GetHistory(historyJobID, historyArchive)
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Failed to read run history", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no run history")
		return nil
	}
	return enc.Encode(records)
}
