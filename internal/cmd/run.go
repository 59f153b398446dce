package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lakeferry/lakeferry/internal/observability"
	"github.com/lakeferry/lakeferry/pkg/runhistory"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a job once and print the result",
	Long: `Run a copy job immediately as a manual trigger. If the job has time
travel enabled, the whole date range is replayed.

Examples:
  lakeferry run --job 42
  lakeferry run --job 42 --config lakeferry.yaml`,
	RunE: runRun,
}

var runJobID string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runJobID, "job", "j", "", "Job id to run (required)")
	_ = runCmd.MarkFlagRequired("job")
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := buildApp(appConfig, observability.CLILogger)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build service", err)
	}

	record, err := a.orch.RunJob(cmd.Context(), runJobID, runhistory.TriggerManual, "")
	if err != nil {
		observability.CLILogger.Error("Run failed to record", zap.String("job_id", runJobID), zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to record run result", err)
	}

	fmt.Printf("Run:     %s\n", record.RunID)
	fmt.Printf("Status:  %s\n", record.Status)
	fmt.Printf("Message: %s\n", record.Message)
	for _, dr := range record.DateRuns {
		fmt.Printf("  %s  %-7s  %d copied  %s\n", dr.Date, dr.Status, len(dr.CopiedFiles), dr.Message)
	}
	if record.Status != runhistory.StatusSuccess {
		return exitError(foundry.ExitExternalServiceUnavailable, "Job run failed", fmt.Errorf("%s", record.Message))
	}
	return nil
}
