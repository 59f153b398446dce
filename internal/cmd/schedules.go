package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "List schedule rules",
	RunE:  runSchedules,
}

func init() {
	rootCmd.AddCommand(schedulesCmd)
}

func runSchedules(cmd *cobra.Command, args []string) error {
	a, err := buildApp(appConfig, nil)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build service", err)
	}

	rules, err := a.schedules.LoadRules()
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Failed to load schedules", err)
	}
	if len(rules) == 0 {
		fmt.Println("no schedules")
		return nil
	}

	for _, r := range rules {
		state := "active"
		if r.Paused {
			state = "paused"
		}
		mode := "invalid"
		switch {
		case r.Custom != nil:
			mode = fmt.Sprintf("%s %d of %s", r.Custom.Kind, r.Custom.X, r.Custom.Period)
		case len(r.Weekdays) > 0:
			mode = strings.Join(r.Weekdays, ",")
		}
		fmt.Printf("%-36s  job=%-10s  %s %s  [%s]  %s\n", r.ID, r.JobID, mode, r.Time, r.Timezone, state)
	}
	return nil
}
