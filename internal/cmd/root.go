// Package cmd implements the lakeferry CLI.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakeferry/lakeferry/internal/config"
	"github.com/lakeferry/lakeferry/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "lakeferry",
	Short: "Scheduled file-copy job engine",
	Long: `lakeferry runs parameterized file-copy jobs across local folders,
mounted SMB shares, and cloud object storage, on fixed or business-day
recurrence rules, and keeps a bounded, archived run history per job.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appConfig, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			appConfig.Logging.Level = logLevel
		}
		return observability.Init(appConfig.Logging.Level, appConfig.Logging.Console)
	},
}

var (
	configPath string
	logLevel   string

	appConfig *config.Config
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected via ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
}

// Execute runs the CLI.
func Execute() error {
	defer observability.Sync()
	return rootCmd.Execute()
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}
