// Package observability owns logger construction for the CLI and server
// surfaces.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is used by command implementations. Defaults to a nop logger
// until Init runs so early failures never panic on a nil logger.
var CLILogger = zap.NewNop()

// ServerLogger is used by the HTTP surface and background services.
var ServerLogger = zap.NewNop()

// Init builds the process loggers. level is a zap level name; console
// selects human-readable output instead of JSON.
func Init(level string, console bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if console {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	base, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	CLILogger = base.Named("cli")
	ServerLogger = base.Named("server")
	return nil
}

// Sync flushes buffered log entries. Safe to call on nop loggers.
func Sync() {
	_ = CLILogger.Sync()
	_ = ServerLogger.Sync()
}
