package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lakeferry/lakeferry/internal/config"
	"github.com/lakeferry/lakeferry/internal/observability"
	"github.com/lakeferry/lakeferry/pkg/copydispatch"
	"github.com/lakeferry/lakeferry/pkg/expreval"
	"github.com/lakeferry/lakeferry/pkg/jobstore"
	"github.com/lakeferry/lakeferry/pkg/runhistory"
	"github.com/lakeferry/lakeferry/pkg/runner"
	"github.com/lakeferry/lakeferry/pkg/schedule"
)

// app holds the wired object graph shared by the serve and run commands.
type app struct {
	cfg       *config.Config
	store     *jobstore.Store
	history   *runhistory.Store
	schedules *schedule.Store
	orch      *runner.Orchestrator
	log       *zap.Logger
}

func buildApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	store := jobstore.NewStore(cfg.DataDir)
	history := runhistory.NewStore(cfg.DataDir, cfg.HistoryCapacity)
	schedules := schedule.NewStore(cfg.DataDir)

	var holidays schedule.HolidayCalendar
	if cfg.HolidayCalendar != "" {
		cal, err := schedule.LoadCalendar(cfg.HolidayCalendar)
		if err != nil {
			return nil, fmt.Errorf("load holiday calendar: %w", err)
		}
		holidays = cal
	}

	clock := expreval.SystemClock{}
	orch := runner.New(runner.Config{
		Store:      store,
		History:    history,
		Dispatcher: copydispatch.New(store, cfg.Cloud.AuthTimeout),
		Rules:      schedules,
		Resolver:   schedule.NewResolver(holidays),
		Evaluator:  &expreval.Evaluator{Clock: clock},
		Clock:      clock,
		Logger:     observability.ServerLogger,
	})

	return &app{
		cfg:       cfg,
		store:     store,
		history:   history,
		schedules: schedules,
		orch:      orch,
		log:       log,
	}, nil
}
