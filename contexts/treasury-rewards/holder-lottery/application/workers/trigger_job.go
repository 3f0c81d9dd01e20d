package workers

import (
	"context"
	"log/slog"

	application "holderdrop/contexts/treasury-rewards/holder-lottery/application"
	"holderdrop/contexts/treasury-rewards/holder-lottery/application/commands"
)

// TriggerJob is one periodic caller of the distribution. Any number of
// callers may run it; repeated runs inside a window resolve to Skipped.
type TriggerJob struct {
	Commands commands.UseCase
	Logger   *slog.Logger
}

func (j TriggerJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	result, err := j.Commands.Distribute(ctx)
	if err != nil {
		logger.Error("holder lottery trigger cycle failed",
			"event", "holder_lottery_trigger_cycle_failed",
			"module", "treasury-rewards/holder-lottery",
			"layer", "worker",
			"window_id", result.Window.WindowID,
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("holder lottery trigger cycle succeeded",
		"event", "holder_lottery_trigger_cycle_succeeded",
		"module", "treasury-rewards/holder-lottery",
		"layer", "worker",
		"window_id", result.Window.WindowID,
		"skipped", result.Skipped,
		"deferred", result.Deferred,
	)
	return nil
}
