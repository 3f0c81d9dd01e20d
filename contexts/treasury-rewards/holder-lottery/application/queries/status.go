package queries

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "holderdrop/contexts/treasury-rewards/holder-lottery/application"
	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/services"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"
)

const defaultHistoryLimit = 20

type Status struct {
	Window          entities.WindowTiming
	CurrentRecorded bool
	CurrentRecord   *entities.DistributionRecord
	History         []entities.DistributionRecord
}

// UseCase answers what happened in recent windows. It never triggers a
// distribution.
type UseCase struct {
	Records        ports.RecordRepository
	Clock          ports.Clock
	WindowDuration time.Duration
	HistoryLimit   int
	Logger         *slog.Logger
}

func (uc UseCase) Status(ctx context.Context) (Status, error) {
	logger := application.ResolveLogger(uc.Logger)
	window := services.CurrentWindow(uc.now(), uc.WindowDuration)
	status := Status{Window: window}

	record, err := uc.Records.GetRecordByWindow(ctx, window.WindowID)
	switch {
	case err == nil:
		status.CurrentRecorded = true
		status.CurrentRecord = &record
	case errors.Is(err, domainerrors.ErrRecordNotFound):
	default:
		logger.Warn("distribution status window lookup failed",
			"event", "holder_lottery_query_window_lookup_failed",
			"module", "treasury-rewards/holder-lottery",
			"layer", "application",
			"window_id", window.WindowID,
			"error", err.Error(),
		)
		return Status{Window: window}, err
	}

	limit := uc.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	history, err := uc.Records.ListRecentRecords(ctx, limit)
	if err != nil {
		logger.Warn("distribution status history failed",
			"event", "holder_lottery_query_history_failed",
			"module", "treasury-rewards/holder-lottery",
			"layer", "application",
			"error", err.Error(),
		)
		return Status{Window: window}, err
	}
	status.History = history
	return status, nil
}

// Timing is the window clock alone; callers use it to render error responses.
func (uc UseCase) Timing() entities.WindowTiming {
	return services.CurrentWindow(uc.now(), uc.WindowDuration)
}

func (uc UseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
