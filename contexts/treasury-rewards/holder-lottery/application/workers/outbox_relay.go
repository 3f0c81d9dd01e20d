package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "holderdrop/contexts/treasury-rewards/holder-lottery/application"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"
)

// OutboxRelay publishes pending distribution events. The topic is the event
// type so consumers can subscribe to reconciliation events alone.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "holder_lottery_outbox_list_failed",
			"module", "treasury-rewards/holder-lottery",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, message := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			logger.Error("outbox payload decode failed",
				"event", "holder_lottery_outbox_decode_failed",
				"module", "treasury-rewards/holder-lottery",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}

		if err := r.Publisher.Publish(ctx, envelope.EventType, envelope); err != nil {
			logger.Error("outbox publish failed",
				"event", "holder_lottery_outbox_publish_failed",
				"module", "treasury-rewards/holder-lottery",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"event_id", envelope.EventID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, message.OutboxID, r.now()); err != nil {
			logger.Error("outbox mark published failed",
				"event", "holder_lottery_outbox_mark_published_failed",
				"module", "treasury-rewards/holder-lottery",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "holder_lottery_outbox_relay_completed",
			"module", "treasury-rewards/holder-lottery",
			"layer", "worker",
			"published_count", len(pending),
		)
	}
	return nil
}

func (r OutboxRelay) now() time.Time {
	if r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock.Now().UTC()
}
