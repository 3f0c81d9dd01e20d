package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	application "holderdrop/contexts/treasury-rewards/holder-lottery/application"
	"holderdrop/contexts/treasury-rewards/holder-lottery/application/commands"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"
)

type distributionPayload struct {
	RecordID        string `json:"record_id"`
	WindowID        string `json:"window_id"`
	Recipient       string `json:"recipient"`
	AmountLamports  uint64 `json:"amount_lamports"`
	AmountSOL       string `json:"amount_sol"`
	Signature       string `json:"signature"`
	Status          string `json:"status"`
	Outcome         string `json:"outcome"`
	ClaimedLamports uint64 `json:"claimed_lamports"`
	Reason          string `json:"reason"`
}

// DistributionConsumer is the worker's own sink for distribution events.
// Recorded windows are written to the audit log; reconciliation events are
// raised as critical alerts for an operator.
type DistributionConsumer struct {
	Subscriber ports.EventSubscriber
	Logger     *slog.Logger
}

func (c DistributionConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	handlers := []struct {
		topic  string
		handle func(context.Context, ports.EventEnvelope) error
	}{
		{topic: commands.EventDistributionRecorded, handle: c.handleRecorded},
		{topic: commands.EventReconciliationRequired, handle: c.handleReconciliation},
	}
	for _, h := range handlers {
		if err := c.Subscriber.Subscribe(ctx, h.topic, h.handle); err != nil {
			logger.Error("distribution consumer subscribe failed",
				"event", "holder_lottery_consumer_subscribe_failed",
				"module", "treasury-rewards/holder-lottery",
				"layer", "worker",
				"topic", h.topic,
				"error", err.Error(),
			)
			return err
		}
		logger.Info("distribution consumer subscribed",
			"event", "holder_lottery_consumer_subscribed",
			"module", "treasury-rewards/holder-lottery",
			"layer", "worker",
			"topic", h.topic,
		)
	}
	return nil
}

func (c DistributionConsumer) handleRecorded(_ context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	payload, err := c.decode(logger, event)
	if err != nil {
		return err
	}
	logger.Info("distribution recorded",
		"event", "holder_lottery_distribution_audit",
		"module", "treasury-rewards/holder-lottery",
		"layer", "worker",
		"event_id", event.EventID,
		"record_id", payload.RecordID,
		"window_id", payload.WindowID,
		"status", payload.Status,
		"outcome", payload.Outcome,
		"recipient", payload.Recipient,
		"amount_lamports", payload.AmountLamports,
		"signature", payload.Signature,
		"claimed_lamports", payload.ClaimedLamports,
	)
	return nil
}

func (c DistributionConsumer) handleReconciliation(_ context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	payload, err := c.decode(logger, event)
	if err != nil {
		return err
	}
	logger.Error("payout needs manual reconciliation",
		"event", "holder_lottery_reconciliation_alert",
		"module", "treasury-rewards/holder-lottery",
		"layer", "worker",
		"severity", "critical",
		"event_id", event.EventID,
		"window_id", payload.WindowID,
		"recipient", payload.Recipient,
		"amount_lamports", payload.AmountLamports,
		"amount_sol", payload.AmountSOL,
		"signature", payload.Signature,
		"reason", payload.Reason,
	)
	return nil
}

func (c DistributionConsumer) decode(logger *slog.Logger, event ports.EventEnvelope) (distributionPayload, error) {
	var payload distributionPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("distribution event decode failed",
			"event", "holder_lottery_consumer_decode_failed",
			"module", "treasury-rewards/holder-lottery",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return distributionPayload{}, fmt.Errorf("decode %s: %v: %w", event.EventID, err, domainerrors.ErrMalformedResponse)
	}
	if payload.WindowID == "" {
		return distributionPayload{}, fmt.Errorf("event %s has no window id: %w", event.EventID, domainerrors.ErrMalformedResponse)
	}
	return payload, nil
}
