package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	application "holderdrop/contexts/treasury-rewards/holder-lottery/application"
	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/services"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"
)

const (
	// MinimumClaimLamports is the claimed amount a window must exceed before a
	// payout is attempted.
	MinimumClaimLamports uint64 = 5_000
	// NetworkFeeReserveLamports stays in the treasury to pay transaction fees.
	NetworkFeeReserveLamports uint64 = 5_000_000

	DefaultSettleDelay  = 10 * time.Second
	DefaultHistoryLimit = 20

	EventDistributionRecorded   = "distribution.recorded"
	EventReconciliationRequired = "distribution.reconciliation_required"
	sourceService               = "holder-lottery"
	partitionKeyPath            = "window_id"
	moduleName                  = "treasury-rewards/holder-lottery"
	tracerName                  = "holderdrop/holder-lottery"
)

type State string

const (
	StateChecking  State = "checking"
	StateClaiming  State = "claiming"
	StateSettling  State = "settling"
	StateSelecting State = "selecting"
	StatePaying    State = "paying"
	StateRecorded  State = "recorded"
	StateSkipped   State = "skipped"
)

// DistributeResult is what one trigger invocation observed. Skipped means the
// window already had a record; Deferred means another invocation holds the
// window lease.
type DistributeResult struct {
	Window          entities.WindowTiming
	Record          entities.DistributionRecord
	Skipped         bool
	Deferred        bool
	BalanceBefore   uint64
	BalanceAfter    uint64
	ClaimedLamports uint64
	ClaimResult     ports.ClaimResult
	History         []entities.DistributionRecord
}

type UseCase struct {
	Records    ports.RecordRepository
	Outbox     ports.OutboxWriter
	Treasury   ports.Treasury
	Claimer    ports.FeeClaimer
	Population application.PopulationSource
	Random     ports.RandomSource
	Lease      ports.WindowLease
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Sleeper    ports.Sleeper

	AssetID                   string
	ExcludedAddresses         []string
	WindowDuration            time.Duration
	SettleDelay               time.Duration
	MinimumClaimLamports      uint64
	NetworkFeeReserveLamports uint64
	HistoryLimit              int
	Logger                    *slog.Logger
}

// Distribute runs one window's distribution attempt. Errors returned before
// a transfer is submitted leave no durable state and the window can be
// retried wholesale. Once a transfer is submitted the invocation ignores
// caller cancellation and runs through to the record insert.
func (uc UseCase) Distribute(ctx context.Context) (DistributeResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	window := services.CurrentWindow(uc.now(), uc.WindowDuration)
	result := DistributeResult{Window: window}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "holder_lottery.distribute",
		trace.WithAttributes(attribute.Int64("window_id", window.WindowID)),
	)
	defer span.End()

	uc.enter(ctx, logger, window.WindowID, StateChecking)
	existing, found, err := uc.lookupWindow(ctx, window.WindowID)
	if err != nil {
		recordSpanError(span, err)
		return result, err
	}
	if found {
		uc.enter(ctx, logger, window.WindowID, StateSkipped)
		logger.Info("window already distributed",
			"event", "holder_lottery_window_already_processed",
			"module", moduleName,
			"layer", "application",
			"window_id", window.WindowID,
			"record_id", existing.ID,
		)
		result.Skipped = true
		result.Record = existing
		result.History = uc.history(ctx, logger)
		return result, nil
	}

	leased, deferred := uc.acquireLease(ctx, logger, window)
	if deferred {
		result.Deferred = true
		result.History = uc.history(ctx, logger)
		return result, nil
	}

	record, paid, err := uc.execute(ctx, logger, window, &result)
	if err != nil {
		if leased && !paid {
			uc.releaseLease(ctx, logger, window.WindowID)
		}
		if errors.Is(err, domainerrors.ErrDuplicateWindowRecord) && !paid {
			// Lost the insert race without moving funds: the winner's record
			// stands and this invocation behaves as a late duplicate.
			existing, found, lookupErr := uc.lookupWindow(context.WithoutCancel(ctx), window.WindowID)
			if lookupErr == nil && found {
				uc.enter(ctx, logger, window.WindowID, StateSkipped)
				result.Skipped = true
				result.Record = existing
				result.History = uc.history(ctx, logger)
				return result, nil
			}
		}
		recordSpanError(span, err)
		return result, err
	}

	uc.enter(ctx, logger, window.WindowID, StateRecorded)
	result.Record = record
	result.History = uc.history(ctx, logger)
	return result, nil
}

// execute performs the claim, measure, select, pay and record sequence. paid
// reports whether a transfer was submitted, whatever its confirmation state.
func (uc UseCase) execute(
	ctx context.Context,
	logger *slog.Logger,
	window entities.WindowTiming,
	result *DistributeResult,
) (entities.DistributionRecord, bool, error) {
	windowID := window.WindowID

	uc.enter(ctx, logger, windowID, StateClaiming)
	before, err := uc.Treasury.SpendableBalance(ctx)
	if err != nil {
		uc.logAbort(logger, windowID, "balance_before", err)
		return entities.DistributionRecord{}, false, err
	}
	result.BalanceBefore = before

	claim, err := uc.Claimer.Claim(ctx)
	if err != nil {
		uc.logAbort(logger, windowID, "claim", err)
		return entities.DistributionRecord{}, false, err
	}
	result.ClaimResult = claim

	uc.enter(ctx, logger, windowID, StateSettling)
	if err := uc.sleeper().Sleep(ctx, uc.settleDelay()); err != nil {
		uc.logAbort(logger, windowID, "settle", err)
		return entities.DistributionRecord{}, false, err
	}

	after, err := uc.Treasury.SpendableBalance(ctx)
	if err != nil {
		uc.logAbort(logger, windowID, "balance_after", err)
		return entities.DistributionRecord{}, false, err
	}
	result.BalanceAfter = after

	var claimed uint64
	if after > before {
		claimed = after - before
	}
	result.ClaimedLamports = claimed
	logger.Info("fees claimed and measured",
		"event", "holder_lottery_fees_measured",
		"module", moduleName,
		"layer", "application",
		"window_id", windowID,
		"balance_before", before,
		"balance_after", after,
		"claimed_lamports", claimed,
	)

	record := entities.DistributionRecord{
		WindowID:        windowID,
		Amount:          entities.LamportsToSOL(0),
		Status:          entities.RecordStatusNoPayout,
		Outcome:         entities.OutcomeBelowThreshold,
		ClaimedLamports: claimed,
	}

	payout := uc.payout(claimed)
	if payout == 0 {
		logger.Info("claimed fees below payout threshold",
			"event", "holder_lottery_below_threshold",
			"module", moduleName,
			"layer", "application",
			"window_id", windowID,
			"claimed_lamports", claimed,
			"minimum_claim_lamports", uc.minimumClaim(),
			"fee_reserve_lamports", uc.feeReserve(),
		)
		return uc.persist(ctx, logger, record, false)
	}

	uc.enter(ctx, logger, windowID, StateSelecting)
	holders, err := uc.Population.FetchHolders(ctx, uc.AssetID)
	if err != nil {
		uc.logAbort(logger, windowID, "fetch_holders", err)
		return entities.DistributionRecord{}, false, err
	}
	winner, err := services.SelectWinner(holders, uc.excluded(), uc.draw())
	if err != nil {
		if errors.Is(err, domainerrors.ErrNoEligibleHolder) {
			logger.Warn("no eligible holder for window",
				"event", "holder_lottery_population_exhausted",
				"module", moduleName,
				"layer", "application",
				"window_id", windowID,
				"holder_count", len(holders),
				"payout_lamports", payout,
			)
			record.Outcome = entities.OutcomeNoEligibleHolder
			return uc.persist(ctx, logger, record, false)
		}
		return entities.DistributionRecord{}, false, err
	}
	logger.Info("winner selected",
		"event", "holder_lottery_winner_selected",
		"module", moduleName,
		"layer", "application",
		"window_id", windowID,
		"recipient", winner.Address,
		"balance", winner.Balance,
		"weight", winner.Weight,
		"holder_count", len(holders),
	)

	uc.enter(ctx, logger, windowID, StatePaying)
	// No cancellation from here on: a submitted transfer must be recorded.
	payCtx := context.WithoutCancel(ctx)
	signature, err := uc.Treasury.Transfer(payCtx, winner.Address, payout)
	recipient := winner.Address
	record.Recipient = &recipient
	record.AmountLamports = payout
	record.Amount = entities.LamportsToSOL(payout)
	switch {
	case err == nil:
		record.Status = entities.RecordStatusConfirmed
		record.Outcome = entities.OutcomePaid
		record.Signature = optionalString(signature)
	case errors.Is(err, domainerrors.ErrConfirmationTimeout):
		logger.Error("transfer confirmation timed out; recording window as unconfirmed",
			"event", "holder_lottery_transfer_unconfirmed",
			"module", moduleName,
			"layer", "application",
			"window_id", windowID,
			"recipient", recipient,
			"amount_lamports", payout,
			"signature", signature,
			"error", err.Error(),
		)
		record.Status = entities.RecordStatusUnconfirmed
		record.Outcome = entities.OutcomeConfirmationTimeout
		record.Signature = optionalString(signature)
	default:
		uc.logAbort(logger, windowID, "transfer", err)
		return entities.DistributionRecord{}, false, err
	}
	logger.Info("payout transferred",
		"event", "holder_lottery_payout_transferred",
		"module", moduleName,
		"layer", "application",
		"window_id", windowID,
		"recipient", recipient,
		"amount_lamports", payout,
		"signature", signature,
		"status", string(record.Status),
	)
	return uc.persist(payCtx, logger, record, true)
}

func (uc UseCase) persist(
	ctx context.Context,
	logger *slog.Logger,
	record entities.DistributionRecord,
	paid bool,
) (entities.DistributionRecord, bool, error) {
	id, err := uc.IDGen.NewID(ctx)
	if err != nil {
		if paid {
			uc.reconcile(ctx, logger, record, err)
		}
		return entities.DistributionRecord{}, paid, err
	}
	record.ID = strings.TrimSpace(id)
	record.RecordedAt = uc.now()

	if err := uc.Records.InsertRecord(ctx, record); err != nil {
		if paid {
			uc.reconcile(ctx, logger, record, err)
		} else {
			logger.Warn("no-payout record insert failed",
				"event", "holder_lottery_record_insert_failed",
				"module", moduleName,
				"layer", "application",
				"window_id", record.WindowID,
				"outcome", string(record.Outcome),
				"error", err.Error(),
			)
		}
		return entities.DistributionRecord{}, paid, err
	}

	uc.appendEvent(ctx, logger, EventDistributionRecorded, record, "")
	logger.Info("distribution recorded",
		"event", "holder_lottery_distribution_recorded",
		"module", moduleName,
		"layer", "application",
		"window_id", record.WindowID,
		"record_id", record.ID,
		"recipient", record.RecipientOrEmpty(),
		"amount_lamports", record.AmountLamports,
		"signature", record.SignatureOrEmpty(),
		"status", string(record.Status),
		"outcome", string(record.Outcome),
	)
	return record, paid, nil
}

// reconcile handles a payment that cannot be recorded under its window. The
// transfer already happened; the event keeps the audit trail for manual
// reconciliation. Payment is never re-attempted.
func (uc UseCase) reconcile(ctx context.Context, logger *slog.Logger, record entities.DistributionRecord, cause error) {
	duplicate := errors.Is(cause, domainerrors.ErrDuplicateWindowRecord)
	logger.Error("payment could not be recorded for window",
		"event", "holder_lottery_payment_unrecorded",
		"module", moduleName,
		"layer", "application",
		"severity", "critical",
		"window_id", record.WindowID,
		"duplicate_window", duplicate,
		"recipient", record.RecipientOrEmpty(),
		"amount_lamports", record.AmountLamports,
		"claimed_lamports", record.ClaimedLamports,
		"signature", record.SignatureOrEmpty(),
		"status", string(record.Status),
		"error", cause.Error(),
	)
	uc.appendEvent(ctx, logger, EventReconciliationRequired, record, cause.Error())
}

func (uc UseCase) appendEvent(
	ctx context.Context,
	logger *slog.Logger,
	eventType string,
	record entities.DistributionRecord,
	reason string,
) {
	if uc.Outbox == nil {
		return
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		eventID = eventType + ":" + strconv.FormatInt(record.WindowID, 10) + ":" + strconv.FormatInt(uc.now().UnixNano(), 10)
	}
	payload := map[string]any{
		"record_id":        record.ID,
		"window_id":        strconv.FormatInt(record.WindowID, 10),
		"recipient":        record.Recipient,
		"amount_lamports":  record.AmountLamports,
		"amount_sol":       record.Amount.String(),
		"signature":        record.Signature,
		"status":           string(record.Status),
		"outcome":          string(record.Outcome),
		"claimed_lamports": record.ClaimedLamports,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	occurredAt := record.RecordedAt
	if occurredAt.IsZero() {
		occurredAt = uc.now()
	}
	if err := uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          strings.TrimSpace(eventID),
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          trace.SpanContextFromContext(ctx).TraceID().String(),
		SchemaVersion:    1,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     strconv.FormatInt(record.WindowID, 10),
		Data:             data,
	}); err != nil {
		logger.Error("distribution event append failed",
			"event", "holder_lottery_outbox_append_failed",
			"module", moduleName,
			"layer", "application",
			"window_id", record.WindowID,
			"event_type", eventType,
			"error", err.Error(),
		)
	}
}

func (uc UseCase) lookupWindow(ctx context.Context, windowID int64) (entities.DistributionRecord, bool, error) {
	record, err := uc.Records.GetRecordByWindow(ctx, windowID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrRecordNotFound) {
			return entities.DistributionRecord{}, false, nil
		}
		return entities.DistributionRecord{}, false, err
	}
	return record, true, nil
}

func (uc UseCase) acquireLease(ctx context.Context, logger *slog.Logger, window entities.WindowTiming) (leased bool, deferred bool) {
	if uc.Lease == nil {
		return false, false
	}
	ttl := window.End.Sub(uc.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	acquired, err := uc.Lease.Acquire(ctx, window.WindowID, ttl)
	if err != nil {
		logger.Warn("window lease unavailable; relying on record uniqueness",
			"event", "holder_lottery_lease_unavailable",
			"module", moduleName,
			"layer", "application",
			"window_id", window.WindowID,
			"error", err.Error(),
		)
		return false, false
	}
	if !acquired {
		logger.Info("window lease held by another invocation",
			"event", "holder_lottery_window_in_progress",
			"module", moduleName,
			"layer", "application",
			"window_id", window.WindowID,
		)
		return false, true
	}
	return true, false
}

func (uc UseCase) releaseLease(ctx context.Context, logger *slog.Logger, windowID int64) {
	if err := uc.Lease.Release(context.WithoutCancel(ctx), windowID); err != nil {
		logger.Warn("window lease release failed",
			"event", "holder_lottery_lease_release_failed",
			"module", moduleName,
			"layer", "application",
			"window_id", windowID,
			"error", err.Error(),
		)
	}
}

func (uc UseCase) history(ctx context.Context, logger *slog.Logger) []entities.DistributionRecord {
	items, err := uc.Records.ListRecentRecords(context.WithoutCancel(ctx), uc.historyLimit())
	if err != nil {
		logger.Warn("distribution history unavailable",
			"event", "holder_lottery_history_failed",
			"module", moduleName,
			"layer", "application",
			"error", err.Error(),
		)
		return []entities.DistributionRecord{}
	}
	return items
}

func (uc UseCase) enter(ctx context.Context, logger *slog.Logger, windowID int64, state State) {
	trace.SpanFromContext(ctx).AddEvent(string(state))
	logger.Debug("distribution state entered",
		"event", "holder_lottery_state_entered",
		"module", moduleName,
		"layer", "application",
		"window_id", windowID,
		"state", string(state),
	)
}

func (uc UseCase) logAbort(logger *slog.Logger, windowID int64, step string, err error) {
	event := "holder_lottery_window_aborted"
	if errors.Is(err, domainerrors.ErrMalformedResponse) {
		event = "holder_lottery_window_aborted_malformed"
	}
	logger.Error("window distribution aborted",
		"event", event,
		"module", moduleName,
		"layer", "application",
		"window_id", windowID,
		"step", step,
		"retryable", domainerrors.IsRetryable(err),
		"error", err.Error(),
	)
}

// payout returns the transferable amount, or zero when the window resolves
// without a payout.
func (uc UseCase) payout(claimed uint64) uint64 {
	if claimed <= uc.minimumClaim() {
		return 0
	}
	reserve := uc.feeReserve()
	if claimed <= reserve {
		return 0
	}
	return claimed - reserve
}

func (uc UseCase) excluded() map[string]struct{} {
	excluded := make(map[string]struct{}, len(uc.ExcludedAddresses)+1)
	if uc.Treasury != nil {
		if address := strings.TrimSpace(uc.Treasury.Address()); address != "" {
			excluded[address] = struct{}{}
		}
	}
	for _, address := range uc.ExcludedAddresses {
		if address = strings.TrimSpace(address); address != "" {
			excluded[address] = struct{}{}
		}
	}
	return excluded
}

func (uc UseCase) draw() float64 {
	if uc.Random == nil {
		return rand.Float64()
	}
	return uc.Random.Float64()
}

func (uc UseCase) sleeper() ports.Sleeper {
	if uc.Sleeper == nil {
		return ContextSleeper{}
	}
	return uc.Sleeper
}

func (uc UseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func (uc UseCase) settleDelay() time.Duration {
	if uc.SettleDelay <= 0 {
		return DefaultSettleDelay
	}
	return uc.SettleDelay
}

func (uc UseCase) minimumClaim() uint64 {
	if uc.MinimumClaimLamports == 0 {
		return MinimumClaimLamports
	}
	return uc.MinimumClaimLamports
}

func (uc UseCase) feeReserve() uint64 {
	if uc.NetworkFeeReserveLamports == 0 {
		return NetworkFeeReserveLamports
	}
	return uc.NetworkFeeReserveLamports
}

func (uc UseCase) historyLimit() int {
	if uc.HistoryLimit <= 0 {
		return DefaultHistoryLimit
	}
	return uc.HistoryLimit
}

// ContextSleeper sleeps for the settle delay unless the context ends first.
type ContextSleeper struct{}

func (ContextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
