package httpadapter

import (
	"context"
	"log/slog"
	"time"

	application "holderdrop/contexts/treasury-rewards/holder-lottery/application"
	"holderdrop/contexts/treasury-rewards/holder-lottery/application/commands"
	"holderdrop/contexts/treasury-rewards/holder-lottery/application/queries"
	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	httptransport "holderdrop/contexts/treasury-rewards/holder-lottery/transport/http"
)

const (
	ReasonAlreadyProcessed = "already-processed"
	ReasonInProgress       = "in-progress"
)

type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

// TriggerHandler godoc
// @Summary Trigger the current window's distribution
// @Description Claims fees, draws a holder weighted by balance and pays them. Idempotent per window.
// @Tags holder-lottery
// @Produce json
// @Success 200 {object} httptransport.TriggerResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Router /v1/distributions/trigger [post]
func (h Handler) TriggerHandler(ctx context.Context) (httptransport.TriggerResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	result, err := h.Commands.Distribute(ctx)
	if err != nil {
		logger.Warn("holder lottery http trigger failed",
			"event", "holder_lottery_http_trigger_failed",
			"module", "treasury-rewards/holder-lottery",
			"layer", "adapter",
			"window_id", result.Window.WindowID,
			"error", err.Error(),
		)
		return httptransport.TriggerResponse{}, err
	}

	response := httptransport.TriggerResponse{
		History:      toRecordDTOs(result.History),
		WindowTiming: ToWindowTimingDTO(result.Window),
	}
	switch {
	case result.Skipped:
		existing := toRecordDTO(result.Record)
		response.Reason = ReasonAlreadyProcessed
		response.Existing = &existing
	case result.Deferred:
		response.Reason = ReasonInProgress
	default:
		record := result.Record
		response.Success = true
		response.PayoutDTO = &httptransport.PayoutDTO{
			WindowID:        record.WindowID,
			Recipient:       record.Recipient,
			AmountPaid:      entities.LamportsToSOL(record.AmountLamports),
			AmountLamports:  record.AmountLamports,
			TransactionRef:  record.Signature,
			Status:          string(record.Status),
			Outcome:         string(record.Outcome),
			ClaimedLamports: result.ClaimedLamports,
			BalanceBefore:   result.BalanceBefore,
			BalanceAfter:    result.BalanceAfter,
			ClaimResult:     result.ClaimResult.Raw,
		}
	}

	logger.Info("holder lottery http trigger completed",
		"event", "holder_lottery_http_trigger_completed",
		"module", "treasury-rewards/holder-lottery",
		"layer", "adapter",
		"window_id", result.Window.WindowID,
		"success", response.Success,
		"reason", response.Reason,
	)
	return response, nil
}

// StatusHandler godoc
// @Summary Distribution status
// @Description Recent distribution records and window timing. Never triggers a distribution.
// @Tags holder-lottery
// @Produce json
// @Success 200 {object} httptransport.StatusResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/distributions/status [get]
func (h Handler) StatusHandler(ctx context.Context) (httptransport.StatusResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	status, err := h.Queries.Status(ctx)
	if err != nil {
		logger.Warn("holder lottery http status failed",
			"event", "holder_lottery_http_status_failed",
			"module", "treasury-rewards/holder-lottery",
			"layer", "adapter",
			"error", err.Error(),
		)
		return httptransport.StatusResponse{}, err
	}
	response := httptransport.StatusResponse{
		History:               toRecordDTOs(status.History),
		WindowTiming:          ToWindowTimingDTO(status.Window),
		CurrentWindowRecorded: status.CurrentRecorded,
	}
	if status.CurrentRecord != nil {
		current := toRecordDTO(*status.CurrentRecord)
		response.CurrentRecord = &current
	}
	return response, nil
}

// WindowTiming is attached to error responses so callers can schedule a retry.
func (h Handler) WindowTiming() httptransport.WindowTimingDTO {
	return ToWindowTimingDTO(h.Queries.Timing())
}

func ToWindowTimingDTO(window entities.WindowTiming) httptransport.WindowTimingDTO {
	return httptransport.WindowTimingDTO{
		ServerTime:             window.ServerTime.UTC().Format(time.RFC3339),
		SecondsUntilNextWindow: window.SecondsRemaining,
		NextWindowStart:        window.End.UTC().Format(time.RFC3339),
		LastWindowStart:        window.Start.UTC().Format(time.RFC3339),
		CurrentWindowID:        window.WindowID,
	}
}

func toRecordDTOs(records []entities.DistributionRecord) []httptransport.DistributionRecordDTO {
	items := make([]httptransport.DistributionRecordDTO, 0, len(records))
	for _, record := range records {
		items = append(items, toRecordDTO(record))
	}
	return items
}

func toRecordDTO(record entities.DistributionRecord) httptransport.DistributionRecordDTO {
	return httptransport.DistributionRecordDTO{
		ID:              record.ID,
		WindowID:        record.WindowID,
		Recipient:       record.Recipient,
		Amount:          entities.LamportsToSOL(record.AmountLamports),
		AmountLamports:  record.AmountLamports,
		Signature:       record.Signature,
		Status:          string(record.Status),
		Outcome:         string(record.Outcome),
		ClaimedLamports: record.ClaimedLamports,
		RecordedAt:      record.RecordedAt.UTC().Format(time.RFC3339),
	}
}
