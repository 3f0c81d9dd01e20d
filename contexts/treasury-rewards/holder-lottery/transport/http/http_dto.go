package http

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Success      bool             `json:"success"`
	Error        string           `json:"error"`
	Code         string           `json:"code"`
	WindowTiming *WindowTimingDTO `json:"window_timing,omitempty"`
}

type WindowTimingDTO struct {
	ServerTime             string `json:"server_time"`
	SecondsUntilNextWindow int64  `json:"seconds_until_next_window"`
	NextWindowStart        string `json:"next_window_start"`
	LastWindowStart        string `json:"last_window_start"`
	CurrentWindowID        int64  `json:"current_window_id"`
}

type DistributionRecordDTO struct {
	ID              string          `json:"id"`
	WindowID        int64           `json:"window_id"`
	Recipient       *string         `json:"recipient"`
	Amount          decimal.Decimal `json:"amount"`
	AmountLamports  uint64          `json:"amount_lamports"`
	Signature       *string         `json:"signature"`
	Status          string          `json:"status"`
	Outcome         string          `json:"outcome"`
	ClaimedLamports uint64          `json:"claimed_lamports"`
	RecordedAt      string          `json:"recorded_at"`
}

// PayoutDTO is the outcome of a window this invocation resolved itself.
type PayoutDTO struct {
	WindowID        int64           `json:"window_id"`
	Recipient       *string         `json:"recipient"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	AmountLamports  uint64          `json:"amount_lamports"`
	TransactionRef  *string         `json:"transaction_ref"`
	Status          string          `json:"status"`
	Outcome         string          `json:"outcome"`
	ClaimedLamports uint64          `json:"claimed_lamports"`
	BalanceBefore   uint64          `json:"balance_before"`
	BalanceAfter    uint64          `json:"balance_after"`
	ClaimResult     json.RawMessage `json:"claim_result,omitempty"`
}

// TriggerResponse carries either a fresh payout (Success) or the reason the
// window was not processed by this invocation.
type TriggerResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	*PayoutDTO
	Existing     *DistributionRecordDTO  `json:"existing,omitempty"`
	History      []DistributionRecordDTO `json:"history"`
	WindowTiming WindowTimingDTO         `json:"window_timing"`
}

type StatusResponse struct {
	History               []DistributionRecordDTO `json:"history"`
	WindowTiming          WindowTimingDTO         `json:"window_timing"`
	CurrentWindowRecorded bool                    `json:"current_window_recorded"`
	CurrentRecord         *DistributionRecordDTO  `json:"current_record,omitempty"`
}
