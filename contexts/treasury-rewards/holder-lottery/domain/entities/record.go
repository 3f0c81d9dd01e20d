package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

const LamportsPerSOL = 1_000_000_000

type RecordStatus string

const (
	RecordStatusConfirmed   RecordStatus = "confirmed"
	RecordStatusUnconfirmed RecordStatus = "unconfirmed"
	RecordStatusNoPayout    RecordStatus = "no_payout"
)

// Outcome says why a window resolved the way it did. A no-payout status can
// come from two different outcomes and operators need to tell them apart.
type Outcome string

const (
	OutcomePaid                Outcome = "paid"
	OutcomeBelowThreshold      Outcome = "below_threshold"
	OutcomeNoEligibleHolder    Outcome = "no_eligible_holder"
	OutcomeConfirmationTimeout Outcome = "confirmation_timeout"
)

// DistributionRecord is the durable outcome of one window. It is written once
// and never updated.
type DistributionRecord struct {
	ID              string
	WindowID        int64
	Recipient       *string
	AmountLamports  uint64
	Amount          decimal.Decimal
	Signature       *string
	Status          RecordStatus
	Outcome         Outcome
	ClaimedLamports uint64
	RecordedAt      time.Time
}

func (r DistributionRecord) Paid() bool {
	return r.Recipient != nil && r.AmountLamports > 0
}

func (r DistributionRecord) RecipientOrEmpty() string {
	if r.Recipient == nil {
		return ""
	}
	return *r.Recipient
}

func (r DistributionRecord) SignatureOrEmpty() string {
	if r.Signature == nil {
		return ""
	}
	return *r.Signature
}

// LamportsToSOL converts the smallest currency unit into a SOL decimal.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(lamports)).Shift(-9)
}
