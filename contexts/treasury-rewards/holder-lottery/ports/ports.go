package ports

import (
	"context"
	"encoding/json"
	"time"

	contractsv1 "holderdrop/contracts/gen/events/v1"
	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
)

// RecordRepository persists one distribution record per window. InsertRecord
// must fail with ErrDuplicateWindowRecord rather than overwrite when a record
// for the window already exists.
type RecordRepository interface {
	GetRecordByWindow(ctx context.Context, windowID int64) (entities.DistributionRecord, error)
	InsertRecord(ctx context.Context, record entities.DistributionRecord) error
	ListRecentRecords(ctx context.Context, limit int) ([]entities.DistributionRecord, error)
}

// Treasury wraps the payout wallet on the external ledger. Transfer is a
// single attempt. On ErrConfirmationTimeout the submitted signature is still
// returned because the transfer may have landed.
type Treasury interface {
	Address() string
	SpendableBalance(ctx context.Context) (uint64, error)
	Transfer(ctx context.Context, recipient string, lamports uint64) (string, error)
}

type ClaimResult struct {
	Raw json.RawMessage
}

// FeeClaimer moves accrued fees into the treasury. Settlement is
// asynchronous; the balance may not reflect the claim when Claim returns.
type FeeClaimer interface {
	Claim(ctx context.Context) (ClaimResult, error)
}

type HolderPageRequest struct {
	AssetID  string
	PageSize int
	Cursor   string
}

type HolderPage struct {
	Holders    []entities.HolderRecord
	NextCursor string
}

// HolderPager returns one page of balance holders. An empty NextCursor ends
// the enumeration.
type HolderPager interface {
	FetchPage(ctx context.Context, req HolderPageRequest) (HolderPage, error)
}

// WindowLease is a best-effort cross-process lease on a window. It narrows the
// race between concurrent triggers; the record store's unique key remains the
// correctness guarantee.
type WindowLease interface {
	Acquire(ctx context.Context, windowID int64, ttl time.Duration) (bool, error)
	Release(ctx context.Context, windowID int64) error
}

type RandomSource interface {
	Float64() float64
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Sleeper waits out the settle delay. Tests replace it to avoid real sleeps.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, handler func(context.Context, EventEnvelope) error) error
}
