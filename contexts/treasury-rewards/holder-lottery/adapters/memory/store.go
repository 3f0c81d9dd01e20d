package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"

	"github.com/google/uuid"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Store is the in-memory record store. Its window index enforces the same
// uniqueness the postgres table does.
type Store struct {
	mu sync.RWMutex

	records  map[int64]entities.DistributionRecord
	outbox   map[string]outboxRecord
	sequence int
	now      func() time.Time
}

type outboxRecord struct {
	Message     ports.OutboxMessage
	Status      string
	PublishedAt *time.Time
	Sequence    int
}

func NewStore() *Store {
	return &Store{
		records: make(map[int64]entities.DistributionRecord),
		outbox:  make(map[string]outboxRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNow pins the store clock. Tests use it to place invocations in a window.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = func() time.Time { return now.UTC() }
}

func (s *Store) GetRecordByWindow(_ context.Context, windowID int64) (entities.DistributionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[windowID]
	if !ok {
		return entities.DistributionRecord{}, domainerrors.ErrRecordNotFound
	}
	return record, nil
}

func (s *Store) InsertRecord(_ context.Context, record entities.DistributionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(record.ID) == "" {
		return domainerrors.ErrInvalidConfiguration
	}
	if _, exists := s.records[record.WindowID]; exists {
		return domainerrors.ErrDuplicateWindowRecord
	}
	s.records[record.WindowID] = record
	return nil
}

func (s *Store) ListRecentRecords(_ context.Context, limit int) ([]entities.DistributionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	items := make([]entities.DistributionRecord, 0, len(s.records))
	for _, record := range s.records {
		items = append(items, record)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].RecordedAt.Equal(items[j].RecordedAt) {
			return items[i].RecordedAt.After(items[j].RecordedAt)
		}
		return items[i].WindowID > items[j].WindowID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(envelope.EventID)
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.outbox[id]; exists {
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	s.sequence++
	s.outbox[id] = outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     id,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    createdAt,
		},
		Status:   outboxStatusPending,
		Sequence: s.sequence,
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	pending := make([]outboxRecord, 0)
	for _, item := range s.outbox {
		if item.Status == outboxStatusPending {
			pending = append(pending, item)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Sequence < pending[j].Sequence
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(pending))
	for _, item := range pending {
		items = append(items, item.Message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(outboxID)
	item, ok := s.outbox[id]
	if !ok {
		return domainerrors.ErrRecordNotFound
	}
	at := publishedAt.UTC()
	item.Status = outboxStatusPublished
	item.PublishedAt = &at
	s.outbox[id] = item
	return nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.RecordRepository = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
