package workers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"holderdrop/contexts/treasury-rewards/holder-lottery/adapters/memory"
	application "holderdrop/contexts/treasury-rewards/holder-lottery/application"
	"holderdrop/contexts/treasury-rewards/holder-lottery/application/commands"
	"holderdrop/contexts/treasury-rewards/holder-lottery/application/workers"
	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"

	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []ports.EventEnvelope
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func appendEvent(t *testing.T, store *memory.Store, id string, eventType string) {
	t.Helper()
	require.NoError(t, store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:      id,
		EventType:    eventType,
		OccurredAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		PartitionKey: "7",
		Data:         []byte(`{"window_id":"7"}`),
	}))
}

func TestOutboxRelayPublishesPendingInOrder(t *testing.T) {
	store := memory.NewStore()
	appendEvent(t, store, "evt-1", commands.EventDistributionRecorded)
	appendEvent(t, store, "evt-2", commands.EventReconciliationRequired)
	publisher := &recordingPublisher{}

	relay := workers.OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}
	require.NoError(t, relay.RunOnce(context.Background()))

	require.Equal(t, []string{commands.EventDistributionRecorded, commands.EventReconciliationRequired}, publisher.topics)
	require.Equal(t, "evt-1", publisher.events[0].EventID)
	require.JSONEq(t, `{"window_id":"7"}`, string(publisher.events[0].Data))

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.NoError(t, relay.RunOnce(context.Background()))
	require.Len(t, publisher.events, 2)
}

func TestOutboxRelayKeepsMessagesPendingOnPublishFailure(t *testing.T) {
	store := memory.NewStore()
	appendEvent(t, store, "evt-1", commands.EventDistributionRecorded)
	publisher := &recordingPublisher{err: errors.New("broker down")}

	err := workers.OutboxRelay{Outbox: store, Publisher: publisher}.RunOnce(context.Background())
	require.EqualError(t, err, "broker down")

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestTriggerJobRunsDistribution(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(time.Date(2026, 3, 1, 12, 1, 30, 0, time.UTC))
	ledger := memory.NewLedger("Treasury", 0)
	ledger.Accrue(1_000)
	job := workers.TriggerJob{Commands: commands.UseCase{
		Records:    store,
		Treasury:   ledger,
		Claimer:    ledger,
		Population: application.PopulationSource{Pager: memory.NewHolderBook(nil)},
		Clock:      store,
		IDGen:      store,
		Sleeper:    noSleep{},
		AssetID:    "mint",
	}}

	require.NoError(t, job.RunOnce(context.Background()))
	require.NoError(t, job.RunOnce(context.Background()))
	require.Equal(t, 1, ledger.ClaimCalls())

	history, err := store.ListRecentRecords(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, entities.OutcomeBelowThreshold, history[0].Outcome)

	ledger.FailClaims(domainerrors.ErrUpstreamUnavailable)
	store.SetNow(time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC))
	require.ErrorIs(t, job.RunOnce(context.Background()), domainerrors.ErrUpstreamUnavailable)
}
