package httpadapter

import (
	"context"
	"testing"
	"time"

	"holderdrop/contexts/treasury-rewards/holder-lottery/adapters/memory"
	application "holderdrop/contexts/treasury-rewards/holder-lottery/application"
	"holderdrop/contexts/treasury-rewards/holder-lottery/application/commands"
	"holderdrop/contexts/treasury-rewards/holder-lottery/application/queries"
	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"

	"github.com/stretchr/testify/require"
)

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newHandler(t *testing.T, accrued uint64) (Handler, *memory.Lease) {
	t.Helper()
	store := memory.NewStore()
	store.SetNow(time.Date(2026, 3, 1, 12, 1, 30, 0, time.UTC))
	ledger := memory.NewLedger("Treasury", 0)
	ledger.Accrue(accrued)
	lease := memory.NewLease()
	holders := memory.NewHolderBook([]entities.HolderRecord{
		{Address: "Pool", Balance: 900},
		{Address: "Alice", Balance: 100},
	})
	return Handler{
		Commands: commands.UseCase{
			Records:    store,
			Outbox:     store,
			Treasury:   ledger,
			Claimer:    ledger,
			Population: application.PopulationSource{Pager: holders},
			Lease:      lease,
			Clock:      store,
			IDGen:      store,
			Sleeper:    noSleep{},
			AssetID:    "mint",
		},
		Queries: queries.UseCase{Records: store, Clock: store},
	}, lease
}

func TestTriggerHandlerPaysThenReportsAlreadyProcessed(t *testing.T) {
	handler, _ := newHandler(t, 10_000_000)

	first, err := handler.TriggerHandler(context.Background())
	require.NoError(t, err)
	require.True(t, first.Success)
	require.NotNil(t, first.PayoutDTO)
	require.Equal(t, "Alice", *first.Recipient)
	require.Equal(t, uint64(5_000_000), first.AmountLamports)
	require.Equal(t, "0.005", first.AmountPaid.String())
	require.Equal(t, int64(150), first.WindowTiming.SecondsUntilNextWindow)
	require.Equal(t, "2026-03-01T12:04:00Z", first.WindowTiming.NextWindowStart)
	require.Len(t, first.History, 1)

	second, err := handler.TriggerHandler(context.Background())
	require.NoError(t, err)
	require.False(t, second.Success)
	require.Equal(t, ReasonAlreadyProcessed, second.Reason)
	require.NotNil(t, second.Existing)
	require.Equal(t, "Alice", *second.Existing.Recipient)
	require.Nil(t, second.PayoutDTO)
}

func TestTriggerHandlerReportsInProgress(t *testing.T) {
	handler, lease := newHandler(t, 10_000_000)
	window := handler.Queries.Timing()
	acquired, err := lease.Acquire(context.Background(), window.WindowID, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	response, err := handler.TriggerHandler(context.Background())
	require.NoError(t, err)
	require.False(t, response.Success)
	require.Equal(t, ReasonInProgress, response.Reason)
}

func TestStatusHandlerReflectsCurrentWindow(t *testing.T) {
	handler, _ := newHandler(t, 1_000)

	before, err := handler.StatusHandler(context.Background())
	require.NoError(t, err)
	require.False(t, before.CurrentWindowRecorded)
	require.Empty(t, before.History)

	_, err = handler.TriggerHandler(context.Background())
	require.NoError(t, err)

	after, err := handler.StatusHandler(context.Background())
	require.NoError(t, err)
	require.True(t, after.CurrentWindowRecorded)
	require.NotNil(t, after.CurrentRecord)
	require.Nil(t, after.CurrentRecord.Recipient)
	require.Equal(t, string(entities.OutcomeBelowThreshold), after.CurrentRecord.Outcome)
	require.Equal(t, handler.WindowTiming().CurrentWindowID, after.WindowTiming.CurrentWindowID)
}
