package holderlottery

import (
	"log/slog"
	"time"

	httpadapter "holderdrop/contexts/treasury-rewards/holder-lottery/adapters/http"
	"holderdrop/contexts/treasury-rewards/holder-lottery/adapters/memory"
	application "holderdrop/contexts/treasury-rewards/holder-lottery/application"
	"holderdrop/contexts/treasury-rewards/holder-lottery/application/commands"
	"holderdrop/contexts/treasury-rewards/holder-lottery/application/queries"
	"holderdrop/contexts/treasury-rewards/holder-lottery/application/workers"
	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"
)

type Module struct {
	Handler     httpadapter.Handler
	TriggerJob  workers.TriggerJob
	OutboxRelay workers.OutboxRelay
	Consumer    workers.DistributionConsumer
	Store       *memory.Store
	Ledger      *memory.Ledger
	Holders     *memory.HolderBook
}

type Settings struct {
	AssetID                   string
	ExcludedAddresses         []string
	WindowDuration            time.Duration
	SettleDelay               time.Duration
	MinimumClaimLamports      uint64
	NetworkFeeReserveLamports uint64
	HistoryLimit              int
	HolderPageSize            int
	OutboxBatchSize           int
}

type Dependencies struct {
	Records    ports.RecordRepository
	Outbox     ports.OutboxWriter
	OutboxRepo ports.OutboxRepository
	Publisher  ports.EventPublisher
	Subscriber ports.EventSubscriber
	Treasury   ports.Treasury
	Claimer    ports.FeeClaimer
	Holders    ports.HolderPager
	Lease      ports.WindowLease
	Random     ports.RandomSource
	Sleeper    ports.Sleeper
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Settings   Settings
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	settings := deps.Settings
	commandUseCase := commands.UseCase{
		Records:  deps.Records,
		Outbox:   deps.Outbox,
		Treasury: deps.Treasury,
		Claimer:  deps.Claimer,
		Population: application.PopulationSource{
			Pager:    deps.Holders,
			PageSize: settings.HolderPageSize,
			Logger:   deps.Logger,
		},
		Random:                    deps.Random,
		Lease:                     deps.Lease,
		Clock:                     deps.Clock,
		IDGen:                     deps.IDGen,
		Sleeper:                   deps.Sleeper,
		AssetID:                   settings.AssetID,
		ExcludedAddresses:         append([]string(nil), settings.ExcludedAddresses...),
		WindowDuration:            settings.WindowDuration,
		SettleDelay:               settings.SettleDelay,
		MinimumClaimLamports:      settings.MinimumClaimLamports,
		NetworkFeeReserveLamports: settings.NetworkFeeReserveLamports,
		HistoryLimit:              settings.HistoryLimit,
		Logger:                    deps.Logger,
	}
	queryUseCase := queries.UseCase{
		Records:        deps.Records,
		Clock:          deps.Clock,
		WindowDuration: settings.WindowDuration,
		HistoryLimit:   settings.HistoryLimit,
		Logger:         deps.Logger,
	}
	module := Module{
		Handler: httpadapter.Handler{
			Commands: commandUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
		TriggerJob: workers.TriggerJob{
			Commands: commandUseCase,
			Logger:   deps.Logger,
		},
	}
	if deps.OutboxRepo != nil && deps.Publisher != nil {
		module.OutboxRelay = workers.OutboxRelay{
			Outbox:    deps.OutboxRepo,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: settings.OutboxBatchSize,
			Logger:    deps.Logger,
		}
	}
	if deps.Subscriber != nil {
		module.Consumer = workers.DistributionConsumer{
			Subscriber: deps.Subscriber,
			Logger:     deps.Logger,
		}
	}
	return module
}

// NewInMemoryModule runs the whole distribution against an in-memory ledger
// and holder set. The settle delay is skipped unless settings ask for one.
func NewInMemoryModule(
	treasuryAddress string,
	holders []entities.HolderRecord,
	settings Settings,
	publisher ports.EventPublisher,
	logger *slog.Logger,
) Module {
	store := memory.NewStore()
	ledger := memory.NewLedger(treasuryAddress, 0)
	book := memory.NewHolderBook(holders)
	if settings.AssetID == "" {
		settings.AssetID = "in-memory-asset"
	}
	if settings.SettleDelay <= 0 {
		settings.SettleDelay = time.Millisecond
	}
	module := NewModule(Dependencies{
		Records:    store,
		Outbox:     store,
		OutboxRepo: store,
		Publisher:  publisher,
		Treasury:   ledger,
		Claimer:    ledger,
		Holders:    book,
		Lease:      memory.NewLease(),
		Clock:      store,
		IDGen:      store,
		Settings:   settings,
		Logger:     logger,
	})
	module.Store = store
	module.Ledger = ledger
	module.Holders = book
	return module
}
