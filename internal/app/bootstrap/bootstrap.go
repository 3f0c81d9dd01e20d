package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	holderlottery "holderdrop/contexts/treasury-rewards/holder-lottery"
	heliusadapter "holderdrop/contexts/treasury-rewards/holder-lottery/adapters/helius"
	postgresadapter "holderdrop/contexts/treasury-rewards/holder-lottery/adapters/postgres"
	pumpportaladapter "holderdrop/contexts/treasury-rewards/holder-lottery/adapters/pumpportal"
	redisadapter "holderdrop/contexts/treasury-rewards/holder-lottery/adapters/redis"
	solanaadapter "holderdrop/contexts/treasury-rewards/holder-lottery/adapters/solana"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"
	"holderdrop/internal/platform/config"
	"holderdrop/internal/platform/db"
	"holderdrop/internal/platform/httpserver"
	"holderdrop/internal/platform/messaging"
	platformotel "holderdrop/internal/platform/otel"

	"github.com/gagliardetto/solana-go/rpc"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server  *httpserver.Server
	runtime *runtime
	logger  *slog.Logger
}

type WorkerApp struct {
	module          holderlottery.Module
	runtime         *runtime
	triggerInterval time.Duration
	outboxInterval  time.Duration
	logger          *slog.Logger
}

// runtime holds the shared infrastructure both processes build.
type runtime struct {
	module   holderlottery.Module
	closers  []func() error
	shutdown func(context.Context) error
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, "api")

	rt, err := buildRuntime(ctx, cfg, logger, false)
	if err != nil {
		return nil, err
	}
	server := httpserver.New(rt.module, logger, normalizeAddr(cfg.HTTPPort), httpserver.Options{
		TriggerMinInterval: cfg.TriggerMinInterval,
	})
	return &APIApp{
		server:  server,
		runtime: rt,
		logger:  logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, "worker")

	rt, err := buildRuntime(ctx, cfg, logger, true)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{
		module:          rt.module,
		runtime:         rt,
		triggerInterval: positiveOr(cfg.TriggerInterval, 30*time.Second),
		outboxInterval:  positiveOr(cfg.OutboxPollInterval, 2*time.Second),
		logger:          logger,
	}, nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, process string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(handler).With("service", cfg.ServiceName, "process", process)
	slog.SetDefault(logger)
	return logger
}

func buildRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger, withPublisher bool) (*runtime, error) {
	rt := &runtime{shutdown: func(context.Context) error { return nil }}
	fail := func(err error) (*runtime, error) {
		_ = rt.close(context.Background())
		return nil, err
	}

	shutdown, err := platformotel.Setup(ctx, cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		return fail(fmt.Errorf("setup tracing: %w", err))
	}
	rt.shutdown = shutdown

	pg, err := db.Connect(ctx, cfg.PostgresDSN, db.Options{})
	if err != nil {
		return fail(err)
	}
	rt.closers = append(rt.closers, pg.Close)
	if cfg.AutoMigrate {
		if err := postgresadapter.Migrate(ctx, pg.DB); err != nil {
			return fail(err)
		}
	}
	repo := postgresadapter.NewRepository(pg.DB, logger)

	signer, err := solanaadapter.ParseSigner(cfg.WalletSecret)
	if err != nil {
		return fail(err)
	}
	treasury, err := solanaadapter.NewTreasury(rpc.New(cfg.SolanaRPCURL), signer, solanaadapter.Config{
		ConfirmTimeout: cfg.ConfirmTimeout,
	}, logger)
	if err != nil {
		return fail(err)
	}
	pager, err := heliusadapter.NewPager(cfg.HeliusRPCURL, logger)
	if err != nil {
		return fail(err)
	}
	claimer, err := pumpportaladapter.NewClaimer(pumpportaladapter.Config{
		Endpoint: cfg.PumpPortalURL,
		APIKey:   cfg.PumpPortalAPIKey,
	}, nil, logger)
	if err != nil {
		return fail(err)
	}

	var lease ports.WindowLease
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		client := redisadapter.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		rt.closers = append(rt.closers, client.Close)
		lease = redisadapter.NewLease(client, logger)
	}

	var (
		publisher  ports.EventPublisher
		subscriber ports.EventSubscriber
	)
	if withPublisher {
		if strings.TrimSpace(cfg.NATSURL) != "" {
			natsPublisher, err := messaging.NewNATS(messaging.NATSConfig{
				URL:           cfg.NATSURL,
				Name:          cfg.ServiceName,
				SubjectPrefix: cfg.ServiceName,
			}, logger)
			if err != nil {
				return fail(err)
			}
			rt.closers = append(rt.closers, natsPublisher.Close)
			publisher = natsPublisher
		} else {
			bus := messaging.NewBus(logger)
			publisher = bus
			subscriber = bus
		}
	}

	rt.module = holderlottery.NewModule(holderlottery.Dependencies{
		Records:    repo,
		Outbox:     repo,
		OutboxRepo: repo,
		Publisher:  publisher,
		Subscriber: subscriber,
		Treasury:   treasury,
		Claimer:    claimer,
		Holders:    pager,
		Lease:      lease,
		Clock:      postgresadapter.SystemClock{},
		IDGen:      postgresadapter.UUIDGenerator{},
		Settings: holderlottery.Settings{
			AssetID:                   cfg.TokenMint,
			ExcludedAddresses:         cfg.ExcludedAddress,
			WindowDuration:            cfg.WindowDuration,
			SettleDelay:               cfg.SettleDelay,
			MinimumClaimLamports:      cfg.MinClaimLamports,
			NetworkFeeReserveLamports: cfg.NetworkFeeReserveLamports,
			HistoryLimit:              cfg.HistoryLimit,
			HolderPageSize:            cfg.HolderPageSize,
		},
		Logger: logger,
	})
	return rt, nil
}

func (r *runtime) close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if r.shutdown != nil {
		if err := r.shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func (a *APIApp) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.runtime.close(ctx)
}

// Run drives the trigger and the outbox relay until ctx ends. A failed cycle
// is logged and retried on the next tick.
func (w *WorkerApp) Run(ctx context.Context) error {
	triggerTicker := time.NewTicker(w.triggerInterval)
	defer triggerTicker.Stop()
	outboxTicker := time.NewTicker(w.outboxInterval)
	defer outboxTicker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"trigger_interval", w.triggerInterval.String(),
		"outbox_interval", w.outboxInterval.String(),
	)

	if w.module.Consumer.Subscriber != nil {
		if err := w.module.Consumer.Start(ctx); err != nil {
			return err
		}
	}
	_ = w.module.TriggerJob.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-triggerTicker.C:
			_ = w.module.TriggerJob.RunOnce(ctx)
		case <-outboxTicker.C:
			if w.module.OutboxRelay.Outbox == nil {
				continue
			}
			_ = w.module.OutboxRelay.RunOnce(ctx)
		}
	}
}

func (w *WorkerApp) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.runtime.close(ctx)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}

func positiveOr(value time.Duration, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
