package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"holderdrop"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	PostgresDSN   string `env:"POSTGRES_DSN"`
	AutoMigrate   bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	NATSURL       string `env:"NATS_URL"`
	OTELEndpoint  string `env:"OTEL_ENDPOINT"`

	SolanaRPCURL     string        `env:"SOLANA_RPC_URL" envDefault:"https://api.mainnet-beta.solana.com"`
	HeliusRPCURL     string        `env:"HELIUS_RPC_URL"`
	PumpPortalURL    string        `env:"PUMPPORTAL_URL" envDefault:"https://pumpportal.fun/api/trade"`
	PumpPortalAPIKey string        `env:"PUMPPORTAL_API_KEY"`
	WalletSecret     string        `env:"WALLET_SECRET"`
	TokenMint        string        `env:"TOKEN_MINT"`
	ExcludedAddress  []string      `env:"EXCLUDED_ADDRESSES" envSeparator:","`
	ConfirmTimeout   time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"60s"`

	WindowDuration            time.Duration `env:"WINDOW_DURATION" envDefault:"4m"`
	SettleDelay               time.Duration `env:"SETTLE_DELAY" envDefault:"10s"`
	MinClaimLamports          uint64        `env:"MIN_CLAIM_LAMPORTS" envDefault:"5000"`
	NetworkFeeReserveLamports uint64        `env:"NETWORK_FEE_RESERVE_LAMPORTS" envDefault:"5000000"`
	HistoryLimit              int           `env:"HISTORY_LIMIT" envDefault:"20"`
	HolderPageSize            int           `env:"HOLDER_PAGE_SIZE" envDefault:"1000"`

	TriggerInterval    time.Duration `env:"TRIGGER_INTERVAL" envDefault:"30s"`
	TriggerMinInterval time.Duration `env:"TRIGGER_MIN_INTERVAL" envDefault:"10s"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.ExcludedAddress = normalizeList(cfg.ExcludedAddress)
	return cfg, nil
}

// Validate reports settings a paying process cannot run without.
func (c Config) Validate() error {
	var problems []error
	if strings.TrimSpace(c.PostgresDSN) == "" {
		problems = append(problems, errors.New("POSTGRES_DSN is required"))
	}
	if strings.TrimSpace(c.TokenMint) == "" {
		problems = append(problems, errors.New("TOKEN_MINT is required"))
	}
	if strings.TrimSpace(c.WalletSecret) == "" {
		problems = append(problems, errors.New("WALLET_SECRET is required"))
	}
	if strings.TrimSpace(c.HeliusRPCURL) == "" {
		problems = append(problems, errors.New("HELIUS_RPC_URL is required"))
	}
	if strings.TrimSpace(c.PumpPortalAPIKey) == "" {
		problems = append(problems, errors.New("PUMPPORTAL_API_KEY is required"))
	}
	if c.WindowDuration < time.Second {
		problems = append(problems, fmt.Errorf("WINDOW_DURATION must be at least 1s, got %s", c.WindowDuration))
	}
	if c.SettleDelay >= c.WindowDuration {
		problems = append(problems, fmt.Errorf("SETTLE_DELAY %s must be shorter than WINDOW_DURATION %s", c.SettleDelay, c.WindowDuration))
	}
	return errors.Join(problems...)
}

// SlogLevel maps LOG_LEVEL onto a slog level; unknown values fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func normalizeList(values []string) []string {
	items := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
