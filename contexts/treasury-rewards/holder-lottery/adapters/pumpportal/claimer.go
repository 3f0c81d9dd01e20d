package pumpportaladapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"
)

const (
	DefaultEndpoint = "https://pumpportal.fun/api/trade"

	actionCollectCreatorFee = "collectCreatorFee"
	defaultPriorityFee      = 0.000001
	defaultPool             = "pump"
	maxResponseBytes        = 1 << 20
)

type Config struct {
	Endpoint    string
	APIKey      string
	PriorityFee float64
	Pool        string
	Timeout     time.Duration
}

// Claimer asks the trading portal to collect accrued creator fees into the
// wallet bound to the API key. The portal answers before the fees settle.
type Claimer struct {
	endpoint    string
	apiKey      string
	priorityFee float64
	pool        string
	client      *http.Client
	logger      *slog.Logger
}

func NewClaimer(cfg Config, client *http.Client, logger *slog.Logger) (*Claimer, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("pumpportal endpoint: %v: %w", err, domainerrors.ErrInvalidConfiguration)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("pumpportal api key is required: %w", domainerrors.ErrInvalidConfiguration)
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	priorityFee := cfg.PriorityFee
	if priorityFee <= 0 {
		priorityFee = defaultPriorityFee
	}
	pool := strings.TrimSpace(cfg.Pool)
	if pool == "" {
		pool = defaultPool
	}
	return &Claimer{
		endpoint:    endpoint,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		priorityFee: priorityFee,
		pool:        pool,
		client:      client,
		logger:      logger,
	}, nil
}

type claimRequest struct {
	Action      string  `json:"action"`
	PriorityFee float64 `json:"priorityFee"`
	Pool        string  `json:"pool"`
}

func (c *Claimer) Claim(ctx context.Context) (ports.ClaimResult, error) {
	body, err := json.Marshal(claimRequest{
		Action:      actionCollectCreatorFee,
		PriorityFee: c.priorityFee,
		Pool:        c.pool,
	})
	if err != nil {
		return ports.ClaimResult{}, fmt.Errorf("encode claim request: %w", err)
	}

	target, err := url.Parse(c.endpoint)
	if err != nil {
		return ports.ClaimResult{}, fmt.Errorf("pumpportal endpoint: %v: %w", err, domainerrors.ErrInvalidConfiguration)
	}
	query := target.Query()
	query.Set("api-key", c.apiKey)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return ports.ClaimResult{}, fmt.Errorf("build claim request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ports.ClaimResult{}, ctxErr
		}
		c.logWarn("holder_lottery_fee_claim_request_failed", err)
		return ports.ClaimResult{}, fmt.Errorf("claim request: %v: %w", err, domainerrors.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logWarn("holder_lottery_fee_claim_read_failed", err, "status", resp.StatusCode)
		return ports.ClaimResult{}, fmt.Errorf("read claim response: %v: %w", err, domainerrors.ErrUpstreamUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("claim returned %s", resp.Status)
		c.logWarn("holder_lottery_fee_claim_rejected", err, "status", resp.StatusCode)
		return ports.ClaimResult{}, fmt.Errorf("%v: %w", err, domainerrors.ErrUpstreamUnavailable)
	}

	raw := bytes.TrimSpace(payload)
	if len(raw) == 0 || !json.Valid(raw) {
		err := fmt.Errorf("claim response is not json")
		c.logWarn("holder_lottery_fee_claim_malformed", err, "status", resp.StatusCode)
		return ports.ClaimResult{}, fmt.Errorf("%v: %w", err, domainerrors.ErrMalformedResponse)
	}
	return ports.ClaimResult{Raw: json.RawMessage(raw)}, nil
}

func (c *Claimer) logWarn(event string, err error, attrs ...any) {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "treasury-rewards/holder-lottery",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	c.logger.Warn("pumpportal fee claim failed", fields...)
}

var _ ports.FeeClaimer = (*Claimer)(nil)
