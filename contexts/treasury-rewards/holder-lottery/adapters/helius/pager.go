package heliusadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

const methodGetTokenAccounts = "getTokenAccounts"

// Pager enumerates token accounts of a mint through the DAS getTokenAccounts
// method. Each token account is reported with its owner wallet.
type Pager struct {
	client jsonrpc.RPCClient
	logger *slog.Logger
}

func NewPager(endpoint string, logger *slog.Logger) (*Pager, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("helius endpoint is required: %w", domainerrors.ErrInvalidConfiguration)
	}
	return NewPagerWithClient(jsonrpc.NewClient(endpoint), logger), nil
}

func NewPagerWithClient(client jsonrpc.RPCClient, logger *slog.Logger) *Pager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pager{client: client, logger: logger}
}

type tokenAccountsParams struct {
	Mint   string `json:"mint"`
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor,omitempty"`
}

type tokenAccountsResult struct {
	TokenAccounts []tokenAccount `json:"token_accounts"`
	Cursor        *string        `json:"cursor"`
}

type tokenAccount struct {
	Address string      `json:"address"`
	Owner   string      `json:"owner"`
	Amount  json.Number `json:"amount"`
}

func (p *Pager) FetchPage(ctx context.Context, req ports.HolderPageRequest) (ports.HolderPage, error) {
	var raw json.RawMessage
	err := p.client.CallForInto(ctx, &raw, methodGetTokenAccounts, []interface{}{
		tokenAccountsParams{
			Mint:   strings.TrimSpace(req.AssetID),
			Limit:  req.PageSize,
			Cursor: strings.TrimSpace(req.Cursor),
		},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ports.HolderPage{}, ctxErr
		}
		p.logWarn("holder_lottery_helius_call_failed", err, req)
		return ports.HolderPage{}, fmt.Errorf("%s: %v: %w", methodGetTokenAccounts, err, domainerrors.ErrUpstreamUnavailable)
	}

	page, err := decodePage(raw)
	if err != nil {
		p.logWarn("holder_lottery_helius_response_malformed", err, req)
		return ports.HolderPage{}, err
	}
	return page, nil
}

func decodePage(raw json.RawMessage) (ports.HolderPage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ports.HolderPage{}, fmt.Errorf("empty result: %w", domainerrors.ErrMalformedResponse)
	}
	var result tokenAccountsResult
	decoder := json.NewDecoder(strings.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&result); err != nil {
		return ports.HolderPage{}, fmt.Errorf("decode token accounts: %v: %w", err, domainerrors.ErrMalformedResponse)
	}
	if result.TokenAccounts == nil {
		return ports.HolderPage{}, fmt.Errorf("token_accounts missing: %w", domainerrors.ErrMalformedResponse)
	}

	holders := make([]entities.HolderRecord, 0, len(result.TokenAccounts))
	for i, account := range result.TokenAccounts {
		owner := strings.TrimSpace(account.Owner)
		if owner == "" {
			return ports.HolderPage{}, fmt.Errorf("token account %d has no owner: %w", i, domainerrors.ErrMalformedResponse)
		}
		amount, err := parseAmount(account.Amount)
		if err != nil {
			return ports.HolderPage{}, fmt.Errorf("token account %d: %v: %w", i, err, domainerrors.ErrMalformedResponse)
		}
		holders = append(holders, entities.HolderRecord{Address: owner, Balance: amount})
	}

	page := ports.HolderPage{Holders: holders}
	if result.Cursor != nil && len(result.TokenAccounts) > 0 {
		page.NextCursor = strings.TrimSpace(*result.Cursor)
	}
	return page, nil
}

func parseAmount(value json.Number) (uint64, error) {
	text := strings.TrimSpace(value.String())
	if text == "" {
		return 0, errors.New("amount missing")
	}
	return strconv.ParseUint(text, 10, 64)
}

func (p *Pager) logWarn(event string, err error, req ports.HolderPageRequest) {
	p.logger.Warn("helius holder page request failed",
		"event", event,
		"module", "treasury-rewards/holder-lottery",
		"layer", "adapter",
		"asset_id", req.AssetID,
		"cursor", req.Cursor,
		"page_size", req.PageSize,
		"error", err.Error(),
	)
}

var _ ports.HolderPager = (*Pager)(nil)
