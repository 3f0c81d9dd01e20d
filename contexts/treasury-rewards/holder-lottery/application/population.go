package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"
)

const (
	DefaultHolderPageSize = 1000
	DefaultMaxHolderPages = 10000
)

// PopulationSource walks every page of holders for an asset. Paging is
// delegated entirely to the upstream cursor.
type PopulationSource struct {
	Pager    ports.HolderPager
	PageSize int
	MaxPages int
	Logger   *slog.Logger
}

// FetchHolders returns the full holder population, one entry per owner.
// A cursor seen twice fails with ErrMalformedResponse instead of looping.
func (p PopulationSource) FetchHolders(ctx context.Context, assetID string) ([]entities.HolderRecord, error) {
	logger := ResolveLogger(p.Logger)
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, domainerrors.ErrInvalidConfiguration
	}

	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultHolderPageSize
	}
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxHolderPages
	}

	var (
		all    []entities.HolderRecord
		cursor string
		seen   = make(map[string]struct{})
	)
	for page := 1; ; page++ {
		if page > maxPages {
			logger.Error("holder enumeration exceeded page bound",
				"event", "holder_lottery_population_page_bound_exceeded",
				"module", "treasury-rewards/holder-lottery",
				"layer", "application",
				"asset_id", assetID,
				"max_pages", maxPages,
			)
			return nil, fmt.Errorf("holder enumeration exceeded %d pages: %w", maxPages, domainerrors.ErrMalformedResponse)
		}

		result, err := p.Pager.FetchPage(ctx, ports.HolderPageRequest{
			AssetID:  assetID,
			PageSize: pageSize,
			Cursor:   cursor,
		})
		if err != nil {
			p.logPageFailure(logger, assetID, page, err)
			return nil, classifyPageError(err)
		}
		all = append(all, result.Holders...)

		next := strings.TrimSpace(result.NextCursor)
		logger.Debug("holder page fetched",
			"event", "holder_lottery_population_page_fetched",
			"module", "treasury-rewards/holder-lottery",
			"layer", "application",
			"asset_id", assetID,
			"page", page,
			"page_count", len(result.Holders),
			"total_count", len(all),
			"has_more", next != "",
		)
		if next == "" {
			break
		}
		if _, repeated := seen[next]; repeated {
			logger.Error("holder enumeration returned a repeated cursor",
				"event", "holder_lottery_population_cursor_repeated",
				"module", "treasury-rewards/holder-lottery",
				"layer", "application",
				"asset_id", assetID,
				"page", page,
				"cursor", next,
			)
			return nil, fmt.Errorf("cursor %q returned twice: %w", next, domainerrors.ErrMalformedResponse)
		}
		seen[next] = struct{}{}
		cursor = next
	}

	holders := aggregateByOwner(all)
	logger.Info("holder population fetched",
		"event", "holder_lottery_population_fetched",
		"module", "treasury-rewards/holder-lottery",
		"layer", "application",
		"asset_id", assetID,
		"account_count", len(all),
		"holder_count", len(holders),
	)
	return holders, nil
}

func (p PopulationSource) logPageFailure(logger *slog.Logger, assetID string, page int, err error) {
	event := "holder_lottery_population_page_unavailable"
	if errors.Is(err, domainerrors.ErrMalformedResponse) {
		event = "holder_lottery_population_page_malformed"
	}
	logger.Error("holder page fetch failed",
		"event", event,
		"module", "treasury-rewards/holder-lottery",
		"layer", "application",
		"asset_id", assetID,
		"page", page,
		"error", err.Error(),
	)
}

func classifyPageError(err error) error {
	if errors.Is(err, domainerrors.ErrMalformedResponse) || errors.Is(err, domainerrors.ErrUpstreamUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domainerrors.ErrUpstreamUnavailable, err)
}

// aggregateByOwner folds token accounts into one balance per owner, keeping
// first-seen order. An owner can hold several token accounts for one mint.
func aggregateByOwner(accounts []entities.HolderRecord) []entities.HolderRecord {
	index := make(map[string]int, len(accounts))
	holders := make([]entities.HolderRecord, 0, len(accounts))
	for _, account := range accounts {
		owner := strings.TrimSpace(account.Address)
		if owner == "" {
			continue
		}
		if i, ok := index[owner]; ok {
			holders[i].Balance += account.Balance
			continue
		}
		index[owner] = len(holders)
		holders = append(holders, entities.HolderRecord{Address: owner, Balance: account.Balance})
	}
	return holders
}
