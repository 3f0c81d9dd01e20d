package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"
)

// HolderBook serves a fixed population in pages with numeric cursors.
type HolderBook struct {
	mu      sync.RWMutex
	holders []entities.HolderRecord
	calls   int
}

func NewHolderBook(holders []entities.HolderRecord) *HolderBook {
	return &HolderBook{holders: append([]entities.HolderRecord(nil), holders...)}
}

func (b *HolderBook) Replace(holders []entities.HolderRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.holders = append([]entities.HolderRecord(nil), holders...)
}

func (b *HolderBook) FetchPage(_ context.Context, req ports.HolderPageRequest) (ports.HolderPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	offset := 0
	if req.Cursor != "" {
		parsed, err := strconv.Atoi(req.Cursor)
		if err != nil || parsed < 0 {
			return ports.HolderPage{}, fmt.Errorf("holder cursor %q: %w", req.Cursor, domainerrors.ErrMalformedResponse)
		}
		offset = parsed
	}
	size := req.PageSize
	if size <= 0 {
		size = len(b.holders)
	}
	if offset > len(b.holders) {
		offset = len(b.holders)
	}
	end := offset + size
	if end > len(b.holders) {
		end = len(b.holders)
	}
	page := ports.HolderPage{Holders: append([]entities.HolderRecord(nil), b.holders[offset:end]...)}
	if end < len(b.holders) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (b *HolderBook) Calls() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.calls
}

var _ ports.HolderPager = (*HolderBook)(nil)
