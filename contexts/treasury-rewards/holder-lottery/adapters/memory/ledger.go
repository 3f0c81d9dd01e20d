package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"

	"github.com/google/uuid"
)

// Ledger simulates the treasury wallet and the fee source on one in-memory
// ledger. Claimed fees land in the wallet balance immediately.
type Ledger struct {
	mu sync.Mutex

	address     string
	balance     uint64
	accruedFees uint64
	transfers   []Transfer
	claimCalls  int
	claimErr    error
	transferErr error
	balanceErr  error
}

type Transfer struct {
	Recipient string
	Lamports  uint64
	Signature string
}

func NewLedger(address string, balance uint64) *Ledger {
	return &Ledger{
		address: strings.TrimSpace(address),
		balance: balance,
	}
}

// Accrue adds fees that the next Claim will move into the wallet.
func (l *Ledger) Accrue(lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accruedFees += lamports
}

func (l *Ledger) FailClaims(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.claimErr = err
}

func (l *Ledger) FailTransfers(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transferErr = err
}

func (l *Ledger) FailBalance(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balanceErr = err
}

func (l *Ledger) Address() string {
	return l.address
}

func (l *Ledger) SpendableBalance(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balanceErr != nil {
		return 0, l.balanceErr
	}
	return l.balance, nil
}

func (l *Ledger) Transfer(_ context.Context, recipient string, lamports uint64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.transferErr != nil && !isTimeout(l.transferErr) {
		return "", l.transferErr
	}
	if lamports > l.balance {
		return "", fmt.Errorf("balance %d below transfer %d: %w", l.balance, lamports, domainerrors.ErrInsufficientFunds)
	}
	signature := uuid.NewString()
	l.balance -= lamports
	l.transfers = append(l.transfers, Transfer{
		Recipient: strings.TrimSpace(recipient),
		Lamports:  lamports,
		Signature: signature,
	})
	if l.transferErr != nil {
		return signature, l.transferErr
	}
	return signature, nil
}

func (l *Ledger) Claim(_ context.Context) (ports.ClaimResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.claimCalls++
	if l.claimErr != nil {
		return ports.ClaimResult{}, l.claimErr
	}
	claimed := l.accruedFees
	l.balance += claimed
	l.accruedFees = 0
	raw, _ := json.Marshal(map[string]any{"claimed_lamports": claimed})
	return ports.ClaimResult{Raw: raw}, nil
}

func (l *Ledger) Transfers() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transfer(nil), l.transfers...)
}

func (l *Ledger) ClaimCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.claimCalls
}

// isTimeout marks failures that happen after the transfer reached the ledger.
func isTimeout(err error) bool {
	return errors.Is(err, domainerrors.ErrConfirmationTimeout)
}

var _ ports.Treasury = (*Ledger)(nil)
var _ ports.FeeClaimer = (*Ledger)(nil)
