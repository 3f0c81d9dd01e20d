package solanaadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

const (
	// TransferFeeLamports is the base signature fee for a single-signer transfer.
	TransferFeeLamports uint64 = 5_000

	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// RPC is the subset of the Solana JSON-RPC client the treasury needs.
// *rpc.Client satisfies it.
type RPC interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

type Config struct {
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Treasury signs and submits native transfers from the payout wallet.
type Treasury struct {
	rpc            RPC
	signer         solana.PrivateKey
	address        solana.PublicKey
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
}

func NewTreasury(client RPC, signer solana.PrivateKey, cfg Config, logger *slog.Logger) (*Treasury, error) {
	if client == nil {
		return nil, fmt.Errorf("solana rpc client is required: %w", domainerrors.ErrInvalidConfiguration)
	}
	if len(signer) != 64 {
		return nil, fmt.Errorf("treasury signing key must be 64 bytes: %w", domainerrors.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Treasury{
		rpc:            client,
		signer:         signer,
		address:        signer.PublicKey(),
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		logger:         logger,
	}, nil
}

// ParseSigner decodes a base58 encoded 64-byte secret key.
func ParseSigner(secret string) (solana.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("wallet secret is empty: %w", domainerrors.ErrInvalidConfiguration)
	}
	key, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, fmt.Errorf("decode wallet secret: %v: %w", err, domainerrors.ErrInvalidConfiguration)
	}
	return key, nil
}

func (t *Treasury) Address() string {
	return t.address.String()
}

func (t *Treasury) SpendableBalance(ctx context.Context) (uint64, error) {
	result, err := t.rpc.GetBalance(ctx, t.address, rpc.CommitmentConfirmed)
	if err != nil {
		t.logError("holder_lottery_treasury_balance_failed", err)
		return 0, fmt.Errorf("get treasury balance: %v: %w", err, domainerrors.ErrUpstreamUnavailable)
	}
	if result == nil {
		return 0, fmt.Errorf("empty balance response: %w", domainerrors.ErrMalformedResponse)
	}
	return result.Value, nil
}

// Transfer makes one submission attempt. Once a signature exists it is
// returned with every error. Only a JSON-RPC rejection is treated as a
// definitive failure; any other send error falls through to confirmation
// polling, which ends in ErrConfirmationTimeout if the signature never lands.
func (t *Treasury) Transfer(ctx context.Context, recipient string, lamports uint64) (string, error) {
	to, err := solana.PublicKeyFromBase58(strings.TrimSpace(recipient))
	if err != nil {
		return "", fmt.Errorf("recipient %q: %v: %w", recipient, err, domainerrors.ErrSubmissionFailed)
	}
	if lamports == 0 {
		return "", fmt.Errorf("transfer amount is zero: %w", domainerrors.ErrSubmissionFailed)
	}

	balance, err := t.SpendableBalance(ctx)
	if err != nil {
		return "", err
	}
	if balance < lamports || balance-lamports < TransferFeeLamports {
		t.logger.Warn("treasury balance cannot cover transfer",
			"event", "holder_lottery_treasury_insufficient_funds",
			"module", "treasury-rewards/holder-lottery",
			"layer", "adapter",
			"balance_lamports", balance,
			"amount_lamports", lamports,
		)
		return "", fmt.Errorf("balance %d cannot cover %d plus fee: %w", balance, lamports, domainerrors.ErrInsufficientFunds)
	}

	latest, err := t.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		t.logError("holder_lottery_treasury_blockhash_failed", err)
		return "", fmt.Errorf("get latest blockhash: %v: %w", err, domainerrors.ErrSubmissionFailed)
	}
	if latest == nil || latest.Value == nil {
		return "", fmt.Errorf("empty blockhash response: %w", domainerrors.ErrSubmissionFailed)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, t.address, to).Build(),
		},
		latest.Value.Blockhash,
		solana.TransactionPayer(t.address),
	)
	if err != nil {
		return "", fmt.Errorf("build transfer: %v: %w", err, domainerrors.ErrSubmissionFailed)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(t.address) {
			return &t.signer
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transfer: %v: %w", err, domainerrors.ErrSubmissionFailed)
	}

	sig := tx.Signatures[0]
	signature := sig.String()
	if _, err := t.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	}); err != nil {
		t.logError("holder_lottery_treasury_submit_failed", err,
			"recipient", to.String(),
			"amount_lamports", lamports,
			"signature", signature,
		)
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			if isInsufficientFunds(rpcErr) {
				return signature, fmt.Errorf("submit transfer %s: %s: %w", signature, rpcErr.Message, domainerrors.ErrInsufficientFunds)
			}
			return signature, fmt.Errorf("submit transfer %s: %s: %w", signature, rpcErr.Message, domainerrors.ErrSubmissionFailed)
		}
		// Transport failure: the transaction may still land.
	}

	if err := t.awaitConfirmation(ctx, sig); err != nil {
		t.logError("holder_lottery_treasury_confirm_failed", err,
			"recipient", to.String(),
			"amount_lamports", lamports,
			"signature", signature,
		)
		return signature, err
	}
	return signature, nil
}

func (t *Treasury) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, t.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		result, err := t.rpc.GetSignatureStatuses(ctx, false, sig)
		if err == nil && result != nil && len(result.Value) > 0 && result.Value[0] != nil {
			status := result.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed: %v: %w", sig, status.Err, domainerrors.ErrSubmissionFailed)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction %s not confirmed within %s: %w", sig, t.confirmTimeout, domainerrors.ErrConfirmationTimeout)
		case <-ticker.C:
		}
	}
}

func isInsufficientFunds(rpcErr *jsonrpc.RPCError) bool {
	message := strings.ToLower(rpcErr.Message + " " + fmt.Sprint(rpcErr.Data))
	return strings.Contains(message, "insufficient funds") || strings.Contains(message, "insufficient lamports")
}

func (t *Treasury) logError(event string, err error, attrs ...any) {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "treasury-rewards/holder-lottery",
		"layer", "adapter",
		"treasury", t.address.String(),
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	t.logger.Error("solana treasury operation failed", fields...)
}

var _ ports.Treasury = (*Treasury)(nil)
