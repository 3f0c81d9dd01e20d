package redisadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "holder-lottery:window:"

// releaseScript deletes the lease only while it still carries our token.
// KEYS[1] = lease key
// ARGV[1] = holder token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a WindowLease backed by SET NX with an expiry.
type Lease struct {
	client redis.UniversalClient
	logger *slog.Logger

	mu     sync.Mutex
	tokens map[int64]string
}

func NewLease(client redis.UniversalClient, logger *slog.Logger) *Lease {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lease{
		client: client,
		logger: logger,
		tokens: make(map[int64]string),
	}
}

// NewClient dials a single-node client.
func NewClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func Key(windowID int64) string {
	return keyPrefix + strconv.FormatInt(windowID, 10)
}

func (l *Lease) Acquire(ctx context.Context, windowID int64, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, Key(windowID), token, ttl).Result()
	if err != nil {
		l.logger.Warn("window lease acquire failed",
			"event", "holder_lottery_lease_acquire_failed",
			"module", "treasury-rewards/holder-lottery",
			"layer", "adapter",
			"window_id", windowID,
			"error", err.Error(),
		)
		return false, fmt.Errorf("acquire window lease %d: %w", windowID, err)
	}
	if acquired {
		l.mu.Lock()
		l.tokens[windowID] = token
		l.mu.Unlock()
	}
	return acquired, nil
}

func (l *Lease) Release(ctx context.Context, windowID int64) error {
	l.mu.Lock()
	token, ok := l.tokens[windowID]
	delete(l.tokens, windowID)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{Key(windowID)}, token).Err(); err != nil && err != redis.Nil {
		l.logger.Warn("window lease release failed",
			"event", "holder_lottery_lease_release_failed",
			"module", "treasury-rewards/holder-lottery",
			"layer", "adapter",
			"window_id", windowID,
			"error", err.Error(),
		)
		return fmt.Errorf("release window lease %d: %w", windowID, err)
	}
	return nil
}

var _ ports.WindowLease = (*Lease)(nil)
