package redisadapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Requires a running Redis on localhost; skipped otherwise.
func TestLeaseIntegration(t *testing.T) {
	client := NewClient("localhost:6379", "", 0)
	defer client.Close()
	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	windowID := time.Now().UnixNano()
	first := NewLease(client, nil)
	second := NewLease(client, nil)
	t.Cleanup(func() { _ = client.Del(ctx, Key(windowID)).Err() })

	acquired, err := first.Acquire(ctx, windowID, 5*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = second.Acquire(ctx, windowID, 5*time.Second)
	require.NoError(t, err)
	require.False(t, acquired)

	require.NoError(t, second.Release(ctx, windowID))
	acquired, err = second.Acquire(ctx, windowID, 5*time.Second)
	require.NoError(t, err)
	require.False(t, acquired, "release by a non-holder must not free the lease")

	require.NoError(t, first.Release(ctx, windowID))
	acquired, err = second.Acquire(ctx, windowID, 5*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestKeyFormat(t *testing.T) {
	require.Equal(t, "holder-lottery:window:7292", Key(7292))
	require.Equal(t, "holder-lottery:window:-1", Key(-1))
}
