package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/print24/pricing/internal/lock"
)

func newTestLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerializesHolders(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	const key = "price:flush:all"

	holding := make(chan struct{})
	release := make(chan struct{})
	firstErr := make(chan error, 1)
	go func() {
		firstErr <- locker.WithLock(ctx, key, 100*time.Millisecond, func(context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	// While the first holder is inside the critical section, a second
	// attempt must block rather than run concurrently.
	entered := make(chan struct{})
	secondErr := make(chan error, 1)
	go func() {
		secondErr <- locker.WithLock(ctx, key, 100*time.Millisecond, func(context.Context) error {
			close(entered)
			return nil
		})
	}()

	select {
	case <-entered:
		t.Fatal("second holder entered while the lock was held")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstErr)
	require.NoError(t, <-secondErr)
	<-entered
}

func TestWithLockReleasesAfterError(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	boom := errors.New("flush failed")
	err := locker.WithLock(ctx, "price:flush:all", time.Second, func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The key must be gone so the next flush does not wait out the TTL.
	require.False(t, mr.Exists("price:flush:all"))
}
