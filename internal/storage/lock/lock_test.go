package lock

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/doj-records/records/internal/shared"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	locker, mr, _ := newLoggedRedisLocker(t, ttl)
	return locker, mr
}

// syncBuffer guards log output written from the lease renewal goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newLoggedRedisLocker(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis, *syncBuffer) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	logs := &syncBuffer{}
	return NewRedis(client, ttl, slog.New(slog.NewTextHandler(logs, nil))), mr, logs
}

func TestLocalLockExcludesConcurrentHolders(t *testing.T) {
	locker := NewLocal()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		holders int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, "cases")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			holders++
			if holders > maxSeen {
				maxSeen = holders
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			holders--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	require.Equal(t, 1, maxSeen)
}

func TestLocalLockHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal().Lock(ctx, "cases")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRedisLockAcquireAndRelease(t *testing.T) {
	locker, mr := newRedisLocker(t, time.Second)
	ctx := context.Background()

	release, err := locker.Lock(ctx, "cases")
	require.NoError(t, err)
	require.True(t, mr.Exists(shared.CollectionLockKey("cases")))

	release()
	require.False(t, mr.Exists(shared.CollectionLockKey("cases")))
}

func TestRedisLockTimesOutWhileHeld(t *testing.T) {
	locker, _ := newRedisLocker(t, time.Minute)
	release, err := locker.Lock(context.Background(), "cases")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "cases")
	require.ErrorIs(t, err, ErrLockTimeout)
}

func TestRedisReleaseDoesNotDropForeignLease(t *testing.T) {
	locker, mr, logs := newLoggedRedisLocker(t, time.Minute)
	release, err := locker.Lock(context.Background(), "cases")
	require.NoError(t, err)

	key := shared.CollectionLockKey("cases")
	require.NoError(t, mr.Set(key, "someone-else"))
	release()

	got, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
	require.Contains(t, logs.String(), "expired or taken before release")
}

func TestRedisLeaseIsRenewedWhileHeld(t *testing.T) {
	locker, mr := newRedisLocker(t, 300*time.Millisecond)
	release, err := locker.Lock(context.Background(), "cases")
	require.NoError(t, err)
	defer release()

	key := shared.CollectionLockKey("cases")
	mr.FastForward(200 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL(key) > 200*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	mr.FastForward(250 * time.Millisecond)
	require.True(t, mr.Exists(key))
}

func TestRedisLockFallsBackToLocalWhenRedisDown(t *testing.T) {
	locker, mr, logs := newLoggedRedisLocker(t, time.Second)
	mr.Close()

	release, err := locker.Lock(context.Background(), "cases")
	require.NoError(t, err)
	require.Contains(t, logs.String(), "redis lock unavailable")

	acquired := make(chan struct{})
	go func() {
		second, err := locker.Lock(context.Background(), "cases")
		if err != nil {
			t.Errorf("second lock: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second writer entered while the first held the fallback lock")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	<-acquired
}
