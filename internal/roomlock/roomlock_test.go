package roomlock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SerializesSameRoom(t *testing.T) {
	l := NewLocal()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), 101)
			require.NoError(t, err)
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			require.NoError(t, release(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Empty(t, l.rooms, "slots are dropped once unused")
}

func TestLocal_DifferentRoomsDoNotBlock(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	other, err := l.Acquire(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, other(context.Background()))
}

func TestLocal_AcquireHonoursContext(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, release(context.Background()))
	assert.ErrorIs(t, release(context.Background()), ErrNotHeld)
}

// Runs against a real Redis when ROOMBOOKER_TEST_REDIS_ADDR is set.
func TestRedis_Acquire(t *testing.T) {
	addr := os.Getenv("ROOMBOOKER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROOMBOOKER_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedis(client, time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, 4242)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(short, 4242)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, release(ctx))
	assert.ErrorIs(t, release(ctx), ErrNotHeld)
}
