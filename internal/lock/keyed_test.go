package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(ctx, "mta|L|1|L08|DELAY")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, km.Len(), "ключи должны удаляться после освобождения")
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := km.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	ctxB, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := km.Lock(ctxB, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancelWhileWaiting(t *testing.T) {
	km := NewKeyedMutex()

	unlock, err := km.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "k")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // повторный вызов безопасен
	assert.Equal(t, 0, km.Len())

	unlock, err = km.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
}
