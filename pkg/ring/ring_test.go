package ring_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/adaprof/pkg/ring"
)

func TestNewRingCapacity(t *testing.T) {
	_, err := ring.New[int](1)
	require.Error(t, err)
	require.ErrorIs(t, err, ring.ErrCapacityTooSmall)

	r, err := ring.New[int](100)
	require.NoError(t, err)
	require.Equal(t, 128, r.Capacity())
}

func TestPushPopOrder(t *testing.T) {
	r, err := ring.New[int](8)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.True(t, r.Push(i))
	}
	require.Equal(t, 5, r.Len())

	for i := 0; i < 5; i++ {
		v, ok := r.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}

	_, ok := r.Pop()
	require.False(t, ok)
	require.Equal(t, 0, r.Len())
}

func TestOverflowDropsNewest(t *testing.T) {
	r, err := ring.New[int](4)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.True(t, r.Push(i))
	}
	require.False(t, r.Push(99))
	require.Equal(t, uint64(1), r.Dropped())

	// The records already enqueued are intact.
	v, ok := r.Pop()
	require.True(t, ok)
	require.Equal(t, 0, v)
}

func TestWrapAround(t *testing.T) {
	r, err := ring.New[int](4)
	require.NoError(t, err)

	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			require.True(t, r.Push(round*10+i))
		}
		for i := 0; i < 3; i++ {
			v, ok := r.Pop()
			require.True(t, ok)
			require.Equal(t, round*10+i, v)
		}
	}
}

func TestFloodNeverBlocks(t *testing.T) {
	const (
		producers = 8
		perProd   = 10000
	)

	r, err := ring.New[uint64](256)
	require.NoError(t, err)

	// No consumer: every producer must return promptly from every push,
	// successful or dropped.
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProd; i++ {
				r.Push(uint64(p*perProd + i))
			}
		}(p)
	}
	wg.Wait()

	require.Equal(t, uint64(producers*perProd-r.Capacity()), r.Dropped())
	require.Equal(t, r.Capacity(), r.Len())
}

func TestConcurrentProducersSingleConsumer(t *testing.T) {
	const (
		producers = 4
		perProd   = 5000
	)

	r, err := ring.New[uint64](1024)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProd; i++ {
				r.Push(uint64(1))
			}
		}(p)
	}

	consumed := uint64(0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	for {
		v, ok := r.Pop()
		if ok {
			consumed += v
			continue
		}
		select {
		case <-done:
			for {
				v, ok := r.Pop()
				if !ok {
					require.Equal(t, uint64(producers*perProd), consumed+r.Dropped())
					return
				}
				consumed += v
			}
		default:
		}
	}
}
