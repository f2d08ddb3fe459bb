package perfcnt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/adaprof/pkg/perfcnt"
)

func TestTimeCounterMonotonic(t *testing.T) {
	c := perfcnt.NewTimeCounter()
	require.NoError(t, c.Start())

	first, err := c.Read()
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	second, err := c.Read()
	require.NoError(t, err)
	require.Greater(t, second, first)

	require.NoError(t, c.Stop())
	require.NoError(t, c.Close())
}

func TestOpenTimeEvent(t *testing.T) {
	c, err := perfcnt.Open(perfcnt.EventTime)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.NoError(t, c.Close())

	// The empty event defaults to time.
	c, err = perfcnt.Open("")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.NoError(t, c.Close())
}

func TestOpenHardwareEvent(t *testing.T) {
	c, err := perfcnt.Open(perfcnt.EventCPUCycles)
	if err != nil {
		// Hardware counters need perf_event access, which containers and
		// CI runners commonly deny.
		require.ErrorIs(t, err, perfcnt.ErrNotAvailable)
		t.Skipf("hardware counters not available: %v", err)
	}
	defer c.Close()

	require.NoError(t, c.Start())
	busyWork()
	require.NoError(t, c.Stop())

	cycles, err := c.Read()
	require.NoError(t, err)
	require.Greater(t, cycles, uint64(0))
}

func busyWork() {
	acc := 0
	for i := 0; i < 1_000_000; i++ {
		acc += i * i
	}
	_ = acc
}
