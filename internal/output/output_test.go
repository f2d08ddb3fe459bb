package output

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		width   int
		filled  int
	}{
		{"empty", 0, 10, 0},
		{"half", 50, 10, 5},
		{"full", 100, 10, 10},
		{"clamped above", 150, 10, 10},
		{"clamped below", -10, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := ProgressBar(tt.percent, tt.width)
			require.Equal(t, tt.filled, strings.Count(bar, "█"))
			require.Equal(t, tt.width-tt.filled, strings.Count(bar, " "))
		})
	}
}

func TestPrettyProfileStatus(t *testing.T) {
	status := PrettyProfileStatus(1500, 42, 7, 12)

	require.Contains(t, status, "Samples/s:")
	require.Contains(t, status, "1500")
	require.Contains(t, status, "42%")
	require.Contains(t, status, "Dropped:")
	require.Contains(t, status, "Functions:")
	require.Contains(t, status, "12")
}

func TestStatusBarStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var ticks atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		StatusBar(ctx, time.Millisecond, func() {
			ticks.Add(1)
		})
	}()

	require.Eventually(t, func() bool {
		return ticks.Load() > 2
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("status bar did not stop on context cancellation")
	}
}
