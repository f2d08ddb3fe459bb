package profile

import (
	"context"
	"time"

	"github.com/maxgio92/adaprof/internal/output"
)

// PrintStatusBar periodically renders a one-line status of the running
// session: sampling rate, buffer utilization, drops and tracked functions.
// It returns when the context is canceled.
func (s *Session) PrintStatusBar(ctx context.Context) {
	var lastCaptured uint64

	output.StatusBar(ctx,
		1*time.Second, // bar refresh interval.
		func() {
			captured := s.sampler.Captured()
			rate := captured - lastCaptured
			lastCaptured = captured

			output.PrintRight(output.PrettyProfileStatus(
				rate,
				s.buf.Len()*100/s.buf.Capacity(),
				s.buf.Dropped(),
				s.state.Len(),
			))
		},
	)
}
