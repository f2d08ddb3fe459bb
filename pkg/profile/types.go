package profile

import (
	"github.com/maxgio92/adaprof/pkg/frame"
)

const (
	// MaxStackDepth is the hard cap on captured stack depth. The configured
	// per-session depth may be lower, never higher: sample records are
	// fixed-size so the capture path stays allocation-free.
	MaxStackDepth = 128
)

// Sample is one captured observation. Created by the sampler, immutable,
// consumed exactly once by the aggregator. All fields are fixed-size.
type Sample struct {
	// TimestampNS is the counter value at capture time.
	TimestampNS uint64

	// ThreadID identifies the capturing goroutine state.
	ThreadID uint64

	// Weight is 1/p for the sampling probability p of the innermost
	// function in effect at capture time. It is stored here, at capture,
	// and never recomputed later: probabilities may change between capture
	// and drain.
	Weight float64

	// ValueNS is the counter amount this sample stands for: the exclusive
	// (self) cost of the sampled call in hook mode, or the tick interval in
	// timer mode.
	ValueNS uint64

	// DurationNS is the inclusive duration of the sampled call. Zero in
	// timer mode.
	DurationNS uint64

	// Depth is the number of valid entries in Frames.
	Depth uint16

	// Truncated marks stacks deeper than the configured maximum.
	Truncated bool

	// Resolved is true when Frames holds interned function identifiers
	// (hook mode) and false when it holds raw program counters that the
	// aggregator must pass through the frame resolver (timer mode).
	Resolved bool

	// Frames is the captured stack, innermost first.
	Frames [MaxStackDepth]uint64
}

// FunctionStats is the per-function statistics snapshot the aggregator
// publishes to the adaptive controller each control epoch.
type FunctionStats struct {
	FuncID frame.FuncID
	Name   string

	// SampleCount is the number of samples attributed to the function as
	// innermost frame. Monotonically non-decreasing within a session.
	SampleCount uint64

	// WeightedCalls estimates the true number of calls (sum of weights).
	WeightedCalls float64

	// WeightedSelfNS and WeightedTotalNS are the bias-corrected exclusive
	// and inclusive cost estimates accumulated so far.
	WeightedSelfNS  float64
	WeightedTotalNS float64

	// TimerSelfNS and TimerTotalNS are the portions of the weighted buckets
	// contributed by timer samples. Only these are rescaled against wall
	// clock in the final report.
	TimerSelfNS  float64
	TimerTotalNS float64

	// MeanDurationNS and VarianceNS are the Welford running estimates of
	// the call duration distribution.
	MeanDurationNS float64
	VarianceNS     float64

	// CurrentProb is the sampling probability in effect when the snapshot
	// was taken.
	CurrentProb float64
}

// Snapshot carries the aggregator statistics for one control epoch to the
// adaptive controller. Feedback is explicit message passing on a fixed
// cadence, not continuously read shared state.
type Snapshot struct {
	Stats   []FunctionStats
	EpochNS uint64

	// ElapsedNS is the time since session start. Stats accumulate over the
	// whole session, so rate calculations divide by this, not by EpochNS.
	ElapsedNS uint64
}
