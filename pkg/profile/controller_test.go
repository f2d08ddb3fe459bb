package profile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/adaprof/pkg/frame"
	"github.com/maxgio92/adaprof/pkg/profile"
)

const epochNS = uint64(100_000_000)

func newController(cfg profile.Config, state *profile.AdaptiveState) *profile.Controller {
	return profile.NewController(
		profile.WithControllerConfig(cfg),
		profile.WithControllerState(state),
	)
}

// converge applies the same per-epoch statistics repeatedly, refreshing the
// current probability from the state between epochs the way the aggregator
// snapshot does, and returns the settled per-function probabilities.
func converge(ctrl *profile.Controller, state *profile.AdaptiveState, stats []profile.FunctionStats, epochs int) []float64 {
	for e := 0; e < epochs; e++ {
		for i := range stats {
			stats[i].CurrentProb = state.Probability(stats[i].FuncID)
		}
		ctrl.Apply(profile.Snapshot{Stats: stats, EpochNS: epochNS})
	}

	probs := make([]float64, len(stats))
	for i := range stats {
		probs[i] = state.Probability(stats[i].FuncID)
	}

	return probs
}

func TestControllerExplorationFloor(t *testing.T) {
	cfg := profile.DefaultConfig()
	state := profile.NewAdaptiveState(cfg)
	ctrl := newController(cfg, state)

	// A function seen once, already backed off to the minimum rate, must be
	// pulled back up to the exploration floor rather than starved.
	id := frame.ID("main.rare")
	state.SetProbability(id, cfg.ProbMin())

	stats := []profile.FunctionStats{{
		FuncID:      id,
		Name:        "main.rare",
		SampleCount: 1,
	}}
	probs := converge(ctrl, state, stats, 40)

	require.GreaterOrEqual(t, probs[0], cfg.ExplorationProb*0.9)
	require.LessOrEqual(t, probs[0], cfg.ExplorationProb*1.1)
}

func TestControllerConstantDurationSettlesAtMinimum(t *testing.T) {
	cfg := profile.DefaultConfig()
	state := profile.NewAdaptiveState(cfg)
	ctrl := newController(cfg, state)

	// Zero variance with enough observations: nothing left to learn, back
	// off to the lowest admissible rate.
	id := frame.ID("main.constant")
	stats := []profile.FunctionStats{{
		FuncID:         id,
		Name:           "main.constant",
		SampleCount:    1000,
		WeightedCalls:  10000,
		MeanDurationNS: 1000,
		VarianceNS:     0,
	}}
	probs := converge(ctrl, state, stats, 40)

	require.InDelta(t, cfg.ProbMin(), probs[0], cfg.ProbMin()*0.1)
}

func TestControllerVarianceDrivesRate(t *testing.T) {
	cfg := profile.DefaultConfig()
	state := profile.NewAdaptiveState(cfg)
	ctrl := newController(cfg, state)

	// Same call frequency and mean, different spread: the noisy function
	// needs more samples to pin its mean down.
	noisy := frame.ID("main.noisy")
	steady := frame.ID("main.steady")
	stats := []profile.FunctionStats{
		{
			FuncID:         noisy,
			Name:           "main.noisy",
			SampleCount:    1000,
			WeightedCalls:  10000,
			MeanDurationNS: 10000,
			VarianceNS:     5000 * 5000,
		},
		{
			FuncID:         steady,
			Name:           "main.steady",
			SampleCount:    1000,
			WeightedCalls:  10000,
			MeanDurationNS: 10000,
			VarianceNS:     1000 * 1000,
		},
	}
	probs := converge(ctrl, state, stats, 40)

	require.Greater(t, probs[0], 5*probs[1])
}

func TestControllerBudgetGuard(t *testing.T) {
	cfg := profile.DefaultConfig()
	state := profile.NewAdaptiveState(cfg)
	ctrl := newController(cfg, state)

	// Twenty hot functions whose combined desired rate would cost twice the
	// budget: proportional scaling must bring the projected overhead down
	// to the budget fraction.
	stats := make([]profile.FunctionStats, 20)
	for i := range stats {
		stats[i] = profile.FunctionStats{
			FuncID:         frame.FuncID(1000 + i),
			SampleCount:    1000,
			WeightedCalls:  10000,
			MeanDurationNS: 10000,
			VarianceNS:     5000 * 5000,
		}
	}
	probs := converge(ctrl, state, stats, 60)

	overhead := 0.0
	for i := range stats {
		overhead += probs[i] * stats[i].WeightedCalls * cfg.CaptureCostNS / float64(epochNS)
	}
	require.LessOrEqual(t, overhead, cfg.OverheadBudget*1.05)
	require.Greater(t, overhead, cfg.OverheadBudget*0.5)

	// Identical functions are scaled identically.
	for i := 1; i < len(probs); i++ {
		require.InDelta(t, probs[0], probs[i], probs[0]*0.01)
	}
}

func TestControllerCumulativeSnapshotsKeepHeadroom(t *testing.T) {
	cfg := profile.DefaultConfig()
	state := profile.NewAdaptiveState(cfg)
	ctrl := newController(cfg, state)

	// Snapshot statistics accumulate since session start. As the session
	// runs, the cumulative call total grows, but the budget projection must
	// rate it over the elapsed time rather than over a single epoch:
	// otherwise a long-running session looks ever more expensive and the
	// guard squeezes a steady workload down to nothing.
	id := frame.ID("main.steadyHot")
	const (
		callsPerEpoch   = 500.0
		samplesPerEpoch = 50
	)
	for epoch := 1; epoch <= 200; epoch++ {
		stats := []profile.FunctionStats{{
			FuncID:         id,
			Name:           "main.steadyHot",
			SampleCount:    uint64(samplesPerEpoch * epoch),
			WeightedCalls:  callsPerEpoch * float64(epoch),
			MeanDurationNS: 10000,
			VarianceNS:     20000 * 20000,
			CurrentProb:    state.Probability(id),
		}}
		ctrl.Apply(profile.Snapshot{
			Stats:     stats,
			EpochNS:   epochNS,
			ElapsedNS: uint64(epoch) * epochNS,
		})
	}

	prob := state.Probability(id)
	require.GreaterOrEqual(t, prob, 0.015)

	// The settled rate stays within the overhead budget per epoch.
	overhead := prob * callsPerEpoch * cfg.CaptureCostNS / float64(epochNS)
	require.LessOrEqual(t, overhead, cfg.OverheadBudget)
}

func TestControllerTimerFunctionsKeepSampling(t *testing.T) {
	cfg := profile.DefaultConfig()
	state := profile.NewAdaptiveState(cfg)
	ctrl := newController(cfg, state)

	// Timer-driven samples carry no call durations, so the mean duration
	// stays zero no matter how many observations accumulate. Such functions
	// must hold their rate on the exploration path instead of collapsing to
	// the minimum once the warmup threshold is crossed.
	id := frame.ID("main.timerOnly")
	state.SetProbability(id, 0.01)

	stats := []profile.FunctionStats{{
		FuncID:        id,
		Name:          "main.timerOnly",
		SampleCount:   cfg.MinObservations * 10,
		WeightedCalls: 100,
	}}
	probs := converge(ctrl, state, stats, 40)

	require.GreaterOrEqual(t, probs[0], cfg.ExplorationProb)
}

func TestControllerEmptySnapshot(t *testing.T) {
	cfg := profile.DefaultConfig()
	state := profile.NewAdaptiveState(cfg)
	ctrl := newController(cfg, state)

	ctrl.Apply(profile.Snapshot{})
	require.Equal(t, uint64(1), ctrl.Epochs())
	require.Zero(t, state.Len())
}
