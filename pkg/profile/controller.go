package profile

import (
	"context"
	"math"
	"sync/atomic"

	log "github.com/rs/zerolog"
)

// Controller owns the per-function sampling probabilities. It consumes one
// statistics snapshot from the aggregator per control epoch and commits
// updated probabilities to the adaptive state, which the trigger reads on
// the next fire.
//
// Per epoch, for each function, the controller:
//   - derives the sample count needed to keep the relative standard error
//     of the mean duration under the configured target,
//   - translates it into a probability given the observed call frequency,
//   - applies the epsilon-greedy exploration floor to under-observed
//     functions so new code paths are never starved,
//   - scales all probabilities down proportionally when the projected
//     overhead exceeds the budget (largest contributors reduced most),
//   - smooths the change with an exponential moving average and clips to
//     the configured bounds.
type Controller struct {
	cfg       Config
	state     *AdaptiveState
	snapshots <-chan Snapshot

	epochs atomic.Uint64

	logger log.Logger
}

type ControllerOption func(*Controller)

func WithControllerConfig(cfg Config) ControllerOption {
	return func(c *Controller) {
		c.cfg = cfg
	}
}

func WithControllerState(state *AdaptiveState) ControllerOption {
	return func(c *Controller) {
		c.state = state
	}
}

func WithControllerSnapshots(snapshots <-chan Snapshot) ControllerOption {
	return func(c *Controller) {
		c.snapshots = snapshots
	}
}

func WithControllerLogger(logger log.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger.With().Str("component", "controller").Logger()
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := new(Controller)
	for _, f := range opts {
		f(c)
	}

	return c
}

// Run consumes snapshots until the context is canceled.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-c.snapshots:
			if !ok {
				return nil
			}
			c.Apply(snap)
		}
	}
}

// Epochs reports how many control epochs have been applied.
func (c *Controller) Epochs() uint64 {
	return c.epochs.Load()
}

// Apply recomputes and commits probabilities from one epoch snapshot.
func (c *Controller) Apply(snap Snapshot) {
	c.epochs.Add(1)
	if len(snap.Stats) == 0 {
		return
	}

	epochNS := float64(snap.EpochNS)
	if epochNS <= 0 {
		epochNS = float64(c.cfg.ControlEpoch.Nanoseconds())
	}

	// Snapshots accumulate since session start, so the budget projection
	// rates them over elapsed session time, not over one epoch.
	elapsedNS := float64(snap.ElapsedNS)
	if elapsedNS < epochNS {
		elapsedNS = epochNS
	}

	targets := make([]float64, len(snap.Stats))
	floors := make([]float64, len(snap.Stats))
	for i := range snap.Stats {
		targets[i], floors[i] = c.target(&snap.Stats[i])
	}

	c.guardBudget(snap.Stats, targets, floors, elapsedNS)

	alpha := c.cfg.SmoothingAlpha
	for i := range snap.Stats {
		fs := &snap.Stats[i]
		smoothed := alpha*targets[i] + (1-alpha)*fs.CurrentProb
		c.state.SetProbability(fs.FuncID, smoothed)

		c.logger.Debug().
			Str("func", fs.Name).
			Float64("target", targets[i]).
			Float64("prob", c.state.Probability(fs.FuncID)).
			Msg("probability updated")
	}
}

// target computes the desired probability for one function, plus the floor
// below which the budget guard must not push it.
func (c *Controller) target(fs *FunctionStats) (target, floor float64) {
	floor = c.state.Clip(0)

	// Exploration: functions with too few observations keep a minimum
	// probability regardless of their estimates, so the controller cannot
	// permanently blind itself to newly-important code.
	if fs.SampleCount < c.cfg.MinObservations {
		floor = c.state.Clip(math.Max(c.cfg.ExplorationProb, floor))

		return math.Max(fs.CurrentProb, floor), floor
	}

	// No duration signal to adapt on (timer-mode functions report no call
	// durations): hold the current rate on the exploration path and let the
	// budget guard bound it.
	if fs.MeanDurationNS <= 0 || fs.WeightedCalls <= 0 {
		floor = c.state.Clip(math.Max(c.cfg.ExplorationProb, floor))

		return math.Max(fs.CurrentProb, floor), floor
	}

	// Samples needed for the target relative standard error scale with the
	// squared coefficient of variation of the duration distribution.
	cv2 := fs.VarianceNS / (fs.MeanDurationNS * fs.MeanDurationNS)
	rse := c.cfg.TargetRelStdErr
	desired := cv2 / (rse * rse)

	// A constant-duration function needs no further refinement: settle at
	// the lowest admissible rate once confidence is accumulated.
	if desired < 1 {
		return floor, floor
	}

	// Probability that yields the desired sample count over the calls
	// observed so far.
	return c.state.Clip(desired / fs.WeightedCalls), floor
}

// guardBudget scales probabilities down proportionally when the projected
// sampling overhead exceeds the configured budget fraction. WeightedCalls
// totals are cumulative since session start, so they are rated over the
// elapsed session time. Proportional scaling takes the most from the
// largest contributors; exploration floors are preserved.
func (c *Controller) guardBudget(stats []FunctionStats, targets, floors []float64, elapsedNS float64) {
	overhead := 0.0
	for i := range stats {
		overhead += targets[i] * stats[i].WeightedCalls * c.cfg.CaptureCostNS / elapsedNS
	}
	if overhead <= c.cfg.OverheadBudget {
		return
	}

	factor := c.cfg.OverheadBudget / overhead
	for i := range targets {
		targets[i] = math.Max(targets[i]*factor, floors[i])
	}

	c.logger.Debug().
		Float64("projected_overhead", overhead).
		Float64("scale", factor).
		Msg("overhead budget exceeded, scaling probabilities")
}
