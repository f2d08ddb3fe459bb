package profile

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/maxgio92/adaprof/pkg/perfcnt"
)

// Config enumerates the session parameters. Intervals are expressed as the
// expected number of calls between two samples of a function: an interval of
// 1 samples every call, an interval of 10000 samples one call in ten
// thousand on average. Sampling probabilities are their reciprocals.
type Config struct {
	IntervalMin      float64       `yaml:"interval_min"`
	IntervalMax      float64       `yaml:"interval_max"`
	OverheadBudget   float64       `yaml:"overhead_budget_fraction"`
	MaxStackDepth    int           `yaml:"max_stack_depth"`
	HardwareCounters bool          `yaml:"hardware_counters_enabled"`
	Resource         perfcnt.Event `yaml:"resource"`

	BufferCapacity  int           `yaml:"buffer_capacity"`
	ControlEpoch    time.Duration `yaml:"control_epoch"`
	TargetRelStdErr float64       `yaml:"target_rel_std_err"`
	ExplorationProb float64       `yaml:"exploration_probability"`
	MinObservations uint64        `yaml:"min_observations"`
	SmoothingAlpha  float64       `yaml:"smoothing_alpha"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// CaptureCostNS is the assumed cost of one stack capture, used by the
	// global overhead guard to translate the budget fraction into a
	// sampling rate ceiling.
	CaptureCostNS float64 `yaml:"capture_cost_ns"`

	// TimerInterval enables the timer-driven backend when positive; zero
	// leaves only the call/return hook backend active.
	TimerInterval time.Duration `yaml:"timer_interval"`
}

func DefaultConfig() Config {
	return Config{
		IntervalMin:     1,
		IntervalMax:     100000,
		OverheadBudget:  0.02,
		MaxStackDepth:   64,
		Resource:        perfcnt.EventTime,
		BufferCapacity:  8192,
		ControlEpoch:    100 * time.Millisecond,
		TargetRelStdErr: 0.05,
		ExplorationProb: 0.001,
		MinObservations: 16,
		SmoothingAlpha:  0.3,
		ShutdownTimeout: 5 * time.Second,
		CaptureCostNS:   2000,
	}
}

// LoadConfig reads a session configuration from a YAML file, applied on top
// of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "error reading config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// Validate surfaces configuration errors before sampling begins. These are
// the only fatal failures of a session.
func (c *Config) Validate() error {
	if c.IntervalMin < 1 {
		return ErrIntervalTooSmall
	}
	if c.IntervalMin > c.IntervalMax {
		return ErrIntervalBounds
	}
	if c.OverheadBudget <= 0 || c.OverheadBudget > 1 {
		return ErrBudgetOutOfRange
	}
	if c.MaxStackDepth < 1 || c.MaxStackDepth > MaxStackDepth {
		return ErrStackDepthBounds
	}
	if c.BufferCapacity < 2 {
		return ErrBufferTooSmall
	}
	if c.ControlEpoch <= 0 {
		return ErrEpochNotPositive
	}
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1 {
		return ErrSmoothingOutOfRange
	}

	return nil
}

// ProbMax is the highest admissible sampling probability.
func (c *Config) ProbMax() float64 {
	return 1 / c.IntervalMin
}

// ProbMin is the lowest admissible sampling probability, never zero.
func (c *Config) ProbMin() float64 {
	return 1 / c.IntervalMax
}
