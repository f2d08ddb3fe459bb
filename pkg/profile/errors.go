package profile

import (
	"github.com/pkg/errors"
)

var (
	ErrIntervalBounds      = errors.New("interval_min must not exceed interval_max")
	ErrIntervalTooSmall    = errors.New("interval_min must be at least 1")
	ErrBudgetOutOfRange    = errors.New("overhead_budget_fraction must be in (0, 1]")
	ErrStackDepthBounds    = errors.New("max_stack_depth out of bounds")
	ErrEpochNotPositive    = errors.New("control_epoch must be positive")
	ErrBufferTooSmall      = errors.New("buffer_capacity must be at least 2")
	ErrSmoothingOutOfRange = errors.New("smoothing_alpha must be in (0, 1]")
	ErrSessionRunning      = errors.New("session is already running")
	ErrSessionNotStarted   = errors.New("session was never started")
)
