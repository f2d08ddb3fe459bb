package profile

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/maxgio92/adaprof/pkg/frame"
	"github.com/maxgio92/adaprof/pkg/perfcnt"
	"github.com/maxgio92/adaprof/pkg/ring"
)

// Session is one profiling run: it owns the trigger, the sample buffer, the
// aggregation goroutine and the adaptive controller, and produces the final
// report on Stop.
type Session struct {
	cfg    Config
	logger log.Logger

	id        string
	state     *AdaptiveState
	buf       *ring.Ring[Sample]
	resolver  *frame.Resolver
	sampler   *Sampler
	timer     *TimerSampler
	agg       *Aggregator
	ctrl      *Controller
	counter         perfcnt.Counter
	counterInjected bool
	hwCapable       bool

	g         *errgroup.Group
	cancel    context.CancelFunc
	startWall time.Time

	mu      sync.Mutex
	started bool
	report  *Report
}

type SessionOption func(*Session)

func WithSessionConfig(cfg Config) SessionOption {
	return func(s *Session) {
		s.cfg = cfg
	}
}

func WithSessionLogger(logger log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithSessionCounter overrides counter backend selection with a caller-owned
// counter.
func WithSessionCounter(counter perfcnt.Counter) SessionOption {
	return func(s *Session) {
		s.counter = counter
		s.counterInjected = true
	}
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		cfg: DefaultConfig(),
	}
	for _, f := range opts {
		f(s)
	}

	return s
}

// Start validates the configuration and arms the profiler. Configuration
// errors are the only fatal failures: everything after this point degrades
// to counters and warnings.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrSessionRunning
	}
	if err := s.cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid session configuration")
	}

	s.id = uuid.NewString()
	s.report = nil
	s.startWall = time.Now()

	if err := s.openCounter(); err != nil {
		return err
	}

	symtab := frame.NewELFSymTab()
	if exe, err := os.Executable(); err == nil {
		if err := symtab.Load(exe); err != nil {
			s.logger.Debug().Err(err).Msg("ELF symbol table unavailable")
		}
	}
	s.resolver = frame.NewResolver(
		frame.WithResolverSymTab(symtab),
		frame.WithResolverLogger(s.logger),
	)

	var err error
	s.buf, err = ring.New[Sample](s.cfg.BufferCapacity)
	if err != nil {
		return errors.Wrap(err, "error creating sample buffer")
	}

	s.state = NewAdaptiveState(s.cfg)

	snapshots := make(chan Snapshot, 1)
	s.agg = NewAggregator(
		WithAggregatorConfig(s.cfg),
		WithAggregatorBuffer(s.buf),
		WithAggregatorResolver(s.resolver),
		WithAggregatorState(s.state),
		WithAggregatorSnapshots(snapshots),
		WithAggregatorLogger(s.logger),
	)
	s.ctrl = NewController(
		WithControllerConfig(s.cfg),
		WithControllerState(s.state),
		WithControllerSnapshots(snapshots),
		WithControllerLogger(s.logger),
	)
	s.sampler = NewSampler(
		WithSamplerState(s.state),
		WithSamplerBuffer(s.buf),
		WithSamplerCounter(s.counter),
		WithSamplerMaxDepth(s.cfg.MaxStackDepth),
		WithSamplerLogger(s.logger),
	)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.g, runCtx = errgroup.WithContext(runCtx)
	s.g.Go(func() error {
		return s.agg.Run(runCtx)
	})
	s.g.Go(func() error {
		return s.ctrl.Run(runCtx)
	})

	if s.cfg.TimerInterval > 0 {
		s.timer = NewTimerSampler(
			WithTimerInterval(s.cfg.TimerInterval),
			WithTimerState(s.state),
			WithTimerBuffer(s.buf),
			WithTimerResolver(s.resolver),
			WithTimerCounter(s.counter),
			WithTimerMaxDepth(s.cfg.MaxStackDepth),
			WithTimerLogger(s.logger),
		)
		timer := s.timer
		s.g.Go(func() error {
			return timer.Run(runCtx)
		})
	}

	s.sampler.Enable()
	s.started = true

	s.logger.Info().
		Str("session", s.id).
		Str("resource", string(s.cfg.Resource)).
		Bool("hardware_counters", s.hwCapable).
		Msg("session started")

	return nil
}

// openCounter selects the counter backend. A missing hardware capability
// falls back to timer-only measurement and is reported in the final
// summary, never as a session failure.
func (s *Session) openCounter() error {
	if s.counterInjected {
		s.hwCapable = s.cfg.HardwareCounters

		return errors.Wrap(s.counter.Start(), "error starting counter")
	}

	event := s.cfg.Resource
	if !s.cfg.HardwareCounters {
		event = perfcnt.EventTime
	}

	counter, err := perfcnt.Open(event)
	if err != nil {
		if !errors.Is(err, perfcnt.ErrNotAvailable) {
			return errors.Wrap(err, "error opening counter")
		}
		s.logger.Warn().Err(err).Msg("hardware counters unavailable, falling back to time")
		counter = perfcnt.NewTimeCounter()
		s.hwCapable = false
	} else {
		s.hwCapable = s.cfg.HardwareCounters
	}
	s.counter = counter

	return errors.Wrap(counter.Start(), "error starting counter")
}

// Sampler exposes the call/return hook surface for instrumented code.
func (s *Session) Sampler() *Sampler {
	return s.sampler
}

// Interner exposes the frame interner so instrumentation can pre-intern its
// function identifiers.
func (s *Session) Interner() *frame.Interner {
	return s.resolver.Interner()
}

// Stop tears the session down: the trigger stops firing, the buffer is
// drained to completion bounded by the shutdown timeout, one final
// aggregation pass runs, and the report is built. Calling Stop again returns
// the same report without mutating state.
func (s *Session) Stop() (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.report != nil {
		return s.report, nil
	}
	if !s.started {
		return nil, ErrSessionNotStarted
	}

	s.sampler.Disable()
	s.cancel()
	if err := s.g.Wait(); err != nil {
		s.logger.Warn().Err(err).Msg("background goroutine failed")
	}

	// Final drain, bounded so shutdown completes within the deadline. A
	// timeout still produces a report, marked partial.
	complete := s.agg.DrainRemaining(time.Now().Add(s.cfg.ShutdownTimeout))
	if !complete {
		s.logger.Warn().
			Dur("timeout", s.cfg.ShutdownTimeout).
			Msg("drain timed out, report will be partial")
	}

	if err := s.counter.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("error stopping counter")
	}
	if err := s.counter.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("error closing counter")
	}
	s.started = false

	s.report = s.buildReport(s.agg.Final(), !complete)

	s.logger.Info().
		Str("session", s.id).
		Uint64("samples", s.agg.Drained()).
		Uint64("dropped", s.buf.Dropped()).
		Msg("session stopped")

	return s.report, nil
}

// Result exposes the raw aggregation output (folded stacks, call graph) of
// a stopped session for the secondary exporters.
func (s *Session) Result() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.report == nil {
		return Result{}, ErrSessionNotStarted
	}

	return s.agg.Final(), nil
}

func (s *Session) buildReport(res Result, partial bool) *Report {
	wallNS := uint64(time.Since(s.startWall).Nanoseconds())

	// Timer samples stand for tick intervals: their weighted sum is
	// normalized against elapsed wall-clock time. Hook samples measure
	// durations directly and are never rescaled, so the scale applies only
	// to the timer-contributed portion of each bucket.
	scale := 1.0
	if s.cfg.TimerInterval > 0 && res.TimerWeighted > 0 {
		scale = float64(wallNS) / res.TimerWeighted
	}

	resource := s.cfg.Resource
	if !s.hwCapable {
		resource = perfcnt.EventTime
	}

	functions := make(map[string]FunctionReport, len(res.Stats))
	for _, fs := range res.Stats {
		hookSelf := fs.WeightedSelfNS - fs.TimerSelfNS
		hookTotal := fs.WeightedTotalNS - fs.TimerTotalNS
		functions[fs.Name] = FunctionReport{
			SampleCount:          fs.SampleCount,
			EstimatedSelfTimeNS:  uint64(hookSelf + fs.TimerSelfNS*scale),
			EstimatedTotalTimeNS: uint64(hookTotal + fs.TimerTotalNS*scale),
		}
	}

	return NewReport(
		WithReportSessionID(s.id),
		WithReportResource(string(resource)),
		WithReportFunctions(functions),
		WithReportDropped(s.buf.Dropped()),
		WithReportUnresolved(s.resolver.UnresolvedCount()),
		WithReportWallClock(wallNS),
		WithReportHardwareCounters(s.hwCapable),
		WithReportPartial(partial),
	)
}

// Reset clears all statistics and restores adaptive defaults so the session
// object can be started again.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrSessionRunning
	}

	s.report = nil
	if s.state != nil {
		s.state.Reset()
	}

	return nil
}
