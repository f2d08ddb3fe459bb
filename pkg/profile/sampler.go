package profile

import (
	"sync/atomic"

	log "github.com/rs/zerolog"

	"github.com/maxgio92/adaprof/pkg/frame"
	"github.com/maxgio92/adaprof/pkg/perfcnt"
	"github.com/maxgio92/adaprof/pkg/ring"
)

// callFrame is one entry of a goroutine shadow stack. The stopwatch fields
// implement pause/unpause accounting: self time accumulates only while the
// function is on top of the stack.
type callFrame struct {
	id        frame.FuncID
	startNS   uint64
	selfNS    uint64
	resumedNS uint64
}

// GState is the per-goroutine capture scratch: shadow stack, PRNG and
// overflow bookkeeping, all fixed-size and owned by exactly one goroutine.
// Allocate it once, outside the instrumented code, with Sampler.NewGState.
type GState struct {
	id        uint64
	rng       uint64
	depth     int
	overflow  int
	truncated bool
	frames    [MaxStackDepth]callFrame
}

// Sampler is the trigger: it is invoked inline on whichever goroutine runs
// instrumented code, decides per fire whether to capture, and hands samples
// off through the ring buffer. It never blocks and never allocates on the
// fire path; on a full buffer the sample is dropped and counted.
type Sampler struct {
	state    *AdaptiveState
	buf      *ring.Ring[Sample]
	counter  perfcnt.Counter
	maxDepth int

	enabled  atomic.Bool
	nextG    atomic.Uint64
	fired    atomic.Uint64
	captured atomic.Uint64

	logger log.Logger
}

type SamplerOption func(*Sampler)

func WithSamplerState(state *AdaptiveState) SamplerOption {
	return func(s *Sampler) {
		s.state = state
	}
}

func WithSamplerBuffer(buf *ring.Ring[Sample]) SamplerOption {
	return func(s *Sampler) {
		s.buf = buf
	}
}

func WithSamplerCounter(counter perfcnt.Counter) SamplerOption {
	return func(s *Sampler) {
		s.counter = counter
	}
}

func WithSamplerMaxDepth(depth int) SamplerOption {
	return func(s *Sampler) {
		s.maxDepth = depth
	}
}

func WithSamplerLogger(logger log.Logger) SamplerOption {
	return func(s *Sampler) {
		s.logger = logger.With().Str("component", "sampler").Logger()
	}
}

func NewSampler(opts ...SamplerOption) *Sampler {
	s := new(Sampler)
	for _, f := range opts {
		f(s)
	}
	if s.maxDepth <= 0 || s.maxDepth > MaxStackDepth {
		s.maxDepth = MaxStackDepth
	}

	return s
}

// NewGState allocates goroutine capture state. The seed disambiguates the
// per-goroutine PRNG streams.
func (s *Sampler) NewGState() *GState {
	id := s.nextG.Add(1)

	return &GState{
		id:  id,
		rng: id*0x9e3779b97f4a7c15 + 0x2545f4914f6cdd1d,
	}
}

// Enable arms the trigger.
func (s *Sampler) Enable() {
	s.enabled.Store(true)
}

// Disable stops the trigger from firing. In-flight captures complete.
func (s *Sampler) Disable() {
	s.enabled.Store(false)
}

// Fired reports how many sampling decisions were drawn.
func (s *Sampler) Fired() uint64 {
	return s.fired.Load()
}

// Captured reports how many samples were pushed (before any buffer drops).
func (s *Sampler) Captured() uint64 {
	return s.captured.Load()
}

// OnCall records entry into a function on the goroutine shadow stack and
// pauses the caller's stopwatch.
func (s *Sampler) OnCall(g *GState, id frame.FuncID) {
	now := s.now()

	if g.depth > 0 {
		top := &g.frames[g.depth-1]
		top.selfNS += now - top.resumedNS
	}

	if g.depth >= s.maxDepth {
		// Beyond the depth cap frames are not tracked individually; their
		// cost is attributed to the deepest tracked frame and the
		// truncation is flagged on subsequent samples.
		g.overflow++
		g.truncated = true

		return
	}

	g.frames[g.depth] = callFrame{
		id:        id,
		startNS:   now,
		resumedNS: now,
	}
	g.depth++
}

// OnReturn records the return of a function: it stops the stopwatch, draws
// the sampling decision for the completed call and resumes the caller.
func (s *Sampler) OnReturn(g *GState, id frame.FuncID) {
	if g.overflow > 0 {
		g.overflow--

		return
	}
	if g.depth == 0 {
		return
	}

	now := s.now()
	g.depth--
	top := g.frames[g.depth]

	if s.enabled.Load() && top.id == id {
		s.fire(g, &top, now)
	}

	if g.depth > 0 {
		g.frames[g.depth-1].resumedNS = now
	} else {
		g.truncated = false
	}
}

// fire draws the pseudo-random sampling decision for one completed call and
// captures the stack from the shadow stack on a hit. The weight 1/p uses
// the probability in effect right now, at capture time.
func (s *Sampler) fire(g *GState, top *callFrame, now uint64) {
	s.fired.Add(1)

	p := s.state.Probability(top.id)
	if p <= 0 {
		return
	}
	if g.nextFloat() >= p {
		return
	}

	smp := Sample{
		TimestampNS: now,
		ThreadID:    g.id,
		Weight:      1 / p,
		ValueNS:     top.selfNS + (now - top.resumedNS),
		DurationNS:  now - top.startNS,
		Truncated:   g.truncated,
		Resolved:    true,
	}

	// Innermost first: the sampled call, then its live ancestors.
	smp.Frames[0] = uint64(top.id)
	depth := 1
	for i := g.depth - 1; i >= 0 && depth < s.maxDepth; i-- {
		smp.Frames[depth] = uint64(g.frames[i].id)
		depth++
	}
	smp.Depth = uint16(depth)

	s.captured.Add(1)
	s.buf.Push(smp)
}

func (s *Sampler) now() uint64 {
	v, err := s.counter.Read()
	if err != nil {
		return 0
	}

	return v
}

// nextFloat advances the xorshift64* PRNG and returns a value in [0, 1).
func (g *GState) nextFloat() float64 {
	x := g.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	g.rng = x

	return float64(x>>11) / (1 << 53)
}
