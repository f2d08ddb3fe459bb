package profile

import (
	"context"
	"runtime"
	"time"

	log "github.com/rs/zerolog"

	"github.com/maxgio92/adaprof/pkg/frame"
	"github.com/maxgio92/adaprof/pkg/perfcnt"
	"github.com/maxgio92/adaprof/pkg/ring"
)

// TimerSampler is the fixed-interval trigger backend: on every tick it
// captures the stacks of all goroutines and draws one sampling decision per
// goroutine, keyed on the innermost function. It covers code that carries no
// call/return instrumentation. Backend selection happens once at session
// start, not per fire.
type TimerSampler struct {
	interval time.Duration
	state    *AdaptiveState
	buf      *ring.Ring[Sample]
	resolver *frame.Resolver
	counter  perfcnt.Counter
	maxDepth int

	// records is reused across ticks; it grows towards the maximum number
	// of live goroutines and then stays put, as in runtime profilers.
	records []runtime.StackRecord
	rng     uint64

	logger log.Logger
}

type TimerSamplerOption func(*TimerSampler)

func WithTimerInterval(interval time.Duration) TimerSamplerOption {
	return func(t *TimerSampler) {
		t.interval = interval
	}
}

func WithTimerState(state *AdaptiveState) TimerSamplerOption {
	return func(t *TimerSampler) {
		t.state = state
	}
}

func WithTimerBuffer(buf *ring.Ring[Sample]) TimerSamplerOption {
	return func(t *TimerSampler) {
		t.buf = buf
	}
}

func WithTimerResolver(resolver *frame.Resolver) TimerSamplerOption {
	return func(t *TimerSampler) {
		t.resolver = resolver
	}
}

func WithTimerCounter(counter perfcnt.Counter) TimerSamplerOption {
	return func(t *TimerSampler) {
		t.counter = counter
	}
}

func WithTimerMaxDepth(depth int) TimerSamplerOption {
	return func(t *TimerSampler) {
		t.maxDepth = depth
	}
}

func WithTimerLogger(logger log.Logger) TimerSamplerOption {
	return func(t *TimerSampler) {
		t.logger = logger.With().Str("component", "timer").Logger()
	}
}

func NewTimerSampler(opts ...TimerSamplerOption) *TimerSampler {
	t := &TimerSampler{
		rng: 0x9e3779b97f4a7c15,
	}
	for _, f := range opts {
		f(t)
	}
	if t.maxDepth <= 0 || t.maxDepth > MaxStackDepth {
		t.maxDepth = MaxStackDepth
	}

	return t
}

// Run ticks until the context is canceled.
func (t *TimerSampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *TimerSampler) tick() {
	for {
		n, ok := runtime.GoroutineProfile(t.records)
		if ok {
			t.records = t.records[:n]

			break
		}
		// Overshoot so the slice settles once the goroutine count peaks.
		t.records = make([]runtime.StackRecord, int(float64(n)*1.1)+8)
	}

	now := t.nowNS()
	for i := range t.records {
		t.sampleRecord(&t.records[i], now, uint64(i))
	}
}

func (t *TimerSampler) sampleRecord(rec *runtime.StackRecord, now, gid uint64) {
	stk := rec.Stack()
	if len(stk) == 0 {
		return
	}

	leaf := t.resolver.ResolvePC(stk[0])
	p := t.state.Probability(leaf.ID)
	if p <= 0 || t.nextFloat() >= p {
		return
	}

	smp := Sample{
		TimestampNS: now,
		ThreadID:    gid,
		Weight:      1 / p,
		ValueNS:     uint64(t.interval.Nanoseconds()),
		Resolved:    false,
	}

	depth := len(stk)
	if depth > t.maxDepth {
		depth = t.maxDepth
		smp.Truncated = true
	}
	for i := 0; i < depth; i++ {
		smp.Frames[i] = uint64(stk[i])
	}
	smp.Depth = uint16(depth)

	t.buf.Push(smp)
}

func (t *TimerSampler) nowNS() uint64 {
	v, err := t.counter.Read()
	if err != nil {
		return 0
	}

	return v
}

func (t *TimerSampler) nextFloat() float64 {
	x := t.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	t.rng = x

	return float64(x>>11) / (1 << 53)
}
