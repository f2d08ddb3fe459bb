package profile

import (
	"context"
	"strconv"
	"strings"
	"time"

	log "github.com/rs/zerolog"

	"github.com/maxgio92/adaprof/pkg/frame"
	"github.com/maxgio92/adaprof/pkg/ring"
)

const drainPollInterval = 500 * time.Microsecond

// funcAgg is the aggregator-owned accumulator for one function.
type funcAgg struct {
	id   frame.FuncID
	name string

	sampleCount   uint64
	weightedCalls float64
	weightedSelf  float64
	weightedTotal float64

	// timerSelf and timerTotal are the portions of the buckets contributed
	// by timer samples, which the session normalizes against wall-clock
	// time. Hook contributions are never rescaled.
	timerSelf  float64
	timerTotal float64

	durations Welford
}

// foldedStack accumulates weight for one distinct stack, for flame graph
// and pprof export.
type foldedStack struct {
	rootToLeaf []frame.FuncID
	weight     float64
	count      uint64
}

// Aggregator drains the sample buffer on a dedicated goroutine and turns
// biased, variable-rate samples into unbiased per-function estimates and a
// call graph.
//
// Each sample contributes weight×value to the exclusive bucket of its
// innermost frame and to the inclusive bucket of every distinct function on
// the stack. The weight is the importance-sampling correction 1/p stored in
// the sample at capture time: functions sampled less often count
// proportionally more, which removes the bias the adaptive controller would
// otherwise introduce.
type Aggregator struct {
	cfg      Config
	buf      *ring.Ring[Sample]
	resolver *frame.Resolver
	state    *AdaptiveState
	graph    *CallGraph

	stats  map[frame.FuncID]*funcAgg
	folded map[string]*foldedStack

	snapshots chan<- Snapshot

	start time.Time

	drained       uint64
	totalWeighted float64
	timerWeighted float64

	// scratch reused across samples to keep the drain loop allocation-light.
	idsScratch  []frame.FuncID
	seenScratch map[frame.FuncID]struct{}
	pcsScratch  []uintptr

	logger log.Logger
}

type AggregatorOption func(*Aggregator)

func WithAggregatorConfig(cfg Config) AggregatorOption {
	return func(a *Aggregator) {
		a.cfg = cfg
	}
}

func WithAggregatorBuffer(buf *ring.Ring[Sample]) AggregatorOption {
	return func(a *Aggregator) {
		a.buf = buf
	}
}

func WithAggregatorResolver(resolver *frame.Resolver) AggregatorOption {
	return func(a *Aggregator) {
		a.resolver = resolver
	}
}

func WithAggregatorState(state *AdaptiveState) AggregatorOption {
	return func(a *Aggregator) {
		a.state = state
	}
}

func WithAggregatorSnapshots(snapshots chan<- Snapshot) AggregatorOption {
	return func(a *Aggregator) {
		a.snapshots = snapshots
	}
}

func WithAggregatorLogger(logger log.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logger.With().Str("component", "aggregator").Logger()
	}
}

func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		start:       time.Now(),
		graph:       NewCallGraph(),
		stats:       make(map[frame.FuncID]*funcAgg),
		folded:      make(map[string]*foldedStack),
		seenScratch: make(map[frame.FuncID]struct{}, MaxStackDepth),
		idsScratch:  make([]frame.FuncID, 0, MaxStackDepth),
		pcsScratch:  make([]uintptr, 0, MaxStackDepth),
	}
	for _, f := range opts {
		f(a)
	}

	return a
}

// Run drains samples until the context is canceled, publishing one
// statistics snapshot to the controller per control epoch.
func (a *Aggregator) Run(ctx context.Context) error {
	epoch := time.NewTicker(a.cfg.ControlEpoch)
	defer epoch.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-epoch.C:
			a.publish()
		default:
		}

		s, ok := a.buf.Pop()
		if !ok {
			// The drain may wait briefly for new samples, never longer
			// than the poll interval, so shutdown stays bounded.
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(drainPollInterval):
			}

			continue
		}
		a.process(&s)
	}
}

// DrainRemaining consumes whatever is left in the buffer, bounded by the
// deadline. It reports whether the drain completed.
func (a *Aggregator) DrainRemaining(deadline time.Time) bool {
	for {
		s, ok := a.buf.Pop()
		if !ok {
			return true
		}
		a.process(&s)

		if time.Now().After(deadline) {
			return a.buf.Len() == 0
		}
	}
}

// Drained reports the number of samples consumed so far.
func (a *Aggregator) Drained() uint64 {
	return a.drained
}

// Graph exposes the accumulated call graph.
func (a *Aggregator) Graph() *CallGraph {
	return a.graph
}

func (a *Aggregator) process(s *Sample) {
	a.drained++

	ids := a.resolveFrames(s)
	if len(ids) == 0 {
		return
	}

	value := s.Weight * float64(s.ValueNS)
	a.totalWeighted += value
	if !s.Resolved {
		a.timerWeighted += value
	}

	// Exclusive bucket: innermost frame only.
	leaf := a.ensure(ids[0])
	leaf.sampleCount++
	leaf.weightedCalls += s.Weight
	leaf.weightedSelf += value
	if !s.Resolved {
		leaf.timerSelf += value
	}
	if s.DurationNS > 0 {
		leaf.durations.Update(float64(s.DurationNS), s.Weight)
	}

	// Inclusive bucket: every function on the stack, once per sample even
	// when recursion repeats it.
	for id := range a.seenScratch {
		delete(a.seenScratch, id)
	}
	for _, id := range ids {
		if _, ok := a.seenScratch[id]; ok {
			continue
		}
		a.seenScratch[id] = struct{}{}
		fa := a.ensure(id)
		fa.weightedTotal += value
		if !s.Resolved {
			fa.timerTotal += value
		}
	}

	// Call graph wants root→leaf order.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	a.graph.Ingest(ids, s.Weight)
	a.fold(ids, value)
}

// resolveFrames maps the sample's raw frames to interned function ids,
// innermost first. Timer-mode samples go through the frame resolver;
// hook-mode samples already carry interned ids.
func (a *Aggregator) resolveFrames(s *Sample) []frame.FuncID {
	ids := a.idsScratch[:0]

	if s.Resolved {
		for i := 0; i < int(s.Depth); i++ {
			ids = append(ids, frame.FuncID(s.Frames[i]))
		}
		a.idsScratch = ids

		return ids
	}

	pcs := a.pcsScratch[:0]
	for i := 0; i < int(s.Depth); i++ {
		pcs = append(pcs, uintptr(s.Frames[i]))
	}
	a.pcsScratch = pcs

	stack := a.resolver.Resolve(pcs)
	for _, f := range stack.Frames {
		ids = append(ids, f.ID)
	}
	a.idsScratch = ids

	return ids
}

func (a *Aggregator) ensure(id frame.FuncID) *funcAgg {
	fa, ok := a.stats[id]
	if !ok {
		fa = &funcAgg{id: id}
		if name, err := a.resolver.Interner().Name(id); err == nil {
			fa.name = name
		} else {
			fa.name = "0x" + strconv.FormatUint(uint64(id), 16)
		}
		a.stats[id] = fa
	}

	return fa
}

func (a *Aggregator) fold(rootToLeaf []frame.FuncID, value float64) {
	var sb strings.Builder
	for i, id := range rootToLeaf {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.FormatUint(uint64(id), 16))
	}
	key := sb.String()

	fs, ok := a.folded[key]
	if !ok {
		fs = &foldedStack{
			rootToLeaf: append([]frame.FuncID(nil), rootToLeaf...),
		}
		a.folded[key] = fs
	}
	fs.weight += value
	fs.count++
}

// publish sends the epoch snapshot to the controller. The send never
// blocks: a lagging controller skips an epoch rather than stalling the
// drain.
func (a *Aggregator) publish() {
	if a.snapshots == nil {
		return
	}

	snap := a.snapshot()
	select {
	case a.snapshots <- snap:
	default:
		a.logger.Debug().Msg("controller lagging, snapshot skipped")
	}
}

func (a *Aggregator) snapshot() Snapshot {
	snap := Snapshot{
		Stats:     make([]FunctionStats, 0, len(a.stats)),
		EpochNS:   uint64(a.cfg.ControlEpoch.Nanoseconds()),
		ElapsedNS: uint64(time.Since(a.start).Nanoseconds()),
	}
	for _, fa := range a.stats {
		snap.Stats = append(snap.Stats, a.functionStats(fa))
	}

	return snap
}

func (a *Aggregator) functionStats(fa *funcAgg) FunctionStats {
	currentProb := 0.0
	if a.state != nil {
		currentProb = a.state.Probability(fa.id)
	}

	return FunctionStats{
		CurrentProb:     currentProb,
		FuncID:          fa.id,
		Name:            fa.name,
		SampleCount:     fa.sampleCount,
		WeightedCalls:   fa.weightedCalls,
		WeightedSelfNS:  fa.weightedSelf,
		WeightedTotalNS: fa.weightedTotal,
		TimerSelfNS:     fa.timerSelf,
		TimerTotalNS:    fa.timerTotal,
		MeanDurationNS:  fa.durations.Mean(),
		VarianceNS:      fa.durations.Variance(),
	}
}

// Result is the final aggregation output consumed by the session when
// building the report.
type Result struct {
	Stats         map[frame.FuncID]FunctionStats
	Folded        []FoldedStack
	Graph         *CallGraph
	TotalWeighted float64
	TimerWeighted float64
	Drained       uint64
}

// FoldedStack is one distinct stack with its accumulated weighted value,
// named and ready for export.
type FoldedStack struct {
	Frames  []string
	ValueNS float64
	Count   uint64
}

// Final materializes the aggregation result.
func (a *Aggregator) Final() Result {
	res := Result{
		Stats:         make(map[frame.FuncID]FunctionStats, len(a.stats)),
		Folded:        make([]FoldedStack, 0, len(a.folded)),
		Graph:         a.graph,
		TotalWeighted: a.totalWeighted,
		TimerWeighted: a.timerWeighted,
		Drained:       a.drained,
	}
	for id, fa := range a.stats {
		res.Stats[id] = a.functionStats(fa)
	}
	for _, fs := range a.folded {
		names := make([]string, 0, len(fs.rootToLeaf))
		for _, id := range fs.rootToLeaf {
			name, err := a.resolver.Interner().Name(id)
			if err != nil {
				name = "0x" + strconv.FormatUint(uint64(id), 16)
			}
			names = append(names, name)
		}
		res.Folded = append(res.Folded, FoldedStack{
			Frames:  names,
			ValueNS: fs.weight,
			Count:   fs.count,
		})
	}

	return res
}
