package profile

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/maxgio92/adaprof/pkg/frame"
)

const stateShards = 64

// funcEntry holds the sampling probability of one function. The probability
// is stored as raw float bits so the trigger can read it with a single
// atomic load while the controller writes it from another goroutine.
type funcEntry struct {
	probBits atomic.Uint64
}

func (e *funcEntry) prob() float64 {
	return math.Float64frombits(e.probBits.Load())
}

func (e *funcEntry) setProb(p float64) {
	e.probBits.Store(math.Float64bits(p))
}

type stateShard struct {
	mu    sync.RWMutex
	funcs map[frame.FuncID]*funcEntry
}

// AdaptiveState is the process-wide mapping from function identifier to
// sampling probability. It is sharded by function id so updates to different
// functions do not contend; within an entry the aggregator and the
// controller write disjoint fields.
//
// Entries are created lazily on first observation (by the controller, never
// on the capture path), retained for the session lifetime, and reset to
// defaults when a session restarts.
type AdaptiveState struct {
	shards [stateShards]stateShard

	defaultProb float64
	probMin     float64
	probMax     float64
}

func NewAdaptiveState(cfg Config) *AdaptiveState {
	s := &AdaptiveState{
		// Unknown functions start at the highest admissible rate: the
		// controller backs them off as soon as estimates firm up, and the
		// budget guard bounds the transient.
		defaultProb: cfg.ProbMax(),
		probMin:     cfg.ProbMin(),
		probMax:     cfg.ProbMax(),
	}
	s.Reset()

	return s
}

func (s *AdaptiveState) shardFor(id frame.FuncID) *stateShard {
	return &s.shards[uint64(id)%stateShards]
}

// Probability returns the sampling probability in effect for the function.
// Safe for the capture path: a read lock on the shard plus one atomic load,
// and never an allocation (unknown functions fall back to the default
// probability without creating an entry).
func (s *AdaptiveState) Probability(id frame.FuncID) float64 {
	shard := s.shardFor(id)

	shard.mu.RLock()
	e, ok := shard.funcs[id]
	shard.mu.RUnlock()
	if !ok {
		return s.defaultProb
	}

	return e.prob()
}

// SetProbability commits a probability for the function, clipped to the
// configured bounds. Out-of-bounds values are clipped silently, never
// surfaced as an error.
func (s *AdaptiveState) SetProbability(id frame.FuncID, p float64) {
	s.ensure(id).setProb(s.Clip(p))
}

// Clip bounds a probability to the admissible range.
func (s *AdaptiveState) Clip(p float64) float64 {
	if math.IsNaN(p) || p < s.probMin {
		return s.probMin
	}
	if p > s.probMax {
		return s.probMax
	}

	return p
}

func (s *AdaptiveState) ensure(id frame.FuncID) *funcEntry {
	shard := s.shardFor(id)

	shard.mu.RLock()
	e, ok := shard.funcs[id]
	shard.mu.RUnlock()
	if ok {
		return e
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if e, ok = shard.funcs[id]; ok {
		return e
	}
	e = &funcEntry{}
	e.setProb(s.defaultProb)
	shard.funcs[id] = e

	return e
}

// Range visits every tracked function and its current probability.
func (s *AdaptiveState) Range(f func(id frame.FuncID, prob float64)) {
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.RLock()
		for id, e := range shard.funcs {
			f(id, e.prob())
		}
		shard.mu.RUnlock()
	}
}

// Len reports the number of tracked functions.
func (s *AdaptiveState) Len() int {
	n := 0
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.RLock()
		n += len(shard.funcs)
		shard.mu.RUnlock()
	}

	return n
}

// Reset restores the default probabilities for a fresh session.
func (s *AdaptiveState) Reset() {
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		shard.funcs = make(map[frame.FuncID]*funcEntry)
		shard.mu.Unlock()
	}
}
