package frame

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	log "github.com/rs/zerolog"
)

// Resolver maps raw program counters captured on the hot path to interned
// frames. Resolution results are cached by address so repeated samples of the
// same code pay a map lookup, not a symbolization.
//
// Symbolization is tried against the Go runtime tables first and falls back
// to the process ELF symbol table for addresses the runtime does not know
// about (e.g. cgo or dynamically generated code). Addresses neither source
// can name are kept as unresolved marker frames, never dropped.
type Resolver struct {
	interner *Interner
	symtab   *ELFSymTab

	mu    sync.RWMutex
	cache map[uintptr]FuncID

	unresolved atomic.Uint64

	logger log.Logger
}

type ResolverOption func(*Resolver)

func WithResolverInterner(interner *Interner) ResolverOption {
	return func(r *Resolver) {
		r.interner = interner
	}
}

func WithResolverSymTab(symtab *ELFSymTab) ResolverOption {
	return func(r *Resolver) {
		r.symtab = symtab
	}
}

func WithResolverLogger(logger log.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache: make(map[uintptr]FuncID),
	}
	for _, f := range opts {
		f(r)
	}
	if r.interner == nil {
		r.interner = NewInterner()
	}

	return r
}

// Interner exposes the resolver's interner so that instrumentation hooks can
// pre-intern their function identifiers outside the capture path.
func (r *Resolver) Interner() *Interner {
	return r.interner
}

// Resolve maps a raw call stack, innermost first, to a Stack of interned
// frames. Unresolvable addresses yield marker frames.
func (r *Resolver) Resolve(pcs []uintptr) Stack {
	stack := Stack{
		Frames: make([]Frame, 0, len(pcs)),
	}
	for _, pc := range pcs {
		if pc == 0 {
			continue
		}
		stack.Frames = append(stack.Frames, r.resolvePC(pc))
	}

	return stack
}

// ResolvePC resolves a single program counter.
func (r *Resolver) ResolvePC(pc uintptr) Frame {
	return r.resolvePC(pc)
}

// UnresolvedCount reports how many distinct addresses failed symbolization.
func (r *Resolver) UnresolvedCount() uint64 {
	return r.unresolved.Load()
}

func (r *Resolver) resolvePC(pc uintptr) Frame {
	r.mu.RLock()
	id, ok := r.cache[pc]
	r.mu.RUnlock()
	if ok {
		f, _ := r.interner.Lookup(id)
		return f
	}

	// Symbolization mutates the ELF symbol cache, so it runs under the
	// write lock. Re-check the cache in case another goroutine won the race.
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.cache[pc]; ok {
		f, _ := r.interner.Lookup(id)
		return f
	}

	f := r.symbolize(pc)
	r.cache[pc] = f.ID

	return f
}

func (r *Resolver) symbolize(pc uintptr) Frame {
	if fn := runtime.FuncForPC(pc); fn != nil {
		file, line := fn.FileLine(pc)
		id := r.interner.Intern(fn.Name(), file, line)
		f, _ := r.interner.Lookup(id)

		return f
	}

	// The runtime cannot name this address. Try the ELF symbol table of the
	// executable, when one was loaded.
	if r.symtab != nil {
		if name, err := r.symtab.GetName(uint64(pc)); err == nil {
			id := r.interner.Intern(name, "", 0)
			f, _ := r.interner.Lookup(id)

			return f
		}
	}

	r.unresolved.Add(1)
	r.logger.Debug().Uint64("pc", uint64(pc)).Msg("unresolved frame")

	// Fallback to the hex instruction pointer address.
	id := r.interner.InternUnresolved(fmt.Sprintf("%#016x", pc))
	f, _ := r.interner.Lookup(id)

	return f
}
