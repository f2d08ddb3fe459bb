package frame

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// Interner deduplicates resolved frames so that identical frames share one
// FuncID across all samples. IDs are content-derived (xxh3 of the function
// name), which keeps them stable across sessions of the same program.
type Interner struct {
	mu   sync.RWMutex
	byID map[FuncID]Frame
}

func NewInterner() *Interner {
	return &Interner{
		byID: make(map[FuncID]Frame),
	}
}

// ID derives the FuncID for a function name without interning it.
func ID(name string) FuncID {
	return FuncID(xxh3.HashString(name))
}

// Intern stores the frame for the given function name and returns its
// identifier. Re-interning the same name is a cheap no-op.
func (i *Interner) Intern(name, file string, line int) FuncID {
	id := ID(name)

	i.mu.RLock()
	_, ok := i.byID[id]
	i.mu.RUnlock()
	if ok {
		return id
	}

	i.mu.Lock()
	i.byID[id] = Frame{
		ID:   id,
		Name: name,
		File: file,
		Line: line,
	}
	i.mu.Unlock()

	return id
}

// InternUnresolved interns a placeholder frame for an address that could not
// be symbolized.
func (i *Interner) InternUnresolved(name string) FuncID {
	id := ID(name)

	i.mu.Lock()
	if _, ok := i.byID[id]; !ok {
		i.byID[id] = Frame{
			ID:         id,
			Name:       name,
			Unresolved: true,
		}
	}
	i.mu.Unlock()

	return id
}

// Lookup returns the frame interned under the given identifier.
func (i *Interner) Lookup(id FuncID) (Frame, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	f, ok := i.byID[id]

	return f, ok
}

// Name resolves an identifier back to its function name.
func (i *Interner) Name(id FuncID) (string, error) {
	f, ok := i.Lookup(id)
	if !ok {
		return "", ErrFuncNotFound
	}

	return f.Name, nil
}

func (i *Interner) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.byID)
}
