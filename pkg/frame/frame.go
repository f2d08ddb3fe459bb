package frame

// FuncID is a stable identifier for a profiled function. It is the hash of
// the fully qualified function name, so identical frames share one identifier
// across samples and sessions.
type FuncID uint64

// Frame is a resolved stack frame. Immutable once interned.
type Frame struct {
	ID         FuncID
	Name       string
	File       string
	Line       int
	Unresolved bool
}

// Stack is an ordered sequence of resolved frames, innermost first.
type Stack struct {
	Frames    []Frame
	Truncated bool
}

// Leaf returns the innermost frame of the stack.
func (s *Stack) Leaf() (Frame, bool) {
	if len(s.Frames) == 0 {
		return Frame{}, false
	}

	return s.Frames[0], true
}
