package frame_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/adaprof/pkg/frame"
)

func TestInternIsStable(t *testing.T) {
	i := frame.NewInterner()

	id := i.Intern("main.compute", "main.go", 42)
	require.Equal(t, frame.ID("main.compute"), id)

	// Re-interning the same name yields the same identifier and does not
	// grow the table.
	again := i.Intern("main.compute", "main.go", 42)
	require.Equal(t, id, again)
	require.Equal(t, 1, i.Len())

	f, ok := i.Lookup(id)
	require.True(t, ok)
	require.Equal(t, "main.compute", f.Name)
	require.Equal(t, "main.go", f.File)
	require.Equal(t, 42, f.Line)
	require.False(t, f.Unresolved)
}

func TestInternDistinctNames(t *testing.T) {
	i := frame.NewInterner()

	a := i.Intern("main.a", "", 0)
	b := i.Intern("main.b", "", 0)
	require.NotEqual(t, a, b)
	require.Equal(t, 2, i.Len())

	name, err := i.Name(a)
	require.NoError(t, err)
	require.Equal(t, "main.a", name)
}

func TestInternUnresolved(t *testing.T) {
	i := frame.NewInterner()

	id := i.InternUnresolved("0x00000000deadbeef")
	f, ok := i.Lookup(id)
	require.True(t, ok)
	require.True(t, f.Unresolved)
	require.Equal(t, "0x00000000deadbeef", f.Name)
}

func TestNameUnknownID(t *testing.T) {
	i := frame.NewInterner()

	_, err := i.Name(frame.FuncID(12345))
	require.Error(t, err)
	require.ErrorIs(t, err, frame.ErrFuncNotFound)
}
