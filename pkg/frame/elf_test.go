//go:build linux

package frame_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/adaprof/pkg/frame"
)

func TestELFSymTabLoad(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	symtab := frame.NewELFSymTab()
	require.NoError(t, symtab.Load(exe))

	// Loading again is a no-op.
	require.NoError(t, symtab.Load(exe))
}

func TestELFSymTabEmpty(t *testing.T) {
	symtab := frame.NewELFSymTab()

	_, err := symtab.GetName(0x1000)
	require.Error(t, err)
	require.ErrorIs(t, err, frame.ErrSymTableEmpty)
}

func TestELFSymTabUnknownAddress(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	symtab := frame.NewELFSymTab()
	require.NoError(t, symtab.Load(exe))

	_, err = symtab.GetName(1)
	require.Error(t, err)
	require.ErrorIs(t, err, frame.ErrSymNotFound)
}

func TestELFSymTabMissingFile(t *testing.T) {
	symtab := frame.NewELFSymTab()
	require.Error(t, symtab.Load("/nonexistent/binary"))
}
