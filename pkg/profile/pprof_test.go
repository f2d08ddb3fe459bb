package profile_test

import (
	"bytes"
	"testing"

	gprofile "github.com/google/pprof/profile"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/adaprof/pkg/profile"
)

func exportResult() profile.Result {
	return profile.Result{
		Folded: []profile.FoldedStack{
			{Frames: []string{"main.main", "main.compute"}, ValueNS: 1500, Count: 3},
			{Frames: []string{"main.main"}, ValueNS: 500, Count: 1},
		},
	}
}

func TestWriteFolded(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, exportResult().WriteFolded(&buf))

	require.Equal(t, "main.main 500\nmain.main;main.compute 1500\n", buf.String())
}

func TestWriteFoldedEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, profile.Result{}.WriteFolded(&buf))
	require.Empty(t, buf.String())
}

func TestWritePprof(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, exportResult().WritePprof(&buf))

	p, err := gprofile.Parse(&buf)
	require.NoError(t, err)
	require.NoError(t, p.CheckValid())

	require.Len(t, p.SampleType, 2)
	require.Equal(t, "samples", p.SampleType[0].Type)
	require.Equal(t, "nanoseconds", p.SampleType[1].Unit)
	require.Len(t, p.Sample, 2)

	// Shared frames map to one function entry.
	require.Len(t, p.Function, 2)

	// Locations are leaf first.
	for _, s := range p.Sample {
		if len(s.Location) == 2 {
			require.Equal(t, "main.compute", s.Location[0].Line[0].Function.Name)
			require.Equal(t, "main.main", s.Location[1].Line[0].Function.Name)
			require.Equal(t, int64(3), s.Value[0])
			require.Equal(t, int64(1500), s.Value[1])
		}
	}
}
