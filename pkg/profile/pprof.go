package profile

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	gprofile "github.com/google/pprof/profile"
	"github.com/pkg/errors"
)

// WriteFolded writes the accumulated stacks in collapsed "a;b;c value"
// format, root to leaf, one stack per line, for flame graph tooling.
func (r Result) WriteFolded(w io.Writer) error {
	lines := make([]string, 0, len(r.Folded))
	for _, fs := range r.Folded {
		lines = append(lines, fmt.Sprintf("%s %d", strings.Join(fs.Frames, ";"), uint64(fs.ValueNS)))
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return errors.Wrap(err, "error writing folded stacks")
		}
	}

	return nil
}

// WritePprof serializes the aggregation result as a pprof profile with one
// sample per distinct stack, valued in bias-corrected nanoseconds.
func (r Result) WritePprof(w io.Writer) error {
	p := &gprofile.Profile{
		SampleType: []*gprofile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "time", Unit: "nanoseconds"},
		},
		TimeNanos: time.Now().UnixNano(),
	}

	funcs := make(map[string]*gprofile.Function)
	locs := make(map[string]*gprofile.Location)

	locationFor := func(name string) *gprofile.Location {
		if loc, ok := locs[name]; ok {
			return loc
		}
		fn, ok := funcs[name]
		if !ok {
			fn = &gprofile.Function{
				ID:         uint64(len(funcs) + 1),
				Name:       name,
				SystemName: name,
			}
			funcs[name] = fn
			p.Function = append(p.Function, fn)
		}
		loc := &gprofile.Location{
			ID:   uint64(len(locs) + 1),
			Line: []gprofile.Line{{Function: fn}},
		}
		locs[name] = loc
		p.Location = append(p.Location, loc)

		return loc
	}

	for _, fs := range r.Folded {
		smp := &gprofile.Sample{
			Value: []int64{int64(fs.Count), int64(fs.ValueNS)},
		}
		// pprof wants locations leaf-first.
		for i := len(fs.Frames) - 1; i >= 0; i-- {
			smp.Location = append(smp.Location, locationFor(fs.Frames[i]))
		}
		p.Sample = append(p.Sample, smp)
	}

	if err := p.CheckValid(); err != nil {
		return errors.Wrap(err, "invalid pprof profile")
	}

	return errors.Wrap(p.Write(w), "error writing pprof profile")
}
