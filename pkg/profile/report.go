package profile

import (
	"encoding/json"
	"io"
)

const ReportFileName = "adaprof-report.json"

// FunctionReport is the per-function entry of the report. The field set and
// units are stable: external analysis tooling depends on them.
type FunctionReport struct {
	SampleCount          uint64 `json:"sample_count"`
	EstimatedSelfTimeNS  uint64 `json:"estimated_self_time_ns"`
	EstimatedTotalTimeNS uint64 `json:"estimated_total_time_ns"`
}

// Report is the final session artifact.
type Report struct {
	Functions map[string]FunctionReport `json:"functions"`

	SessionID            string `json:"session_id"`
	Resource             string `json:"resource"`
	DroppedSampleCount   uint64 `json:"dropped_sample_count"`
	UnresolvedFrameCount uint64 `json:"unresolved_frame_count"`
	WallClockDurationNS  uint64 `json:"wall_clock_duration_ns"`

	// HardwareCounters reports whether the hardware counter capability was
	// available; an unavailable capability is a warning, not an error.
	HardwareCounters bool `json:"hardware_counters"`

	// Partial marks reports emitted after a shutdown drain timeout.
	Partial bool `json:"partial"`
}

type ReportOption func(*Report)

func NewReport(opts ...ReportOption) *Report {
	report := &Report{
		Functions: make(map[string]FunctionReport),
	}
	for _, opt := range opts {
		opt(report)
	}

	return report
}

func WithReportSessionID(id string) ReportOption {
	return func(o *Report) {
		o.SessionID = id
	}
}

func WithReportResource(resource string) ReportOption {
	return func(o *Report) {
		o.Resource = resource
	}
}

func WithReportFunctions(functions map[string]FunctionReport) ReportOption {
	return func(o *Report) {
		o.Functions = functions
	}
}

func WithReportDropped(dropped uint64) ReportOption {
	return func(o *Report) {
		o.DroppedSampleCount = dropped
	}
}

func WithReportUnresolved(unresolved uint64) ReportOption {
	return func(o *Report) {
		o.UnresolvedFrameCount = unresolved
	}
}

func WithReportWallClock(durationNS uint64) ReportOption {
	return func(o *Report) {
		o.WallClockDurationNS = durationNS
	}
}

func WithReportHardwareCounters(available bool) ReportOption {
	return func(o *Report) {
		o.HardwareCounters = available
	}
}

func WithReportPartial(partial bool) ReportOption {
	return func(o *Report) {
		o.Partial = partial
	}
}

func (r *Report) WriteReport(w io.Writer) error {
	encoder := json.NewEncoder(w)

	return encoder.Encode(r)
}
