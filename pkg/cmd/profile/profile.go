package profile

import (
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/adaprof/internal/output"
	"github.com/maxgio92/adaprof/internal/settings"
	"github.com/maxgio92/adaprof/pkg/perfcnt"
	"github.com/maxgio92/adaprof/pkg/profile"
	"github.com/maxgio92/adaprof/pkg/workload"
)

const CmdName = "profile"

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   CmdName,
		Short: "Profile the built-in synthetic workload",
		Long: fmt.Sprintf(`
%s runs the synthetic matrix-multiplication workload under an adaptive profiling session and writes the resulting report.
The workload mixes few long calls with very many short ones, which is the regime where adaptive sampling pays off.
`, CmdName),
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}

	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "Path to a YAML session configuration")
	cmd.Flags().IntVar(&o.runs, "runs", 4, "How many workload runs to make")
	cmd.Flags().IntVar(&o.size, "size", 50, "Workload matrix size")

	cmd.Flags().StringVarP(&o.reportPath, "output", "o", settings.DefaultReportFile, "Path of the JSON report")
	cmd.Flags().StringVar(&o.foldedPath, "folded", "", "Also write collapsed stacks to this path")
	cmd.Flags().StringVar(&o.pprofPath, "pprof", "", "Also write a pprof profile to this path")

	cmd.Flags().BoolVar(&o.hwCounters, "hardware-counters", false, "Measure with hardware performance counters when available")
	cmd.Flags().StringVar(&o.resource, "resource", string(perfcnt.EventTime), "Resource to measure (time, cpu_cycles, cache_misses, branch_misses)")
	cmd.Flags().BoolVar(&o.status, "status", true, "Periodically print a status of the session")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	return cmd
}

func (o *Options) Run(_ *cobra.Command, _ []string) error {
	logLevel, err := log.ParseLevel(o.logLevel)
	if err != nil {
		o.Logger.Fatal().Err(err).Msg("invalid log level")
	}
	o.Logger = o.Logger.Level(logLevel)

	cfg := profile.DefaultConfig()
	if o.configPath != "" {
		cfg, err = profile.LoadConfig(o.configPath)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
	}
	cfg.HardwareCounters = o.hwCounters
	cfg.Resource = perfcnt.Event(o.resource)

	session := profile.NewSession(
		profile.WithSessionConfig(cfg),
		profile.WithSessionLogger(o.Logger),
	)
	if err := session.Start(o.Ctx); err != nil {
		return errors.Wrap(err, "failed to start session")
	}

	if o.status {
		go session.PrintStatusBar(o.Ctx)
	}

	mm := workload.NewMatMul(session.Sampler(), session.Interner(), o.size, o.size, o.size)
	mm.Run(o.runs)

	report, err := session.Stop()
	if err != nil {
		return errors.Wrap(err, "failed to stop session")
	}

	if err := o.writeArtifacts(session, report); err != nil {
		return err
	}
	o.printTop(report)

	return nil
}

func (o *Options) writeArtifacts(session *profile.Session, report *profile.Report) error {
	f, err := os.Create(o.reportPath)
	if err != nil {
		return errors.Wrap(err, "failed to create report file")
	}
	defer f.Close()
	if err := report.WriteReport(f); err != nil {
		return errors.Wrap(err, "failed to write report")
	}
	o.Logger.Info().Str("path", o.reportPath).Msg("report written")

	if o.foldedPath == "" && o.pprofPath == "" {
		return nil
	}

	res, err := session.Result()
	if err != nil {
		return errors.Wrap(err, "failed to get session result")
	}

	if o.foldedPath != "" {
		ff, err := os.Create(o.foldedPath)
		if err != nil {
			return errors.Wrap(err, "failed to create folded stacks file")
		}
		defer ff.Close()
		if err := res.WriteFolded(ff); err != nil {
			return errors.Wrap(err, "failed to write folded stacks")
		}
		o.Logger.Info().Str("path", o.foldedPath).Msg("folded stacks written")
	}

	if o.pprofPath != "" {
		pf, err := os.Create(o.pprofPath)
		if err != nil {
			return errors.Wrap(err, "failed to create pprof file")
		}
		defer pf.Close()
		if err := res.WritePprof(pf); err != nil {
			return errors.Wrap(err, "failed to write pprof profile")
		}
		o.Logger.Info().Str("path", o.pprofPath).Msg("pprof profile written")
	}

	return nil
}

func (o *Options) printTop(report *profile.Report) {
	type row struct {
		name string
		fn   profile.FunctionReport
	}
	rows := make([]row, 0, len(report.Functions))
	for name, fn := range report.Functions {
		rows = append(rows, row{name: name, fn: fn})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].fn.EstimatedSelfTimeNS > rows[j].fn.EstimatedSelfTimeNS
	})

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			r.name,
			fmt.Sprintf("%d", r.fn.SampleCount),
			fmt.Sprintf("%d", r.fn.EstimatedSelfTimeNS),
			fmt.Sprintf("%d", r.fn.EstimatedTotalTimeNS),
		})
	}

	fmt.Println()
	fmt.Print(output.RenderFunctionTable(
		[]string{"FUNCTION", "SAMPLES", "SELF (ns)", "TOTAL (ns)"},
		cells,
	))
	fmt.Printf("\ndropped=%d unresolved=%d wall_clock_ns=%d partial=%v\n",
		report.DroppedSampleCount,
		report.UnresolvedFrameCount,
		report.WallClockDurationNS,
		report.Partial,
	)
}
