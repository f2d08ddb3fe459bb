package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/adaprof/internal/settings"
	"github.com/maxgio92/adaprof/pkg/cmd/profile"
)

func NewRootCmd(opts *CommonOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:               settings.CmdName,
		Short:             "adaprof is an adaptive statistical profiler",
		Long:              `adaprof is a statistical profiler that tunes the per-function sampling rate online, to approach tracing accuracy at sampling cost.`,
		DisableAutoGenTag: true,
	}
	cmd.AddCommand(profile.NewCommand(&profile.Options{
		Ctx:    opts.Ctx,
		Logger: opts.Logger,
	}))
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	return cmd
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger := log.New(
		log.ConsoleWriter{Out: os.Stderr},
	).With().Timestamp().Logger()

	go func() {
		<-ctx.Done()
		cancel()
	}()

	opts := NewCommonOptions(
		WithContext(ctx),
		WithLogger(logger),
	)

	if err := NewRootCmd(opts).Execute(); err != nil {
		os.Exit(1)
	}
}
