package profile

import (
	"context"

	log "github.com/rs/zerolog"
)

type Options struct {
	Ctx    context.Context
	Logger log.Logger

	configPath string
	runs       int
	size       int

	reportPath string
	foldedPath string
	pprofPath  string

	hwCounters bool
	resource   string
	status     bool
	logLevel   string
}

type Option func(o *Options)

func NewOptions(opts ...Option) *Options {
	o := new(Options)
	for _, f := range opts {
		f(o)
	}

	return o
}

func WithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Ctx = ctx
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithConfigPath(path string) Option {
	return func(o *Options) {
		o.configPath = path
	}
}

func WithRuns(runs int) Option {
	return func(o *Options) {
		o.runs = runs
	}
}
