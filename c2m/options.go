package c2m

import (
	"github.com/go-kit/log"
	"github.com/spf13/afero"

	"github.com/skdltmxn/clear2mangled/decl"
)

// DefaultCacheDir is the cache directory used when none is configured.
const DefaultCacheDir = "cache"

// Option configures a Builder, Index or Loader.
type Option func(*options)

type options struct {
	logger          log.Logger
	jobs            int
	parser          *decl.Parser
	parserOpts      decl.Options
	fs              afero.Fs
	cacheDir        string
	noCache         bool
	compareVariable bool
	progress        func(done, total int)
}

func newOptions(opts []Option) options {
	o := options{
		logger:     log.NewNopLogger(),
		jobs:       1,
		parser:     decl.NewParser(decl.DefaultOptions()),
		parserOpts: decl.DefaultOptions(),
		fs:         afero.NewOsFs(),
		cacheDir:   DefaultCacheDir,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger for build and cache diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithJobs sets how many exports are demangled concurrently. Values below
// one mean one.
func WithJobs(n int) Option {
	return func(o *options) {
		o.jobs = max(n, 1)
	}
}

// WithParserOptions selects the classifier variant.
func WithParserOptions(opts decl.Options) Option {
	return func(o *options) {
		o.parser = decl.NewParser(opts)
		o.parserOpts = opts
	}
}

// WithFs sets the filesystem holding targets and cache files.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithCacheDir sets the directory cache files are kept in.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// WithoutCache disables reading and writing cache files.
func WithoutCache() Option {
	return func(o *options) {
		o.noCache = true
	}
}

// WithVariableMatching makes declaration lookups also require the Variable
// flag to agree.
func WithVariableMatching() Option {
	return func(o *options) {
		o.compareVariable = true
	}
}

// WithProgress registers a callback invoked after each export is processed
// during a build. It may be called from several goroutines.
func WithProgress(fn func(done, total int)) Option {
	return func(o *options) {
		o.progress = fn
	}
}
