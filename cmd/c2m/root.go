package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/skdltmxn/clear2mangled/c2m"
	"github.com/skdltmxn/clear2mangled/decl"
	"github.com/skdltmxn/clear2mangled/internal/demangle"
	"github.com/skdltmxn/clear2mangled/internal/pefile"
)

var (
	outputFile    string
	output        io.Writer
	cacheDir      string
	noCache       bool
	demanglerName string
	undnamePath   string
	jobs          int
	verbose       bool
	noColor       bool
	looseCFunc    bool
	noTilde       bool

	logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
)

var rootCmd = &cobra.Command{
	Use:   "c2m",
	Short: "Map clear C/C++ declarations to mangled export names",
	Long: `c2m resolves human-readable C and C++ declarations, relative addresses
and virtual addresses to the decorated names exported by a PE image.

The demangled export table of every image is cached as JSON so that
later lookups do not need to demangle it again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			logger = level.NewFilter(logger, level.AllowInfo())
		}
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			output = f
			color.NoColor = true
		} else {
			output = os.Stdout
		}
		if noColor {
			color.NoColor = true
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if f, ok := output.(*os.File); ok && f != os.Stdout {
			f.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write output to file instead of stdout")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", filepath.Join(xdg.CacheHome, "c2m"), "directory holding export cache files")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "never read or write cache files")
	rootCmd.PersistentFlags().StringVar(&demanglerName, "demangler", "builtin", "demangler to use (builtin, undname)")
	rootCmd.PersistentFlags().StringVar(&undnamePath, "undname", "undname.exe", "path of the undname executable")
	rootCmd.PersistentFlags().IntVarP(&jobs, "jobs", "j", 1, "number of parallel workers")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&looseCFunc, "loose-cfunc", false, "treat names containing '<', '>' or ':' as C functions (uses a separate cache file)")
	rootCmd.PersistentFlags().BoolVar(&noTilde, "no-tilde", false, "do not accept a leading '~' in callable names (uses a separate cache file)")

	rootCmd.AddCommand(declCmd)
	rootCmd.AddCommand(rvaCmd)
	rootCmd.AddCommand(vaCmd)
	rootCmd.AddCommand(exportsCmd)
	rootCmd.AddCommand(cacheCmd)
}

func newDemangler() (c2m.Demangler, error) {
	switch demanglerName {
	case "builtin":
		return demangle.Builtin{}, nil
	case "undname":
		return &demangle.Undname{Path: undnamePath}, nil
	default:
		return nil, fmt.Errorf("unknown demangler: %s", demanglerName)
	}
}

func newLoader(extra ...c2m.Option) (*c2m.Loader, error) {
	d, err := newDemangler()
	if err != nil {
		return nil, err
	}

	opts := []c2m.Option{
		c2m.WithLogger(logger),
		c2m.WithJobs(jobs),
		c2m.WithFs(afero.NewOsFs()),
		c2m.WithCacheDir(cacheDir),
		c2m.WithParserOptions(parserOptions()),
	}
	if noCache {
		opts = append(opts, c2m.WithoutCache())
	}
	opts = append(opts, extra...)

	return c2m.NewLoader(pefile.NewSource(afero.NewOsFs()), d, opts...), nil
}

func parserOptions() decl.Options {
	po := decl.DefaultOptions()
	po.StrictCFunction = !looseCFunc
	po.AllowTilde = !noTilde
	return po
}

// progress reports build progress on a spinner while stderr is a terminal.
type progress struct {
	s *spinner.Spinner
}

func newProgress() *progress {
	fd := os.Stderr.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return &progress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " generating cache..."
	return &progress{s: s}
}

func (p *progress) start() {
	if p.s != nil {
		p.s.Start()
	}
}

func (p *progress) stop() {
	if p.s != nil {
		p.s.Stop()
	}
}

func (p *progress) update(done, total int) {
	if p.s == nil {
		return
	}
	p.s.Lock()
	p.s.Suffix = fmt.Sprintf(" demangling exports %d/%d", done, total)
	p.s.Unlock()
}

// loadIndex returns the index of target, building its cache if needed.
func loadIndex(ctx context.Context, target string, extra ...c2m.Option) (*c2m.Index, error) {
	p := newProgress()
	l, err := newLoader(append(extra, c2m.WithProgress(p.update))...)
	if err != nil {
		return nil, err
	}

	p.start()
	ix, err := l.Load(ctx, target)
	p.stop()
	if err != nil {
		return nil, fmt.Errorf("failed to load exports: %w", err)
	}
	level.Debug(logger).Log("msg", "index ready", "target", target, "records", ix.Len())
	return ix, nil
}
