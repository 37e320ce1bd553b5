package c2m

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-kit/log/level"
	"github.com/spf13/afero"
)

// Loader produces an Index for a target binary, from its cache file when one
// exists or by reading and demangling its export table otherwise.
type Loader struct {
	source  ExportSource
	builder *Builder
	opts    []Option
	o       options
}

// NewLoader returns a Loader reading exports from source and demangling them
// with d. The options are also passed to the Builder and every Index it
// returns.
func NewLoader(source ExportSource, d Demangler, opts ...Option) *Loader {
	return &Loader{
		source:  source,
		builder: NewBuilder(d, opts...),
		opts:    opts,
		o:       newOptions(opts),
	}
}

// CachePath returns the cache file used for target. Records depend on the
// classifier variant, so non-default parser options get their own file.
func (l *Loader) CachePath(target string) string {
	name := filepath.Base(target)
	if !l.o.parserOpts.StrictCFunction {
		name += ".loose-cfunc"
	}
	if !l.o.parserOpts.AllowTilde {
		name += ".no-tilde"
	}
	return filepath.Join(l.o.cacheDir, name+".json")
}

// Load returns the index of target. A cache hit never touches the image or
// the demangler.
func (l *Loader) Load(ctx context.Context, target string) (*Index, error) {
	if err := l.checkTarget(target); err != nil {
		return nil, err
	}

	if !l.o.noCache {
		path := l.CachePath(target)
		ok, err := afero.Exists(l.o.fs, path)
		if err != nil {
			return nil, &CacheError{Op: "load", Path: path, Err: err}
		}
		if ok {
			exports, err := LoadCache(l.o.fs, path)
			if err != nil {
				return nil, err
			}
			level.Debug(l.o.logger).Log("msg", "loaded cache", "path", path, "records", len(exports))
			return NewIndex(exports, l.opts...), nil
		}
	}

	return l.build(ctx, target)
}

// Rebuild builds the index of target from its image, ignoring and then
// replacing any cache file.
func (l *Loader) Rebuild(ctx context.Context, target string) (*Index, error) {
	if err := l.checkTarget(target); err != nil {
		return nil, err
	}
	return l.build(ctx, target)
}

// ClearCache removes the cache file of target. A missing file is not an
// error.
func (l *Loader) ClearCache(target string) error {
	path := l.CachePath(target)
	if err := l.o.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &CacheError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

func (l *Loader) checkTarget(target string) error {
	if _, err := l.o.fs.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, target)
		}
		return fmt.Errorf("failed to stat %s: %w", target, err)
	}
	return nil
}

func (l *Loader) build(ctx context.Context, target string) (*Index, error) {
	raws, err := l.source.Exports(target)
	if err != nil {
		return nil, err
	}
	level.Debug(l.o.logger).Log("msg", "read export table", "target", target, "exports", len(raws))

	exports, err := l.builder.Build(ctx, raws)
	if err != nil {
		return nil, err
	}

	if !l.o.noCache {
		path := l.CachePath(target)
		if err := l.o.fs.MkdirAll(l.o.cacheDir, 0o755); err != nil {
			return nil, &CacheError{Op: "save", Path: path, Err: err}
		}
		if err := SaveCache(l.o.fs, path, exports); err != nil {
			return nil, err
		}
		level.Debug(l.o.logger).Log("msg", "saved cache", "path", path)
	}

	return NewIndex(exports, l.opts...), nil
}
