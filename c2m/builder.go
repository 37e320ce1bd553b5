package c2m

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log/level"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Builder turns raw exports into classified Export records.
type Builder struct {
	demangler Demangler
	opts      options
}

// NewBuilder returns a Builder that demangles through d.
func NewBuilder(d Demangler, opts ...Option) *Builder {
	return &Builder{demangler: d, opts: newOptions(opts)}
}

// Records builds the records of a single raw export, one per non-empty
// demangled candidate. A symbol without usable candidates yields none.
func (b *Builder) Records(ctx context.Context, raw RawExport) ([]Export, error) {
	candidates, err := b.demangler.Demangle(ctx, raw.Name)
	if err != nil {
		if errors.Is(err, ErrDemangle) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %q: %w", ErrDemangle, raw.Name, err)
	}

	var records []Export
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		normalized, details := b.opts.parser.Classify(candidate)
		records = append(records, Export{
			Ordinal:            raw.Ordinal,
			RVA:                raw.RVA,
			MangledDeclaration: raw.Name,
			ClearDeclaration:   normalized,
			Details:            details,
		})
	}

	if len(records) == 0 {
		level.Debug(b.opts.logger).Log("msg", "export has no demangled candidates", "ordinal", raw.Ordinal, "symbol", raw.Name)
	}
	return records, nil
}

// Build processes every raw export and returns the records in export table
// order. Any demangler failure aborts the whole build.
func (b *Builder) Build(ctx context.Context, raws []RawExport) ([]Export, error) {
	results := make([][]Export, len(raws))
	done := atomic.NewInt64(0)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.jobs)
	for i, raw := range raws {
		g.Go(func() error {
			records, err := b.Records(ctx, raw)
			if err != nil {
				return err
			}
			results[i] = records
			if b.opts.progress != nil {
				b.opts.progress(int(done.Inc()), len(raws))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	exports := make([]Export, 0, total)
	for _, r := range results {
		exports = append(exports, r...)
	}

	level.Info(b.opts.logger).Log("msg", "built export index", "exports", len(raws), "records", len(exports))
	return exports, nil
}
