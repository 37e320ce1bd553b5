package c2m

import (
	"iter"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/skdltmxn/clear2mangled/decl"
)

// Index is a read-only collection of exports with lazily built lookup
// tables. It is safe for concurrent use once constructed.
type Index struct {
	exports []Export
	opts    options

	keyOnce  sync.Once
	keyIndex map[decl.Key][]int

	rvaOnce  sync.Once
	rvaIndex map[uint64][]int
}

// Result is the outcome of a lookup. An empty result means "not found".
type Result struct {
	// Declaration is the normalized query text of a declaration lookup.
	Declaration string
	// Details is the classified query of a declaration lookup, nil otherwise.
	Details *decl.Details
	// RVA is the queried relative address of an address lookup.
	RVA uint64

	Exports []Export
}

// Found reports whether the lookup matched anything.
func (r Result) Found() bool { return len(r.Exports) > 0 }

// NewIndex wraps exports, which must not be modified afterwards.
func NewIndex(exports []Export, opts ...Option) *Index {
	return &Index{exports: exports, opts: newOptions(opts)}
}

// Len returns the number of records.
func (ix *Index) Len() int { return len(ix.exports) }

// Exports returns the records in build order.
func (ix *Index) Exports() []Export { return ix.exports }

// All iterates the records in build order.
func (ix *Index) All() iter.Seq[Export] {
	return slices.Values(ix.exports)
}

func (ix *Index) buildKeyIndex() {
	ix.keyIndex = make(map[decl.Key][]int)
	for i, e := range ix.exports {
		k := e.Details.Key()
		ix.keyIndex[k] = append(ix.keyIndex[k], i)
	}
}

func (ix *Index) buildRVAIndex() {
	ix.rvaIndex = make(map[uint64][]int)
	for i, e := range ix.exports {
		ix.rvaIndex[e.RVA] = append(ix.rvaIndex[e.RVA], i)
	}
}

func (ix *Index) collect(idx []int) []Export {
	if len(idx) == 0 {
		return nil
	}
	out := make([]Export, len(idx))
	for i, j := range idx {
		out[i] = ix.exports[j]
	}
	return out
}

// ByDeclaration returns every record whose name, C-function, constructor and
// destructor flags equal those of the classified query. Overloads share a key
// and are returned together.
func (ix *Index) ByDeclaration(text string) Result {
	normalized, details := ix.opts.parser.Classify(text)

	ix.keyOnce.Do(ix.buildKeyIndex)
	matches := ix.collect(ix.keyIndex[details.Key()])
	if ix.opts.compareVariable {
		matches = lo.Filter(matches, func(e Export, _ int) bool {
			return e.Details.Variable == details.Variable
		})
	}

	return Result{
		Declaration: normalized,
		Details:     &details,
		Exports:     matches,
	}
}

// ByRVA returns every record exported at rva.
func (ix *Index) ByRVA(rva uint64) Result {
	ix.rvaOnce.Do(ix.buildRVAIndex)
	return Result{RVA: rva, Exports: ix.collect(ix.rvaIndex[rva])}
}

// ByAddress looks up the relative address va-base. An address below base
// wraps around and is not otherwise guarded.
func (ix *Index) ByAddress(base, va uint64) Result {
	return ix.ByRVA(va - base)
}

// Filter returns the records matching fn in build order.
func (ix *Index) Filter(fn func(Export) bool) []Export {
	return lo.Filter(ix.exports, func(e Export, _ int) bool { return fn(e) })
}
