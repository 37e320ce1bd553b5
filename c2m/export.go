package c2m

import (
	"context"

	"github.com/skdltmxn/clear2mangled/decl"
)

// RawExport is one entry of an image's export table.
type RawExport struct {
	Ordinal uint32
	RVA     uint64
	Name    string // mangled linker symbol
}

// Export is one classified demangled candidate of a RawExport.
type Export struct {
	Ordinal            uint32
	RVA                uint64
	MangledDeclaration string
	ClearDeclaration   string
	Details            decl.Details
}

// ExportSource reads the export table of an image.
type ExportSource interface {
	Exports(path string) ([]RawExport, error)
}

// Demangler turns a mangled symbol into zero or more demangled candidates.
type Demangler interface {
	Demangle(ctx context.Context, mangled string) ([]string, error)
}

// DemanglerFunc adapts a function to the Demangler interface.
type DemanglerFunc func(ctx context.Context, mangled string) ([]string, error)

// Demangle calls f.
func (f DemanglerFunc) Demangle(ctx context.Context, mangled string) ([]string, error) {
	return f(ctx, mangled)
}
