package c2m

import (
	"bytes"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"

	"github.com/skdltmxn/clear2mangled/decl"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// cacheEntry is the on-disk shape of an Export. Field names are shared with
// cache files written by earlier tools and must not change.
type cacheEntry struct {
	Ordinal            uint32       `json:"ordinal"`
	RVA                uint64       `json:"rva"`
	MangledDeclaration string       `json:"mangled_declaration"`
	ClearDeclaration   string       `json:"clear_declaration"`
	DeclarationDetails cacheDetails `json:"declaration_details"`
}

type cacheDetails struct {
	CFunction        bool     `json:"c_function"`
	Variable         bool     `json:"variable"`
	Constructor      bool     `json:"constructor_function"`
	Destructor       bool     `json:"destructor_function"`
	Name             string   `json:"name"`
	ParenthesesPairs []string `json:"parentheses_pairs"`
}

func toCacheEntry(e Export) cacheEntry {
	groups := e.Details.ParenthesesGroups
	if groups == nil {
		groups = []string{}
	}
	return cacheEntry{
		Ordinal:            e.Ordinal,
		RVA:                e.RVA,
		MangledDeclaration: e.MangledDeclaration,
		ClearDeclaration:   e.ClearDeclaration,
		DeclarationDetails: cacheDetails{
			CFunction:        e.Details.CFunction,
			Variable:         e.Details.Variable,
			Constructor:      e.Details.Constructor,
			Destructor:       e.Details.Destructor,
			Name:             e.Details.Name,
			ParenthesesPairs: groups,
		},
	}
}

func (c cacheEntry) export() Export {
	groups := c.DeclarationDetails.ParenthesesPairs
	if len(groups) == 0 {
		groups = nil
	}
	return Export{
		Ordinal:            c.Ordinal,
		RVA:                c.RVA,
		MangledDeclaration: c.MangledDeclaration,
		ClearDeclaration:   c.ClearDeclaration,
		Details: decl.Details{
			CFunction:         c.DeclarationDetails.CFunction,
			Variable:          c.DeclarationDetails.Variable,
			Constructor:       c.DeclarationDetails.Constructor,
			Destructor:        c.DeclarationDetails.Destructor,
			Name:              c.DeclarationDetails.Name,
			ParenthesesGroups: groups,
		},
	}
}

// WriteCache encodes exports to w as an indented JSON array.
func WriteCache(w io.Writer, exports []Export) error {
	entries := make([]cacheEntry, len(exports))
	for i, e := range exports {
		entries[i] = toCacheEntry(e)
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ReadCache decodes a cache document from r. Anything but a single JSON
// array, including trailing data after it, is ErrCacheCorrupt.
func ReadCache(r io.Reader) ([]Export, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrCacheCorrupt)
	}

	var entries []cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	exports := make([]Export, len(entries))
	for i, c := range entries {
		exports[i] = c.export()
	}
	return exports, nil
}

// SaveCache writes exports to path on fs, replacing any existing file.
func SaveCache(fs afero.Fs, path string, exports []Export) error {
	f, err := fs.Create(path)
	if err != nil {
		return &CacheError{Op: "save", Path: path, Err: err}
	}
	if err := WriteCache(f, exports); err != nil {
		f.Close()
		return &CacheError{Op: "save", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &CacheError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// LoadCache reads the exports stored at path on fs.
func LoadCache(fs afero.Fs, path string) ([]Export, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, &CacheError{Op: "load", Path: path, Err: err}
	}
	defer f.Close()

	exports, err := ReadCache(f)
	if err != nil {
		return nil, &CacheError{Op: "load", Path: path, Err: err}
	}
	return exports, nil
}
