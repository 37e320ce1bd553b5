// Package c2m maps demangled C++ declarations and addresses back to the
// mangled exports of a binary.
package c2m

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrFileNotFound indicates the target binary does not exist.
	ErrFileNotFound = errors.New("c2m: file does not exist")

	// ErrNotImage indicates the target cannot be parsed as an image.
	ErrNotImage = errors.New("c2m: failed to parse the target image")

	// ErrNoExports indicates the image has no export table.
	ErrNoExports = errors.New("c2m: target file does not have exports")

	// ErrDemangle indicates the demangling service could not be invoked.
	ErrDemangle = errors.New("c2m: failed to invoke demangler")

	// ErrCacheCorrupt indicates a cache file is not valid structured text.
	ErrCacheCorrupt = errors.New("c2m: malformed cache file")
)

// CacheError describes a failure reading or writing a cache file.
type CacheError struct {
	Op   string // "load", "save" or "remove"
	Path string
	Err  error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("c2m: cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }
