// Package pefile reads the export table of Portable Executable images.
package pefile

import (
	"bytes"
	"debug/pe"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/skdltmxn/clear2mangled/c2m"
	"github.com/skdltmxn/clear2mangled/internal/stream"
)

// maxImageSize bounds the mapped image of a single file.
const maxImageSize = 1 << 30

// exportDirectorySize is sizeof(IMAGE_EXPORT_DIRECTORY).
const exportDirectorySize = 40

// Source reads export tables from images on a filesystem.
type Source struct {
	fs afero.Fs
}

// NewSource returns a Source reading from fs.
func NewSource(fs afero.Fs) *Source {
	return &Source{fs: fs}
}

// Exports returns every exported function of the image at path in export
// address table order. An unnamed slot yields one entry with an empty name;
// a slot with several names yields one entry per name.
func (s *Source) Exports(path string) ([]c2m.RawExport, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", c2m.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", c2m.ErrNotImage, path, err)
	}
	defer f.Close()

	dir, ok := exportDirectory(f)
	if !ok || dir.VirtualAddress == 0 || dir.Size == 0 {
		return nil, fmt.Errorf("%w: %s", c2m.ErrNoExports, path)
	}

	img, err := mapImage(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", c2m.ErrNotImage, path, err)
	}

	exports, err := decodeExports(stream.NewReader(img), dir.VirtualAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", c2m.ErrNotImage, path, err)
	}
	if len(exports) == 0 {
		return nil, fmt.Errorf("%w: %s", c2m.ErrNoExports, path)
	}
	return exports, nil
}

func exportDirectory(f *pe.File) (pe.DataDirectory, bool) {
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			return oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT], true
		}
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			return oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT], true
		}
	}
	return pe.DataDirectory{}, false
}

// mapImage lays the section contents out at their virtual addresses so that
// RVAs can be used as offsets.
func mapImage(f *pe.File) ([]byte, error) {
	var size uint64
	for _, sec := range f.Sections {
		end := uint64(sec.VirtualAddress) + uint64(max(sec.VirtualSize, sec.Size))
		size = max(size, end)
	}
	if size > maxImageSize {
		return nil, fmt.Errorf("image size %#x exceeds limit", size)
	}

	img := make([]byte, size)
	for _, sec := range f.Sections {
		if sec.Size == 0 {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("failed to read section %s: %w", sec.Name, err)
		}
		if sec.VirtualSize > 0 && int(sec.VirtualSize) < len(data) {
			data = data[:sec.VirtualSize]
		}
		copy(img[sec.VirtualAddress:], data)
	}
	return img, nil
}

// decodeExports walks the IMAGE_EXPORT_DIRECTORY at dirRVA of a mapped
// image.
func decodeExports(r *stream.Reader, dirRVA uint32) ([]c2m.RawExport, error) {
	if int(dirRVA)+exportDirectorySize > r.Len() {
		return nil, fmt.Errorf("export directory at %#x is outside the image", dirRVA)
	}
	if err := r.SetOffset(int(dirRVA)); err != nil {
		return nil, err
	}
	// Characteristics, TimeDateStamp, version and Name
	if err := r.Skip(16); err != nil {
		return nil, err
	}

	var fields [6]uint32
	for i := range fields {
		v, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}
	base, numFuncs, numNames := fields[0], fields[1], fields[2]
	addrFuncs, addrNames, addrOrds := fields[3], fields[4], fields[5]

	if uint64(numFuncs)*4 > uint64(r.Len()) || uint64(numNames)*4 > uint64(r.Len()) {
		return nil, fmt.Errorf("export table counts %d/%d exceed the image", numFuncs, numNames)
	}

	ordinals, err := readTable(r, addrOrds, numNames, r.ReadU16)
	if err != nil {
		return nil, fmt.Errorf("name ordinal table: %w", err)
	}
	nameRVAs, err := readTable(r, addrNames, numNames, r.ReadU32)
	if err != nil {
		return nil, fmt.Errorf("name pointer table: %w", err)
	}

	names := make(map[uint32][]string, numNames)
	for i, rva := range nameRVAs {
		name, err := r.CStringAt(int(rva))
		if err != nil {
			return nil, fmt.Errorf("export name %d at %#x: %w", i, rva, err)
		}
		idx := uint32(ordinals[i])
		names[idx] = append(names[idx], name)
	}

	funcs, err := readTable(r, addrFuncs, numFuncs, r.ReadU32)
	if err != nil {
		return nil, fmt.Errorf("export address table: %w", err)
	}

	exports := make([]c2m.RawExport, 0, numFuncs)
	for i, rva := range funcs {
		if rva == 0 {
			continue
		}
		slot := uint32(i)
		slotNames := names[slot]
		if len(slotNames) == 0 {
			slotNames = []string{""}
		}
		for _, name := range slotNames {
			exports = append(exports, c2m.RawExport{
				Ordinal: base + slot,
				RVA:     uint64(rva),
				Name:    name,
			})
		}
	}
	return exports, nil
}

func readTable[T uint16 | uint32](r *stream.Reader, rva, n uint32, read func() (T, error)) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	if err := r.SetOffset(int(rva)); err != nil {
		return nil, err
	}
	out := make([]T, n)
	for i := range out {
		v, err := read()
		if err != nil {
			return nil, fmt.Errorf("entry %d at %#x: %w", i, r.Offset(), err)
		}
		out[i] = v
	}
	return out, nil
}
