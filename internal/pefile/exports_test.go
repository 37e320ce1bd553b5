package pefile

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skdltmxn/clear2mangled/c2m"
	"github.com/skdltmxn/clear2mangled/internal/stream"
)

const (
	testPEOffset   = 0x40
	testSectionRVA = 0x1000
	testRawOffset  = 0x200
)

type namedSlot struct {
	name string
	slot uint16
}

// buildExportData lays out an IMAGE_EXPORT_DIRECTORY followed by its tables
// and strings, as it would appear at testSectionRVA.
func buildExportData(base uint32, funcs []uint32, names []namedSlot) []byte {
	le := binary.LittleEndian

	funcsOff := uint32(exportDirectorySize)
	namesOff := funcsOff + 4*uint32(len(funcs))
	ordsOff := namesOff + 4*uint32(len(names))
	strOff := ordsOff + 2*uint32(len(names))

	data := make([]byte, strOff)
	le.PutUint32(data[16:], base)
	le.PutUint32(data[20:], uint32(len(funcs)))
	le.PutUint32(data[24:], uint32(len(names)))
	le.PutUint32(data[28:], testSectionRVA+funcsOff)
	le.PutUint32(data[32:], testSectionRVA+namesOff)
	le.PutUint32(data[36:], testSectionRVA+ordsOff)

	for i, rva := range funcs {
		le.PutUint32(data[funcsOff+4*uint32(i):], rva)
	}
	for i, n := range names {
		le.PutUint32(data[namesOff+4*uint32(i):], testSectionRVA+uint32(len(data)))
		le.PutUint16(data[ordsOff+2*uint32(i):], n.slot)
		data = append(data, n.name...)
		data = append(data, 0)
	}
	return data
}

// buildPE wraps section data into a minimal PE32+ image. dirSize is the size
// recorded in the export data directory.
func buildPE(t *testing.T, section []byte, dirSize uint32) []byte {
	t.Helper()
	le := binary.LittleEndian

	var buf bytes.Buffer
	dos := make([]byte, testPEOffset)
	dos[0], dos[1] = 'M', 'Z'
	le.PutUint32(dos[0x3c:], testPEOffset)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")

	oh := pe.OptionalHeader64{
		Magic:               0x20b,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfImage:         testSectionRVA + 0x1000,
		SizeOfHeaders:       testRawOffset,
		NumberOfRvaAndSizes: 16,
	}
	oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT] = pe.DataDirectory{VirtualAddress: testSectionRVA, Size: dirSize}

	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_AMD64,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(binary.Size(oh)),
		Characteristics:      pe.IMAGE_FILE_DLL | pe.IMAGE_FILE_EXECUTABLE_IMAGE,
	}
	sh := pe.SectionHeader32{
		VirtualSize:      uint32(len(section)),
		VirtualAddress:   testSectionRVA,
		SizeOfRawData:    uint32(len(section)),
		PointerToRawData: testRawOffset,
		Characteristics:  pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ,
	}
	copy(sh.Name[:], ".edata")

	for _, v := range []any{fh, oh, sh} {
		require.NoError(t, binary.Write(&buf, le, v))
	}
	require.LessOrEqual(t, buf.Len(), testRawOffset)
	buf.Write(make([]byte, testRawOffset-buf.Len()))
	buf.Write(section)

	return buf.Bytes()
}

func TestSourceExports(t *testing.T) {
	edata := buildExportData(1,
		[]uint32{0x2000, 0, 0x3000, 0x4000},
		[]namedSlot{
			{name: "?Foo@N@@SAXH@Z", slot: 0},
			{name: "plain_c", slot: 2},
			{name: "alias", slot: 2},
		})

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bin/app.dll", buildPE(t, edata, uint32(len(edata))), 0o644))

	got, err := NewSource(fs).Exports("/bin/app.dll")
	require.NoError(t, err)
	assert.Equal(t, []c2m.RawExport{
		{Ordinal: 1, RVA: 0x2000, Name: "?Foo@N@@SAXH@Z"},
		{Ordinal: 3, RVA: 0x3000, Name: "plain_c"},
		{Ordinal: 3, RVA: 0x3000, Name: "alias"},
		{Ordinal: 4, RVA: 0x4000, Name: ""},
	}, got)
}

func TestSourceExportsErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := NewSource(fs)

	_, err := src.Exports("/bin/missing.dll")
	assert.ErrorIs(t, err, c2m.ErrFileNotFound)

	require.NoError(t, afero.WriteFile(fs, "/bin/text.dll", []byte("not an image"), 0o644))
	_, err = src.Exports("/bin/text.dll")
	assert.ErrorIs(t, err, c2m.ErrNotImage)

	edata := buildExportData(1, []uint32{0x2000}, []namedSlot{{name: "f", slot: 0}})
	require.NoError(t, afero.WriteFile(fs, "/bin/noexp.dll", buildPE(t, edata, 0), 0o644))
	_, err = src.Exports("/bin/noexp.dll")
	assert.ErrorIs(t, err, c2m.ErrNoExports)

	empty := buildExportData(1, nil, nil)
	require.NoError(t, afero.WriteFile(fs, "/bin/empty.dll", buildPE(t, empty, uint32(len(empty))), 0o644))
	_, err = src.Exports("/bin/empty.dll")
	assert.ErrorIs(t, err, c2m.ErrNoExports)
}

func TestDecodeExportsMalformed(t *testing.T) {
	edata := buildExportData(1, []uint32{0x2000}, []namedSlot{{name: "f", slot: 0}})
	img := append(make([]byte, testSectionRVA), edata...)

	got, err := decodeExports(stream.NewReader(img), testSectionRVA)
	require.NoError(t, err)
	assert.Equal(t, []c2m.RawExport{{Ordinal: 1, RVA: 0x2000, Name: "f"}}, got)

	_, err = decodeExports(stream.NewReader(img), uint32(len(img)))
	assert.Error(t, err)

	// Name pointer past the end of the image.
	broken := bytes.Clone(img)
	binary.LittleEndian.PutUint32(broken[testSectionRVA+exportDirectorySize+4:], 0xffffff)
	_, err = decodeExports(stream.NewReader(broken), testSectionRVA)
	assert.ErrorIs(t, err, stream.ErrUnexpectedEOF)

	// Function count larger than the image.
	huge := bytes.Clone(img)
	binary.LittleEndian.PutUint32(huge[testSectionRVA+20:], 0x7fffffff)
	_, err = decodeExports(stream.NewReader(huge), testSectionRVA)
	assert.Error(t, err)
}
