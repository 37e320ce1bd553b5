package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skdltmxn/clear2mangled/c2m"
	"github.com/skdltmxn/clear2mangled/decl"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestParseHex(t *testing.T) {
	for in, want := range map[string]uint64{
		"1000":       0x1000,
		"0x1000":     0x1000,
		"0X7ff6A000": 0x7ff6a000,
		" deadbeef ": 0xdeadbeef,
		"140001000":  0x140001000,
	} {
		got, err := parseHex(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseHex("xyz")
	assert.Error(t, err)
	_, err = parseHex("")
	assert.Error(t, err)
}

func TestHexValue(t *testing.T) {
	var h hexValue
	require.NoError(t, h.Set("0x140000000"))
	assert.Equal(t, hexValue(0x140000000), h)
	assert.Equal(t, "0x140000000", h.String())
	assert.Equal(t, "hex", h.Type())
	assert.Error(t, h.Set("g"))
}

func TestBatchFlagsValidate(t *testing.T) {
	script := filepath.Join(t.TempDir(), "rewrite.py")
	require.NoError(t, os.WriteFile(script, []byte("print('x')\n"), 0o644))

	tests := []struct {
		name    string
		flags   batchFlags
		args    int
		wantErr string
	}{
		{name: "positional", args: 1},
		{name: "file", flags: batchFlags{file: "queries.txt"}},
		{name: "file and script", flags: batchFlags{file: "queries.txt", script: script}},
		{name: "nothing", wantErr: "required"},
		{name: "both", flags: batchFlags{file: "queries.txt"}, args: 1, wantErr: "mutually exclusive"},
		{name: "script alone", flags: batchFlags{script: script}, args: 1, wantErr: "--script requires --file"},
		{name: "missing script", flags: batchFlags{file: "queries.txt", script: script + ".missing"}, wantErr: "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flags.validate(tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/q.txt", []byte("void f(int)\r\n\n   \nint x\n"), 0o644))

	lines, err := readLines(fs, "/q.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"void f(int)", "int x"}, lines)

	_, err = readLines(fs, "/missing.txt")
	assert.Error(t, err)
}

func TestTransformLinesKeepsOrder(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e", "f"}
	bad := errors.New("bad line")

	items := transformLines(context.Background(), lines, func(_ context.Context, line string) (string, error) {
		if line == "d" {
			return "", bad
		}
		return strings.ToUpper(line), nil
	}, 3)

	require.Len(t, items, len(lines))
	for i, item := range items {
		assert.Equal(t, lines[i], item.line)
		if item.line == "d" {
			assert.ErrorIs(t, item.err, bad)
			continue
		}
		assert.NoError(t, item.err)
		assert.Equal(t, strings.ToUpper(item.line), item.query)
	}
}

func TestRunBatchCollectsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rvas.txt")
	require.NoError(t, os.WriteFile(path, []byte("1000\nnothex\n2000\nzz\n"), 0o644))

	var got []uint64
	err := runBatch(context.Background(), &batchFlags{file: path}, nil, func(q string) error {
		v, err := parseHex(q)
		if err != nil {
			return err
		}
		got = append(got, v)
		return nil
	})

	assert.Equal(t, []uint64{0x1000, 0x2000}, got)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.Contains(t, merr.Errors[0].Error(), "nothex")
}

func TestRunBatchPositional(t *testing.T) {
	var got []string
	err := runBatch(context.Background(), &batchFlags{}, []string{"int x"}, func(q string) error {
		got = append(got, q)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"int x"}, got)
}

func TestKindFilter(t *testing.T) {
	exports := []c2m.Export{
		{Ordinal: 1, Details: decl.Details{CFunction: true, Name: "plain_c"}},
		{Ordinal: 2, Details: decl.Details{Variable: true, Name: "x"}},
		{Ordinal: 3, Details: decl.Details{Name: "Foo"}},
	}
	ix := c2m.NewIndex(exports)

	for kind, want := range map[string][]uint32{
		"":         {1, 2, 3},
		"cfunc":    {1},
		"Variable": {2},
		"function": {3},
	} {
		match, err := kindFilter(kind)
		require.NoError(t, err)
		var ords []uint32
		for _, e := range ix.Filter(match) {
			ords = append(ords, e.Ordinal)
		}
		assert.Equal(t, want, ords, kind)
	}

	_, err := kindFilter("udt")
	assert.Error(t, err)
}

func TestPrintResults(t *testing.T) {
	ix := c2m.NewIndex([]c2m.Export{{
		Ordinal:            7,
		RVA:                0x1000,
		MangledDeclaration: "?Foo@N@@SAXH@Z",
		ClearDeclaration:   "public: static void __cdecl N::Foo(int)",
		Details:            decl.Details{Name: "Foo", ParenthesesGroups: []string{"(int)"}},
	}})

	var buf bytes.Buffer
	printDeclResult(&buf, "void N::Foo(int)", ix.ByDeclaration("void N::Foo(int)"))
	out := buf.String()
	assert.Contains(t, out, "Name:                Foo\n")
	assert.Contains(t, out, "CFunction:           NO\n")
	assert.Contains(t, out, "7\t0000000000001000\tC++ Function\t?Foo@N@@SAXH@Z\n")
	assert.Contains(t, out, separator+"public: static void __cdecl N::Foo(int)\n")

	buf.Reset()
	printDeclResult(&buf, "void Bar(int)", ix.ByDeclaration("void Bar(int)"))
	assert.Contains(t, buf.String(), `mangled name of "void Bar(int)" not found`)

	buf.Reset()
	printAddressResult(&buf, ix.ByAddress(0x140000000, 0x140001000), 0x140000000, true)
	assert.Contains(t, buf.String(), "Va")
	assert.Contains(t, buf.String(), "7\t0000000140001000\t")

	buf.Reset()
	printAddressResult(&buf, ix.ByRVA(0x2000), 0, false)
	assert.Contains(t, buf.String(), `mangled name of rva "2000" not found`)
}

func TestParserOptions(t *testing.T) {
	defer func(l, n bool) { looseCFunc, noTilde = l, n }(looseCFunc, noTilde)

	looseCFunc, noTilde = false, false
	assert.Equal(t, decl.DefaultOptions(), parserOptions())

	looseCFunc, noTilde = true, true
	assert.Equal(t, decl.Options{}, parserOptions())
}

func TestNewDemangler(t *testing.T) {
	defer func(name string) { demanglerName = name }(demanglerName)

	for _, name := range []string{"builtin", "undname"} {
		demanglerName = name
		d, err := newDemangler()
		require.NoError(t, err)
		assert.NotNil(t, d)
	}

	demanglerName = "gcc"
	_, err := newDemangler()
	assert.Error(t, err)
}
