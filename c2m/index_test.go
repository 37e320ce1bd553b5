package c2m

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skdltmxn/clear2mangled/decl"
)

func TestIndexByRVA(t *testing.T) {
	ix := NewIndex(sampleExports())

	res := ix.ByRVA(0x1000)
	require.True(t, res.Found())
	require.Len(t, res.Exports, 1)
	assert.Equal(t, "?Foo@N@@SAXH@Z", res.Exports[0].MangledDeclaration)
	assert.Nil(t, res.Details)

	res = ix.ByRVA(0x9999)
	assert.False(t, res.Found())
	assert.Empty(t, res.Exports)
	assert.Equal(t, uint64(0x9999), res.RVA)
}

func TestIndexByAddress(t *testing.T) {
	ix := NewIndex(sampleExports())

	assert.Equal(t, ix.ByRVA(0x1000), ix.ByAddress(0x400000, 0x401000))
	assert.False(t, ix.ByAddress(0x400000, 0x3ff000).Found())
	assert.Equal(t, uint64(0xfffffffffffff000), ix.ByAddress(0x400000, 0x3ff000).RVA)
}

func TestIndexByRVADuplicates(t *testing.T) {
	exports := append(sampleExports(), Export{Ordinal: 9, RVA: 0x1000, MangledDeclaration: "alias", ClearDeclaration: "alias"})
	res := NewIndex(exports).ByRVA(0x1000)
	require.Len(t, res.Exports, 2)
	assert.Equal(t, uint32(1), res.Exports[0].Ordinal)
	assert.Equal(t, uint32(9), res.Exports[1].Ordinal)
}

func TestIndexByDeclaration(t *testing.T) {
	b := NewBuilder(testDemangler)
	var exports []Export
	for i, name := range []string{"?Foo@N@@SAXH@Z", "?Foo@N@@SAXN@Z", "??1N@@UEAA@XZ", "?x@N@@2HA", "plain_c"} {
		records, err := b.Records(t.Context(), RawExport{Ordinal: uint32(i + 1), RVA: uint64(0x1000 * (i + 1)), Name: name})
		require.NoError(t, err)
		exports = append(exports, records...)
	}
	ix := NewIndex(exports)

	t.Run("overloads", func(t *testing.T) {
		res := ix.ByDeclaration("public: static void __cdecl N::Foo(char)")
		require.Len(t, res.Exports, 2)
		assert.Equal(t, uint32(1), res.Exports[0].Ordinal)
		assert.Equal(t, uint32(2), res.Exports[1].Ordinal)
		assert.Equal(t, "void N::Foo(char)", res.Declaration)
		require.NotNil(t, res.Details)
		assert.Equal(t, "Foo", res.Details.Name)
	})

	t.Run("destructor", func(t *testing.T) {
		res := ix.ByDeclaration("N::~N(void)")
		require.Len(t, res.Exports, 1)
		assert.Equal(t, "??1N@@UEAA@XZ", res.Exports[0].MangledDeclaration)
	})

	t.Run("c function", func(t *testing.T) {
		res := ix.ByDeclaration("plain_c")
		require.Len(t, res.Exports, 1)
		assert.True(t, res.Exports[0].Details.CFunction)
	})

	t.Run("variable flag ignored", func(t *testing.T) {
		// A call-shaped query for the data member x still matches.
		res := ix.ByDeclaration("int N::x(void)")
		require.Len(t, res.Exports, 1)
		assert.True(t, res.Exports[0].Details.Variable)
	})

	t.Run("not found", func(t *testing.T) {
		res := ix.ByDeclaration("void N::Bar(int)")
		assert.False(t, res.Found())
		assert.Equal(t, "Bar", res.Details.Name)
	})
}

func TestIndexVariableMatching(t *testing.T) {
	ix := NewIndex(sampleExports(), WithVariableMatching())

	assert.False(t, ix.ByDeclaration("int N::x(void)").Found())
	assert.True(t, ix.ByDeclaration("int N::x").Found())
}

func TestIndexParserOptions(t *testing.T) {
	exports := []Export{{
		MangledDeclaration: "?dtor",
		ClearDeclaration:   "N::~N(void)",
		Details:            decl.Details{Name: "", ParenthesesGroups: []string{"(void)"}},
	}}
	ix := NewIndex(exports, WithParserOptions(decl.Options{StrictCFunction: true}))

	res := ix.ByDeclaration("N::~N(void)")
	assert.Equal(t, "", res.Details.Name)
	assert.True(t, res.Found())
}

func TestIndexIteration(t *testing.T) {
	exports := sampleExports()
	ix := NewIndex(exports)

	assert.Equal(t, len(exports), ix.Len())
	assert.Equal(t, exports, slices.Collect(ix.All()))

	vars := ix.Filter(func(e Export) bool { return e.Details.Variable })
	require.Len(t, vars, 1)
	assert.Equal(t, "x", vars[0].Details.Name)
}
