package demangle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemangle(t *testing.T) {
	tests := []struct {
		mangled string
		want    string
	}{
		{"?Foo@N@@SAXH@Z", "public: static void __cdecl N::Foo(int)"},
		{"??0N@@QEAA@XZ", "public: __cdecl N::N(void) __ptr64"},
		{"??1N@@UEAA@XZ", "public: virtual __cdecl N::~N(void) __ptr64"},
		{"?Get@N@@QEBAHXZ", "public: int __cdecl N::Get(void)const __ptr64"},
		{"?f@N@@QAEXXZ", "public: void __thiscall N::f(void)"},
		{"?f@@YAXXZ", "void __cdecl f(void)"},
		{"?f@@YAXHZZ", "void __cdecl f(int,...)"},
		{"?f@@YAXPEBD@Z", "void __cdecl f(char const * __ptr64)"},
		{"?f@@YAXPEAH0@Z", "void __cdecl f(int * __ptr64,int * __ptr64)"},
		{"?f@@YAXW4E@@@Z", "void __cdecl f(enum E)"},
		{"?f@@YAXP6AHH@Z@Z", "void __cdecl f(int (__cdecl*)(int))"},
		{"?f@?A0x1234@@YAXXZ", "void __cdecl `anonymous namespace'::f(void)"},
		{"?f@?$A@$0A@@@QEAAXXZ", "public: void __cdecl A<0>::f(void) __ptr64"},
		{
			"??4N@@QEAAAEAV0@AEBV0@@Z",
			"public: class N & __ptr64 __cdecl N::operator=(class N const & __ptr64) __ptr64",
		},
		{
			"?push_back@?$vector@HV?$allocator@H@std@@@std@@QEAAXAEBH@Z",
			"public: void __cdecl std::vector<int,class std::allocator<int> >::push_back(int const & __ptr64) __ptr64",
		},
		{"??BN@@QEBAHXZ", "public: __cdecl N::operator int(void)const __ptr64"},
		{"?f@N@@W7EAAXXZ", "[thunk]:public: virtual void __cdecl N::f`adjustor{8}' (void) __ptr64"},
		{"??_FN@@QEAAXXZ", "public: void __cdecl N::`default constructor closure'(void) __ptr64"},
		{"??_DN@@QEAAXXZ", "public: void __cdecl N::`vbase destructor'(void) __ptr64"},
		{"?x@N@@2HA", "public: static int N::x"},
		{"?x@N@@2HB", "public: static int const N::x"},
		{"?g@@3HA", "int g"},
		{"?g_fp@@3P6AHH@ZEA", "int (__cdecl* g_fp)(int)"},
		{"??_7N@@6B@", "const N::`vftable'"},
		{"??_7D@@6BB1@@", "const D::`vftable'{for `B1'}"},
		{"??_R0?AVN@@@8", "class N `RTTI Type Descriptor'"},
	}

	for _, tt := range tests {
		t.Run(tt.mangled, func(t *testing.T) {
			got, err := Demangle(tt.mangled)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDemangleUnmangled(t *testing.T) {
	for _, name := range []string{"plain_c", "_leading_underscore", "DllMain", "?"} {
		got, err := Demangle(name)
		require.NoError(t, err)
		assert.Equal(t, name, got)
	}

	_, err := Demangle("")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestDemangleInvalid(t *testing.T) {
	tests := []struct {
		mangled string
		err     error
	}{
		{"?f@@", ErrUnexpectedEnd},
		{"?f@@YAX3@Z", ErrInvalidBackref},
		{"?f@@YAXL@Z", ErrUnknownType},
		{"??_$N@@QEAAXXZ", ErrUnknownOperator},
	}

	for _, tt := range tests {
		t.Run(tt.mangled, func(t *testing.T) {
			got, err := Demangle(tt.mangled)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.mangled, got)
			assert.Equal(t, tt.mangled, DemangleSimple(tt.mangled))
		})
	}
}

func TestDemangleToNode(t *testing.T) {
	node, err := DemangleToNode("?Foo@N@@SAXH@Z")
	require.NoError(t, err)
	require.Equal(t, NodeKindFunctionSymbol, node.Kind())

	fn := node.(*FunctionSymbol)
	assert.Equal(t, "N::Foo", fn.Name.String())
	assert.True(t, fn.IsStatic)
	assert.Equal(t, AccessPublic, fn.AccessSpec)
	require.Len(t, fn.Signature.Parameters, 1)
	assert.Equal(t, "int", fn.Signature.Parameters[0].String())

	node, err = DemangleToNode("??1N@@UEAA@XZ")
	require.NoError(t, err)
	last := node.(*FunctionSymbol).Name.Last()
	require.Equal(t, NodeKindStructor, last.Kind())
	assert.True(t, last.(*Structor).Destructor)

	node, err = DemangleToNode("exported_c")
	require.NoError(t, err)
	assert.Equal(t, NodeKindIdentifier, node.Kind())
}

func TestIsMangled(t *testing.T) {
	assert.True(t, IsMangled("?f@@YAXXZ"))
	assert.False(t, IsMangled("f"))
	assert.False(t, IsMangled("?"))
	assert.False(t, IsMangled(""))
}
