// Package demangle decodes MSVC decorated names into the declaration text
// printed by undname.
package demangle

import (
	"fmt"
	"strings"
)

// NodeKind identifies the type of AST node.
type NodeKind int

const (
	NodeKindUnknown NodeKind = iota
	// Identifier nodes
	NodeKindIdentifier
	NodeKindOperator
	NodeKindConversionOperator
	NodeKindStructor
	NodeKindTemplateInstantiation
	NodeKindIntegerLiteral
	// Type nodes
	NodeKindPrimitiveType
	NodeKindPointerType
	NodeKindReferenceType
	NodeKindRValueReferenceType
	NodeKindArrayType
	NodeKindFunctionType
	NodeKindTagType
	NodeKindQualifiedType
	// Symbol nodes
	NodeKindFunctionSymbol
	NodeKindVariableSymbol
	NodeKindSpecialTableSymbol
	// Container nodes
	NodeKindQualifiedName
)

// Node is the interface implemented by all AST nodes.
type Node interface {
	Kind() NodeKind
	fmt.Stringer
}

// QualifiedName represents a fully-qualified C++ name, outermost scope first.
type QualifiedName struct {
	Components []Node
}

func (n *QualifiedName) Kind() NodeKind { return NodeKindQualifiedName }

func (n *QualifiedName) String() string {
	parts := make([]string, len(n.Components))
	for i, c := range n.Components {
		parts[i] = c.String()
	}
	return strings.Join(parts, "::")
}

// Last returns the unqualified name.
func (n *QualifiedName) Last() Node {
	if len(n.Components) == 0 {
		return nil
	}
	return n.Components[len(n.Components)-1]
}

// Identifier represents a simple name.
type Identifier struct {
	Name string
}

func (n *Identifier) Kind() NodeKind { return NodeKindIdentifier }
func (n *Identifier) String() string { return n.Name }

// Structor names a constructor or destructor after its class.
type Structor struct {
	Class      Node
	Destructor bool
}

func (n *Structor) Kind() NodeKind { return NodeKindStructor }

func (n *Structor) String() string {
	class := "?"
	if n.Class != nil {
		class = n.Class.String()
	}
	if n.Destructor {
		return "~" + class
	}
	return class
}

// OperatorKind identifies operator and compiler-generated names.
type OperatorKind int

const (
	OpUnknown OperatorKind = iota
	OpNew
	OpDelete
	OpAssign
	OpRightShift
	OpLeftShift
	OpLogicalNot
	OpEqual
	OpNotEqual
	OpSubscript
	OpArrow
	OpDereference
	OpIncrement
	OpDecrement
	OpMinus
	OpPlus
	OpAddressOf
	OpArrowDeref
	OpDivide
	OpModulo
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpComma
	OpCall
	OpComplement
	OpXor
	OpBitwiseOr
	OpLogicalAnd
	OpLogicalOr
	OpMultiplyAssign
	OpPlusAssign
	OpMinusAssign
	OpDivideAssign
	OpModuloAssign
	OpRightShiftAssign
	OpLeftShiftAssign
	OpAndAssign
	OpOrAssign
	OpXorAssign
	OpNewArray
	OpDeleteArray
	OpVFTable
	OpVBTable
	OpTypeof
	OpLocalStaticGuard
	OpVBaseDtor
	OpVectorDeletingDtor
	OpDefaultCtorClosure
	OpScalarDeletingDtor
	OpVectorCtorIterator
	OpVectorDtorIterator
	OpVectorVbaseCtorIterator
	OpVirtualDisplacementMap
	OpEHVectorCtorIterator
	OpEHVectorDtorIterator
	OpEHVectorVbaseCtorIterator
	OpCopyCtorClosure
	OpLocalVFTable
	OpLocalVFTableCtorClosure
	OpPlacementDeleteClosure
	OpPlacementArrayDeleteClosure
	OpRTTIBaseClassArray
	OpRTTIClassHierarchyDescriptor
	OpRTTICompleteObjectLocator
	OpSpaceship
	OpCoAwait
)

var operatorNames = map[OperatorKind]string{
	OpNew:                          "operator new",
	OpDelete:                       "operator delete",
	OpAssign:                       "operator=",
	OpRightShift:                   "operator>>",
	OpLeftShift:                    "operator<<",
	OpLogicalNot:                   "operator!",
	OpEqual:                        "operator==",
	OpNotEqual:                     "operator!=",
	OpSubscript:                    "operator[]",
	OpArrow:                        "operator->",
	OpDereference:                  "operator*",
	OpIncrement:                    "operator++",
	OpDecrement:                    "operator--",
	OpMinus:                        "operator-",
	OpPlus:                         "operator+",
	OpAddressOf:                    "operator&",
	OpArrowDeref:                   "operator->*",
	OpDivide:                       "operator/",
	OpModulo:                       "operator%",
	OpLess:                         "operator<",
	OpLessEqual:                    "operator<=",
	OpGreater:                      "operator>",
	OpGreaterEqual:                 "operator>=",
	OpComma:                        "operator,",
	OpCall:                         "operator()",
	OpComplement:                   "operator~",
	OpXor:                          "operator^",
	OpBitwiseOr:                    "operator|",
	OpLogicalAnd:                   "operator&&",
	OpLogicalOr:                    "operator||",
	OpMultiplyAssign:               "operator*=",
	OpPlusAssign:                   "operator+=",
	OpMinusAssign:                  "operator-=",
	OpDivideAssign:                 "operator/=",
	OpModuloAssign:                 "operator%=",
	OpRightShiftAssign:             "operator>>=",
	OpLeftShiftAssign:              "operator<<=",
	OpAndAssign:                    "operator&=",
	OpOrAssign:                     "operator|=",
	OpXorAssign:                    "operator^=",
	OpNewArray:                     "operator new[]",
	OpDeleteArray:                  "operator delete[]",
	OpSpaceship:                    "operator<=>",
	OpCoAwait:                      "operator co_await",
	OpVFTable:                      "`vftable'",
	OpVBTable:                      "`vbtable'",
	OpTypeof:                       "`typeof'",
	OpLocalStaticGuard:             "`local static guard'",
	OpVBaseDtor:                    "`vbase destructor'",
	OpVectorDeletingDtor:           "`vector deleting destructor'",
	OpDefaultCtorClosure:           "`default constructor closure'",
	OpScalarDeletingDtor:           "`scalar deleting destructor'",
	OpVectorCtorIterator:           "`vector constructor iterator'",
	OpVectorDtorIterator:           "`vector destructor iterator'",
	OpVectorVbaseCtorIterator:      "`vector vbase constructor iterator'",
	OpVirtualDisplacementMap:       "`virtual displacement map'",
	OpEHVectorCtorIterator:         "`eh vector constructor iterator'",
	OpEHVectorDtorIterator:         "`eh vector destructor iterator'",
	OpEHVectorVbaseCtorIterator:    "`eh vector vbase constructor iterator'",
	OpCopyCtorClosure:              "`copy constructor closure'",
	OpLocalVFTable:                 "`local vftable'",
	OpLocalVFTableCtorClosure:      "`local vftable constructor closure'",
	OpPlacementDeleteClosure:       "`placement delete closure'",
	OpPlacementArrayDeleteClosure:  "`placement delete[] closure'",
	OpRTTIBaseClassArray:           "`RTTI Base Class Array'",
	OpRTTIClassHierarchyDescriptor: "`RTTI Class Hierarchy Descriptor'",
	OpRTTICompleteObjectLocator:    "`RTTI Complete Object Locator'",
}

// Operator represents an operator name.
type Operator struct {
	Op OperatorKind
}

func (n *Operator) Kind() NodeKind { return NodeKindOperator }

func (n *Operator) String() string {
	if name, ok := operatorNames[n.Op]; ok {
		return name
	}
	return "operator?"
}

// ConversionOperator represents a conversion operator. Its target is the
// function's return type and is only known once the signature is parsed.
type ConversionOperator struct {
	TargetType Node
}

func (n *ConversionOperator) Kind() NodeKind { return NodeKindConversionOperator }

func (n *ConversionOperator) String() string {
	if n.TargetType == nil {
		return "operator ?"
	}
	return "operator " + n.TargetType.String()
}

// TemplateInstantiation represents a template with arguments.
type TemplateInstantiation struct {
	Name      Node
	Arguments []Node
}

func (n *TemplateInstantiation) Kind() NodeKind { return NodeKindTemplateInstantiation }

func (n *TemplateInstantiation) String() string {
	args := make([]string, len(n.Arguments))
	for i, arg := range n.Arguments {
		args[i] = arg.String()
	}
	s := n.Name.String() + "<" + strings.Join(args, ",")
	if strings.HasSuffix(s, ">") {
		s += " "
	}
	return s + ">"
}

// IntegerLiteral represents an integer template argument.
type IntegerLiteral struct {
	Value int64
}

func (n *IntegerLiteral) Kind() NodeKind { return NodeKindIntegerLiteral }
func (n *IntegerLiteral) String() string { return fmt.Sprintf("%d", n.Value) }

// PrimitiveKind identifies primitive types.
type PrimitiveKind int

const (
	PrimVoid PrimitiveKind = iota
	PrimBool
	PrimChar
	PrimSignedChar
	PrimUnsignedChar
	PrimShort
	PrimUnsignedShort
	PrimInt
	PrimUnsignedInt
	PrimLong
	PrimUnsignedLong
	PrimInt64
	PrimUnsignedInt64
	PrimInt128
	PrimUnsignedInt128
	PrimFloat
	PrimDouble
	PrimLongDouble
	PrimWChar
	PrimChar8
	PrimChar16
	PrimChar32
	PrimNullptr
)

var primitiveNames = map[PrimitiveKind]string{
	PrimVoid:           "void",
	PrimBool:           "bool",
	PrimChar:           "char",
	PrimSignedChar:     "signed char",
	PrimUnsignedChar:   "unsigned char",
	PrimShort:          "short",
	PrimUnsignedShort:  "unsigned short",
	PrimInt:            "int",
	PrimUnsignedInt:    "unsigned int",
	PrimLong:           "long",
	PrimUnsignedLong:   "unsigned long",
	PrimInt64:          "__int64",
	PrimUnsignedInt64:  "unsigned __int64",
	PrimInt128:         "__int128",
	PrimUnsignedInt128: "unsigned __int128",
	PrimFloat:          "float",
	PrimDouble:         "double",
	PrimLongDouble:     "long double",
	PrimWChar:          "wchar_t",
	PrimChar8:          "char8_t",
	PrimChar16:         "char16_t",
	PrimChar32:         "char32_t",
	PrimNullptr:        "std::nullptr_t",
}

// PrimitiveType represents a fundamental C++ type.
type PrimitiveType struct {
	Type PrimitiveKind
}

func (n *PrimitiveType) Kind() NodeKind { return NodeKindPrimitiveType }

func (n *PrimitiveType) String() string {
	if name, ok := primitiveNames[n.Type]; ok {
		return name
	}
	return "?"
}

// Qualifiers represents CV-qualifiers.
type Qualifiers struct {
	IsConst     bool
	IsVolatile  bool
	IsRestrict  bool
	IsUnaligned bool
}

func (q Qualifiers) String() string {
	var parts []string
	if q.IsConst {
		parts = append(parts, "const")
	}
	if q.IsVolatile {
		parts = append(parts, "volatile")
	}
	if q.IsRestrict {
		parts = append(parts, "__restrict")
	}
	if q.IsUnaligned {
		parts = append(parts, "__unaligned")
	}
	return strings.Join(parts, " ")
}

func (q Qualifiers) IsEmpty() bool {
	return !q.IsConst && !q.IsVolatile && !q.IsRestrict && !q.IsUnaligned
}

// QualifiedType represents a CV-qualified type. undname writes the
// qualifiers after the type.
type QualifiedType struct {
	Type  Node
	Quals Qualifiers
}

func (n *QualifiedType) Kind() NodeKind { return NodeKindQualifiedType }

func (n *QualifiedType) String() string {
	if n.Quals.IsEmpty() {
		return n.Type.String()
	}
	return n.Type.String() + " " + n.Quals.String()
}

// PointerAffinity distinguishes pointer types.
type PointerAffinity int

const (
	AffinityPointer PointerAffinity = iota
	AffinityReference
	AffinityRValueReference
)

// PointerType represents a pointer, reference, or rvalue reference. Quals
// apply to the pointer itself; qualifiers of the pointee live on a
// QualifiedType pointee.
type PointerType struct {
	Pointee  Node
	Affinity PointerAffinity
	Quals    Qualifiers
	Is64Bit  bool
	// Class is set for pointers to members.
	Class *QualifiedName
}

func (n *PointerType) Kind() NodeKind {
	switch n.Affinity {
	case AffinityReference:
		return NodeKindReferenceType
	case AffinityRValueReference:
		return NodeKindRValueReferenceType
	default:
		return NodeKindPointerType
	}
}

func (n *PointerType) symbol() string {
	switch n.Affinity {
	case AffinityReference:
		return "&"
	case AffinityRValueReference:
		return "&&"
	default:
		return "*"
	}
}

func (n *PointerType) String() string { return n.declare("") }

func (n *PointerType) declare(name string) string {
	sym := n.symbol()

	// "int (__cdecl* name)(int)" and "void (__cdecl N::* name)(void)"
	if fn, ok := n.Pointee.(*FunctionType); ok {
		var b strings.Builder
		if fn.ReturnType != nil {
			b.WriteString(fn.ReturnType.String())
			b.WriteString(" ")
		}
		b.WriteString("(")
		b.WriteString(callingConvNames[fn.CallingConv])
		if n.Class != nil {
			b.WriteString(" ")
			b.WriteString(n.Class.String())
			b.WriteString("::")
		}
		b.WriteString(sym)
		if name != "" {
			b.WriteString(" ")
			b.WriteString(name)
		}
		b.WriteString(")")
		b.WriteString(fn.parameterList())
		return b.String()
	}

	if n.Class != nil {
		sym = n.Class.String() + "::" + sym
	}
	s := n.Pointee.String() + " " + sym
	if !n.Quals.IsEmpty() {
		s += " " + n.Quals.String()
	}
	if n.Is64Bit {
		s += " __ptr64"
	}
	if name != "" {
		s += " " + name
	}
	return s
}

// ArrayType represents a C++ array type.
type ArrayType struct {
	ElementType Node
	Dimensions  []int64
}

func (n *ArrayType) Kind() NodeKind { return NodeKindArrayType }

func (n *ArrayType) String() string {
	var b strings.Builder
	b.WriteString(n.ElementType.String())
	for _, dim := range n.Dimensions {
		fmt.Fprintf(&b, "[%d]", dim)
	}
	return b.String()
}

// CallingConvention represents function calling conventions.
type CallingConvention int

const (
	CallingConvCdecl CallingConvention = iota
	CallingConvPascal
	CallingConvThiscall
	CallingConvStdcall
	CallingConvFastcall
	CallingConvVectorcall
	CallingConvClrcall
	CallingConvEabi
	CallingConvSwift
	CallingConvSwiftAsync
)

var callingConvNames = map[CallingConvention]string{
	CallingConvCdecl:      "__cdecl",
	CallingConvPascal:     "__pascal",
	CallingConvThiscall:   "__thiscall",
	CallingConvStdcall:    "__stdcall",
	CallingConvFastcall:   "__fastcall",
	CallingConvVectorcall: "__vectorcall",
	CallingConvClrcall:    "__clrcall",
	CallingConvEabi:       "__eabi",
	CallingConvSwift:      "__swiftcall",
	CallingConvSwiftAsync: "__swiftasynccall",
}

// RefQualifier for member function reference qualifiers.
type RefQualifier int

const (
	RefQualifierNone RefQualifier = iota
	RefQualifierLValue
	RefQualifierRValue
)

// FunctionType represents a function signature.
type FunctionType struct {
	CallingConv  CallingConvention
	ReturnType   Node
	Parameters   []Node
	IsVariadic   bool
	Quals        Qualifiers // qualifiers of the implicit this
	Is64Bit      bool
	RefQualifier RefQualifier
}

func (n *FunctionType) Kind() NodeKind { return NodeKindFunctionType }

func (n *FunctionType) String() string {
	var b strings.Builder
	if n.ReturnType != nil {
		b.WriteString(n.ReturnType.String())
		b.WriteString(" ")
	}
	b.WriteString(callingConvNames[n.CallingConv])
	b.WriteString(n.parameterList())
	return b.String()
}

func (n *FunctionType) parameterList() string {
	params := make([]string, 0, len(n.Parameters)+1)
	for _, p := range n.Parameters {
		params = append(params, p.String())
	}
	if n.IsVariadic {
		params = append(params, "...")
	}
	if len(params) == 0 {
		return "(void)"
	}
	return "(" + strings.Join(params, ",") + ")"
}

// suffix renders the this-qualifiers that follow the parameter list.
func (n *FunctionType) suffix() string {
	var b strings.Builder
	if n.Quals.IsConst {
		b.WriteString("const")
	}
	if n.Quals.IsVolatile {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("volatile")
	}
	if n.Is64Bit {
		b.WriteString(" __ptr64")
	}
	switch n.RefQualifier {
	case RefQualifierLValue:
		b.WriteString(" &")
	case RefQualifierRValue:
		b.WriteString(" &&")
	}
	if n.Quals.IsRestrict {
		b.WriteString(" __restrict")
	}
	return b.String()
}

// TagKind identifies class types.
type TagKind int

const (
	TagUnion TagKind = iota
	TagStruct
	TagClass
	TagEnum
)

var tagNames = map[TagKind]string{
	TagUnion:  "union",
	TagStruct: "struct",
	TagClass:  "class",
	TagEnum:   "enum",
}

// TagType represents class, struct, union, or enum types.
type TagType struct {
	Tag  TagKind
	Name *QualifiedName
}

func (n *TagType) Kind() NodeKind { return NodeKindTagType }

func (n *TagType) String() string {
	return tagNames[n.Tag] + " " + n.Name.String()
}

// AccessSpecifier identifies member accessibility.
type AccessSpecifier int

const (
	AccessNone AccessSpecifier = iota
	AccessPrivate
	AccessProtected
	AccessPublic
)

var accessNames = map[AccessSpecifier]string{
	AccessPrivate:   "private",
	AccessProtected: "protected",
	AccessPublic:    "public",
}

func writeAccess(b *strings.Builder, access AccessSpecifier) {
	if access != AccessNone {
		b.WriteString(accessNames[access])
		b.WriteString(": ")
	}
}

// FunctionSymbol represents a function definition.
type FunctionSymbol struct {
	Name       *QualifiedName
	Signature  *FunctionType
	AccessSpec AccessSpecifier
	IsStatic   bool
	IsVirtual  bool
	// Adjustor is the this adjustment of a virtual thunk, zero otherwise.
	IsThunk  bool
	Adjustor int64
}

func (n *FunctionSymbol) Kind() NodeKind { return NodeKindFunctionSymbol }

func (n *FunctionSymbol) String() string {
	var b strings.Builder

	if n.IsThunk {
		b.WriteString("[thunk]:")
	}
	writeAccess(&b, n.AccessSpec)
	if n.IsStatic {
		b.WriteString("static ")
	}
	if n.IsVirtual {
		b.WriteString("virtual ")
	}

	sig := n.Signature
	if sig.ReturnType != nil {
		b.WriteString(sig.ReturnType.String())
		b.WriteString(" ")
	}
	b.WriteString(callingConvNames[sig.CallingConv])
	b.WriteString(" ")
	b.WriteString(n.Name.String())
	if n.IsThunk {
		fmt.Fprintf(&b, "`adjustor{%d}' ", n.Adjustor)
	}
	b.WriteString(sig.parameterList())
	b.WriteString(sig.suffix())

	return b.String()
}

// VariableSymbol represents a variable definition.
type VariableSymbol struct {
	Name       *QualifiedName
	Type       Node
	AccessSpec AccessSpecifier
	IsStatic   bool
}

func (n *VariableSymbol) Kind() NodeKind { return NodeKindVariableSymbol }

func (n *VariableSymbol) String() string {
	var b strings.Builder

	writeAccess(&b, n.AccessSpec)
	if n.IsStatic {
		b.WriteString("static ")
	}

	name := n.Name.String()
	switch t := n.Type.(type) {
	case nil:
		b.WriteString(name)
	case *PointerType:
		b.WriteString(t.declare(name))
	default:
		b.WriteString(t.String())
		b.WriteString(" ")
		b.WriteString(name)
	}

	return b.String()
}

// SpecialTableSymbol represents a compiler-generated table such as a
// vftable.
type SpecialTableSymbol struct {
	Name   *QualifiedName
	Quals  Qualifiers
	Target *QualifiedName
}

func (n *SpecialTableSymbol) Kind() NodeKind { return NodeKindSpecialTableSymbol }

func (n *SpecialTableSymbol) String() string {
	var b strings.Builder
	if !n.Quals.IsEmpty() {
		b.WriteString(n.Quals.String())
		b.WriteString(" ")
	}
	b.WriteString(n.Name.String())
	if n.Target != nil {
		b.WriteString("{for `")
		b.WriteString(n.Target.String())
		b.WriteString("'}")
	}
	return b.String()
}
