package demangle

import (
	"errors"
	"fmt"
	"strings"
)

// Errors
var (
	ErrEmptyInput      = errors.New("demangle: empty input")
	ErrInvalidMangled  = errors.New("demangle: invalid mangled name")
	ErrUnexpectedEnd   = errors.New("demangle: unexpected end of input")
	ErrInvalidBackref  = errors.New("demangle: invalid back-reference")
	ErrUnknownOperator = errors.New("demangle: unknown operator")
	ErrUnknownType     = errors.New("demangle: unknown type")
)

// Demangle converts an MSVC decorated name to the text undname prints for
// it. Names that are not decorated are returned unchanged. On failure the
// decorated name is returned along with the error.
func Demangle(decorated string) (string, error) {
	if len(decorated) == 0 {
		return "", ErrEmptyInput
	}
	if !IsMangled(decorated) {
		return decorated, nil
	}

	node, err := DemangleToNode(decorated)
	if err != nil {
		return decorated, err
	}
	return node.String(), nil
}

// DemangleToNode parses a mangled name and returns the AST.
func DemangleToNode(decorated string) (Node, error) {
	if len(decorated) == 0 {
		return nil, ErrEmptyInput
	}
	if !IsMangled(decorated) {
		return &Identifier{Name: decorated}, nil
	}

	d := newDemangler(decorated)
	return d.parse()
}

// IsMangled returns true if the name appears to be an MSVC mangled name.
func IsMangled(name string) bool {
	return len(name) > 1 && name[0] == '?'
}

// demangler holds parser state.
type demangler struct {
	input string
	pos   int

	// Back-reference tables
	nameBackrefs     [10]string
	nameBackrefCount int
	typeBackrefs     [10]Node
	typeBackrefCount int

	// Template arguments get their own back-reference tables.
	savedBackrefs []backrefState
}

type backrefState struct {
	names     [10]string
	nameCount int
	types     [10]Node
	typeCount int
}

func newDemangler(input string) *demangler {
	return &demangler{
		input: input,
	}
}

func (d *demangler) parse() (Node, error) {
	if !d.consumeByte('?') {
		return nil, ErrInvalidMangled
	}

	// "??" introduces operators and compiler-generated names; "?$" is a
	// template name handled by the qualified name parser.
	if d.peek() == '?' && d.peekAt(1) != '$' {
		d.pos++
		return d.parseSpecialSymbol()
	}

	name, err := d.parseFullyQualifiedName()
	if err != nil {
		return nil, err
	}
	return d.parseEncoding(name)
}

func (d *demangler) parseSpecialSymbol() (Node, error) {
	switch {
	case d.consumePrefix("_7"):
		return d.parseSpecialTable(OpVFTable)
	case d.consumePrefix("_8"):
		return d.parseSpecialTable(OpVBTable)
	case d.consumePrefix("_S"):
		return d.parseSpecialTable(OpLocalVFTable)
	case d.consumePrefix("_R4"):
		return d.parseSpecialTable(OpRTTICompleteObjectLocator)
	case d.consumePrefix("_R0"):
		return d.parseRTTITypeDescriptor()
	case d.consumePrefix("_R1"):
		return d.parseRTTIBaseClassDescriptor()
	case d.consumePrefix("_R2"):
		return d.parseRTTIName(&Operator{Op: OpRTTIBaseClassArray})
	case d.consumePrefix("_R3"):
		return d.parseRTTIName(&Operator{Op: OpRTTIClassHierarchyDescriptor})
	case d.consumePrefix("_C@"):
		d.pos = len(d.input)
		return &Identifier{Name: "`string'"}, nil
	}

	op, err := d.parseOperatorName()
	if err != nil {
		return nil, err
	}

	name, err := d.parseScopes(op)
	if err != nil {
		return nil, err
	}

	// Constructors and destructors are named after the enclosing class.
	if s, ok := op.(*Structor); ok && len(name.Components) > 1 {
		s.Class = name.Components[len(name.Components)-2]
	}

	return d.parseEncoding(name)
}

// parseOperatorName decodes the operator code that follows "??" or "?$?".
func (d *demangler) parseOperatorName() (Node, error) {
	if d.pos >= len(d.input) {
		return nil, ErrUnexpectedEnd
	}

	c := d.consume()

	var op OperatorKind
	switch c {
	case '0':
		return &Structor{}, nil
	case '1':
		return &Structor{Destructor: true}, nil
	case '2':
		op = OpNew
	case '3':
		op = OpDelete
	case '4':
		op = OpAssign
	case '5':
		op = OpRightShift
	case '6':
		op = OpLeftShift
	case '7':
		op = OpLogicalNot
	case '8':
		op = OpEqual
	case '9':
		op = OpNotEqual
	case 'A':
		op = OpSubscript
	case 'B':
		// Conversion operator; the target is the return type.
		return &ConversionOperator{}, nil
	case 'C':
		op = OpArrow
	case 'D':
		op = OpDereference
	case 'E':
		op = OpIncrement
	case 'F':
		op = OpDecrement
	case 'G':
		op = OpMinus
	case 'H':
		op = OpPlus
	case 'I':
		op = OpAddressOf
	case 'J':
		op = OpArrowDeref
	case 'K':
		op = OpDivide
	case 'L':
		op = OpModulo
	case 'M':
		op = OpLess
	case 'N':
		op = OpLessEqual
	case 'O':
		op = OpGreater
	case 'P':
		op = OpGreaterEqual
	case 'Q':
		op = OpComma
	case 'R':
		op = OpCall
	case 'S':
		op = OpComplement
	case 'T':
		op = OpXor
	case 'U':
		op = OpBitwiseOr
	case 'V':
		op = OpLogicalAnd
	case 'W':
		op = OpLogicalOr
	case 'X':
		op = OpMultiplyAssign
	case 'Y':
		op = OpPlusAssign
	case 'Z':
		op = OpMinusAssign
	case '_':
		return d.parseExtendedOperator()
	default:
		d.pos--
		return nil, ErrUnknownOperator
	}

	return &Operator{Op: op}, nil
}

func (d *demangler) parseExtendedOperator() (Node, error) {
	if d.pos >= len(d.input) {
		return nil, ErrUnexpectedEnd
	}

	c := d.consume()

	var op OperatorKind
	switch c {
	case '0':
		op = OpDivideAssign
	case '1':
		op = OpModuloAssign
	case '2':
		op = OpRightShiftAssign
	case '3':
		op = OpLeftShiftAssign
	case '4':
		op = OpAndAssign
	case '5':
		op = OpOrAssign
	case '6':
		op = OpXorAssign
	case 'A':
		op = OpTypeof
	case 'D':
		op = OpVBaseDtor
	case 'E':
		op = OpVectorDeletingDtor
	case 'F':
		op = OpDefaultCtorClosure
	case 'G':
		op = OpScalarDeletingDtor
	case 'H':
		op = OpVectorCtorIterator
	case 'I':
		op = OpVectorDtorIterator
	case 'J':
		op = OpVectorVbaseCtorIterator
	case 'K':
		op = OpVirtualDisplacementMap
	case 'L':
		op = OpEHVectorCtorIterator
	case 'M':
		op = OpEHVectorDtorIterator
	case 'N':
		op = OpEHVectorVbaseCtorIterator
	case 'O':
		op = OpCopyCtorClosure
	case 'T':
		op = OpLocalVFTableCtorClosure
	case 'U':
		op = OpNewArray
	case 'V':
		op = OpDeleteArray
	case 'X':
		op = OpPlacementDeleteClosure
	case 'Y':
		op = OpPlacementArrayDeleteClosure
	case '_':
		switch {
		case d.consumePrefix("L"):
			op = OpCoAwait
		case d.consumePrefix("U"):
			op = OpSpaceship
		default:
			return nil, ErrUnknownOperator
		}
	default:
		d.pos--
		return nil, ErrUnknownOperator
	}

	return &Operator{Op: op}, nil
}

// parseSpecialTable decodes the tail of a vftable-like symbol:
// scopes, storage class, qualifiers and an optional "{for `X'}" target.
func (d *demangler) parseSpecialTable(op OperatorKind) (Node, error) {
	name, err := d.parseScopes(&Operator{Op: op})
	if err != nil {
		return nil, err
	}

	if c := d.consume(); c != '6' && c != '7' {
		return nil, ErrInvalidMangled
	}
	quals, ok := d.parseCVQualifiers()
	if !ok {
		return nil, ErrInvalidMangled
	}

	sym := &SpecialTableSymbol{Name: name, Quals: quals}
	if !d.consumeByte('@') && d.pos < len(d.input) {
		target, err := d.parseFullyQualifiedName()
		if err != nil {
			return nil, err
		}
		sym.Target = target
	}
	return sym, nil
}

func (d *demangler) parseRTTIName(op Node) (Node, error) {
	name, err := d.parseScopes(op)
	if err != nil {
		return nil, err
	}
	if !d.consumeByte('8') {
		return nil, ErrInvalidMangled
	}
	return name, nil
}

func (d *demangler) parseRTTITypeDescriptor() (Node, error) {
	t, err := d.parseType()
	if err != nil {
		return nil, err
	}
	if !d.consumePrefix("@8") {
		return nil, ErrInvalidMangled
	}
	return &Identifier{Name: t.String() + " `RTTI Type Descriptor'"}, nil
}

func (d *demangler) parseRTTIBaseClassDescriptor() (Node, error) {
	var nums [4]int64
	for i := range nums {
		n, err := d.parseNumber()
		if err != nil {
			return nil, err
		}
		nums[i] = n
	}
	label := fmt.Sprintf("`RTTI Base Class Descriptor at (%d,%d,%d,%d)'", nums[0], nums[1], nums[2], nums[3])
	return d.parseRTTIName(&Identifier{Name: label})
}

// parseFullyQualifiedName parses an unqualified name followed by its
// enclosing scopes, innermost first, up to the terminating '@'.
func (d *demangler) parseFullyQualifiedName() (*QualifiedName, error) {
	unqualified, err := d.parseUnqualifiedName()
	if err != nil {
		return nil, err
	}
	return d.parseScopes(unqualified)
}

func (d *demangler) parseScopes(unqualified Node) (*QualifiedName, error) {
	components := []Node{unqualified}

	for !d.consumeByte('@') {
		if d.pos >= len(d.input) {
			return nil, ErrUnexpectedEnd
		}
		part, err := d.parseScopePiece()
		if err != nil {
			return nil, err
		}
		components = append(components, part)
	}

	// Reverse to get natural C++ order
	for i, j := 0, len(components)-1; i < j; i, j = i+1, j-1 {
		components[i], components[j] = components[j], components[i]
	}

	return &QualifiedName{Components: components}, nil
}

func (d *demangler) parseUnqualifiedName() (Node, error) {
	if d.pos >= len(d.input) {
		return nil, ErrUnexpectedEnd
	}

	c := d.peek()
	switch {
	case isDigit(c):
		return d.parseNameBackref()
	case c == '?' && d.peekAt(1) == '$':
		return d.parseTemplateInstantiation()
	case c == '?':
		return nil, ErrInvalidMangled
	default:
		return d.parseSimpleName()
	}
}

func (d *demangler) parseScopePiece() (Node, error) {
	c := d.peek()
	switch {
	case isDigit(c):
		return d.parseNameBackref()
	case c == '?' && d.peekAt(1) == '$':
		return d.parseTemplateInstantiation()
	case c == '?' && d.peekAt(1) == 'A':
		// Anonymous namespace: "?A0x1234abcd@"
		end := strings.IndexByte(d.input[d.pos:], '@')
		if end < 0 {
			return nil, ErrUnexpectedEnd
		}
		d.memorizeName(d.input[d.pos : d.pos+end])
		d.pos += end + 1
		return &Identifier{Name: "`anonymous namespace'"}, nil
	case c == '?':
		// Locally scoped names are not supported.
		return nil, ErrInvalidMangled
	default:
		return d.parseSimpleName()
	}
}

func (d *demangler) parseNameBackref() (Node, error) {
	idx := int(d.consume() - '0')
	if idx >= d.nameBackrefCount {
		return nil, ErrInvalidBackref
	}
	return &Identifier{Name: d.nameBackrefs[idx]}, nil
}

// parseSimpleName reads an identifier through its terminating '@'.
func (d *demangler) parseSimpleName() (Node, error) {
	end := strings.IndexByte(d.input[d.pos:], '@')
	if end < 0 {
		return nil, ErrUnexpectedEnd
	}
	if end == 0 {
		return nil, ErrInvalidMangled
	}

	name := d.input[d.pos : d.pos+end]
	d.pos += end + 1
	d.memorizeName(name)

	return &Identifier{Name: name}, nil
}

func (d *demangler) parseTemplateInstantiation() (Node, error) {
	// Skip ?$
	d.pos += 2

	d.pushBackrefScope()
	node, err := d.parseTemplateBody()
	d.popBackrefScope()
	if err != nil {
		return nil, err
	}

	d.memorizeName(node.String())
	return node, nil
}

func (d *demangler) parseTemplateBody() (*TemplateInstantiation, error) {
	var name Node
	var err error
	if d.consumeByte('?') {
		name, err = d.parseOperatorName()
	} else {
		name, err = d.parseSimpleName()
	}
	if err != nil {
		return nil, err
	}

	var args []Node
	for !d.consumeByte('@') {
		if d.pos >= len(d.input) {
			return nil, ErrUnexpectedEnd
		}
		arg, err := d.parseTemplateArg()
		if err != nil {
			return nil, err
		}
		if arg != nil {
			args = append(args, arg)
		}
	}

	return &TemplateInstantiation{Name: name, Arguments: args}, nil
}

// parseTemplateArg returns nil for an empty parameter pack.
func (d *demangler) parseTemplateArg() (Node, error) {
	switch {
	case d.consumePrefix("$$V"), d.consumePrefix("$$Z"), d.consumePrefix("$S"):
		return nil, nil
	case d.consumePrefix("$$T"):
		return &PrimitiveType{Type: PrimNullptr}, nil
	case d.consumePrefix("$0"):
		v, err := d.parseNumber()
		if err != nil {
			return nil, err
		}
		return &IntegerLiteral{Value: v}, nil
	case d.consumePrefix("$1"):
		sym, err := d.parseNestedSymbol()
		if err != nil {
			return nil, err
		}
		return &Identifier{Name: "&" + sym.String()}, nil
	case d.consumePrefix("$H"), d.consumePrefix("$I"), d.consumePrefix("$J"):
		return nil, ErrUnknownType
	}
	return d.parseType()
}

// parseNestedSymbol parses a complete "?name@@encoding" symbol embedded in
// a template argument and returns its name.
func (d *demangler) parseNestedSymbol() (*QualifiedName, error) {
	if !d.consumeByte('?') {
		return nil, ErrInvalidMangled
	}
	name, err := d.parseFullyQualifiedName()
	if err != nil {
		return nil, err
	}
	if _, err := d.parseEncoding(name); err != nil {
		return nil, err
	}
	return name, nil
}

func (d *demangler) parseEncoding(name *QualifiedName) (Node, error) {
	if d.pos >= len(d.input) {
		return nil, ErrUnexpectedEnd
	}

	c := d.peek()
	switch {
	case c >= '0' && c <= '4':
		return d.parseVariableEncoding(name)
	case c >= 'A' && c <= 'Z':
		return d.parseFunctionEncoding(name)
	default:
		return nil, ErrInvalidMangled
	}
}

func (d *demangler) parseFunctionEncoding(name *QualifiedName) (Node, error) {
	c := d.consume()

	sym := &FunctionSymbol{Name: name}
	member := true

	switch c {
	case 'A', 'B':
		sym.AccessSpec = AccessPrivate
	case 'C', 'D':
		sym.AccessSpec = AccessPrivate
		sym.IsStatic = true
	case 'E', 'F':
		sym.AccessSpec = AccessPrivate
		sym.IsVirtual = true
	case 'G', 'H':
		sym.AccessSpec = AccessPrivate
		sym.IsVirtual = true
		sym.IsThunk = true
	case 'I', 'J':
		sym.AccessSpec = AccessProtected
	case 'K', 'L':
		sym.AccessSpec = AccessProtected
		sym.IsStatic = true
	case 'M', 'N':
		sym.AccessSpec = AccessProtected
		sym.IsVirtual = true
	case 'O', 'P':
		sym.AccessSpec = AccessProtected
		sym.IsVirtual = true
		sym.IsThunk = true
	case 'Q', 'R':
		sym.AccessSpec = AccessPublic
	case 'S', 'T':
		sym.AccessSpec = AccessPublic
		sym.IsStatic = true
	case 'U', 'V':
		sym.AccessSpec = AccessPublic
		sym.IsVirtual = true
	case 'W', 'X':
		sym.AccessSpec = AccessPublic
		sym.IsVirtual = true
		sym.IsThunk = true
	case 'Y', 'Z':
		// Global function
	}
	if sym.IsStatic || sym.AccessSpec == AccessNone {
		member = false
	}

	if sym.IsThunk {
		adj, err := d.parseNumber()
		if err != nil {
			return nil, err
		}
		sym.Adjustor = adj
	}

	ft, err := d.parseFunctionType(member)
	if err != nil {
		return nil, err
	}
	sym.Signature = ft

	if conv, ok := name.Last().(*ConversionOperator); ok {
		conv.TargetType = ft.ReturnType
		ft.ReturnType = nil
	}

	return sym, nil
}

func (d *demangler) parseVariableEncoding(name *QualifiedName) (Node, error) {
	c := d.consume()

	sym := &VariableSymbol{Name: name}
	switch c {
	case '0':
		sym.AccessSpec = AccessPrivate
		sym.IsStatic = true
	case '1':
		sym.AccessSpec = AccessProtected
		sym.IsStatic = true
	case '2':
		sym.AccessSpec = AccessPublic
		sym.IsStatic = true
	case '3', '4':
		// Global or function-local static
	}

	varType, err := d.parseType()
	if err != nil {
		return nil, err
	}

	// Storage qualifiers of the variable itself. undname folds them into the
	// pointer notation for pointers and prints them after other types.
	d.parsePointerExtQualifiers()
	quals, ok := d.parseCVQualifiers()
	if !ok {
		return nil, ErrInvalidMangled
	}
	if _, isPtr := varType.(*PointerType); !isPtr && !quals.IsEmpty() {
		varType = &QualifiedType{Type: varType, Quals: quals}
	}
	sym.Type = varType

	return sym, nil
}

// parseFunctionType parses the part of a function encoding following the
// access code: this-qualifiers for members, calling convention, return
// type, parameters and the throw specification.
func (d *demangler) parseFunctionType(member bool) (*FunctionType, error) {
	ft := &FunctionType{}

	if member {
		ft.Is64Bit, ft.Quals = d.parsePointerExtQualifiers()
		switch {
		case d.consumeByte('G'):
			ft.RefQualifier = RefQualifierLValue
		case d.consumeByte('H'):
			ft.RefQualifier = RefQualifierRValue
		}
		cv, ok := d.parseCVQualifiers()
		if !ok {
			return nil, ErrInvalidMangled
		}
		ft.Quals.IsConst = cv.IsConst
		ft.Quals.IsVolatile = cv.IsVolatile
	}

	cc, err := d.parseCallingConvention()
	if err != nil {
		return nil, err
	}
	ft.CallingConv = cc

	// Constructors and destructors have no return type.
	if !d.consumeByte('@') {
		ret, err := d.parseReturnType()
		if err != nil {
			return nil, err
		}
		ft.ReturnType = ret
	}

	params, variadic, err := d.parseParameters()
	if err != nil {
		return nil, err
	}
	ft.Parameters = params
	ft.IsVariadic = variadic

	// Throw specification
	if !d.consumePrefix("_E") {
		d.consumeByte('Z')
	}

	return ft, nil
}

func (d *demangler) parseReturnType() (Node, error) {
	// "?A"/"?B" qualify a class returned by value.
	if d.consumeByte('?') {
		quals, ok := d.parseCVQualifiers()
		if !ok {
			return nil, ErrInvalidMangled
		}
		t, err := d.parseType()
		if err != nil {
			return nil, err
		}
		if quals.IsEmpty() {
			return t, nil
		}
		return &QualifiedType{Type: t, Quals: quals}, nil
	}
	return d.parseType()
}

func (d *demangler) parseCallingConvention() (CallingConvention, error) {
	if d.pos >= len(d.input) {
		return CallingConvCdecl, ErrUnexpectedEnd
	}

	switch d.consume() {
	case 'A', 'B':
		return CallingConvCdecl, nil
	case 'C', 'D':
		return CallingConvPascal, nil
	case 'E', 'F':
		return CallingConvThiscall, nil
	case 'G', 'H':
		return CallingConvStdcall, nil
	case 'I', 'J':
		return CallingConvFastcall, nil
	case 'M', 'N':
		return CallingConvClrcall, nil
	case 'O', 'P':
		return CallingConvEabi, nil
	case 'Q':
		return CallingConvVectorcall, nil
	case 'S':
		return CallingConvSwift, nil
	case 'W':
		return CallingConvSwiftAsync, nil
	default:
		d.pos--
		return CallingConvCdecl, ErrInvalidMangled
	}
}

// parseParameters reads a parameter list. "X" alone means (void); the list
// otherwise ends with '@', or with 'Z' for a variadic function.
func (d *demangler) parseParameters() ([]Node, bool, error) {
	if d.consumeByte('X') {
		return nil, false, nil
	}

	var params []Node
	for {
		switch {
		case d.pos >= len(d.input):
			return nil, false, ErrUnexpectedEnd
		case d.consumeByte('@'):
			return params, false, nil
		case d.consumeByte('Z'):
			return params, true, nil
		}

		start := d.pos
		param, err := d.parseType()
		if err != nil {
			return nil, false, err
		}
		// Only multi-character encodings are worth a back-reference.
		if d.pos-start > 1 {
			d.memorizeType(param)
		}
		params = append(params, param)
	}
}

func (d *demangler) parseType() (Node, error) {
	if d.pos >= len(d.input) {
		return nil, ErrUnexpectedEnd
	}

	c := d.peek()

	// Type back-reference
	if isDigit(c) {
		d.pos++
		idx := int(c - '0')
		if idx >= d.typeBackrefCount {
			return nil, ErrInvalidBackref
		}
		return d.typeBackrefs[idx], nil
	}

	d.pos++
	switch c {
	// Primitive types
	case 'X':
		return &PrimitiveType{Type: PrimVoid}, nil
	case 'C':
		return &PrimitiveType{Type: PrimSignedChar}, nil
	case 'D':
		return &PrimitiveType{Type: PrimChar}, nil
	case 'E':
		return &PrimitiveType{Type: PrimUnsignedChar}, nil
	case 'F':
		return &PrimitiveType{Type: PrimShort}, nil
	case 'G':
		return &PrimitiveType{Type: PrimUnsignedShort}, nil
	case 'H':
		return &PrimitiveType{Type: PrimInt}, nil
	case 'I':
		return &PrimitiveType{Type: PrimUnsignedInt}, nil
	case 'J':
		return &PrimitiveType{Type: PrimLong}, nil
	case 'K':
		return &PrimitiveType{Type: PrimUnsignedLong}, nil
	case 'M':
		return &PrimitiveType{Type: PrimFloat}, nil
	case 'N':
		return &PrimitiveType{Type: PrimDouble}, nil
	case 'O':
		return &PrimitiveType{Type: PrimLongDouble}, nil
	case '_':
		return d.parseExtendedType()

	// Pointer/reference types
	case 'P':
		return d.parsePointerType(AffinityPointer, Qualifiers{})
	case 'Q':
		return d.parsePointerType(AffinityPointer, Qualifiers{IsConst: true})
	case 'R':
		return d.parsePointerType(AffinityPointer, Qualifiers{IsVolatile: true})
	case 'S':
		return d.parsePointerType(AffinityPointer, Qualifiers{IsConst: true, IsVolatile: true})
	case 'A':
		return d.parsePointerType(AffinityReference, Qualifiers{})
	case 'B':
		return d.parsePointerType(AffinityReference, Qualifiers{IsVolatile: true})

	// $ extended codes
	case '$':
		return d.parseDollarType()

	// Tag types
	case 'T':
		return d.parseTagType(TagUnion)
	case 'U':
		return d.parseTagType(TagStruct)
	case 'V':
		return d.parseTagType(TagClass)
	case 'W':
		// Underlying type code, not printed
		if d.consume() == 0 {
			return nil, ErrUnexpectedEnd
		}
		return d.parseTagType(TagEnum)

	case 'Y':
		return d.parseArrayType()

	case '?':
		quals, ok := d.parseCVQualifiers()
		if !ok {
			return nil, ErrInvalidMangled
		}
		t, err := d.parseType()
		if err != nil {
			return nil, err
		}
		if quals.IsEmpty() {
			return t, nil
		}
		return &QualifiedType{Type: t, Quals: quals}, nil
	}

	d.pos--
	return nil, ErrUnknownType
}

func (d *demangler) parseExtendedType() (Node, error) {
	if d.pos >= len(d.input) {
		return nil, ErrUnexpectedEnd
	}

	var kind PrimitiveKind
	switch d.consume() {
	case 'N':
		kind = PrimBool
	case 'J':
		kind = PrimInt64
	case 'K':
		kind = PrimUnsignedInt64
	case 'L':
		kind = PrimInt128
	case 'M':
		kind = PrimUnsignedInt128
	case 'W':
		kind = PrimWChar
	case 'Q':
		kind = PrimChar8
	case 'S':
		kind = PrimChar16
	case 'U':
		kind = PrimChar32
	default:
		d.pos--
		return nil, ErrUnknownType
	}
	return &PrimitiveType{Type: kind}, nil
}

// parsePointerType parses what follows a pointer or reference code. quals
// are the qualifiers of the pointer itself, taken from that code.
func (d *demangler) parsePointerType(affinity PointerAffinity, quals Qualifiers) (Node, error) {
	ptr := &PointerType{Affinity: affinity, Quals: quals}

	switch {
	case affinity == AffinityPointer && d.consumeByte('6'):
		ft, err := d.parseFunctionType(false)
		if err != nil {
			return nil, err
		}
		ptr.Pointee = ft
		return ptr, nil
	case affinity == AffinityPointer && d.consumeByte('8'):
		class, err := d.parseFullyQualifiedName()
		if err != nil {
			return nil, err
		}
		ft, err := d.parseFunctionType(true)
		if err != nil {
			return nil, err
		}
		ptr.Class = class
		ptr.Pointee = ft
		return ptr, nil
	}

	is64, ext := d.parsePointerExtQualifiers()
	ptr.Is64Bit = is64
	ptr.Quals.IsRestrict = ext.IsRestrict
	ptr.Quals.IsUnaligned = ext.IsUnaligned

	pointeeQuals, ok := d.parseCVQualifiers()
	if !ok {
		return nil, ErrInvalidMangled
	}
	pointee, err := d.parseType()
	if err != nil {
		return nil, err
	}
	if !pointeeQuals.IsEmpty() {
		pointee = &QualifiedType{Type: pointee, Quals: pointeeQuals}
	}
	ptr.Pointee = pointee

	return ptr, nil
}

func (d *demangler) parseDollarType() (Node, error) {
	switch {
	case d.consumePrefix("$Q"):
		return d.parsePointerType(AffinityRValueReference, Qualifiers{})
	case d.consumePrefix("$R"):
		return d.parsePointerType(AffinityRValueReference, Qualifiers{IsVolatile: true})
	case d.consumePrefix("$A6"):
		return d.parseFunctionType(false)
	case d.consumePrefix("$B"):
		return d.parseType()
	case d.consumePrefix("$C"):
		quals, ok := d.parseCVQualifiers()
		if !ok {
			return nil, ErrInvalidMangled
		}
		t, err := d.parseType()
		if err != nil {
			return nil, err
		}
		if quals.IsEmpty() {
			return t, nil
		}
		return &QualifiedType{Type: t, Quals: quals}, nil
	case d.consumePrefix("$T"):
		return &PrimitiveType{Type: PrimNullptr}, nil
	}

	d.pos--
	return nil, ErrUnknownType
}

// parsePointerExtQualifiers reads the __ptr64, __restrict and __unaligned
// markers in any order.
func (d *demangler) parsePointerExtQualifiers() (is64 bool, quals Qualifiers) {
	for {
		switch d.peek() {
		case 'E':
			is64 = true
		case 'I':
			quals.IsRestrict = true
		case 'F':
			quals.IsUnaligned = true
		default:
			return is64, quals
		}
		d.pos++
	}
}

func (d *demangler) parseCVQualifiers() (Qualifiers, bool) {
	var quals Qualifiers

	switch d.peek() {
	case 'A':
	case 'B':
		quals.IsConst = true
	case 'C':
		quals.IsVolatile = true
	case 'D':
		quals.IsConst = true
		quals.IsVolatile = true
	default:
		return quals, false
	}
	d.pos++

	return quals, true
}

func (d *demangler) parseTagType(tag TagKind) (Node, error) {
	name, err := d.parseFullyQualifiedName()
	if err != nil {
		return nil, err
	}

	return &TagType{
		Tag:  tag,
		Name: name,
	}, nil
}

func (d *demangler) parseArrayType() (Node, error) {
	rank, err := d.parseNumber()
	if err != nil {
		return nil, err
	}
	if rank <= 0 {
		return nil, ErrInvalidMangled
	}

	dims := make([]int64, rank)
	for i := range dims {
		if dims[i], err = d.parseNumber(); err != nil {
			return nil, err
		}
	}

	elemType, err := d.parseType()
	if err != nil {
		return nil, err
	}

	return &ArrayType{
		ElementType: elemType,
		Dimensions:  dims,
	}, nil
}

// parseNumber decodes an encoded integer: '0'..'9' stand for 1..10, longer
// values are hex digits 'A'..'P' terminated by '@', and a leading '?'
// negates.
func (d *demangler) parseNumber() (int64, error) {
	negative := d.consumeByte('?')

	c := d.peek()
	if isDigit(c) {
		d.pos++
		val := int64(c-'0') + 1
		if negative {
			val = -val
		}
		return val, nil
	}

	var val int64
	for {
		if d.pos >= len(d.input) {
			return 0, ErrUnexpectedEnd
		}
		c = d.consume()
		if c == '@' {
			break
		}
		if c < 'A' || c > 'P' {
			d.pos--
			return 0, ErrInvalidMangled
		}
		val = val*16 + int64(c-'A')
	}

	if negative {
		val = -val
	}
	return val, nil
}

// Helper methods

func (d *demangler) peek() byte {
	return d.peekAt(0)
}

func (d *demangler) peekAt(off int) byte {
	if d.pos+off >= len(d.input) {
		return 0
	}
	return d.input[d.pos+off]
}

func (d *demangler) consume() byte {
	if d.pos >= len(d.input) {
		return 0
	}
	c := d.input[d.pos]
	d.pos++
	return c
}

func (d *demangler) consumeByte(c byte) bool {
	if d.peek() == c {
		d.pos++
		return true
	}
	return false
}

func (d *demangler) consumePrefix(prefix string) bool {
	if strings.HasPrefix(d.input[d.pos:], prefix) {
		d.pos += len(prefix)
		return true
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (d *demangler) memorizeName(s string) {
	if d.nameBackrefCount < len(d.nameBackrefs) && !d.containsBackref(s) {
		d.nameBackrefs[d.nameBackrefCount] = s
		d.nameBackrefCount++
	}
}

func (d *demangler) containsBackref(s string) bool {
	for i := 0; i < d.nameBackrefCount; i++ {
		if d.nameBackrefs[i] == s {
			return true
		}
	}
	return false
}

func (d *demangler) memorizeType(t Node) {
	if d.typeBackrefCount < len(d.typeBackrefs) {
		d.typeBackrefs[d.typeBackrefCount] = t
		d.typeBackrefCount++
	}
}

func (d *demangler) pushBackrefScope() {
	d.savedBackrefs = append(d.savedBackrefs, backrefState{
		names:     d.nameBackrefs,
		nameCount: d.nameBackrefCount,
		types:     d.typeBackrefs,
		typeCount: d.typeBackrefCount,
	})

	d.nameBackrefCount = 0
	d.typeBackrefCount = 0
}

func (d *demangler) popBackrefScope() {
	if len(d.savedBackrefs) == 0 {
		return
	}
	state := d.savedBackrefs[len(d.savedBackrefs)-1]
	d.savedBackrefs = d.savedBackrefs[:len(d.savedBackrefs)-1]

	d.nameBackrefs = state.names
	d.nameBackrefCount = state.nameCount
	d.typeBackrefs = state.types
	d.typeBackrefCount = state.typeCount
}

// DemangleSimple returns the demangled form of decorated, or decorated
// itself when it cannot be decoded.
func DemangleSimple(decorated string) string {
	result, err := Demangle(decorated)
	if err != nil {
		return decorated
	}
	return result
}
