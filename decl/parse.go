// Package decl classifies compiler-demangled C++ declarations.
//
// It is a shallow, name-oriented classifier rather than a C++ parser: a
// declaration is reduced to its kind (C function, variable or ordinary C++
// function), special-member flags, the unqualified callable name and the
// top-level parenthesized groups.
package decl

import (
	"regexp"
	"strings"
)

// Details is the structural description of one declaration.
type Details struct {
	CFunction   bool
	Variable    bool
	Constructor bool
	Destructor  bool

	Name              string
	ParenthesesGroups []string
}

// Kind returns a short human-readable classification.
func (d Details) Kind() string {
	switch {
	case d.Variable:
		return "Variable"
	case d.CFunction:
		return "C Function"
	default:
		return "C++ Function"
	}
}

// Key is the structural identity used to match a query against exports.
type Key struct {
	Name        string
	CFunction   bool
	Constructor bool
	Destructor  bool
}

// Key returns the lookup identity of d. Variable is not part of it.
func (d Details) Key() Key {
	return Key{
		Name:        d.Name,
		CFunction:   d.CFunction,
		Constructor: d.Constructor,
		Destructor:  d.Destructor,
	}
}

// Options tune the two rules on which revisions of the classifier disagree.
type Options struct {
	// StrictCFunction makes a declaration without a parameter list a C
	// function only when it contains none of ' ', '<', '>' and ':'. When
	// false only the space is checked.
	StrictCFunction bool

	// AllowTilde lets the name pattern start with '~', which is what makes
	// "N::~N" resolve to "~N" instead of nothing.
	AllowTilde bool
}

// DefaultOptions returns the options used by Parse.
func DefaultOptions() Options {
	return Options{StrictCFunction: true, AllowTilde: true}
}

// Parser classifies normalized declarations.
type Parser struct {
	opts        Options
	namePattern *regexp.Regexp
}

var defaultParser = NewParser(DefaultOptions())

// NewParser returns a Parser using opts.
func NewParser(opts Options) *Parser {
	pattern := `(?:::| )[\w<> +=\-/*]+`
	if opts.AllowTilde {
		pattern = `(?:::| )~?[\w<> +=\-/*]+`
	}
	return &Parser{
		opts:        opts,
		namePattern: regexp.MustCompile(pattern),
	}
}

// Parse classifies a normalized declaration with the default options.
func Parse(declaration string) Details {
	return defaultParser.Parse(declaration)
}

// Classify normalizes raw demangled text and classifies it with the default
// options.
func Classify(text string) (string, Details) {
	return defaultParser.Classify(text)
}

// Classify normalizes raw demangled text and classifies the result.
func (p *Parser) Classify(text string) (string, Details) {
	normalized := Normalize(text)
	return normalized, p.Parse(normalized)
}

// Parse classifies a normalized declaration. It is a pure function of its
// input and never fails; text it cannot make sense of yields an empty Name.
func (p *Parser) Parse(declaration string) Details {
	var d Details

	regions := FindRegions(declaration, '(', ')')
	if len(regions) > 0 {
		d.ParenthesesGroups = make([]string, len(regions))
		for i, r := range regions {
			d.ParenthesesGroups[i] = r.Text
		}
	}

	switch {
	case len(regions) == 0 && p.isCSymbol(declaration):
		d.CFunction = true
		d.Name = declaration
	case len(regions) == 0:
		// Qualified or generic text without call syntax is data.
		d.Variable = true
		d.Name = p.lastSegment(StripTemplateArgs(declaration))
	case regions[0].Start > 0 && declaration[regions[0].Start-1] == ' ':
		// "ret (* name)(args)": a function pointer variable.
		d.Variable = true
		d.Name = pointerName(regions[0].Text)
	default:
		d.Name = p.lastSegment(StripTemplateArgs(declaration[:regions[0].Start]))
	}

	d.Name = strings.ReplaceAll(d.Name, "::", "")
	d.Name = strings.TrimPrefix(d.Name, " ")

	d.Constructor = d.Name == DefaultConstructorClosure
	d.Destructor = strings.Contains(d.Name, "~") || d.Name == VBaseDestructor

	return d
}

func (p *Parser) isCSymbol(s string) bool {
	if p.opts.StrictCFunction {
		return !strings.ContainsAny(s, " <>:")
	}
	return !strings.Contains(s, " ")
}

// lastSegment returns the rightmost "::name" or " name" match in s, which is
// the unqualified name once template arguments are gone.
func (p *Parser) lastSegment(s string) string {
	matches := p.namePattern.FindAllString(s, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1]
}

// pointerName extracts the variable name from a "(* name)" group. Unlike
// the original tool it drops the group's closing ')', so names in its cache
// files carry a trailing ')' and do not match keys built here.
func pointerName(group string) string {
	inner := StripTemplateArgs(strings.TrimSuffix(strings.TrimPrefix(group, "("), ")"))
	if i := strings.Index(inner, "* "); i >= 0 {
		return inner[i+2:]
	}
	if i := strings.LastIndexByte(inner, '*'); i >= 0 {
		return strings.TrimSpace(inner[i+1:])
	}
	return strings.TrimSpace(inner)
}
