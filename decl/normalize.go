package decl

import (
	"regexp"
	"strings"
)

// Canonical tokens for compiler-generated special members.
const (
	DefaultConstructorClosure = "default_constructor_closure"
	VBaseDestructor           = "vbase_destructor"
	VFTable                   = "vftable"
	VBTable                   = "vbtable"
)

type rewrite struct {
	re   *regexp.Regexp
	repl string
}

// Order matters: the space collapse mops up after the qualifier and calling
// convention removals, and tag removal assumes it already ran.
var rewrites = []rewrite{
	{regexp.MustCompile(`(?:public|private|protected): `), ""},
	{regexp.MustCompile(`\b(?:static|virtual) `), ""},
	{regexp.MustCompile(`\b(?:__\w+call|__cdecl)\b`), ""},
	{regexp.MustCompile(` {2,}`), " "},
	{regexp.MustCompile(`\b(?:class|struct) `), ""},
	{regexp.MustCompile(` >`), ">"},
	{regexp.MustCompile(` &`), "&"},
	{regexp.MustCompile(` \*`), "*"},
	{regexp.MustCompile(`\)const\b`), ") const"},
	{regexp.MustCompile("`vftable'"), VFTable},
	{regexp.MustCompile("`vbtable'"), VBTable},
	{regexp.MustCompile("`default constructor closure'"), DefaultConstructorClosure},
	{regexp.MustCompile("`vbase destructor'"), VBaseDestructor},
	{regexp.MustCompile("[`']"), ""},
	{regexp.MustCompile(` __ptr64\b`), ""},
	{regexp.MustCompile(`\{.+\}`), ""},
}

// Normalize rewrites demangled text into the canonical single-line form used
// for classification and lookup. It never fails; empty input yields empty
// output. Normalize is idempotent.
//
// The rules are applied until the text stops changing. Every rule except the
// ")const" spacing shortens the text, and that one cannot fire on its own
// output, so the loop ends.
func Normalize(text string) string {
	s := text
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	for _, rw := range rewrites {
		s = rw.re.ReplaceAllLiteralString(s, rw.repl)
	}
	return strings.TrimPrefix(s, " ")
}
