package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/skdltmxn/clear2mangled/c2m"
	"github.com/skdltmxn/clear2mangled/decl"
)

var (
	headerClr   = color.New(color.FgGreen)
	ordinalClr  = color.New(color.FgBlue)
	addressClr  = color.New(color.FgMagenta)
	kindClr     = color.New(color.FgCyan)
	declClr     = color.New(color.FgYellow)
	notFoundClr = color.New(color.FgRed)
)

const separator = "+-----------------------------------------------"

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

// printQuery prints the classified form of a declaration query.
func printQuery(w io.Writer, normalized string, d decl.Details) {
	fmt.Fprintf(w, "Query:               %s\n", decl.StripTemplateArgs(normalized))
	fmt.Fprintf(w, "Name:                %s\n", d.Name)
	fmt.Fprintf(w, "CFunction:           %s\n", yesNo(d.CFunction))
	fmt.Fprintf(w, "ConstructorFunction: %s\n", yesNo(d.Constructor))
	fmt.Fprintf(w, "DestructorFunction:  %s\n", yesNo(d.Destructor))
	fmt.Fprintln(w)
}

func printHeader(w io.Writer, addrLabel string) {
	headerClr.Fprintf(w, "Ordinal\t%-16s\tType    \tName\n", addrLabel)
}

// printExport prints one record. addr is the address shown in the second
// column, the RVA or the rebased virtual address.
func printExport(w io.Writer, e c2m.Export, addr uint64) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		ordinalClr.Sprint(e.Ordinal),
		addressClr.Sprintf("%016X", addr),
		kindClr.Sprint(e.Details.Kind()),
		e.MangledDeclaration)
	fmt.Fprintf(w, "%s%s\n\n", separator, declClr.Sprint(e.ClearDeclaration))
}

func printDeclResult(w io.Writer, query string, res c2m.Result) {
	printQuery(w, res.Declaration, *res.Details)
	if !res.Found() {
		notFoundClr.Fprintf(w, "mangled name of %q not found\n", query)
		return
	}
	printHeader(w, "Rva")
	for _, e := range res.Exports {
		printExport(w, e, e.RVA)
	}
}

func printMatches(w io.Writer, query string, matches []c2m.Match) {
	if len(matches) == 0 {
		notFoundClr.Fprintf(w, "mangled name of %q not found\n", query)
		return
	}
	headerClr.Fprintf(w, "Match\tOrdinal\t%-16s\tName\n", "Rva")
	for _, m := range matches {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			m.Distance,
			ordinalClr.Sprint(m.Ordinal),
			addressClr.Sprintf("%016X", m.RVA),
			m.MangledDeclaration)
		fmt.Fprintf(w, "%s%s\n\n", separator, declClr.Sprint(m.ClearDeclaration))
	}
}

// printAddressResult prints the records of an address lookup, rebased on
// base when virtual is set.
func printAddressResult(w io.Writer, res c2m.Result, base uint64, virtual bool) {
	if !res.Found() {
		notFoundClr.Fprintf(w, "mangled name of rva %q not found\n", fmt.Sprintf("%x", res.RVA))
		return
	}
	label := "Rva"
	if virtual {
		label = "Va"
	}
	printHeader(w, label)
	for _, e := range res.Exports {
		addr := e.RVA
		if virtual {
			addr += base
		}
		printExport(w, e, addr)
	}
}
