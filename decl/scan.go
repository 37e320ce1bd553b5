package decl

import "strings"

// Region is a balanced, top-level delimited span of a declaration.
// Text includes both delimiters.
type Region struct {
	Start int
	Text  string
}

// End returns the offset just past the closing delimiter.
func (r Region) End() int {
	return r.Start + len(r.Text)
}

// FindRegions returns every top-level region of s that opens with open and
// closes with the matching close, left to right.
//
// A close delimiter seen at depth zero is ignored, so operator names such as
// "operator->" do not disturb the scan. A region that never closes is dropped.
func FindRegions(s string, open, close byte) []Region {
	var regions []Region
	depth := 0
	start := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				regions = append(regions, Region{Start: start, Text: s[start : i+1]})
			}
		}
	}

	return regions
}

// Groups returns the text of every top-level region of s.
func Groups(s string, open, close byte) []string {
	regions := FindRegions(s, open, close)
	if len(regions) == 0 {
		return nil
	}

	groups := make([]string, len(regions))
	for i, r := range regions {
		groups[i] = r.Text
	}
	return groups
}

// StripRegions removes every top-level region of s.
func StripRegions(s string, open, close byte) string {
	regions := FindRegions(s, open, close)
	if len(regions) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, r := range regions {
		b.WriteString(s[last:r.Start])
		last = r.End()
	}
	b.WriteString(s[last:])
	return b.String()
}

// StripTemplateArgs removes every top-level <...> region from s.
func StripTemplateArgs(s string) string {
	return StripRegions(s, '<', '>')
}
