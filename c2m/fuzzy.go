package c2m

import (
	"regexp"
	"slices"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/skdltmxn/clear2mangled/decl"
)

// DefaultMaxDistance is the edit distance below which Similar keeps a match.
const DefaultMaxDistance = 100

// scopeSignature matches a templated scope segment such as "::vector<int".
// Candidates must carry the same segments as the query to be compared.
var scopeSignature = regexp.MustCompile(`::[~\w]+<\w+`)

// Match is an export returned by a fuzzy lookup.
type Match struct {
	Export
	Distance int
}

// Similar returns the records whose clear declaration is within maxDistance
// edits of the normalized query, closest first. A query without templated
// scope segments only matches C symbols exactly.
func (ix *Index) Similar(text string, maxDistance int) []Match {
	query := decl.Normalize(text)
	signatures := scopeSignature.FindAllString(query, -1)

	var matches []Match
	for _, e := range ix.exports {
		if len(signatures) == 0 {
			if e.ClearDeclaration == e.MangledDeclaration && e.ClearDeclaration == query {
				matches = append(matches, Match{Export: e})
			}
			continue
		}
		if !slices.Equal(scopeSignature.FindAllString(e.ClearDeclaration, -1), signatures) {
			continue
		}
		if d := levenshtein.ComputeDistance(e.ClearDeclaration, query); d < maxDistance {
			matches = append(matches, Match{Export: e, Distance: d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches
}
