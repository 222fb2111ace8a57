package parsers

import (
	"sort"
	"strings"
)

// maxEditDistance bounds how far a typo may be from a known name before it
// stops being a candidate.
const maxEditDistance = 3

// Suggest ranks candidates by closeness to name and returns at most limit of
// them. Substring matches rank first, then edit distance. When nothing is
// close, the nearest candidates by edit distance are still returned so the
// caller always has something to offer.
func Suggest(name string, candidates []string, limit int) []string {
	if len(candidates) == 0 || limit <= 0 {
		return []string{}
	}
	type scored struct {
		name  string
		score int
	}
	nameLower := strings.ToLower(name)
	near := make([]scored, 0, len(candidates))
	all := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		cl := strings.ToLower(c)
		d := levenshteinDistance(nameLower, cl)
		all = append(all, scored{name: c, score: d})

		switch {
		case cl == nameLower:
			near = append(near, scored{name: c, score: 0})
		case nameLower != "" && (strings.Contains(cl, nameLower) || strings.Contains(nameLower, cl)):
			near = append(near, scored{name: c, score: 1})
		case d <= maxEditDistance:
			near = append(near, scored{name: c, score: 10 + d})
		}
	}
	pick := near
	if len(pick) == 0 {
		pick = all
	}
	sort.SliceStable(pick, func(i, j int) bool { return pick[i].score < pick[j].score })

	out := make([]string, 0, limit)
	for i := 0; i < len(pick) && i < limit; i++ {
		out = append(out, pick[i].name)
	}
	return out
}

// levenshteinDistance is the number of single-rune edits turning a into b.
// Only the previous DP row is kept.
func levenshteinDistance(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}
	if len(ar) > len(br) {
		ar, br = br, ar
	}
	prev := make([]int, len(ar)+1)
	curr := make([]int, len(ar)+1)
	for i := range prev {
		prev[i] = i
	}
	for i := 1; i <= len(br); i++ {
		curr[0] = i
		for j := 1; j <= len(ar); j++ {
			cost := 1
			if br[i-1] == ar[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(ar)]
}
