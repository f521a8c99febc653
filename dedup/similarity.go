package dedup

import (
	"regexp"
	"strings"
)

var parentheticalPattern = regexp.MustCompile(`\([^)]*\)`)

// NormalizedSimilarity scores two strings in [0,1] as
// 1 - editDistance/longestLength, operating on runes. Two empty strings
// score 0, not 1.
func NormalizedSimilarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 0
	}
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1 - float64(levenshteinDistance(ra, rb))/float64(longest)
}

// levenshteinDistance computes the edit distance between two rune slices
// using a two-row dynamic programming table.
func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, minInt(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// CleanTitle normalizes a title for loose comparison: lowercase, drop
// parenthetical segments, trim surrounding whitespace. "Blue Monday (Radio
// Edit)" and "Blue Monday" clean to the same string.
func CleanTitle(s string) string {
	s = strings.ToLower(s)
	s = parentheticalPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// MatchScore averages per-field similarity across the given column indices.
// A field empty on either side contributes a full 1.0. Returns 0 when no
// indices are given.
func MatchScore(a, b []string, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	var total float64
	for _, i := range indices {
		va, vb := cellAt(a, i), cellAt(b, i)
		if va == "" || vb == "" {
			total += 1
			continue
		}
		total += NormalizedSimilarity(va, vb)
	}
	return total / float64(len(indices))
}

// SharedFilledCount counts the columns that are non-empty in both rows.
func SharedFilledCount(a, b []string, indices []int) int {
	shared := 0
	for _, i := range indices {
		if cellAt(a, i) != "" && cellAt(b, i) != "" {
			shared++
		}
	}
	return shared
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
