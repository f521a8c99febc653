package dedup

import "strings"

// flagSoftMatches runs the pairwise near-duplicate pass over the groups.
// Two groups are soft matches when they share enough filled key fields,
// their averaged field similarity clears the threshold, and no individual
// field pair is incompatible. Flagging is set-once: a group already marked
// soft stays soft. Returns the number of flagged groups.
func flagSoftMatches(groups []*Group, keyFields []FieldIndex, primaryCount int, opts Options) int {
	required := opts.RequiredSharedReduced
	if primaryCount >= len(primaryFieldOrder) {
		required = opts.RequiredSharedFullKey
	}

	indices := make([]int, len(keyFields))
	for i, f := range keyFields {
		indices[i] = f.Index
	}

	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			a, b := groups[i], groups[j]
			if SharedFilledCount(a.Row, b.Row, indices) < required {
				continue
			}
			if MatchScore(a.Row, b.Row, indices) < opts.SimilarityThreshold {
				continue
			}
			if !fieldsCompatible(a.Row, b.Row, keyFields, opts.SimilarityThreshold) {
				continue
			}
			a.Match = MatchSoft
			b.Match = MatchSoft
		}
	}

	flagged := 0
	for _, g := range groups {
		if g.Match == MatchSoft {
			flagged++
		}
	}
	return flagged
}

// fieldsCompatible vetoes a pair when any field filled on both sides falls
// below the similarity threshold. Title gets one escape hatch: values whose
// cleaned forms are identical are compatible regardless of raw similarity.
func fieldsCompatible(a, b []string, keyFields []FieldIndex, threshold float64) bool {
	for _, f := range keyFields {
		va, vb := cellAt(a, f.Index), cellAt(b, f.Index)
		if va == "" || vb == "" {
			continue
		}
		if NormalizedSimilarity(va, vb) >= threshold {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(f.Field), FieldTitle) && CleanTitle(va) == CleanTitle(vb) {
			continue
		}
		return false
	}
	return true
}
