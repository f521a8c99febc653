package dedup

import (
	"sort"
	"strconv"
	"strings"
)

// RowMeta carries per-row consolidation detail alongside the emitted rows.
type RowMeta struct {
	Count   int            `json:"count"`
	Buckets map[string]int `json:"buckets,omitempty"`
	Soft    bool           `json:"soft"`
}

// Stats summarizes one consolidation run.
type Stats struct {
	InputRows     int `json:"input_rows"`
	GroupCount    int `json:"group_count"`
	SoftCount     int `json:"soft_count"`
	ExcludedCount int `json:"excluded_count"`
}

// Result is the consolidated output: canonical headers, emitted rows in
// final order, and per-row metadata aligned with Rows.
type Result struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Meta    []RowMeta  `json:"meta"`
	Stats   Stats      `json:"stats"`
}

// emitResult filters excluded groups, orders soft matches ahead of the rest
// (each partition sorted by title, input order preserved on ties), and
// serializes year buckets back into the rows with zero rendered as blank.
func emitResult(groups []*Group, headers []string, yearCols []FieldIndex, opts Options) *Result {
	commentIdx := indexOfFold(headers, FieldComment)
	titleIdx := indexOfFold(headers, FieldTitle)

	kept := make([]*Group, 0, len(groups))
	excluded := 0
	for _, g := range groups {
		if commentIdx >= 0 && excludedComment(cellAt(g.Row, commentIdx), opts.ExcludePhrases) {
			excluded++
			continue
		}
		kept = append(kept, g)
	}

	var soft, other []*Group
	for _, g := range kept {
		if g.Match == MatchSoft {
			soft = append(soft, g)
		} else {
			other = append(other, g)
		}
	}
	sortByTitle(soft, titleIdx)
	sortByTitle(other, titleIdx)
	ordered := append(soft, other...)

	result := &Result{Headers: headers}
	for _, g := range ordered {
		row := make([]string, len(g.Row))
		copy(row, g.Row)
		for _, col := range yearCols {
			if col.Index >= len(row) {
				continue
			}
			if n := g.Buckets[col.Field]; n > 0 {
				row[col.Index] = strconv.Itoa(n)
			} else {
				row[col.Index] = ""
			}
		}
		result.Rows = append(result.Rows, row)
		result.Meta = append(result.Meta, RowMeta{
			Count:   g.Count,
			Buckets: g.Buckets,
			Soft:    g.Match == MatchSoft,
		})
	}
	result.Stats.ExcludedCount = excluded
	return result
}

func sortByTitle(groups []*Group, titleIdx int) {
	if titleIdx < 0 {
		return
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return cellAt(groups[i].Row, titleIdx) < cellAt(groups[j].Row, titleIdx)
	})
}

// excludedComment reports whether the comment contains any exclusion phrase,
// case-insensitively.
func excludedComment(comment string, phrases []string) bool {
	lc := strings.ToLower(comment)
	for _, phrase := range phrases {
		phrase = strings.ToLower(phrase)
		if phrase != "" && strings.Contains(lc, phrase) {
			return true
		}
	}
	return false
}
