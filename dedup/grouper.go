package dedup

import (
	"errors"
	"strconv"
	"strings"

	"summary-processor/types"
)

// ErrNoPrimaryField is returned when no sheet contributes a Title, Remix or
// Artist column, leaving nothing to group on.
var ErrNoPrimaryField = errors.New("no primary field (Title, Remix, Artist) present in source headers")

// MatchKind marks how a group relates to other groups after the soft-match
// pass.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchSoft
)

// Group is one consolidated entry: the representative row, how many source
// rows folded into it, and per-year occurrence sums when bucket mode is on.
type Group struct {
	Row     []string
	Count   int
	Buckets map[string]int
	Match   MatchKind
}

// FieldIndex pairs a canonical display header with its column index.
type FieldIndex struct {
	Field string
	Index int
}

// KeyFields splits the canonical headers into primary and secondary matching
// fields. Length is never a key field. Fails when no primary field exists.
func KeyFields(headers []string) (primary, secondary []FieldIndex, err error) {
	for _, field := range primaryFieldOrder {
		if i := indexOfFold(headers, field); i >= 0 {
			primary = append(primary, FieldIndex{Field: headers[i], Index: i})
		}
	}
	if len(primary) == 0 {
		return nil, nil, ErrNoPrimaryField
	}
	for _, field := range secondaryFieldOrder {
		if i := indexOfFold(headers, field); i >= 0 {
			secondary = append(secondary, FieldIndex{Field: headers[i], Index: i})
		}
	}
	return primary, secondary, nil
}

func indexOfFold(headers []string, field string) int {
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), field) {
			return i
		}
	}
	return -1
}

// yearColumns picks the canonical columns that are four-digit year buckets.
func yearColumns(headers []string) []FieldIndex {
	var cols []FieldIndex
	for i, h := range headers {
		if yearHeaderPattern.MatchString(strings.TrimSpace(h)) {
			cols = append(cols, FieldIndex{Field: h, Index: i})
		}
	}
	return cols
}

// foldGroups walks every sheet row in input order and merges each into the
// first group whose key fields match: primary fields must be exactly equal,
// secondary fields must be equal or empty on at least one side. Rows blank
// across all canonical columns are skipped. Returns the groups and the number
// of rows folded.
func foldGroups(sheets []types.SourceSheet, canonical []string, primary, secondary, yearCols []FieldIndex) ([]*Group, int) {
	var groups []*Group
	inputRows := 0

	for _, sheet := range sheets {
		idx := headerIndex(sheet.Header)
		for _, raw := range sheet.Rows {
			aligned := alignRow(raw, idx, canonical)
			if blankRow(aligned) {
				continue
			}
			inputRows++

			merged := false
			for _, g := range groups {
				if rowsGroupable(g.Row, aligned, primary, secondary) {
					g.Count++
					addBuckets(g, aligned, yearCols)
					merged = true
					break
				}
			}
			if merged {
				continue
			}

			g := &Group{Row: aligned, Count: 1}
			if yearCols != nil {
				g.Buckets = make(map[string]int, len(yearCols))
				addBuckets(g, aligned, yearCols)
			}
			groups = append(groups, g)
		}
	}
	return groups, inputRows
}

func rowsGroupable(a, b []string, primary, secondary []FieldIndex) bool {
	for _, f := range primary {
		if cellAt(a, f.Index) != cellAt(b, f.Index) {
			return false
		}
	}
	for _, f := range secondary {
		va, vb := cellAt(a, f.Index), cellAt(b, f.Index)
		if va != "" && vb != "" && va != vb {
			return false
		}
	}
	return true
}

func addBuckets(g *Group, row []string, yearCols []FieldIndex) {
	for _, col := range yearCols {
		g.Buckets[col.Field] += bucketValue(cellAt(row, col.Index))
	}
}

// bucketValue parses a year-column cell as a non-negative count. Blank or
// unparseable cells count as zero.
func bucketValue(cell string) int {
	n, err := strconv.Atoi(strings.TrimSpace(cell))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
