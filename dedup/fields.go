package dedup

import (
	"regexp"
	"strings"

	"summary-processor/types"
)

// Canonical track fields recognized across source sheets.
const (
	FieldTitle   = "Title"
	FieldRemix   = "Remix"
	FieldArtist  = "Artist"
	FieldComment = "Comment"
	FieldGenre   = "Genre"
	FieldYear    = "Year"
	FieldBPM     = "BPM"
	FieldLength  = "Length"
)

// DesiredOrder is the canonical display order for recognized fields.
var DesiredOrder = []string{
	FieldTitle, FieldRemix, FieldArtist, FieldComment,
	FieldGenre, FieldYear, FieldBPM, FieldLength,
}

// Primary fields require exact equality when grouping; secondary fields
// tolerate one side being empty. Length never participates in matching.
var (
	primaryFieldOrder   = []string{FieldTitle, FieldRemix, FieldArtist}
	secondaryFieldOrder = []string{FieldComment, FieldGenre, FieldYear, FieldBPM}
)

var yearHeaderPattern = regexp.MustCompile(`^\d{4}$`)

// ProjectHeaders derives the canonical header list for a run: recognized
// fields in DesiredOrder, each rendered with its first-seen casing.
// Unrecognized headers are dropped. With yearBuckets set, four-digit year
// headers are appended after the canonical fields in first-seen order.
func ProjectHeaders(sheets []types.SourceSheet, yearBuckets bool) []string {
	firstSeen := make(map[string]string)
	var seenOrder []string
	for _, sheet := range sheets {
		for _, h := range sheet.Header {
			key := strings.ToLower(strings.TrimSpace(h))
			if key == "" {
				continue
			}
			if _, ok := firstSeen[key]; !ok {
				firstSeen[key] = h
				seenOrder = append(seenOrder, key)
			}
		}
	}

	var headers []string
	for _, field := range DesiredOrder {
		if display, ok := firstSeen[strings.ToLower(field)]; ok {
			headers = append(headers, display)
		}
	}
	if yearBuckets {
		for _, key := range seenOrder {
			if yearHeaderPattern.MatchString(key) {
				headers = append(headers, firstSeen[key])
			}
		}
	}
	return headers
}

// AlignRow projects one raw row onto the canonical header order. Columns the
// source sheet lacks, and cells a ragged row lacks, come out empty.
func AlignRow(row, header, canonical []string) []string {
	return alignRow(row, headerIndex(header), canonical)
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

func alignRow(row []string, idx map[string]int, canonical []string) []string {
	aligned := make([]string, len(canonical))
	for i, h := range canonical {
		if j, ok := idx[strings.ToLower(strings.TrimSpace(h))]; ok && j < len(row) {
			aligned[i] = row[j]
		}
	}
	return aligned
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
