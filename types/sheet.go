package types

// SourceSheet represents one sheet of track rows pulled from a source export.
// Header carries the sheet's own column names; Rows may be ragged.
type SourceSheet struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// HasData reports whether the sheet carries at least one data row.
func (s SourceSheet) HasData() bool {
	return len(s.Header) > 0 && len(s.Rows) > 0
}

// TrackRecord is the catalog representation of one consolidated track group.
type TrackRecord struct {
	TrackID        string         `json:"track_id"`
	Title          string         `json:"title"`
	Remix          string         `json:"remix,omitempty"`
	Artist         string         `json:"artist,omitempty"`
	Comment        string         `json:"comment,omitempty"`
	Genre          string         `json:"genre,omitempty"`
	Year           string         `json:"year,omitempty"`
	BPM            string         `json:"bpm,omitempty"`
	Length         string         `json:"length,omitempty"`
	Count          int            `json:"count"`
	YearCounts     map[string]int `json:"year_counts,omitempty"`
	SoftMatch      bool           `json:"soft_match"`
	TraceID        string         `json:"trace_id"`
	ConsolidatedAt string         `json:"consolidated_at"`
}
