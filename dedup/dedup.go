// Package dedup consolidates track rows gathered from many source sheets
// into a deduplicated catalog view. Rows are grouped by exact key-field
// equality, then a pairwise pass flags groups that look like near-duplicates
// of each other so a reviewer can inspect them first.
package dedup

import (
	"time"

	"shared/logger"

	"summary-processor/types"
)

// Options control the consolidation engine.
type Options struct {
	// SimilarityThreshold gates both the averaged match score and the
	// per-field compatibility veto.
	SimilarityThreshold float64
	// RequiredSharedFullKey applies when all three primary fields are
	// present in the canonical headers; RequiredSharedReduced otherwise.
	RequiredSharedFullKey int
	RequiredSharedReduced int
	// ExcludePhrases drops a group when its Comment contains any phrase,
	// case-insensitively.
	ExcludePhrases []string
	// YearBuckets turns on consolidation mode: four-digit year headers are
	// kept as columns and their counts summed per group.
	YearBuckets bool
}

// DefaultOptions returns the engine defaults used in production.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold:   0.5,
		RequiredSharedFullKey: 2,
		RequiredSharedReduced: 1,
		ExcludePhrases:        []string{"routine |", "the open 2024", "fx |"},
	}
}

// Consolidator runs the consolidation engine over source sheets.
type Consolidator struct {
	opts   Options
	logger *logger.Logger
}

// NewConsolidator creates a consolidator with the given options.
func NewConsolidator(opts Options) *Consolidator {
	return &Consolidator{
		opts:   opts,
		logger: logger.New("consolidator"),
	}
}

// Consolidate folds all sheet rows into groups, flags soft matches, and
// emits the ordered result. Input order determines which casing and which
// representative row each group keeps, so output is deterministic for a
// given sheet order. Returns ErrNoPrimaryField when no sheet carries a
// Title, Remix or Artist column.
func (c *Consolidator) Consolidate(sheets []types.SourceSheet) (*Result, error) {
	start := time.Now()

	headers := ProjectHeaders(sheets, c.opts.YearBuckets)
	primary, secondary, err := KeyFields(headers)
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeData, "cannot consolidate sheets", err)
	}

	var yearCols []FieldIndex
	if c.opts.YearBuckets {
		yearCols = yearColumns(headers)
	}

	groups, inputRows := foldGroups(sheets, headers, primary, secondary, yearCols)
	softCount := flagSoftMatches(groups, append(append([]FieldIndex{}, primary...), secondary...), len(primary), c.opts)

	result := emitResult(groups, headers, yearCols, c.opts)
	result.Stats.InputRows = inputRows
	result.Stats.GroupCount = len(groups)
	result.Stats.SoftCount = softCount

	c.logger.InfoWithDuration("Consolidation completed", time.Since(start), map[string]interface{}{
		"sheets":         len(sheets),
		"input_rows":     inputRows,
		"group_count":    len(groups),
		"soft_count":     softCount,
		"excluded_count": result.Stats.ExcludedCount,
	})
	return result, nil
}
