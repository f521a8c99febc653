// Package processor orchestrates one consolidation run: S3 event in,
// consolidated workbook and catalog records out.
package processor

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"shared/logger"

	"summary-processor/dedup"
	"summary-processor/dynamodb"
	"summary-processor/excel"
	"summary-processor/m3u"
	"summary-processor/types"
)

// Downloader fetches source exports.
type Downloader interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// Consolidator runs the consolidation engine.
type Consolidator interface {
	Consolidate(sheets []types.SourceSheet) (*dedup.Result, error)
}

// CatalogWriter persists track records.
type CatalogWriter interface {
	BatchUpsertWithStats(ctx context.Context, records []types.TrackRecord) (*dynamodb.UpsertStats, error)
}

// Uploader stores the consolidated workbook.
type Uploader interface {
	SummaryKey(t time.Time) string
	UploadWorkbook(ctx context.Context, key string, data []byte) error
}

// PlaylistFetcher retrieves live playlist files by name.
type PlaylistFetcher interface {
	FetchPlaylist(ctx context.Context, name string) ([]string, error)
}

// Logger is the subset of the structured logger the processor needs.
type Logger interface {
	Info(message string, metadata ...map[string]interface{})
	InfoWithCount(message string, count int, metadata ...map[string]interface{})
	Warn(message string, metadata ...map[string]interface{})
	Error(message string, err error, metadata ...map[string]interface{})
}

// ProcessResult reports the outcome of one run.
type ProcessResult struct {
	TraceID         string                `json:"trace_id"`
	Status          string                `json:"status"`
	SheetsProcessed int                   `json:"sheets_processed"`
	RecordErrors    int                   `json:"record_errors"`
	OutputKey       string                `json:"output_key,omitempty"`
	DedupStats      *dedup.Stats          `json:"dedup_stats,omitempty"`
	UpsertStats     *dynamodb.UpsertStats `json:"upsert_stats,omitempty"`
}

// Run statuses.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusFailed         = "failed"
)

var keyDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// SummaryProcessor wires the pipeline collaborators together.
type SummaryProcessor struct {
	logger       Logger
	downloader   Downloader
	consolidator Consolidator
	catalog      CatalogWriter
	uploader     Uploader
	includeCount bool
}

// NewSummaryProcessor creates a processor. includeCount controls whether the
// output workbook carries a Count column (summary mode) or year buckets
// carry the magnitude instead (complete mode).
func NewSummaryProcessor(log Logger, downloader Downloader, consolidator Consolidator, catalog CatalogWriter, uploader Uploader, includeCount bool) *SummaryProcessor {
	return &SummaryProcessor{
		logger:       log,
		downloader:   downloader,
		consolidator: consolidator,
		catalog:      catalog,
		uploader:     uploader,
		includeCount: includeCount,
	}
}

// ProcessS3Event downloads every object in the event, parses it into source
// sheets, consolidates them, uploads the workbook and upserts the catalog.
// A record that fails to download or parse degrades the run to
// partial_success instead of aborting it.
func (p *SummaryProcessor) ProcessS3Event(ctx context.Context, s3Event events.S3Event) (*ProcessResult, error) {
	if len(s3Event.Records) == 0 {
		return nil, logger.NewAppError(logger.ErrorTypeData, "no S3 records to process", nil)
	}

	traceID := uuid.New().String()
	now := time.Now().UTC()
	result := &ProcessResult{TraceID: traceID}

	p.logger.InfoWithCount("Processing S3 event", len(s3Event.Records), map[string]interface{}{
		"trace_id": traceID,
	})

	var sheets []types.SourceSheet
	seenHistory := make(map[string]struct{})
	for _, record := range s3Event.Records {
		bucket := record.S3.Bucket.Name
		key := record.S3.Object.Key

		parsed, err := p.loadRecord(ctx, bucket, key, now, seenHistory)
		if err != nil {
			result.RecordErrors++
			p.logger.Error("Failed to process record", err, map[string]interface{}{
				"trace_id": traceID,
				"bucket":   bucket,
				"key":      key,
			})
			continue
		}
		sheets = append(sheets, parsed...)
	}

	return p.finishRun(ctx, result, sheets, traceID, now)
}

// ProcessPlaylists fetches the named live playlists, parses their EXTVDJ
// entries into history sheets, and runs the same consolidation pipeline an
// S3 event does. A playlist that fails to fetch degrades the run instead of
// aborting it.
func (p *SummaryProcessor) ProcessPlaylists(ctx context.Context, fetcher PlaylistFetcher, names []string) (*ProcessResult, error) {
	if len(names) == 0 {
		return nil, logger.NewAppError(logger.ErrorTypePlaylist, "no playlists to process", nil)
	}

	traceID := uuid.New().String()
	now := time.Now().UTC()
	result := &ProcessResult{TraceID: traceID}

	p.logger.InfoWithCount("Processing playlists", len(names), map[string]interface{}{
		"trace_id": traceID,
	})

	var sheets []types.SourceSheet
	seenHistory := make(map[string]struct{})
	for _, name := range names {
		lines, err := fetcher.FetchPlaylist(ctx, name)
		if err != nil {
			result.RecordErrors++
			p.logger.Error("Failed to fetch playlist", err, map[string]interface{}{
				"trace_id": traceID,
				"playlist": name,
			})
			continue
		}
		sheet := m3u.ParseHistory(name, lines, historyStartDate(name, now), seenHistory)
		if sheet.HasData() {
			sheets = append(sheets, sheet)
		}
	}

	return p.finishRun(ctx, result, sheets, traceID, now)
}

// finishRun is the shared back half of a run: consolidate the gathered
// sheets, upload the workbook, upsert the catalog, settle the status.
func (p *SummaryProcessor) finishRun(ctx context.Context, result *ProcessResult, sheets []types.SourceSheet, traceID string, now time.Time) (*ProcessResult, error) {
	result.SheetsProcessed = len(sheets)

	if len(sheets) == 0 {
		result.Status = StatusFailed
		return result, logger.NewAppError(logger.ErrorTypeData, "no usable sheets in event", nil)
	}

	consolidated, err := p.consolidator.Consolidate(sheets)
	if err != nil {
		result.Status = StatusFailed
		return result, err
	}
	result.DedupStats = &consolidated.Stats

	workbook, err := excel.BuildWorkbook(consolidated, p.includeCount)
	if err != nil {
		result.Status = StatusFailed
		return result, logger.NewAppError(logger.ErrorTypeSheet, "failed to build output workbook", err)
	}

	outputKey := p.uploader.SummaryKey(now)
	if err := p.uploader.UploadWorkbook(ctx, outputKey, workbook); err != nil {
		result.Status = StatusFailed
		return result, err
	}
	result.OutputKey = outputKey

	records := buildTrackRecords(consolidated, traceID, now)
	upsertStats, err := p.catalog.BatchUpsertWithStats(ctx, records)
	result.UpsertStats = upsertStats
	if err != nil {
		result.Status = StatusFailed
		return result, err
	}

	if result.RecordErrors > 0 {
		result.Status = StatusPartialSuccess
	} else {
		result.Status = StatusSuccess
	}

	p.logger.Info("Run completed", map[string]interface{}{
		"trace_id":      traceID,
		"status":        result.Status,
		"output_key":    outputKey,
		"group_count":   consolidated.Stats.GroupCount,
		"soft_count":    consolidated.Stats.SoftCount,
		"record_errors": result.RecordErrors,
	})
	return result, nil
}

// loadRecord downloads one object and parses it into sheets based on its
// extension. Gzipped exports arrive already decompressed from the
// downloader, so the .gz suffix is ignored when classifying.
func (p *SummaryProcessor) loadRecord(ctx context.Context, bucket, key string, now time.Time, seenHistory map[string]struct{}) ([]types.SourceSheet, error) {
	data, err := p.downloader.Download(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	switch classifyKey(key) {
	case ".xlsx":
		return excel.ParseWorkbook(data)
	case ".csv":
		sheet, err := excel.ParseCSV(path.Base(key), data)
		if err != nil {
			return nil, err
		}
		return []types.SourceSheet{sheet}, nil
	case ".m3u":
		sheet := m3u.ParseHistory(path.Base(key), m3u.SplitLines(string(data)), historyStartDate(key, now), seenHistory)
		if !sheet.HasData() {
			return nil, nil
		}
		return []types.SourceSheet{sheet}, nil
	default:
		return nil, logger.NewAppErrorWithMetadata(logger.ErrorTypeSheet, "unsupported source format", nil,
			map[string]interface{}{"key": key})
	}
}

func classifyKey(key string) string {
	lower := strings.ToLower(key)
	lower = strings.TrimSuffix(lower, ".gz")
	return path.Ext(lower)
}

// historyStartDate pulls the set date out of a playlist key like
// "sets/2024-06-01 Saturday.m3u", falling back to the run date.
func historyStartDate(key string, now time.Time) time.Time {
	if m := keyDatePattern.FindString(path.Base(key)); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return t
		}
	}
	return now.Truncate(24 * time.Hour)
}

// buildTrackRecords converts the consolidated rows into catalog records.
func buildTrackRecords(result *dedup.Result, traceID string, now time.Time) []types.TrackRecord {
	fieldIdx := make(map[string]int)
	for i, h := range result.Headers {
		for _, field := range dedup.DesiredOrder {
			if strings.EqualFold(strings.TrimSpace(h), field) {
				fieldIdx[field] = i
			}
		}
	}
	cell := func(row []string, field string) string {
		if i, ok := fieldIdx[field]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	records := make([]types.TrackRecord, 0, len(result.Rows))
	for i, row := range result.Rows {
		meta := result.Meta[i]
		records = append(records, types.TrackRecord{
			TrackID:        uuid.New().String(),
			Title:          cell(row, dedup.FieldTitle),
			Remix:          cell(row, dedup.FieldRemix),
			Artist:         cell(row, dedup.FieldArtist),
			Comment:        cell(row, dedup.FieldComment),
			Genre:          cell(row, dedup.FieldGenre),
			Year:           cell(row, dedup.FieldYear),
			BPM:            cell(row, dedup.FieldBPM),
			Length:         cell(row, dedup.FieldLength),
			Count:          meta.Count,
			YearCounts:     meta.Buckets,
			SoftMatch:      meta.Soft,
			TraceID:        traceID,
			ConsolidatedAt: now.Format(time.RFC3339),
		})
	}
	return records
}

// Describe returns a short human-readable summary of a result, used by the
// local runner.
func (r *ProcessResult) Describe() string {
	if r == nil {
		return "no result"
	}
	return fmt.Sprintf("status=%s sheets=%d errors=%d output=%s", r.Status, r.SheetsProcessed, r.RecordErrors, r.OutputKey)
}
