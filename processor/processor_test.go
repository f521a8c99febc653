package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"summary-processor/dedup"
	"summary-processor/dynamodb"
	"summary-processor/types"
)

type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockCatalogWriter struct {
	mock.Mock
}

func (m *MockCatalogWriter) BatchUpsertWithStats(ctx context.Context, records []types.TrackRecord) (*dynamodb.UpsertStats, error) {
	args := m.Called(ctx, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.UpsertStats), args.Error(1)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) SummaryKey(t time.Time) string {
	args := m.Called(t)
	return args.String(0)
}

func (m *MockUploader) UploadWorkbook(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

type MockPlaylistFetcher struct {
	mock.Mock
}

func (m *MockPlaylistFetcher) FetchPlaylist(ctx context.Context, name string) ([]string, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...map[string]interface{})               {}
func (noopLogger) InfoWithCount(string, int, ...map[string]interface{}) {}
func (noopLogger) Warn(string, ...map[string]interface{})               {}
func (noopLogger) Error(string, error, ...map[string]interface{})       {}

func s3Record(bucket, key string) events.S3EventRecord {
	record := events.S3EventRecord{}
	record.S3.Bucket.Name = bucket
	record.S3.Object.Key = key
	return record
}

func newTestProcessor(downloader *MockDownloader, catalog *MockCatalogWriter, uploader *MockUploader) *SummaryProcessor {
	return NewSummaryProcessor(
		noopLogger{},
		downloader,
		dedup.NewConsolidator(dedup.DefaultOptions()),
		catalog,
		uploader,
		true,
	)
}

func happyPathMocks(t *testing.T) (*MockDownloader, *MockCatalogWriter, *MockUploader) {
	t.Helper()
	downloader := new(MockDownloader)
	catalog := new(MockCatalogWriter)
	catalog.On("BatchUpsertWithStats", mock.Anything, mock.Anything).
		Return(&dynamodb.UpsertStats{}, nil)
	uploader := new(MockUploader)
	uploader.On("SummaryKey", mock.Anything).Return("consolidated/2026/run Summary.xlsx")
	uploader.On("UploadWorkbook", mock.Anything, "consolidated/2026/run Summary.xlsx", mock.Anything).
		Return(nil)
	return downloader, catalog, uploader
}

func TestProcessS3Event_NoRecords(t *testing.T) {
	p := newTestProcessor(new(MockDownloader), new(MockCatalogWriter), new(MockUploader))

	result, err := p.ProcessS3Event(context.Background(), events.S3Event{})

	assert.Nil(t, result)
	assert.Error(t, err)
}

func TestProcessS3Event_Success(t *testing.T) {
	downloader, catalog, uploader := happyPathMocks(t)
	downloader.On("Download", mock.Anything, "exports", "tracks.csv").
		Return([]byte("Title,Artist\nLevels,Avicii\nLevels,Avicii\n"), nil)

	p := newTestProcessor(downloader, catalog, uploader)
	result, err := p.ProcessS3Event(context.Background(), events.S3Event{
		Records: []events.S3EventRecord{s3Record("exports", "tracks.csv")},
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 1, result.SheetsProcessed)
	assert.Equal(t, "consolidated/2026/run Summary.xlsx", result.OutputKey)
	assert.Equal(t, 1, result.DedupStats.GroupCount)
	assert.Equal(t, 2, result.DedupStats.InputRows)

	catalog.AssertCalled(t, "BatchUpsertWithStats", mock.Anything, mock.MatchedBy(func(records []types.TrackRecord) bool {
		return len(records) == 1 && records[0].Title == "Levels" && records[0].Count == 2
	}))
}

func TestProcessS3Event_PartialSuccess(t *testing.T) {
	downloader, catalog, uploader := happyPathMocks(t)
	downloader.On("Download", mock.Anything, "exports", "good.csv").
		Return([]byte("Title,Artist\nLevels,Avicii\n"), nil)
	downloader.On("Download", mock.Anything, "exports", "bad.csv").
		Return(nil, errors.New("access denied"))

	p := newTestProcessor(downloader, catalog, uploader)
	result, err := p.ProcessS3Event(context.Background(), events.S3Event{
		Records: []events.S3EventRecord{
			s3Record("exports", "good.csv"),
			s3Record("exports", "bad.csv"),
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusPartialSuccess, result.Status)
	assert.Equal(t, 1, result.RecordErrors)
	assert.Equal(t, 1, result.SheetsProcessed)
}

func TestProcessS3Event_AllRecordsFail(t *testing.T) {
	downloader := new(MockDownloader)
	downloader.On("Download", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("access denied"))

	p := newTestProcessor(downloader, new(MockCatalogWriter), new(MockUploader))
	result, err := p.ProcessS3Event(context.Background(), events.S3Event{
		Records: []events.S3EventRecord{s3Record("exports", "tracks.csv")},
	})

	assert.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 1, result.RecordErrors)
}

func TestProcessS3Event_UnsupportedFormat(t *testing.T) {
	downloader := new(MockDownloader)
	downloader.On("Download", mock.Anything, "exports", "tracks.pdf").
		Return([]byte("%PDF"), nil)

	p := newTestProcessor(downloader, new(MockCatalogWriter), new(MockUploader))
	result, err := p.ProcessS3Event(context.Background(), events.S3Event{
		Records: []events.S3EventRecord{s3Record("exports", "tracks.pdf")},
	})

	assert.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 1, result.RecordErrors)
}

func TestProcessS3Event_PlaylistSource(t *testing.T) {
	playlist := "#EXTM3U\n" +
		"#EXTVDJ:<time>21:45</time><title>Insomnia</title><artist>Faithless</artist>\n" +
		"#EXTVDJ:<time>22:10</time><title>Insomnia</title><artist>Faithless</artist>\n"

	downloader, catalog, uploader := happyPathMocks(t)
	downloader.On("Download", mock.Anything, "exports", "sets/2024-06-01 Set.m3u").
		Return([]byte(playlist), nil)

	p := newTestProcessor(downloader, catalog, uploader)
	result, err := p.ProcessS3Event(context.Background(), events.S3Event{
		Records: []events.S3EventRecord{s3Record("exports", "sets/2024-06-01 Set.m3u")},
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)

	// both plays are the same track, consolidated into one record
	catalog.AssertCalled(t, "BatchUpsertWithStats", mock.Anything, mock.MatchedBy(func(records []types.TrackRecord) bool {
		return len(records) == 1 && records[0].Title == "Insomnia" && records[0].Artist == "Faithless" && records[0].Count == 2
	}))
}

func TestProcessPlaylists(t *testing.T) {
	downloader, catalog, uploader := happyPathMocks(t)
	fetcher := new(MockPlaylistFetcher)
	fetcher.On("FetchPlaylist", mock.Anything, "2024-06-01 Saturday.m3u").Return([]string{
		"#EXTM3U",
		"#EXTVDJ:<time>21:45</time><title>Insomnia</title><artist>Faithless</artist>",
	}, nil)
	fetcher.On("FetchPlaylist", mock.Anything, "2024-06-08 Saturday.m3u").Return([]string{
		"#EXTVDJ:<time>22:10</time><title>Insomnia</title><artist>Faithless</artist>",
	}, nil)

	p := newTestProcessor(downloader, catalog, uploader)
	result, err := p.ProcessPlaylists(context.Background(), fetcher, []string{
		"2024-06-01 Saturday.m3u",
		"2024-06-08 Saturday.m3u",
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 2, result.SheetsProcessed)

	// the same track across two sets consolidates into one record
	catalog.AssertCalled(t, "BatchUpsertWithStats", mock.Anything, mock.MatchedBy(func(records []types.TrackRecord) bool {
		return len(records) == 1 && records[0].Title == "Insomnia" && records[0].Count == 2
	}))
	downloader.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessPlaylists_FetchFailureDegrades(t *testing.T) {
	_, catalog, uploader := happyPathMocks(t)
	fetcher := new(MockPlaylistFetcher)
	fetcher.On("FetchPlaylist", mock.Anything, "good.m3u").Return([]string{
		"#EXTVDJ:<time>21:45</time><title>Levels</title><artist>Avicii</artist>",
	}, nil)
	fetcher.On("FetchPlaylist", mock.Anything, "bad.m3u").
		Return(nil, errors.New("connection refused"))

	p := newTestProcessor(new(MockDownloader), catalog, uploader)
	result, err := p.ProcessPlaylists(context.Background(), fetcher, []string{"good.m3u", "bad.m3u"})

	assert.NoError(t, err)
	assert.Equal(t, StatusPartialSuccess, result.Status)
	assert.Equal(t, 1, result.RecordErrors)
	assert.Equal(t, 1, result.SheetsProcessed)
}

func TestProcessPlaylists_AllFetchesFail(t *testing.T) {
	fetcher := new(MockPlaylistFetcher)
	fetcher.On("FetchPlaylist", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	p := newTestProcessor(new(MockDownloader), new(MockCatalogWriter), new(MockUploader))
	result, err := p.ProcessPlaylists(context.Background(), fetcher, []string{"bad.m3u"})

	assert.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
}

func TestProcessPlaylists_NoNames(t *testing.T) {
	p := newTestProcessor(new(MockDownloader), new(MockCatalogWriter), new(MockUploader))

	result, err := p.ProcessPlaylists(context.Background(), new(MockPlaylistFetcher), nil)

	assert.Nil(t, result)
	assert.Error(t, err)
}

func TestClassifyKey(t *testing.T) {
	assert.Equal(t, ".csv", classifyKey("exports/tracks.CSV"))
	assert.Equal(t, ".csv", classifyKey("exports/tracks.csv.gz"))
	assert.Equal(t, ".xlsx", classifyKey("exports/book.xlsx"))
	assert.Equal(t, ".m3u", classifyKey("sets/2024-06-01 Set.m3u"))
}

func TestHistoryStartDate(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)

	parsed := historyStartDate("sets/2024-06-01 Saturday.m3u", now)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), parsed)

	fallback := historyStartDate("sets/untitled.m3u", now)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), fallback)
}
