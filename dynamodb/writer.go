// Package dynamodb persists consolidated track records into the catalog
// table.
package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"shared/logger"

	"summary-processor/types"
)

const (
	// MaxBatchSize is the DynamoDB BatchWriteItem limit.
	MaxBatchSize = 25
	maxRetries   = 3
	retryBackoff = 100 * time.Millisecond
)

// UpsertStats reports the outcome of a catalog write.
type UpsertStats struct {
	TotalRecords  int `json:"total_records"`
	WrittenCount  int `json:"written_count"`
	FailedCount   int `json:"failed_count"`
	BatchCount    int `json:"batch_count"`
	RetryAttempts int `json:"retry_attempts"`
}

// Writer performs batch upserts of track records.
type Writer struct {
	dynamoClient dynamodbiface.DynamoDBAPI
	tableName    string
	logger       *logger.Logger
}

// NewWriter creates a writer for the given catalog table.
func NewWriter(region, tableName string) *Writer {
	sess := session.Must(session.NewSession(&aws.Config{
		Region: aws.String(region),
	}))
	return &Writer{
		dynamoClient: dynamodb.New(sess),
		tableName:    tableName,
		logger:       logger.New("catalog-writer"),
	}
}

// NewWriterWithClient creates a writer with an injected client.
func NewWriterWithClient(client dynamodbiface.DynamoDBAPI, tableName string) *Writer {
	return &Writer{
		dynamoClient: client,
		tableName:    tableName,
		logger:       logger.New("catalog-writer"),
	}
}

// BatchUpsertWithStats writes the records in batches of MaxBatchSize,
// retrying unprocessed items with backoff. Partial failure is reported in
// the stats rather than aborting the whole run.
func (w *Writer) BatchUpsertWithStats(ctx context.Context, records []types.TrackRecord) (*UpsertStats, error) {
	stats := &UpsertStats{TotalRecords: len(records)}
	if len(records) == 0 {
		return stats, nil
	}

	for start := 0; start < len(records); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		stats.BatchCount++

		requests, err := w.buildWriteRequests(batch)
		if err != nil {
			return stats, logger.NewAppError(logger.ErrorTypeDynamoDB, "failed to marshal track records", err)
		}

		failed, retries, err := w.executeBatchWithRetry(ctx, requests)
		stats.RetryAttempts += retries
		if err != nil {
			stats.FailedCount += len(batch)
			return stats, logger.NewAppErrorWithMetadata(logger.ErrorTypeDynamoDB, "batch write failed", err,
				map[string]interface{}{"batch": stats.BatchCount})
		}
		stats.FailedCount += failed
		stats.WrittenCount += len(batch) - failed
	}

	w.logger.InfoWithCount("Catalog upsert completed", stats.WrittenCount, map[string]interface{}{
		"total_records":  stats.TotalRecords,
		"failed_count":   stats.FailedCount,
		"batch_count":    stats.BatchCount,
		"retry_attempts": stats.RetryAttempts,
	})
	return stats, nil
}

func (w *Writer) buildWriteRequests(records []types.TrackRecord) ([]*dynamodb.WriteRequest, error) {
	requests := make([]*dynamodb.WriteRequest, 0, len(records))
	for _, record := range records {
		item, err := dynamodbattribute.MarshalMap(record)
		if err != nil {
			return nil, err
		}
		requests = append(requests, &dynamodb.WriteRequest{
			PutRequest: &dynamodb.PutRequest{Item: item},
		})
	}
	return requests, nil
}

// executeBatchWithRetry issues the batch and re-issues unprocessed items up
// to maxRetries times. Returns the number of items that never landed and
// how many retries were spent.
func (w *Writer) executeBatchWithRetry(ctx context.Context, requests []*dynamodb.WriteRequest) (int, int, error) {
	retries := 0
	pending := requests

	for attempt := 0; ; attempt++ {
		output, err := w.dynamoClient.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]*dynamodb.WriteRequest{
				w.tableName: pending,
			},
		})
		if err != nil {
			return len(pending), retries, err
		}

		unprocessed := output.UnprocessedItems[w.tableName]
		if len(unprocessed) == 0 {
			return 0, retries, nil
		}
		if attempt >= maxRetries {
			w.logger.Warn("Unprocessed items remain after retries", map[string]interface{}{
				"unprocessed": len(unprocessed),
			})
			return len(unprocessed), retries, nil
		}

		retries++
		select {
		case <-ctx.Done():
			return len(unprocessed), retries, ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt+1)):
		}
		pending = unprocessed
	}
}
