package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"shared/logger"

	"summary-processor/config"
	"summary-processor/dedup"
	"summary-processor/dynamodb"
	"summary-processor/m3u"
	"summary-processor/processor"
	"summary-processor/s3"
)

var (
	appLogger    = logger.New("summary-processor")
	errorHandler = logger.NewErrorHandler(appLogger)
)

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(handleS3Event)
		return
	}

	// local mode consolidates live playlists named on the command line
	if err := runPlaylistSync(context.Background(), os.Args[1:]); err != nil {
		appLogger.Error("Playlist sync failed", err)
		os.Exit(1)
	}
}

// handleS3Event is the Lambda entry point for source export uploads.
func handleS3Event(ctx context.Context, s3Event events.S3Event) (result *processor.ProcessResult, err error) {
	defer func() {
		if recovered := errorHandler.HandleWithRecovery("handleS3Event"); recovered != nil {
			result = nil
			err = recovered
		}
	}()

	contextLogger := appLogger.WithContext(ctx)

	cfg, err := loadConfiguration(ctx)
	if err != nil {
		return nil, errorHandler.Handle(err, "configuration")
	}

	result, err = buildProcessor(cfg, contextLogger).ProcessS3Event(ctx, s3Event)
	if err != nil {
		return result, errorHandler.Handle(err, "process S3 event")
	}

	contextLogger.Info("Handler finished", map[string]interface{}{
		"summary": result.Describe(),
	})
	return result, nil
}

// runPlaylistSync fetches the named playlists from the configured source
// and feeds their entries through the consolidation pipeline.
func runPlaylistSync(ctx context.Context, names []string) error {
	if len(names) == 0 {
		appLogger.Info("Local mode: pass playlist file names to consolidate, e.g. '2024-06-01 Saturday.m3u'")
		return nil
	}

	cfg, err := loadConfiguration(ctx)
	if err != nil {
		return errorHandler.Handle(err, "configuration")
	}
	if cfg.Playlist.BaseURL == "" {
		return errorHandler.Handle(
			logger.NewAppError(logger.ErrorTypeConfig, "playlist.base_url is required for playlist sync", nil),
			"configuration")
	}

	fetcher := m3u.NewClient(cfg.Playlist.BaseURL, cfg.Playlist.RequestsPerMin)
	result, err := buildProcessor(cfg, appLogger).ProcessPlaylists(ctx, fetcher, names)
	if err != nil {
		return errorHandler.Handle(err, "playlist sync")
	}

	appLogger.Info("Playlist sync finished", map[string]interface{}{
		"summary": result.Describe(),
	})
	return nil
}

// buildProcessor wires the pipeline collaborators from configuration.
func buildProcessor(cfg *config.Config, log processor.Logger) *processor.SummaryProcessor {
	return processor.NewSummaryProcessor(
		log,
		s3.NewDownloader(cfg.AWS.Region),
		dedup.NewConsolidator(cfg.Dedup.Options()),
		dynamodb.NewWriter(cfg.AWS.Region, cfg.AWS.DynamoDB.CatalogTable),
		s3.NewUploader(cfg.AWS.Region, cfg.AWS.S3.OutputBucket, cfg.AWS.S3.OutputPrefix),
		cfg.Dedup.Mode == config.ModeSummary,
	)
}

// loadConfiguration reads the YAML config object named by CONFIG_BUCKET and
// CONFIG_KEY, falling back to defaults when neither is set.
func loadConfiguration(ctx context.Context) (*config.Config, error) {
	bucket := os.Getenv("CONFIG_BUCKET")
	key := os.Getenv("CONFIG_KEY")
	if bucket == "" || key == "" {
		appLogger.Info("Using default configuration")
		return config.GetDefaultConfig(), nil
	}
	return config.NewManager().LoadFromS3(ctx, bucket, key)
}
