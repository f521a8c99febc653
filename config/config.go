// Package config loads pipeline configuration from YAML, optionally stored
// in S3, with sane defaults when no config object exists.
package config

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"gopkg.in/yaml.v3"

	"shared/logger"

	"summary-processor/dedup"
)

// Mode selects which consolidation variant a run produces.
const (
	ModeSummary  = "summary"
	ModeComplete = "complete"
)

// Config is the full pipeline configuration.
type Config struct {
	AWS      AWSConfig      `yaml:"aws"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Playlist PlaylistConfig `yaml:"playlist"`
}

// AWSConfig groups the AWS resource settings.
type AWSConfig struct {
	Region   string         `yaml:"region"`
	S3       S3Config       `yaml:"s3"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

// S3Config names the buckets the pipeline reads and writes.
type S3Config struct {
	OutputBucket string `yaml:"output_bucket"`
	OutputPrefix string `yaml:"output_prefix"`
}

// DynamoDBConfig names the catalog table.
type DynamoDBConfig struct {
	CatalogTable string `yaml:"catalog_table"`
}

// DedupConfig tunes the consolidation engine.
type DedupConfig struct {
	Mode                  string   `yaml:"mode"`
	SimilarityThreshold   float64  `yaml:"similarity_threshold"`
	RequiredSharedFullKey int      `yaml:"required_shared_full_key"`
	RequiredSharedReduced int      `yaml:"required_shared_reduced"`
	ExclusionPhrases      []string `yaml:"exclusion_phrases"`
}

// PlaylistConfig points at the live playlist source.
type PlaylistConfig struct {
	BaseURL        string `yaml:"base_url"`
	RequestsPerMin int    `yaml:"requests_per_min"`
}

// Options maps the dedup section onto engine options, filling unset values
// from the engine defaults.
func (d DedupConfig) Options() dedup.Options {
	opts := dedup.DefaultOptions()
	if d.SimilarityThreshold > 0 {
		opts.SimilarityThreshold = d.SimilarityThreshold
	}
	if d.RequiredSharedFullKey > 0 {
		opts.RequiredSharedFullKey = d.RequiredSharedFullKey
	}
	if d.RequiredSharedReduced > 0 {
		opts.RequiredSharedReduced = d.RequiredSharedReduced
	}
	if d.ExclusionPhrases != nil {
		opts.ExcludePhrases = d.ExclusionPhrases
	}
	opts.YearBuckets = d.Mode == ModeComplete
	return opts
}

// Manager loads and validates configuration.
type Manager struct {
	s3Client s3iface.S3API
	logger   *logger.Logger
}

// NewManager creates a config manager with a default S3 client.
func NewManager() *Manager {
	sess := session.Must(session.NewSession())
	return &Manager{
		s3Client: s3.New(sess),
		logger:   logger.New("config-manager"),
	}
}

// NewManagerWithClient creates a config manager with an injected client.
func NewManagerWithClient(client s3iface.S3API) *Manager {
	return &Manager{
		s3Client: client,
		logger:   logger.New("config-manager"),
	}
}

// LoadFromS3 fetches and parses the YAML config object.
func (m *Manager) LoadFromS3(ctx context.Context, bucket, key string) (*Config, error) {
	output, err := m.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, logger.NewAppErrorWithMetadata(logger.ErrorTypeConfig, "failed to fetch config object", err,
			map[string]interface{}{"bucket": bucket, "key": key})
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeConfig, "failed to read config object", err)
	}

	cfg, err := m.Parse(data)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Configuration loaded from S3", map[string]interface{}{
		"bucket": bucket,
		"key":    key,
		"mode":   cfg.Dedup.Mode,
	})
	return cfg, nil
}

// Parse unmarshals and validates YAML config bytes.
func (m *Manager) Parse(data []byte) (*Config, error) {
	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeConfig, "failed to parse config YAML", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeConfig, "invalid configuration", err)
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.Dedup.Mode != ModeSummary && c.Dedup.Mode != ModeComplete {
		return fmt.Errorf("dedup.mode must be %q or %q, got %q", ModeSummary, ModeComplete, c.Dedup.Mode)
	}
	if c.Dedup.SimilarityThreshold < 0 || c.Dedup.SimilarityThreshold > 1 {
		return fmt.Errorf("dedup.similarity_threshold must be in [0,1], got %v", c.Dedup.SimilarityThreshold)
	}
	if c.AWS.S3.OutputBucket == "" {
		return fmt.Errorf("aws.s3.output_bucket is required")
	}
	if c.AWS.DynamoDB.CatalogTable == "" {
		return fmt.Errorf("aws.dynamodb.catalog_table is required")
	}
	return nil
}

// GetDefaultConfig returns the configuration used when no config object is
// provided.
func GetDefaultConfig() *Config {
	defaults := dedup.DefaultOptions()
	return &Config{
		AWS: AWSConfig{
			Region: "us-east-1",
			S3: S3Config{
				OutputBucket: "track-summaries",
				OutputPrefix: "consolidated",
			},
			DynamoDB: DynamoDBConfig{
				CatalogTable: "track-catalog",
			},
		},
		Dedup: DedupConfig{
			Mode:                  ModeSummary,
			SimilarityThreshold:   defaults.SimilarityThreshold,
			RequiredSharedFullKey: defaults.RequiredSharedFullKey,
			RequiredSharedReduced: defaults.RequiredSharedReduced,
			ExclusionPhrases:      defaults.ExcludePhrases,
		},
		Playlist: PlaylistConfig{
			RequestsPerMin: 20,
		},
	}
}
