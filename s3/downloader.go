// Package s3 moves source exports and consolidated workbooks in and out of
// S3.
package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"shared/logger"
)

// Downloader fetches source exports from S3.
type Downloader struct {
	s3Client s3iface.S3API
	logger   *logger.Logger
}

// NewDownloader creates a downloader for the given region.
func NewDownloader(region string) *Downloader {
	sess := session.Must(session.NewSession(&aws.Config{
		Region: aws.String(region),
	}))
	return &Downloader{
		s3Client: s3.New(sess),
		logger:   logger.New("s3-downloader"),
	}
}

// NewDownloaderWithClient creates a downloader with an injected client.
func NewDownloaderWithClient(client s3iface.S3API) *Downloader {
	return &Downloader{
		s3Client: client,
		logger:   logger.New("s3-downloader"),
	}
}

// Download fetches an object and transparently gunzips it when the payload
// carries the gzip magic bytes, so both plain and compressed exports work
// regardless of key suffix.
func (d *Downloader) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	d.logger.Info("Downloading object", map[string]interface{}{
		"bucket": bucket,
		"key":    key,
	})

	output, err := d.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, logger.NewAppErrorWithMetadata(logger.ErrorTypeS3, "failed to download object", err,
			map[string]interface{}{"bucket": bucket, "key": key})
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeS3, "failed to read object body", err)
	}

	if isGzip(data) {
		data, err = gunzip(data)
		if err != nil {
			return nil, logger.NewAppErrorWithMetadata(logger.ErrorTypeS3, "failed to decompress object", err,
				map[string]interface{}{"bucket": bucket, "key": key})
		}
	}

	d.logger.InfoWithCount("Downloaded object", len(data), map[string]interface{}{
		"bucket": bucket,
		"key":    key,
	})
	return data, nil
}

func isGzip(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}

func gunzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
