package s3

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"shared/logger"
)

const (
	workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	pendingInfix        = ".pending"
)

// Uploader writes consolidated workbooks to S3. Workbooks land under a
// pending key first and are promoted to their final key once the run
// completes, so partially written runs never shadow a good summary.
type Uploader struct {
	s3Client s3iface.S3API
	bucket   string
	prefix   string
	logger   *logger.Logger
}

// NewUploader creates an uploader for the given bucket and key prefix.
func NewUploader(region, bucket, prefix string) *Uploader {
	sess := session.Must(session.NewSession(&aws.Config{
		Region: aws.String(region),
	}))
	return &Uploader{
		s3Client: s3.New(sess),
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger.New("s3-uploader"),
	}
}

// NewUploaderWithClient creates an uploader with an injected client.
func NewUploaderWithClient(client s3iface.S3API, bucket, prefix string) *Uploader {
	return &Uploader{
		s3Client: client,
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger.New("s3-uploader"),
	}
}

// SummaryKey builds the final object key for a run: the prefix, the run
// year, and a timestamped workbook name.
func (u *Uploader) SummaryKey(t time.Time) string {
	name := fmt.Sprintf("%s Summary.xlsx", t.UTC().Format("2006-01-02T15-04-05"))
	return path.Join(u.prefix, t.UTC().Format("2006"), name)
}

// PendingKey derives the staging key for a final key.
func PendingKey(finalKey string) string {
	ext := path.Ext(finalKey)
	return strings.TrimSuffix(finalKey, ext) + pendingInfix + ext
}

// UploadWorkbook stages the workbook under the pending key and promotes it
// to finalKey. Returns the final key on success.
func (u *Uploader) UploadWorkbook(ctx context.Context, finalKey string, data []byte) error {
	pending := PendingKey(finalKey)
	if err := u.put(ctx, pending, data); err != nil {
		return err
	}
	return u.promote(ctx, pending, finalKey)
}

func (u *Uploader) put(ctx context.Context, key string, data []byte) error {
	u.logger.InfoWithCount("Uploading workbook", len(data), map[string]interface{}{
		"bucket": u.bucket,
		"key":    key,
	})

	_, err := u.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(workbookContentType),
		Metadata: map[string]*string{
			"uploaded-at": aws.String(time.Now().UTC().Format(time.RFC3339)),
		},
	})
	if err != nil {
		return logger.NewAppErrorWithMetadata(logger.ErrorTypeS3, "failed to upload workbook", err,
			map[string]interface{}{"bucket": u.bucket, "key": key})
	}
	return nil
}

// promote copies the staged object onto the final key and removes the
// staged copy.
func (u *Uploader) promote(ctx context.Context, pending, finalKey string) error {
	_, err := u.s3Client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(u.bucket),
		CopySource: aws.String(u.bucket + "/" + pending),
		Key:        aws.String(finalKey),
	})
	if err != nil {
		return logger.NewAppErrorWithMetadata(logger.ErrorTypeS3, "failed to promote pending workbook", err,
			map[string]interface{}{"pending": pending, "key": finalKey})
	}

	_, err = u.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(pending),
	})
	if err != nil {
		// the final object is in place; a stale pending copy is harmless
		u.logger.Warn("Failed to delete pending workbook", map[string]interface{}{
			"pending": pending,
		})
	}

	u.logger.Info("Workbook promoted", map[string]interface{}{
		"bucket": u.bucket,
		"key":    finalKey,
	})
	return nil
}
