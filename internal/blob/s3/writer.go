package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// minPartSize is the S3 floor for multipart parts (5 MiB).
const minPartSize int64 = manager.MinUploadPartSize

// Writer uploads archive objects into the client's bucket.
type Writer struct {
	api    *s3.Client
	bucket string
}

// NewWriter creates a Writer for c.
func NewWriter(c *Client) *Writer {
	return &Writer{api: c.api, bucket: c.bucket}
}

// Put stores data at key with a single PutObject call.
func (w *Writer) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	if _, err := w.api.PutObject(ctx, w.input(key, data, contentType)); err != nil {
		return fmt.Errorf("s3blob: put %s: %w", key, err)
	}
	return nil
}

// PutMultipart streams data at key through the upload manager in parts of at
// least partSize bytes.
func (w *Writer) PutMultipart(ctx context.Context, key string, data io.Reader, partSize int64) error {
	uploader := manager.NewUploader(w.api, func(u *manager.Uploader) {
		u.PartSize = max(partSize, minPartSize)
	})
	if _, err := uploader.Upload(ctx, w.input(key, data, jsonlContentType)); err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", key, err)
	}
	return nil
}

func (w *Writer) input(key string, data io.Reader, contentType string) *s3.PutObjectInput {
	return &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	}
}

var _ domain.BlobWriter = (*Writer)(nil)
