// Package gcs stores published artifacts in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/logflow/pmdiscover/pkg/interfaces"
)

// Client writes objects into a single bucket.
type Client struct {
	client *storage.Client
	bucket string
	tracer trace.Tracer
	owned  bool
}

// NewClient connects with application default credentials.
func NewClient(ctx context.Context, bucket string, opts ...option.ClientOption) (*Client, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	sc, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	c := NewFromClient(sc, bucket)
	c.owned = true
	return c, nil
}

// NewFromClient wraps an existing storage client.
func NewFromClient(sc *storage.Client, bucket string) *Client {
	return &Client{
		client: sc,
		bucket: bucket,
		tracer: otel.Tracer("github.com/logflow/pmdiscover/pkg/storage/gcs"),
	}
}

// Scheme returns "gs".
func (c *Client) Scheme() string {
	return "gs"
}

// Put uploads data to key. With IfNotExists the write carries a
// does-not-exist precondition and fails with ErrObjectExists on conflict.
func (c *Client) Put(ctx context.Context, key string, data io.Reader, opts interfaces.PutOptions) error {
	ctx, span := c.tracer.Start(ctx, "gcs.Put",
		trace.WithAttributes(
			attribute.String("bucket", c.bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	obj := c.client.Bucket(c.bucket).Object(key)
	if opts.IfNotExists {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	writer := obj.NewWriter(ctx)
	writer.ContentType = opts.ContentType
	if len(opts.Metadata) > 0 {
		writer.Metadata = opts.Metadata
	}

	n, err := io.Copy(writer, data)
	if err != nil {
		_ = writer.Close()
		span.RecordError(err)
		return fmt.Errorf("upload gs://%s/%s: %w", c.bucket, key, err)
	}
	if err := writer.Close(); err != nil {
		span.RecordError(err)
		if isPreconditionFailed(err) {
			return fmt.Errorf("%w: gs://%s/%s", interfaces.ErrObjectExists, c.bucket, key)
		}
		return fmt.Errorf("finalize gs://%s/%s: %w", c.bucket, key, err)
	}

	span.SetAttributes(attribute.Int64("bytes", n))
	return nil
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.Bucket(c.bucket).Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat gs://%s/%s: %w", c.bucket, key, err)
}

// Close releases the underlying client when this Client created it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.client.Close()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

var _ interfaces.ObjectStorage = (*Client)(nil)
