// Package storage opens the object store an output location points at.
// Supports: GCS (gs://), S3 (s3://) and local directories (file://).
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/logflow/pmdiscover/pkg/interfaces"
	"github.com/logflow/pmdiscover/pkg/storage/gcs"
	"github.com/logflow/pmdiscover/pkg/storage/object"
	"github.com/logflow/pmdiscover/pkg/storage/s3"
)

// Location is a parsed output location.
type Location struct {
	Scheme string
	Bucket string
	// Prefix is an optional key prefix below the bucket, without slashes at either end.
	Prefix string
}

// String renders the location as a URI.
func (l Location) String() string {
	if l.Scheme == "file" {
		return "file://" + l.Bucket
	}
	u := l.Scheme + "://" + l.Bucket
	if l.Prefix != "" {
		u += "/" + l.Prefix
	}
	return u
}

// Key joins name below the location's prefix.
func (l Location) Key(name string) string {
	if l.Prefix == "" {
		return name
	}
	return path.Join(l.Prefix, name)
}

// ParseLocation parses an output location. A bare name without a scheme is a
// GCS bucket; a file:// location names a local directory.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("empty output location")
	}
	if !strings.Contains(raw, "://") {
		raw = "gs://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid output location %q: %w", raw, err)
	}

	switch u.Scheme {
	case "gs", "s3":
		if u.Host == "" {
			return Location{}, fmt.Errorf("output location %q has no bucket", raw)
		}
		return Location{
			Scheme: u.Scheme,
			Bucket: u.Host,
			Prefix: strings.Trim(u.Path, "/"),
		}, nil
	case "file":
		dir := u.Host + u.Path
		if dir == "" {
			return Location{}, fmt.Errorf("output location %q has no directory", raw)
		}
		return Location{Scheme: "file", Bucket: dir}, nil
	default:
		return Location{}, fmt.Errorf("unsupported storage scheme: %s", u.Scheme)
	}
}

// Open returns the object store for loc.
func Open(ctx context.Context, loc Location) (interfaces.ObjectStorage, error) {
	switch loc.Scheme {
	case "gs":
		return gcs.NewClient(ctx, loc.Bucket)
	case "s3":
		return s3.NewClient(ctx, s3.DefaultConfig(loc.Bucket, ""))
	case "file":
		return object.NewLocalStorage(loc.Bucket)
	default:
		return nil, fmt.Errorf("unsupported storage scheme: %s", loc.Scheme)
	}
}
