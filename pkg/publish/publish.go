// Package publish uploads rendered process models under timestamped keys
// and mirrors them to a local directory.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	jerrors "github.com/logflow/pmdiscover/pkg/errors"
	"github.com/logflow/pmdiscover/pkg/interfaces"
	"github.com/logflow/pmdiscover/pkg/storage"
	"github.com/logflow/pmdiscover/pkg/storage/object"
)

// TimestampLayout formats the run time inside artifact keys.
const TimestampLayout = "20060102-150405"

// maxSuffix bounds the search for a free base key.
const maxSuffix = 1000

// WriterName is stored in the writer metadata of every uploaded object.
const WriterName = "pmdiscover-go"

// Artifact is one file to publish. Extension includes the leading dot.
type Artifact struct {
	Extension   string
	ContentType string
	Data        []byte
	// BestEffort artifacts may fail to upload without failing the run.
	BestEffort bool
}

// Options configures a Publisher.
type Options struct {
	Location storage.Location
	// Prefix is prepended to the timestamp to form the base key.
	Prefix string
	// LocalDir enables the local mirror when non-empty.
	LocalDir string
	RunID    string
	Now      func() time.Time
	Logger   *slog.Logger
}

// Publisher writes artifacts to an object store.
type Publisher struct {
	store interfaces.ObjectStorage
	opts  Options
}

// New creates a Publisher writing to store.
func New(store interfaces.ObjectStorage, opts Options) *Publisher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Publisher{store: store, opts: opts}
}

// Result describes what was written.
type Result struct {
	// Base is the key shared by every artifact, without extension or location prefix.
	Base string
	// Keys are the uploaded object keys, in artifact order.
	Keys []string
	// URIs are the uploaded objects as full location URIs.
	URIs []string
	// LocalPaths are the mirrored files.
	LocalPaths []string
	// Skipped maps the extension of each best-effort artifact that failed to upload to its error.
	Skipped map[string]error
	// MirrorErr is set when the local mirror failed. Remote objects are unaffected.
	MirrorErr error
}

// BaseKey returns the base key for t: Prefix followed by the UTC timestamp.
func BaseKey(prefix string, t time.Time) string {
	return prefix + t.UTC().Format(TimestampLayout)
}

// Publish uploads artifacts under one base key. The first artifact claims the
// base with a create-only write; if the base is taken it gets a -2, -3, ...
// suffix. Failure to upload a required artifact is fatal.
func (p *Publisher) Publish(ctx context.Context, artifacts []Artifact) (*Result, error) {
	if len(artifacts) == 0 {
		return nil, jerrors.New(jerrors.CodeUploadFailed, "nothing to publish")
	}
	if artifacts[0].BestEffort {
		return nil, jerrors.New(jerrors.CodeUploadFailed, "the first artifact must be required")
	}

	ctx, span := otel.Tracer("pmdiscover/publish").Start(ctx, "publish")
	defer span.End()

	meta := map[string]string{"writer": WriterName}
	if p.opts.RunID != "" {
		meta["run_id"] = p.opts.RunID
	}

	base, err := p.claim(ctx, artifacts[0], meta)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("base", base))

	res := &Result{Base: base, Skipped: make(map[string]error)}
	res.addUpload(p.opts.Location, base+artifacts[0].Extension)
	p.opts.Logger.Info("uploaded", "uri", res.URIs[0], "bytes", len(artifacts[0].Data))

	for _, a := range artifacts[1:] {
		key := p.opts.Location.Key(base + a.Extension)
		err := p.put(ctx, key, a, meta)
		if err != nil {
			if a.BestEffort {
				res.Skipped[a.Extension] = err
				p.opts.Logger.Warn("optional upload failed", "key", key, "error", err)
				continue
			}
			span.RecordError(err)
			return nil, jerrors.UploadFailed(err, key)
		}
		res.addUpload(p.opts.Location, base+a.Extension)
		p.opts.Logger.Info("uploaded", "uri", res.URIs[len(res.URIs)-1], "bytes", len(a.Data))
	}

	if p.opts.LocalDir != "" {
		paths, err := p.mirror(ctx, base, artifacts, res.Skipped)
		res.LocalPaths = paths
		if err != nil {
			res.MirrorErr = jerrors.Wrap(err, jerrors.CodeLocalWriteFailed, "local mirror failed")
			p.opts.Logger.Warn("failed local write", "dir", p.opts.LocalDir, "error", err)
		}
	}
	return res, nil
}

func (r *Result) addUpload(loc storage.Location, name string) {
	key := loc.Key(name)
	r.Keys = append(r.Keys, key)
	if loc.Scheme == "file" {
		r.URIs = append(r.URIs, loc.String()+"/"+key)
		return
	}
	r.URIs = append(r.URIs, loc.Scheme+"://"+loc.Bucket+"/"+key)
}

// claim finds a free base key and writes the first artifact there.
func (p *Publisher) claim(ctx context.Context, first Artifact, meta map[string]string) (string, error) {
	stamp := BaseKey(p.opts.Prefix, p.opts.Now())

	for n := 1; n <= maxSuffix; n++ {
		base := stamp
		if n > 1 {
			base = stamp + "-" + strconv.Itoa(n)
		}
		key := p.opts.Location.Key(base + first.Extension)

		// Exists is a hint; a create-only credential may not read metadata,
		// so an error leaves the decision to the create-only put.
		exists, err := p.store.Exists(ctx, key)
		if err != nil {
			p.opts.Logger.Debug("existence check failed", "key", key, "error", err)
		} else if exists {
			continue
		}

		err = p.put(ctx, key, first, meta)
		if errors.Is(err, interfaces.ErrObjectExists) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", jerrors.Wrap(err, jerrors.CodeCanceled, "upload canceled")
			}
			return "", jerrors.UploadFailed(err, key)
		}
		return base, nil
	}
	return "", jerrors.Newf(jerrors.CodeUploadFailed, "no free key for %s after %d attempts", stamp, maxSuffix)
}

func (p *Publisher) put(ctx context.Context, key string, a Artifact, meta map[string]string) error {
	return p.store.Put(ctx, key, bytes.NewReader(a.Data), interfaces.PutOptions{
		ContentType: a.ContentType,
		Metadata:    meta,
		IfNotExists: true,
	})
}

// mirror writes every uploaded artifact to LocalDir under its key's basename.
func (p *Publisher) mirror(ctx context.Context, base string, artifacts []Artifact, skipped map[string]error) ([]string, error) {
	local, err := object.NewLocalStorage(p.opts.LocalDir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, a := range artifacts {
		if _, ok := skipped[a.Extension]; ok {
			continue
		}
		name := path.Base(base + a.Extension)
		if err := local.Put(ctx, name, bytes.NewReader(a.Data), interfaces.PutOptions{ContentType: a.ContentType}); err != nil {
			return paths, fmt.Errorf("write %s: %w", name, err)
		}
		full := filepath.Join(local.Root(), name)
		paths = append(paths, full)
		p.opts.Logger.Info("wrote local", "path", full)
	}
	return paths, nil
}
