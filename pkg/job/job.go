// Package job runs one discovery: fetch events, mine a model, render it and
// publish the images.
package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/logflow/pmdiscover/pkg/config"
	"github.com/logflow/pmdiscover/pkg/defaults/metrics"
	"github.com/logflow/pmdiscover/pkg/discovery"
	jerrors "github.com/logflow/pmdiscover/pkg/errors"
	"github.com/logflow/pmdiscover/pkg/eventlog"
	"github.com/logflow/pmdiscover/pkg/interfaces"
	"github.com/logflow/pmdiscover/pkg/publish"
	"github.com/logflow/pmdiscover/pkg/render"
	"github.com/logflow/pmdiscover/pkg/storage"
	"github.com/logflow/pmdiscover/pkg/warehouse"
)

// Status is the outcome of a run that did not fail.
type Status string

const (
	// StatusCompleted means every artifact was rendered and published.
	StatusCompleted Status = "completed"
	// StatusDegraded means the SVG was published but an optional step failed.
	StatusDegraded Status = "completed-degraded"
	// StatusSkippedEmpty means the query returned no rows.
	StatusSkippedEmpty Status = "skipped-empty"
)

// Report summarizes a run.
type Report struct {
	RunID     string
	Status    Status
	StartedAt time.Time
	Duration  time.Duration

	Rows    int
	Cases   int
	Dropped int

	Path  discovery.Path
	Tree  string
	Tasks int

	Base       string
	Keys       []string
	URIs       []string
	LocalPaths []string

	// PNGErr is set when the PNG could not be rendered; only the SVG was published.
	PNGErr error
	// MirrorErr is set when the local mirror failed.
	MirrorErr error
	// SnapshotErr is set when the event log snapshot could not be built or uploaded.
	SnapshotErr error
}

// Degraded reports whether an optional step failed.
func (r *Report) Degraded() bool {
	return r.PNGErr != nil || r.MirrorErr != nil || r.SnapshotErr != nil
}

// Deps are the collaborators of a Job. Source and Store are required.
type Deps struct {
	Source  warehouse.Source
	Store   interfaces.ObjectStorage
	Library discovery.Library
	Engine  render.Engine
	Metrics interfaces.MetricsExporter
	Logger  *slog.Logger
	Now     func() time.Time
	RunID   func() string

	// Stage, when set, is called as the run enters each stage.
	Stage func(name string)
}

// Job is a configured discovery run.
type Job struct {
	cfg        config.Config
	deps       Deps
	location   storage.Location
	discoverer *discovery.Discoverer
	renderer   *render.Renderer
}

// New validates cfg and resolves the conversion route once.
func New(cfg config.Config, deps Deps) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil {
		return nil, errors.New("job: warehouse source is required")
	}
	if deps.Store == nil {
		return nil, errors.New("job: object store is required")
	}
	if deps.Library == nil {
		deps.Library = discovery.Inductive{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoopMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RunID == nil {
		deps.RunID = uuid.NewString
	}
	if deps.Stage == nil {
		deps.Stage = func(string) {}
	}

	loc, err := storage.ParseLocation(cfg.Output.Bucket)
	if err != nil {
		return nil, jerrors.InvalidConfig(config.EnvBucket, cfg.Output.Bucket, err)
	}

	d, err := discovery.NewDiscoverer(deps.Library, cfg.Discovery.ConversionPath)
	if err != nil {
		return nil, err
	}

	return &Job{
		cfg:        cfg,
		deps:       deps,
		location:   loc,
		discoverer: d,
		renderer:   render.New(deps.Engine, deps.Logger),
	}, nil
}

// Path returns the conversion route chosen at construction.
func (j *Job) Path() discovery.Path {
	return j.discoverer.Path()
}

// Run executes the pipeline. A non-nil error is fatal; optional failures are
// reported on the Report with StatusDegraded.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	runID := j.deps.RunID()
	logger := j.deps.Logger.With("run_id", runID)
	started := j.deps.Now()

	ctx, span := otel.Tracer("pmdiscover/job").Start(ctx, "discovery.run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID))

	report := &Report{RunID: runID, StartedAt: started.UTC(), Path: j.discoverer.Path()}
	finish := func(status Status) *Report {
		report.Status = status
		report.Duration = j.deps.Now().Sub(started)
		j.deps.Metrics.Timer(interfaces.MetricRunDuration, report.Duration,
			map[string]string{interfaces.TagStatus: string(status)})
		span.SetAttributes(attribute.String("status", string(status)))
		return report
	}

	// Fetch
	j.deps.Stage("querying " + j.deps.Source.Name())
	t := time.Now()
	log, err := warehouse.Fetch(ctx, j.deps.Source, j.cfg.Warehouse.LookbackDays, logger)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	j.deps.Metrics.Timer(interfaces.MetricQueryDuration, time.Since(t),
		map[string]string{interfaces.TagSource: j.deps.Source.Name()})
	j.deps.Metrics.Counter(interfaces.MetricRowsFetched, int64(log.Len()), nil)
	j.deps.Metrics.Counter(interfaces.MetricRowsDropped, int64(log.Dropped()), nil)
	report.Rows, report.Cases, report.Dropped = log.Len(), log.NumCases(), log.Dropped()

	if log.Empty() {
		logger.Info("No rows returned; skipping discovery.")
		return finish(StatusSkippedEmpty), nil
	}

	// Discover
	j.deps.Stage("discovering model")
	t = time.Now()
	model, err := j.discoverer.Discover(ctx, log)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	j.deps.Metrics.Timer(interfaces.MetricDiscoverDuration, time.Since(t),
		map[string]string{interfaces.TagPath: string(model.Path)})
	report.Tree = model.Tree.String()
	report.Tasks = len(model.BPMN.Tasks())
	j.deps.Metrics.Gauge(interfaces.MetricModelTasks, float64(report.Tasks), nil)
	logger.Info("discovered model", "path", model.Path, "tasks", report.Tasks, "tree_size", model.Tree.Size())

	// Render
	j.deps.Stage("rendering")
	t = time.Now()
	images, err := j.renderer.Render(ctx, model.BPMN)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	j.deps.Metrics.Timer(interfaces.MetricRenderDuration, time.Since(t), nil)
	report.PNGErr = images.PNGErr

	artifacts := make([]publish.Artifact, 0, 3)
	for _, img := range images.Artifacts() {
		artifacts = append(artifacts, publish.Artifact{
			Extension:   img.Format.Extension(),
			ContentType: img.ContentType,
			Data:        img.Data,
		})
	}
	if j.cfg.Output.ExportEventLog {
		snap, err := snapshot(log)
		if err != nil {
			report.SnapshotErr = err
			logger.Warn("event log snapshot failed", "error", err)
		} else {
			artifacts = append(artifacts, snap)
		}
	}

	// Publish
	j.deps.Stage("publishing")
	pub := publish.New(j.deps.Store, publish.Options{
		Location: j.location,
		Prefix:   j.cfg.Output.Prefix,
		LocalDir: j.cfg.Output.LocalDir,
		RunID:    runID,
		Now:      j.deps.Now,
		Logger:   logger,
	})
	res, err := pub.Publish(ctx, artifacts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	report.Base = res.Base
	report.Keys = res.Keys
	report.URIs = res.URIs
	report.LocalPaths = res.LocalPaths
	report.MirrorErr = res.MirrorErr
	if err, ok := res.Skipped[snapshotExtension]; ok {
		report.SnapshotErr = err
	}
	for _, a := range artifacts {
		if _, skipped := res.Skipped[a.Extension]; skipped {
			continue
		}
		j.deps.Metrics.Counter(interfaces.MetricArtifactBytes, int64(len(a.Data)),
			map[string]string{interfaces.TagFormat: a.Extension})
	}
	j.deps.Metrics.Counter(interfaces.MetricArtifactsTotal, int64(len(res.Keys)), nil)

	if report.Degraded() {
		return finish(StatusDegraded), nil
	}
	return finish(StatusCompleted), nil
}

const snapshotExtension = ".parquet"

func snapshot(log *eventlog.Log) (publish.Artifact, error) {
	var buf bytes.Buffer
	if err := eventlog.WriteParquet(&buf, log); err != nil {
		return publish.Artifact{}, fmt.Errorf("write parquet snapshot: %w", err)
	}
	return publish.Artifact{
		Extension:   snapshotExtension,
		ContentType: eventlog.ParquetContentType,
		Data:        buf.Bytes(),
		BestEffort:  true,
	}, nil
}
