package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/logflow/pmdiscover/pkg/errors"
	"github.com/logflow/pmdiscover/pkg/storage"
	"github.com/logflow/pmdiscover/pkg/storage/object"
)

const prefix = "process_models/spot_to_invoice_"

var fixed = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

func fixedClock() time.Time { return fixed }

func images() []Artifact {
	return []Artifact{
		{Extension: ".svg", ContentType: "image/svg+xml", Data: []byte("<svg/>")},
		{Extension: ".png", ContentType: "image/png", Data: []byte("png")},
	}
}

func newPublisher(store *object.MemoryStorage, localDir string) *Publisher {
	return New(store, Options{
		Location: storage.Location{Scheme: "gs", Bucket: "models"},
		Prefix:   prefix,
		LocalDir: localDir,
		RunID:    "run-1",
		Now:      fixedClock,
	})
}

func TestBaseKey(t *testing.T) {
	local := time.Date(2025, 2, 3, 5, 5, 6, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, prefix+"20250203-040506", BaseKey(prefix, local))
}

func TestPublishUploadsUnderTimestampedKey(t *testing.T) {
	store := object.NewMemoryStorage()
	res, err := newPublisher(store, "").Publish(context.Background(), images())
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^process_models/spot_to_invoice_\d{8}-\d{6}\.svg$`)
	require.Len(t, res.Keys, 2)
	assert.Regexp(t, pattern, res.Keys[0])
	assert.Equal(t, "gs://models/"+res.Keys[0], res.URIs[0])

	svg, ok := store.Get(prefix + "20250203-040506.svg")
	require.True(t, ok)
	assert.Equal(t, "image/svg+xml", svg.ContentType)
	assert.Equal(t, "run-1", svg.Metadata["run_id"])
	assert.Equal(t, WriterName, svg.Metadata["writer"])

	png, ok := store.Get(prefix + "20250203-040506.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", png.ContentType)
	assert.Nil(t, res.LocalPaths)
	assert.NoError(t, res.MirrorErr)
}

func TestPublishSVGOnly(t *testing.T) {
	store := object.NewMemoryStorage()
	res, err := newPublisher(store, "").Publish(context.Background(), images()[:1])
	require.NoError(t, err)

	assert.Equal(t, []string{prefix + "20250203-040506.svg"}, store.Keys())
	assert.Len(t, res.Keys, 1)
}

func TestPublishTwiceNeverOverwrites(t *testing.T) {
	store := object.NewMemoryStorage()
	p := newPublisher(store, "")

	first, err := p.Publish(context.Background(), images())
	require.NoError(t, err)
	second, err := p.Publish(context.Background(), images())
	require.NoError(t, err)
	third, err := p.Publish(context.Background(), images())
	require.NoError(t, err)

	assert.Equal(t, prefix+"20250203-040506", first.Base)
	assert.Equal(t, prefix+"20250203-040506-2", second.Base)
	assert.Equal(t, prefix+"20250203-040506-3", third.Base)
	assert.Len(t, store.Keys(), 6)
}

func TestPublishWithCreateOnlyCredentials(t *testing.T) {
	store := object.NewMemoryStorage()
	store.FailExists = func(string) error { return errors.New("googleapi: Error 403: storage.objects.get access denied") }
	p := newPublisher(store, "")

	first, err := p.Publish(context.Background(), images())
	require.NoError(t, err)
	assert.Equal(t, prefix+"20250203-040506", first.Base)
	assert.Len(t, store.Keys(), 2)

	second, err := p.Publish(context.Background(), images())
	require.NoError(t, err)
	assert.Equal(t, prefix+"20250203-040506-2", second.Base, "create-only put still detects the collision")
	assert.Len(t, store.Keys(), 4)
}

func TestPublishLocationPrefix(t *testing.T) {
	store := object.NewMemoryStorage()
	p := New(store, Options{
		Location: storage.Location{Scheme: "s3", Bucket: "archive", Prefix: "team"},
		Prefix:   prefix,
		Now:      fixedClock,
	})

	res, err := p.Publish(context.Background(), images()[:1])
	require.NoError(t, err)
	assert.Equal(t, "team/"+prefix+"20250203-040506.svg", res.Keys[0])
	assert.Equal(t, "s3://archive/team/"+prefix+"20250203-040506.svg", res.URIs[0])
}

func TestPublishUploadFailureIsFatal(t *testing.T) {
	store := object.NewMemoryStorage()
	store.FailPut = func(path string) error {
		if strings.HasSuffix(path, ".png") {
			return errors.New("quota exceeded")
		}
		return nil
	}

	_, err := newPublisher(store, "").Publish(context.Background(), images())
	require.Error(t, err)
	assert.True(t, jerrors.IsCode(err, jerrors.CodeUploadFailed))
}

func TestPublishBestEffortArtifact(t *testing.T) {
	store := object.NewMemoryStorage()
	store.FailPut = func(path string) error {
		if strings.HasSuffix(path, ".parquet") {
			return errors.New("denied")
		}
		return nil
	}
	artifacts := append(images(), Artifact{Extension: ".parquet", ContentType: "application/vnd.apache.parquet", Data: []byte("PAR1"), BestEffort: true})

	dir := t.TempDir()
	res, err := newPublisher(store, dir).Publish(context.Background(), artifacts)
	require.NoError(t, err)

	assert.Len(t, res.Keys, 2)
	assert.Contains(t, res.Skipped, ".parquet")
	assert.Len(t, res.LocalPaths, 2)
	_, statErr := os.Stat(filepath.Join(dir, "spot_to_invoice_20250203-040506.parquet"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPublishLocalMirror(t *testing.T) {
	store := object.NewMemoryStorage()
	dir := filepath.Join(t.TempDir(), "mirror")

	res, err := newPublisher(store, dir).Publish(context.Background(), images())
	require.NoError(t, err)
	require.NoError(t, res.MirrorErr)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	var remote []string
	for _, k := range res.Keys {
		remote = append(remote, filepath.Base(k))
	}
	assert.ElementsMatch(t, remote, names)

	data, err := os.ReadFile(res.LocalPaths[0])
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))
}

func TestPublishMirrorFailureIsNotFatal(t *testing.T) {
	store := object.NewMemoryStorage()
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	res, err := newPublisher(store, filepath.Join(blocker, "out")).Publish(context.Background(), images())
	require.NoError(t, err)

	require.Error(t, res.MirrorErr)
	assert.True(t, jerrors.IsCode(res.MirrorErr, jerrors.CodeLocalWriteFailed))
	assert.Len(t, store.Keys(), 2)
	obj, ok := store.Get(res.Keys[0])
	require.True(t, ok)
	assert.Equal(t, "<svg/>", string(obj.Data))
}

func TestPublishRejectsEmptyInput(t *testing.T) {
	_, err := newPublisher(object.NewMemoryStorage(), "").Publish(context.Background(), nil)
	assert.True(t, jerrors.IsCode(err, jerrors.CodeUploadFailed))
}
