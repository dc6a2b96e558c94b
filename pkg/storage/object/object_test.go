package object

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logflow/pmdiscover/pkg/interfaces"
)

func TestLocalStoragePut(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	key := "process_models/model.svg"
	require.NoError(t, s.Put(ctx, key, strings.NewReader("<svg/>"), interfaces.PutOptions{}))

	data, err := os.ReadFile(filepath.Join(s.Root(), "process_models", "model.svg"))
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "process_models/other.svg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorageIfNotExists(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	opts := interfaces.PutOptions{IfNotExists: true}
	require.NoError(t, s.Put(ctx, "a.png", strings.NewReader("one"), opts))

	err = s.Put(ctx, "a.png", strings.NewReader("two"), opts)
	assert.True(t, errors.Is(err, interfaces.ErrObjectExists))

	data, err := os.ReadFile(filepath.Join(s.Root(), "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	require.NoError(t, s.Put(ctx, "a.png", strings.NewReader("three"), interfaces.PutOptions{}))
	data, err = os.ReadFile(filepath.Join(s.Root(), "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "three", string(data))
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	opts := interfaces.PutOptions{ContentType: "image/svg+xml", Metadata: map[string]string{"run_id": "r1"}, IfNotExists: true}
	require.NoError(t, s.Put(ctx, "b", strings.NewReader("x"), opts))
	require.NoError(t, s.Put(ctx, "a", strings.NewReader("y"), interfaces.PutOptions{}))
	assert.True(t, errors.Is(s.Put(ctx, "b", strings.NewReader("z"), opts), interfaces.ErrObjectExists))

	obj, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, "x", string(obj.Data))
	assert.Equal(t, "image/svg+xml", obj.ContentType)
	assert.Equal(t, "r1", obj.Metadata["run_id"])
	assert.Equal(t, []string{"a", "b"}, s.Keys())

	s.FailPut = func(string) error { return errors.New("down") }
	assert.Error(t, s.Put(ctx, "c", strings.NewReader(""), interfaces.PutOptions{}))
}
