package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw     string
		want    Location
		wantErr bool
	}{
		{raw: "gs://models", want: Location{Scheme: "gs", Bucket: "models"}},
		{raw: "  gs://models/  ", want: Location{Scheme: "gs", Bucket: "models"}},
		{raw: "models", want: Location{Scheme: "gs", Bucket: "models"}},
		{raw: "gs://models/team/a/", want: Location{Scheme: "gs", Bucket: "models", Prefix: "team/a"}},
		{raw: "s3://archive/pm", want: Location{Scheme: "s3", Bucket: "archive", Prefix: "pm"}},
		{raw: "file:///tmp/models", want: Location{Scheme: "file", Bucket: "/tmp/models"}},
		{raw: "", wantErr: true},
		{raw: "gs://", wantErr: true},
		{raw: "ftp://host/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocationKey(t *testing.T) {
	assert.Equal(t, "process_models/a.svg", Location{Scheme: "gs", Bucket: "b"}.Key("process_models/a.svg"))
	assert.Equal(t, "team/process_models/a.svg", Location{Scheme: "gs", Bucket: "b", Prefix: "team"}.Key("process_models/a.svg"))
	assert.Equal(t, "gs://b/team", Location{Scheme: "gs", Bucket: "b", Prefix: "team"}.String())
}

func TestOpenLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	store, err := Open(context.Background(), Location{Scheme: "file", Bucket: dir})
	require.NoError(t, err)
	assert.Equal(t, "file", store.Scheme())

	_, err = Open(context.Background(), Location{Scheme: "az", Bucket: "x"})
	assert.Error(t, err)
}
