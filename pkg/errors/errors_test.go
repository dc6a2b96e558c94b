package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := New(CodeQueryFailed, "query failed").
		WithContext("view", "p.d.v").
		WithContext("dataset", "d")

	assert.Equal(t, "[E201] query failed (dataset=d, view=p.d.v)", err.Error())
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeUploadFailed, "upload"))

	cause := fmt.Errorf("boom")
	err := Wrap(cause, CodeUploadFailed, "upload svg")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, CodeUploadFailed))
	assert.Equal(t, "[E501] upload svg: boom", err.Error())

	outer := fmt.Errorf("run: %w", err)
	assert.Equal(t, CodeUploadFailed, GetCode(outer))
	assert.ErrorIs(t, outer, New(CodeUploadFailed, ""))
}

func TestGetCode_Plain(t *testing.T) {
	assert.Equal(t, CodeUnknown, GetCode(context.Canceled))
	assert.False(t, IsCode(context.Canceled, CodeCanceled))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{MissingConfig("OUTPUT_BUCKET", "gs://my-bucket"), 2},
		{InvalidConfig("LOOKBACK_DAYS", "x", nil), 2},
		{New(CodeCanceled, "interrupted"), 130},
		{New(CodeRenderFailed, "svg"), 1},
		{fmt.Errorf("plain"), 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "ExitCode(%v)", tt.err)
	}
}

func TestMissingConfig(t *testing.T) {
	err := MissingConfig("OUTPUT_BUCKET", "gs://my-bucket")
	assert.Contains(t, err.Error(), "OUTPUT_BUCKET env var is required")
	assert.Contains(t, err.Error(), "example=gs://my-bucket")
}
