package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logflow/pmdiscover/pkg/discovery"
	jerrors "github.com/logflow/pmdiscover/pkg/errors"
)

type fakeEngine struct {
	fail    map[Format]error
	formats []Format
	src     string
}

func (f *fakeEngine) Render(_ context.Context, dotSrc []byte, format Format) ([]byte, error) {
	f.formats = append(f.formats, format)
	f.src = string(dotSrc)
	if err := f.fail[format]; err != nil {
		return nil, err
	}
	return []byte("<" + string(format) + ">"), nil
}

func diagram(t *testing.T) *discovery.BPMN {
	t.Helper()
	tree := discovery.Node(discovery.OpSequence,
		discovery.Leaf("quote.request"),
		discovery.Node(discovery.OpXor, discovery.Leaf("quote.sent"), discovery.Leaf("quote.rejected")))
	b, err := discovery.TreeToBPMN(tree)
	require.NoError(t, err)
	return b
}

func TestRenderBothFormats(t *testing.T) {
	engine := &fakeEngine{}
	res, err := New(engine, nil).Render(context.Background(), diagram(t))
	require.NoError(t, err)

	assert.Equal(t, []Format{FormatSVG, FormatPNG}, engine.formats)
	require.NotNil(t, res.PNG)
	assert.NoError(t, res.PNGErr)
	assert.Equal(t, "image/svg+xml", res.SVG.ContentType)
	assert.Equal(t, "image/png", res.PNG.ContentType)
	assert.Equal(t, []byte("<svg>"), res.SVG.Data)
	assert.Len(t, res.Artifacts(), 2)
}

func TestRenderPNGFailureIsNotFatal(t *testing.T) {
	engine := &fakeEngine{fail: map[Format]error{FormatPNG: errors.New("no cairo")}}
	res, err := New(engine, nil).Render(context.Background(), diagram(t))
	require.NoError(t, err)

	assert.Nil(t, res.PNG)
	require.Error(t, res.PNGErr)
	assert.True(t, jerrors.IsCode(res.PNGErr, jerrors.CodeRenderFailed))
	assert.Len(t, res.Artifacts(), 1)
}

func TestRenderSVGFailureIsFatal(t *testing.T) {
	engine := &fakeEngine{fail: map[Format]error{FormatSVG: errors.New("layout failed")}}
	_, err := New(engine, nil).Render(context.Background(), diagram(t))

	require.Error(t, err)
	assert.True(t, jerrors.IsCode(err, jerrors.CodeRenderFailed))
	assert.Equal(t, []Format{FormatSVG}, engine.formats)
}

func TestToDOT(t *testing.T) {
	src := ToDOT(diagram(t))

	assert.True(t, strings.HasPrefix(strings.TrimSpace(src), "digraph"))
	assert.Contains(t, src, "rankdir")
	assert.Contains(t, src, "quote.request")
	assert.Contains(t, src, "diamond")
	assert.Contains(t, src, "->")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, ".svg", FormatSVG.Extension())
	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, "application/octet-stream", Format("pdf").ContentType())
}
