// Package render turns BPMN diagrams into SVG and PNG images.
package render

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/logflow/pmdiscover/pkg/discovery"
	jerrors "github.com/logflow/pmdiscover/pkg/errors"
)

// Format is an image encoding.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type uploaded with the image.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// Engine lays out DOT source and encodes the result.
type Engine interface {
	Render(ctx context.Context, dotSrc []byte, format Format) ([]byte, error)
}

// Artifact is one rendered image.
type Artifact struct {
	Format      Format
	ContentType string
	Data        []byte
}

func newArtifact(f Format, data []byte) *Artifact {
	return &Artifact{Format: f, ContentType: f.ContentType(), Data: data}
}

// Result holds the rendered images. SVG is always set on success; PNG is
// nil when PNGErr explains why it is missing.
type Result struct {
	SVG    *Artifact
	PNG    *Artifact
	PNGErr error
}

// Artifacts returns the images that were produced, SVG first.
func (r *Result) Artifacts() []*Artifact {
	out := []*Artifact{r.SVG}
	if r.PNG != nil {
		out = append(out, r.PNG)
	}
	return out
}

// Renderer renders BPMN diagrams with an Engine.
type Renderer struct {
	engine Engine
	logger *slog.Logger
}

// New creates a Renderer. A nil engine selects Graphviz.
func New(engine Engine, logger *slog.Logger) *Renderer {
	if engine == nil {
		engine = Graphviz{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{engine: engine, logger: logger}
}

// Render produces the SVG image, which is required, and then the PNG image,
// whose failure is reported in Result.PNGErr instead of failing the call.
func (r *Renderer) Render(ctx context.Context, b *discovery.BPMN) (*Result, error) {
	ctx, span := otel.Tracer("pmdiscover/render").Start(ctx, "render")
	defer span.End()

	src := []byte(ToDOT(b))
	span.SetAttributes(attribute.Int("dot.bytes", len(src)))

	start := time.Now()
	svg, err := r.engine.Render(ctx, src, FormatSVG)
	if err != nil {
		span.RecordError(err)
		return nil, jerrors.Wrap(err, jerrors.CodeRenderFailed, "SVG rendering failed")
	}
	r.logger.Debug("rendered image", "format", FormatSVG, "bytes", len(svg), "elapsed", time.Since(start))

	res := &Result{SVG: newArtifact(FormatSVG, svg)}

	start = time.Now()
	png, err := r.engine.Render(ctx, src, FormatPNG)
	if err != nil {
		res.PNGErr = jerrors.Wrap(err, jerrors.CodeRenderFailed, "PNG rendering failed")
		r.logger.Warn("PNG export failed; continuing with SVG only", "error", err)
		return res, nil
	}
	r.logger.Debug("rendered image", "format", FormatPNG, "bytes", len(png), "elapsed", time.Since(start))
	res.PNG = newArtifact(FormatPNG, png)
	return res, nil
}
