package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
)

// Graphviz renders DOT through the embedded Graphviz library.
type Graphviz struct{}

// Render lays out dotSrc and encodes it in format.
func (Graphviz) Render(ctx context.Context, dotSrc []byte, format Format) ([]byte, error) {
	var gf graphviz.Format
	switch format {
	case FormatSVG:
		gf = graphviz.SVG
	case FormatPNG:
		gf = graphviz.PNG
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	g, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer g.Close()

	graph, err := graphviz.ParseBytes(dotSrc)
	if err != nil {
		return nil, fmt.Errorf("parse dot: %w", err)
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := g.Render(ctx, graph, gf, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("render %s: empty output", format)
	}
	return buf.Bytes(), nil
}
