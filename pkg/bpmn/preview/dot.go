package preview

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/tnpagents/processmate/pkg/bpmn/graph"
	"github.com/tnpagents/processmate/pkg/bpmn/sink"
	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/process"
)

// Output formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// ValidFormats is the set of supported preview formats.
var ValidFormats = map[string]bool{
	FormatDOT: true,
	FormatSVG: true,
	FormatPNG: true,
}

// Options configures the preview.
type Options struct {
	// Title is drawn above the diagram. Empty means no title.
	Title string

	// NoColors disables lane cluster colours.
	NoColors bool
}

// ToDOT converts a graph model to Graphviz DOT source.
// Lanes become clusters in first-seen order; dangling branches point to a
// dashed "Fin" terminal.
func ToDOT(m *graph.Model, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  compound=true;\n")
	buf.WriteString("  node [fontname=\"Helvetica\", fontsize=12];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.4;\n")
	if opts.Title != "" {
		fmt.Fprintf(&buf, "  label=%q;\n  labelloc=t;\n", opts.Title)
	}

	for i, lane := range m.LaneOrder {
		fmt.Fprintf(&buf, "\n  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&buf, "    label=%q;\n", lane)
		if !opts.NoColors {
			c := sink.LaneColorAt(i)
			fmt.Fprintf(&buf, "    style=filled;\n    color=%q;\n    fillcolor=%q;\n", c.Stroke, c.Fill)
		}
		for _, s := range m.ByLane[lane] {
			fmt.Fprintf(&buf, "    %q [%s];\n", s.ID, strings.Join(nodeAttrs(s), ", "))
		}
		buf.WriteString("  }\n")
	}

	if m.HasFallback() {
		fmt.Fprintf(&buf, "\n  %q [label=%q, shape=doublecircle, style=dashed];\n",
			graph.FallbackEndID, graph.FallbackEndLabel)
	}

	buf.WriteString("\n")
	for _, e := range m.Edges {
		attrs := edgeAttrs(e)
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.SourceID, e.TargetID)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.SourceID, e.TargetID, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(s *process.Step) []string {
	attrs := []string{fmt.Sprintf("label=%q", s.DisplayName())}
	switch s.Kind {
	case process.KindStartEvent:
		attrs = append(attrs, "shape=circle", "style=filled", "fillcolor=white")
	case process.KindEndEvent:
		attrs = append(attrs, "shape=doublecircle", "style=filled", "fillcolor=white")
	case process.KindExclusiveGateway:
		attrs = append(attrs, "shape=diamond", "style=filled", "fillcolor=white")
	default:
		attrs = append(attrs, "shape=box", "style=\"rounded,filled\"", "fillcolor=white")
	}
	if s.HasTool() {
		attrs = append(attrs, fmt.Sprintf("xlabel=%q", s.Tool))
	}
	return attrs
}

func edgeAttrs(e graph.Edge) []string {
	var attrs []string
	if e.Labeled() {
		attrs = append(attrs, fmt.Sprintf("label=%q", e.Name))
	}
	if e.Dangling {
		attrs = append(attrs, "style=dashed", "color=red")
	}
	return attrs
}

// Render turns DOT source into the requested format.
// FormatDOT returns the source unchanged.
func Render(ctx context.Context, dot, format string) ([]byte, error) {
	switch format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		out, err := render(ctx, dot, graphviz.SVG)
		if err != nil {
			return nil, err
		}
		return normalizeViewBox(out), nil
	case FormatPNG:
		return render(ctx, dot, graphviz.PNG)
	default:
		return nil, perrors.New(perrors.ErrCodeUnsupported, "unsupported preview format %q (must be one of: dot, svg, png)", format)
	}
}

func render(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-sized root element with a
// viewBox-only one so the SVG scales in a browser.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
