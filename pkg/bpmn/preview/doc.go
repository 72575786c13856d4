// Package preview renders a step table as a Graphviz diagram for a quick
// visual check before the BPMN document is opened in a modeler.
//
// # Overview
//
// The preview is not the BPMN layout. Graphviz places the nodes itself
// (top to bottom, one cluster per lane) so that reference mistakes such as
// unreachable steps, dangling branches and cycles stand out.
//
// # Usage
//
//	m, err := graph.Build(steps)
//	dot := preview.ToDOT(m, preview.Options{Title: "Achats"})
//	svg, err := preview.Render(ctx, dot, preview.FormatSVG)
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG and
// PNG rendering; no Graphviz installation is required.
package preview
