// Package pipeline provides the diagram generation pipeline for ProcessMate.
//
// This package wires the BPMN packages into the single call that the CLI and
// the HTTP API share. By centralizing this logic, both entry points apply the
// same defaults, the same strict-mode rules and the same cache keys.
//
// # Architecture
//
// A generation runs five stages, each a pure function of the previous one:
//
//  1. Graph: build lookups, edges and layers from the step table ([graph.Build])
//  2. Metrics: estimate task heights from their labels ([graph.Model.Heights])
//  3. Layout: place nodes in vertical swimlanes ([layout.Compute])
//  4. Route: draw orthogonal connectors and label anchors ([route.Route])
//  5. Serialize: write BPMN 2.0 XML with diagram interchange ([sink.Serialize])
//
// [Generate] runs the stages without caching. [Runner] adds a cache, logging
// and observability hooks around it, plus Graphviz previews.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Generate(ctx, table.Steps, pipeline.Options{Title: table.Title})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("process.bpmn", []byte(result.XML), 0o644)
package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tnpagents/processmate/pkg/bpmn/graph"
	"github.com/tnpagents/processmate/pkg/bpmn/layout"
	"github.com/tnpagents/processmate/pkg/bpmn/preview"
	"github.com/tnpagents/processmate/pkg/bpmn/route"
	"github.com/tnpagents/processmate/pkg/bpmn/sink"
	"github.com/tnpagents/processmate/pkg/buildinfo"
	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/process"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultTitle is the pool name used when a table has no title.
	DefaultTitle = sink.DefaultTitle

	// DefaultExporter is written to the definitions' exporter attribute.
	DefaultExporter = "ProcessMate"

	// DefaultPreviewFormat is the Graphviz output format.
	DefaultPreviewFormat = preview.FormatSVG
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one generation.
// This struct supports JSON serialization for API requests.
type Options struct {
	Title    string `json:"title,omitempty"`
	NoColors bool   `json:"no_colors,omitempty"`
	Strict   bool   `json:"strict,omitempty"` // fail on any validation issue
	Refresh  bool   `json:"refresh,omitempty"` // bypass cache reads

	// Layout geometry. The zero value means layout.DefaultConfig().
	Layout layout.Config `json:"layout"`

	// Preview options
	PreviewFormat string `json:"preview_format,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a generation.
type Result struct {
	// XML is the BPMN 2.0 document.
	XML string `json:"xml"`

	// Layout holds node, lane and annotation geometry.
	Layout *layout.Layout `json:"layout"`

	// Paths holds the routed connectors in edge order.
	Paths []route.Path `json:"paths"`

	// Diagnostics reports recovered problems in the table.
	Diagnostics Diagnostics `json:"diagnostics"`

	// Stats contains timing and size information.
	Stats Stats `json:"stats"`

	// CacheInfo tracks whether the result came from the cache.
	CacheInfo CacheInfo `json:"cache"`
}

// Diagnostics lists table problems that did not stop generation.
type Diagnostics struct {
	// FallbackBranches counts references to unknown steps that were
	// redirected to the synthetic end event.
	FallbackBranches int `json:"fallback_branches"`

	// Ignored lists references the source kind cannot carry.
	Ignored []graph.IgnoredRef `json:"ignored,omitempty"`

	// Issues lists non-fatal validation findings (empty in strict mode,
	// which fails instead).
	Issues []process.Issue `json:"issues,omitempty"`
}

// Stats contains pipeline execution statistics.
type Stats struct {
	StepCount  int           `json:"steps"`
	LaneCount  int           `json:"lanes"`
	FlowCount  int           `json:"flows"`
	LayoutTime time.Duration `json:"layout_ns"` // graph, metrics and layout
	RouteTime  time.Duration `json:"route_ns"`
	XMLTime    time.Duration `json:"xml_ns"`
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	DiagramHit bool `json:"diagram_hit"`
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidatePreviewFormat checks that a preview format is valid.
func ValidatePreviewFormat(format string) error {
	if !preview.ValidFormats[format] {
		return perrors.New(perrors.ErrCodeInvalidInput, "invalid preview format: %q (must be one of: dot, svg, png)", format)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the geometry and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if strings.TrimSpace(o.Title) == "" {
		o.Title = DefaultTitle
	}
	if o.Layout == (layout.Config{}) {
		o.Layout = layout.DefaultConfig()
	}
	if err := o.Layout.Validate(); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "invalid layout configuration")
	}
	if o.PreviewFormat == "" {
		o.PreviewFormat = DefaultPreviewFormat
	}
	if err := ValidatePreviewFormat(o.PreviewFormat); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// SinkOptions returns the serializer options.
func (o *Options) SinkOptions() sink.Options {
	return sink.Options{
		Title:    o.Title,
		NoColors: o.NoColors,
		Exporter: DefaultExporter,
		Version:  buildinfo.Version,
	}
}

// PreviewOptions returns the Graphviz preview options.
func (o *Options) PreviewOptions() preview.Options {
	return preview.Options{Title: o.Title, NoColors: o.NoColors}
}

// =============================================================================
// Generation
// =============================================================================

// Generate runs graph → metrics → layout → route → XML without caching.
//
// Input errors (empty table, empty or duplicate ids, unknown kinds) fail the
// whole call with no partial output. Unknown successor references do not:
// they are counted in Diagnostics.FallbackBranches. In strict mode any
// validation issue fails the call.
func Generate(steps []process.Step, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	layoutStart := time.Now()
	m, err := graph.Build(steps)
	if err != nil {
		return nil, err
	}

	issues, verr := process.Validate(&process.Table{Steps: m.Steps})
	if opts.Strict && verr != nil {
		return nil, strictError(issues, verr)
	}
	result := &Result{}
	result.Diagnostics.Issues = issues

	cfg := opts.Layout
	heights := m.Heights(cfg.TaskWidth, cfg.Metrics())
	l, err := layout.Compute(m, heights, cfg)
	if err != nil {
		return nil, err
	}
	result.Layout = l
	result.Stats.LayoutTime = time.Since(layoutStart)

	routeStart := time.Now()
	paths, err := route.Route(m, l)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInternal, err, "route connectors")
	}
	result.Paths = paths
	result.Stats.RouteTime = time.Since(routeStart)

	xmlStart := time.Now()
	xml, err := sink.Serialize(m, l, paths, opts.SinkOptions())
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInternal, err, "serialize BPMN")
	}
	result.XML = xml
	result.Stats.XMLTime = time.Since(xmlStart)

	result.Stats.StepCount = len(m.Steps)
	result.Stats.LaneCount = len(m.LaneOrder)
	result.Stats.FlowCount = len(m.Edges)
	result.Diagnostics.FallbackBranches = m.DanglingCount()
	result.Diagnostics.Ignored = m.Ignored
	return result, nil
}

// Preview builds the graph model and renders it with Graphviz in
// opts.PreviewFormat. It does not run the layout or the router.
func Preview(ctx context.Context, steps []process.Step, opts Options) ([]byte, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	m, err := graph.Build(steps)
	if err != nil {
		return nil, err
	}
	return preview.Render(ctx, preview.ToDOT(m, opts.PreviewOptions()), opts.PreviewFormat)
}

// strictError folds validation issues into one INVALID_INPUT error.
func strictError(issues []process.Issue, cause error) error {
	if len(issues) == 0 {
		return cause
	}
	lines := make([]string, len(issues))
	for i, is := range issues {
		lines[i] = is.String()
	}
	return perrors.New(perrors.ErrCodeInvalidInput, "strict validation failed: %s", strings.Join(lines, "; "))
}

// FallbackMessage is the warning logged when references were redirected.
func FallbackMessage(n int) string {
	return fmt.Sprintf("%d branch(es) resolved to fallback terminal", n)
}
