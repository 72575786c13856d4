// Package pkg provides the core libraries for ProcessMate BPMN generation.
//
// # Overview
//
// ProcessMate turns a flat table of process steps (actor, element kind,
// yes/no successors, optional tool) into a BPMN 2.0 document with diagram
// interchange coordinates: vertical swimlanes, elbow-routed connectors and
// branch labels. The pkg directory is organized into three areas:
//
//  1. [process] - The step table: data model, decoding, strict validation
//  2. [bpmn] - The pure engine (graph model, layout, routing, XML, preview)
//  3. Surrounding infrastructure: [pipeline], [cache], [store], [config]
//
// # Architecture
//
// The data flow through ProcessMate:
//
//	Step table (JSON / YAML / HTTP body / store)
//	         ↓
//	    [bpmn/graph] (lookups, edges, layering, fallback terminal)
//	         ↓
//	    [bpmn/layout] (lanes, layers, node boxes; heights from [bpmn/textmetrics])
//	         ↓
//	    [bpmn/route] (orthogonal waypoints, label anchors)
//	         ↓
//	    [bpmn/sink] (BPMN 2.0 XML + DI)
//
// # Quick Start
//
//	import (
//	    "context"
//	    "os"
//
//	    "github.com/tnpagents/processmate/pkg/pipeline"
//	    "github.com/tnpagents/processmate/pkg/process"
//	)
//
//	t, _ := process.ReadFile("achats.json")
//	runner := pipeline.NewRunner(nil, nil, nil) // no cache
//	res, err := runner.Generate(context.Background(), t.Steps, pipeline.Options{Title: t.Title})
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("achats.bpmn", []byte(res.XML), 0o644)
//
// # Main Packages
//
// ## Engine
//
// [bpmn/textmetrics] - Label wrapping and node height estimation from a
// font-calibrated average character width.
//
// [bpmn/graph] - Graph model builder: per-id and per-lane lookups, lane
// order, sequence flows with Oui/Non labels, bounded longest-path layering.
// Dangling references are redirected to a single fallback end event.
//
// [bpmn/layout] - Lane columns, layer rows and node boxes. Geometry is a
// [layout.Config] value rather than package constants.
//
// [bpmn/route] - Connector routing through lane corridors with divergent
// gateway branches.
//
// [bpmn/sink] - BPMN 2.0 XML serialization (collaboration, lanes, flow
// nodes, tool annotations and the diagram section).
//
// [bpmn/preview] - Graphviz DOT export and SVG/PNG rendering for quick
// visual checks.
//
// ## Infrastructure
//
// [pipeline] - Graph → layout → route → XML behind a cache-aware Runner used
// by both the CLI and the HTTP API. Ensures consistent behavior across entry
// points.
//
// [cache] - Diagram and preview cache: file (CLI), Redis (servers) and null
// backends, with content-hash keys.
//
// [store] - Process-table persistence: file and MongoDB backends.
//
// [config] - TOML configuration for defaults, layout geometry and backends.
//
// [errors] - Coded errors mapped to CLI messages and HTTP statuses.
//
// [observability] - Pipeline, cache and API hooks; no-ops unless a server
// installs Prometheus metrics.
//
// # Testing
//
// Run tests:
//
//	go test ./...                # All tests
//	go test ./pkg/bpmn/...       # Engine only
//
// [process]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/process
// [bpmn]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn
// [bpmn/textmetrics]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/textmetrics
// [bpmn/graph]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/graph
// [bpmn/layout]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/layout
// [layout.Config]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/layout#Config
// [bpmn/route]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/route
// [bpmn/sink]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/sink
// [bpmn/preview]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/preview
// [pipeline]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/cache
// [store]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/store
// [config]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/config
// [errors]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/errors
// [observability]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/observability
package pkg
