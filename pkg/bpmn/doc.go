// Package bpmn groups the pure diagram engine: [textmetrics], [graph],
// [layout], [route], [sink] and [preview]. Every stage is synchronous and
// deterministic; [github.com/tnpagents/processmate/pkg/pipeline] chains them.
//
// [textmetrics]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/textmetrics
// [graph]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/graph
// [layout]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/layout
// [route]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/route
// [sink]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/sink
// [preview]: https://pkg.go.dev/github.com/tnpagents/processmate/pkg/bpmn/preview
package bpmn
