// Package process defines the editable process table that ProcessMate turns
// into BPMN diagrams.
//
// # Overview
//
// A process table is an ordered list of [Step] rows. Each row names an actor
// (its swimlane), an element kind, and up to two successor references:
//
//	steps:
//	  - {id: s, label: Start, kind: StartEvent, lane: Sales, onYes: t}
//	  - {id: t, label: Qualify lead, kind: Task, lane: Sales, onYes: g}
//	  - {id: g, kind: ExclusiveGateway, lane: Sales, condition: "Qualified?", onYes: e1, onNo: e2}
//	  - {id: e1, label: Won, kind: EndEvent, lane: Sales}
//	  - {id: e2, label: Lost, kind: EndEvent, lane: Sales}
//
// Row order is significant: lanes are ordered by first appearance and ties in
// the layout keep table order.
//
// # Formats
//
// [ReadFile] and [Read] accept JSON or YAML, either a bare array of steps or
// a [Table] object with a title. Rows exported by the legacy table editor
// (French column names such as "étape", "typeBpmn", "acteur", "outputOui")
// are recognised and converted.
//
// # Validation
//
// Decoding only normalises kinds. Referential problems such as dangling
// successors are tolerated by the diagram generator; callers that want to
// reject them up front use [Validate].
package process
