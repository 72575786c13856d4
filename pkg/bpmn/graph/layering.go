package graph

import "github.com/tnpagents/processmate/pkg/process"

// assignLayers computes LayerOf with a longest-path forward pass.
//
// The pass is a depth-first walk from every start event in table order (or
// from the first step when the table has none). Following edge a→b sets
// layer(b) = max(layer(b), layer(a)+1) and re-expands b only when its layer
// grew. Edges back into a step on the current walk path close a cycle and
// are skipped, so a layer is the longest simple forward path found and
// cycles never re-extend it. Dangling edges are not followed. Steps the walk
// never reaches stay at layer 0.
func (m *Model) assignLayers() {
	succ := make(map[string][]string, len(m.Steps))
	for _, e := range m.Edges {
		if !e.Dangling {
			succ[e.SourceID] = append(succ[e.SourceID], e.TargetID)
		}
	}

	var roots []string
	for i := range m.Steps {
		if m.Steps[i].Kind == process.KindStartEvent {
			roots = append(roots, m.Steps[i].ID)
		}
	}
	if len(roots) == 0 {
		roots = append(roots, m.Steps[0].ID)
	}

	limit := len(m.Steps)
	reached := make(map[string]bool, len(m.Steps))
	onPath := make(map[string]bool, len(m.Steps))

	var visit func(id string)
	visit = func(id string) {
		onPath[id] = true
		next := m.LayerOf[id] + 1
		for _, t := range succ[id] {
			if onPath[t] || next >= limit {
				continue
			}
			if !reached[t] || next > m.LayerOf[t] {
				reached[t] = true
				m.LayerOf[t] = next
				visit(t)
			}
		}
		onPath[id] = false
	}

	for _, r := range roots {
		if !reached[r] {
			reached[r] = true
			m.LayerOf[r] = 0
			visit(r)
		}
	}

	for i := range m.Steps {
		if !reached[m.Steps[i].ID] {
			m.LayerOf[m.Steps[i].ID] = 0
		}
	}
}
