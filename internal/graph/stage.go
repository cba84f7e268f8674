package graph

import (
	"github.com/pkg/errors"
)

// Sort stages the graph by topological depth.
//
// Seeds are user-fed data symbols without inbound edges. A depth-first walk
// from every seed records, for each symbol, the greatest depth at which it is
// reached. Parameter and default symbols without inbound edges are seeded at
// depth 0 afterwards. Sort panics when there is no seed, when a cycle is found
// or when a symbol stays unreachable.
func (g *Graph) Sort() {
	var seeds []SymbolID
	for _, s := range g.symbols {
		if s.IsData() && s.source == SourceUser && len(s.inbound) == 0 {
			seeds = append(seeds, s.id)
		}
	}
	if len(seeds) == 0 {
		panic(errors.Errorf("graph %q: no user-fed data symbol without inbound edges to start staging from", g.cfg.Label))
	}

	depth := make([]int, len(g.symbols))
	for i := range depth {
		depth[i] = -1
	}
	onPath := make([]bool, len(g.symbols))

	var visit func(id SymbolID, d int)
	visit = func(id SymbolID, d int) {
		if onPath[id] {
			panic(errors.Errorf("graph %q: cycle through symbol %s", g.cfg.Label, g.symbols[id]))
		}
		if depth[id] >= d {
			return
		}
		depth[id] = d
		onPath[id] = true
		for _, next := range g.symbols[id].outbound {
			visit(next, d+1)
		}
		onPath[id] = false
	}

	for _, id := range seeds {
		visit(id, 0)
	}
	for _, s := range g.symbols {
		if depth[s.id] < 0 && s.IsData() && len(s.inbound) == 0 &&
			(s.source == SourceParameter || s.source == SourceDefault) {
			visit(s.id, 0)
		}
	}

	maxDepth := 0
	for id, d := range depth {
		if d < 0 {
			panic(errors.Errorf("graph %q: symbol %s is unreachable from every seed (cycle or dangling computed symbol)",
				g.cfg.Label, g.symbols[id]))
		}
		maxDepth = max(maxDepth, d)
	}

	stages := make([][]SymbolID, maxDepth+1)
	for id, d := range depth {
		stages[d] = append(stages[d], SymbolID(id))
	}

	g.depth = depth
	g.stages = stages
	g.state = StateSorted
	g.logger.Debug("staged graph", "symbols", len(g.symbols), "stages", len(stages))
}

// Stages returns the symbol ids grouped by stage, shallowest first.
// It is empty until Sort runs.
func (g *Graph) Stages() [][]SymbolID {
	out := make([][]SymbolID, len(g.stages))
	for i, s := range g.stages {
		out[i] = append([]SymbolID(nil), s...)
	}
	return out
}

// StageOf returns the stage of a symbol, or -1 before staging.
func (g *Graph) StageOf(id SymbolID) int {
	if g.state == StateUnsorted || int(id) >= len(g.depth) {
		return -1
	}
	return g.depth[id]
}

// stageOps returns the operator symbols of a stage.
func (g *Graph) stageOps(stage int) []*Symbol {
	var ops []*Symbol
	for _, id := range g.stages[stage] {
		if s := g.symbols[id]; !s.IsData() {
			ops = append(ops, s)
		}
	}
	return ops
}
