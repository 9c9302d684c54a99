package reactor

import "sort"

// Edge is a directed dependency edge from a writer reaction to a reader
// reaction: level(From) must end up strictly less than
// level(To).
type Edge struct {
	From ReactionKey
	To   ReactionKey
}

// LevelAssigner computes a Level for every reaction in a dependency DAG
// such that level(u) < level(v) for every edge u -> v, rejecting cycles.
// This computation is treated as an external builder concern: the
// runtime only consumes the resulting map, so this is an interface
// boundary rather than a runtime dependency. TopologicalLevelAssigner
// below is the one reference implementation pkg/builder uses by default.
type LevelAssigner interface {
	AssignLevels(reactions []ReactionKey, edges []Edge) (map[ReactionKey]Level, error)
}

// TopologicalLevelAssigner assigns levels by longest path from any root:
// level(v) = 1 + max(level(u)) over all edges u -> v, 0 if v has no
// incoming edges. It detects cycles via Kahn's algorithm (if not every
// node is visited, a cycle exists among the unvisited nodes).
type TopologicalLevelAssigner struct{}

func (TopologicalLevelAssigner) AssignLevels(reactions []ReactionKey, edges []Edge) (map[ReactionKey]Level, error) {
	indegree := make(map[ReactionKey]int, len(reactions))
	adj := make(map[ReactionKey][]ReactionKey, len(reactions))
	for _, r := range reactions {
		indegree[r] = 0
	}
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
		indegree[e.To]++
	}

	// Deterministic processing order: sort the initial frontier so level
	// assignment (and therefore the whole graph) doesn't depend on Go's
	// map iteration order.
	var frontier []ReactionKey
	for _, r := range reactions {
		if indegree[r] == 0 {
			frontier = append(frontier, r)
		}
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })

	levels := make(map[ReactionKey]Level, len(reactions))
	for _, r := range frontier {
		levels[r] = 0
	}

	visited := 0
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })
		next := frontier[0]
		frontier = frontier[1:]
		visited++

		for _, to := range adj[next] {
			if cand := levels[next] + 1; cand > levels[to] {
				levels[to] = cand
			}
			indegree[to]--
			if indegree[to] == 0 {
				frontier = append(frontier, to)
			}
		}
	}

	if visited != len(reactions) {
		return nil, newGraphError(ErrCodeCycle, "reaction dependency graph contains a cycle")
	}
	return levels, nil
}

var _ LevelAssigner = TopologicalLevelAssigner{}
