package ledger

import "github.com/speki-dev/cardledger/internal/model"

// color is the three-color DFS marking used by detectCycle, adapted from
// the cycle-detection pass used elsewhere in the retrieval pack for
// dependency graphs: white (unvisited), gray (on the current recursion
// stack), black (fully explored).
type color uint8

const (
	white color = iota
	gray
	black
)

// detectCycle runs a depth-first search over adj (adjacency by Key,
// outgoing edges of any strong or weak kind the caller includes) looking
// for a back edge to a gray node. When it finds one it returns found=true
// with the discovered cycle path, gray-node to gray-node inclusive. The DFS starts
// fresh from every white node so it finds a cycle anywhere in the graph,
// not only ones reachable from a single root.
func detectCycle(adj map[model.Key][]model.Key) (path []model.Key, found bool) {
	colors := make(map[model.Key]color, len(adj))
	var stack []model.Key

	var visit func(model.Key) bool
	visit = func(k model.Key) bool {
		colors[k] = gray
		stack = append(stack, k)

		for _, next := range adj[k] {
			switch colors[next] {
			case white:
				if visit(next) {
					return true
				}
			case gray:
				// Found a back edge; trim stack to the cycle itself.
				for i, s := range stack {
					if s == next {
						path = append([]model.Key(nil), stack[i:]...)
						path = append(path, next)
						return true
					}
				}
			case black:
				// already fully explored, no cycle through here
			}
		}

		stack = stack[:len(stack)-1]
		colors[k] = black
		return false
	}

	// Deterministic-ish iteration is not required for correctness; Go's
	// map iteration order is randomized but detectCycle is only asked
	// whether a cycle exists and, if so, to name one instance of it.
	for k := range adj {
		if colors[k] == white {
			if visit(k) {
				return path, true
			}
		}
	}
	return nil, false
}
