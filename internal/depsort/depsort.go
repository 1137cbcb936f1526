// Package depsort orders nodes so that every node comes after the nodes it
// depends on.
package depsort

// InProgress is the index a node holds while its predecessors are being
// resolved. Meeting a node in this state means the graph has a cycle.
const InProgress = -1

// Node is a vertex that must be placed after all of its predecessors.
type Node[T any] interface {
	comparable
	Predecessors() []T
}

// Order returns nodes in dependency order along with the index assigned to
// each node. Independent nodes keep their input order, so callers pre-sort
// the input to get a stable result.
//
// The walk is an iterative depth-first search over an explicit stack. A node
// is visited twice: on the first visit it is marked InProgress and its
// unresolved predecessors are pushed above it; on the second visit it takes
// the next index. Predecessors already InProgress are skipped, which breaks
// cycles at the edge where they are discovered. Within a cycle the result
// therefore has at least one predecessor placed after its dependent; callers
// detect that by comparing indexes.
//
// Predecessors that are not in nodes are ordered as well and included in the
// result.
func Order[T Node[T]](nodes []T) ([]T, map[T]int) {
	index := make(map[T]int, len(nodes))
	ordered := make([]T, 0, len(nodes))

	var stack []T
	for _, n := range nodes {
		if _, seen := index[n]; seen {
			continue
		}
		stack = append(stack[:0], n)
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			idx, seen := index[top]
			switch {
			case !seen:
				index[top] = InProgress
				stack = append(stack, top)
				preds := top.Predecessors()
				for i := len(preds) - 1; i >= 0; i-- {
					if _, ok := index[preds[i]]; !ok {
						stack = append(stack, preds[i])
					}
				}
			case idx == InProgress:
				index[top] = len(ordered)
				ordered = append(ordered, top)
			}
		}
	}
	return ordered, index
}
