package depsort_test

import (
	"fmt"
	"testing"

	"db-datasync/internal/depsort"

	"github.com/stretchr/testify/require"
)

type node struct {
	name  string
	preds []*node
}

func (n *node) Predecessors() []*node { return n.preds }

func names(nodes []*node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.name
	}
	return out
}

func TestOrderChain(t *testing.T) {
	users := &node{name: "Users"}
	orders := &node{name: "Orders", preds: []*node{users}}
	items := &node{name: "OrderItems", preds: []*node{orders}}

	ordered, index := depsort.Order([]*node{items, orders, users})
	require.Equal(t, []string{"Users", "Orders", "OrderItems"}, names(ordered))
	require.Equal(t, 0, index[users])
	require.Equal(t, 2, index[items])
}

func TestOrderStableForIndependentNodes(t *testing.T) {
	a, b, c := &node{name: "a"}, &node{name: "b"}, &node{name: "c"}
	ordered, _ := depsort.Order([]*node{c, a, b})
	require.Equal(t, []string{"c", "a", "b"}, names(ordered))
}

func TestOrderDiamond(t *testing.T) {
	root := &node{name: "root"}
	left := &node{name: "left", preds: []*node{root}}
	right := &node{name: "right", preds: []*node{root}}
	leaf := &node{name: "leaf", preds: []*node{left, right}}

	ordered, index := depsort.Order([]*node{leaf, right, left, root})
	require.Equal(t, []string{"root", "left", "right", "leaf"}, names(ordered))
	for _, n := range ordered {
		for _, p := range n.preds {
			require.Less(t, index[p], index[n])
		}
	}
}

func TestOrderCycleBreaksExactlyOneEdge(t *testing.T) {
	// A -> C -> B -> A
	a, b, c := &node{name: "A"}, &node{name: "B"}, &node{name: "C"}
	a.preds = []*node{c}
	c.preds = []*node{b}
	b.preds = []*node{a}
	d := &node{name: "D", preds: []*node{a}}

	ordered, index := depsort.Order([]*node{a, b, c, d})
	require.Len(t, ordered, 4)

	violations := 0
	for _, n := range ordered {
		for _, p := range n.preds {
			if index[p] >= index[n] {
				violations++
			}
		}
	}
	require.Equal(t, 1, violations)
	require.Less(t, index[a], index[d])
}

func TestOrderSelfLoop(t *testing.T) {
	n := &node{name: "tree"}
	n.preds = []*node{n}
	ordered, index := depsort.Order([]*node{n})
	require.Equal(t, []string{"tree"}, names(ordered))
	require.Equal(t, 0, index[n])
}

func TestOrderIncludesExternalPredecessors(t *testing.T) {
	outside := &node{name: "outside"}
	inside := &node{name: "inside", preds: []*node{outside}}
	ordered, _ := depsort.Order([]*node{inside})
	require.Equal(t, []string{"outside", "inside"}, names(ordered))
}

func TestOrderDeepChain(t *testing.T) {
	const depth = 200000
	nodes := make([]*node, depth)
	for i := range nodes {
		nodes[i] = &node{name: fmt.Sprint(i)}
		if i > 0 {
			nodes[i].preds = []*node{nodes[i-1]}
		}
	}
	// reverse input so every node has to walk the whole chain
	input := make([]*node, depth)
	for i := range nodes {
		input[i] = nodes[depth-1-i]
	}
	ordered, _ := depsort.Order(input)
	require.Len(t, ordered, depth)
	require.Equal(t, "0", ordered[0].name)
	require.Equal(t, fmt.Sprint(depth-1), ordered[depth-1].name)
}
