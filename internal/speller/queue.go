package speller

import "container/heap"

// searchNode is one partial correction: the input consumed so far, the
// automaton state reached and the surface produced.
type searchNode struct {
	pos    int
	state  uint32
	out    []rune
	cost   float32
	weight float32
	edits  int

	// terminal nodes carry a complete surface waiting to be emitted
	terminal bool
	surface  string
	seq      uint64
}

// less orders by edit cost, then path weight. At equal cost and weight,
// open nodes come before terminal ones so every surface of that rank is
// known before the first is emitted; terminals then sort by surface.
func (a *searchNode) less(b *searchNode) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.weight != b.weight {
		return a.weight < b.weight
	}
	if a.terminal != b.terminal {
		return !a.terminal
	}
	if a.terminal && a.surface != b.surface {
		return a.surface < b.surface
	}
	return a.seq < b.seq
}

type nodeQueue []*searchNode

func (q nodeQueue) Len() int           { return len(q) }
func (q nodeQueue) Less(i, j int) bool { return q[i].less(q[j]) }
func (q nodeQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) {
	*q = append(*q, x.(*searchNode))
}

func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

func (q *nodeQueue) push(n *searchNode) {
	heap.Push(q, n)
}

func (q *nodeQueue) pop() *searchNode {
	return heap.Pop(q).(*searchNode)
}
