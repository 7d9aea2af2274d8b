package search

import "container/heap"

// item is one priority-queue entry: a candidate node with its current
// f-score, kept in a binary min-heap. Modeled directly on the teacher's
// graph-algorithm priority queue (node/priority/index), generalized with a
// tie-break on h then node id (§4.4).
type item struct {
	node  uint32
	g     uint32
	f     uint32
	h     uint32
	index int
}

// openQueue is a container/heap.Interface over item, min-ordered by f then
// h then node id so expansion order is fully deterministic (§4.4
// "Determinism").
type openQueue []*item

func (q openQueue) Len() int { return len(q) }

func (q openQueue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	if q[i].h != q[j].h {
		return q[i].h < q[j].h
	}
	return q[i].node < q[j].node
}

func (q openQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *openQueue) Push(x any) {
	it := x.(*item)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *openQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}

var _ heap.Interface = (*openQueue)(nil)
