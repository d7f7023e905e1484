package read

import (
	"container/heap"

	"github.com/cuemby/nebulastore/internal/codec"
)

// neighborScore is one candidate in a bounded top-K neighbor scan: the
// edge's identity, the numeric value its ranking field was evaluated
// to, and its decoded row (handed back to the caller on the way out).
type neighborScore struct {
	DstID   []byte
	Ranking int64
	Value   float64
	Values  []codec.Value
}

type scoreHeap []neighborScore

func (h scoreHeap) Len() int           { return len(h) }
func (h scoreHeap) Less(i, j int) bool { return h[i].Value < h[j].Value }
func (h scoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x any)        { *h = append(*h, x.(neighborScore)) }
func (h *scoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topKTracker maintains the K highest-scored candidates seen so far
// using a bounded min-heap: pushing past capacity evicts the current
// smallest, so memory never exceeds K regardless of how many
// candidates are scanned. Grounded on
// original_source/src/common/utils/TopKHeap.h's same bounded-eviction
// strategy, reimplemented over container/heap rather than a hand
// rolled array-shuffle.
type topKTracker struct {
	k int
	h scoreHeap
}

func newTopKTracker(k int) *topKTracker {
	t := &topKTracker{k: k}
	heap.Init(&t.h)
	return t
}

// Offer considers one candidate, keeping it only if it ranks among the
// top K seen so far.
func (t *topKTracker) Offer(c neighborScore) {
	if t.k <= 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, c)
		return
	}
	if c.Value > t.h[0].Value {
		heap.Pop(&t.h)
		heap.Push(&t.h, c)
	}
}

// Results drains the tracker in descending score order.
func (t *topKTracker) Results() []neighborScore {
	out := make([]neighborScore, len(t.h))
	tmp := make(scoreHeap, len(t.h))
	copy(tmp, t.h)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&tmp).(neighborScore)
	}
	return out
}
