// Package queue provides the candidate heaps used by the vector indexes.
package queue

import "container/heap"

// Compile time check to ensure Queue satisfies the heap interface.
var _ heap.Interface = (*Queue)(nil)

// Candidate is a scored index entry.
type Candidate struct {
	ID       uint32
	Distance float32
}

// Queue is a binary heap of candidates ordered by distance.
// A min queue pops the closest candidate first, a max queue the farthest.
type Queue struct {
	max   bool
	items []Candidate
}

// NewMin returns a queue that pops the smallest distance first.
func NewMin(capacity int) *Queue {
	return &Queue{items: make([]Candidate, 0, capacity)}
}

// NewMax returns a queue that pops the largest distance first.
func NewMax(capacity int) *Queue {
	return &Queue{max: true, items: make([]Candidate, 0, capacity)}
}

// Len returns the number of elements in the queue.
func (q *Queue) Len() int { return len(q.items) }

// Less reports whether the element with index i should sort before the element with index j.
func (q *Queue) Less(i, j int) bool {
	if q.max {
		return q.items[i].Distance > q.items[j].Distance
	}
	return q.items[i].Distance < q.items[j].Distance
}

// Swap swaps the elements with indexes i and j.
func (q *Queue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

// Push is part of heap.Interface. Use PushCandidate instead.
func (q *Queue) Push(x any) { q.items = append(q.items, x.(Candidate)) }

// Pop is part of heap.Interface. Use PopCandidate instead.
func (q *Queue) Pop() any {
	n := len(q.items)
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item
}

// PushCandidate inserts c while keeping the heap invariant.
func (q *Queue) PushCandidate(c Candidate) { heap.Push(q, c) }

// PopCandidate removes and returns the top candidate.
func (q *Queue) PopCandidate() (Candidate, bool) {
	if len(q.items) == 0 {
		return Candidate{}, false
	}
	return heap.Pop(q).(Candidate), true
}

// Top returns the top candidate without removing it.
func (q *Queue) Top() (Candidate, bool) {
	if len(q.items) == 0 {
		return Candidate{}, false
	}
	return q.items[0], true
}

// Reset empties the queue and keeps its capacity.
func (q *Queue) Reset() { q.items = q.items[:0] }

// Sorted drains the queue and returns its candidates ordered closest first.
func (q *Queue) Sorted() []Candidate {
	out := make([]Candidate, len(q.items))
	if q.max {
		for i := len(out) - 1; i >= 0; i-- {
			out[i], _ = q.PopCandidate()
		}
		return out
	}
	for i := range out {
		out[i], _ = q.PopCandidate()
	}
	return out
}
