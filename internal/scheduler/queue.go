package scheduler

import "container/heap"

// readyQueue orders ready tasks by (priority desc, created_at asc, id asc).
// Higher priority values are scheduled first; ties break by earliest
// submission, then by ascending ID for determinism.
type readyQueue struct {
	items taskHeap
}

func newReadyQueue() *readyQueue {
	return &readyQueue{}
}

func (q *readyQueue) push(t *Task) {
	heap.Push(&q.items, t)
}

// pop removes and returns the highest-priority ready task, or nil when empty.
func (q *readyQueue) pop() *Task {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*Task)
}

func (q *readyQueue) len() int {
	return len(q.items)
}

type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
