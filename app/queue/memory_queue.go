package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	task Task
	due  time.Time
	seq  uint64
}

type memoryHeap []memoryItem

func (h memoryHeap) Len() int { return len(h) }
func (h memoryHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h memoryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *memoryHeap) Push(x any)   { *h = append(*h, x.(memoryItem)) }
func (h *memoryHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// MemoryQueue is an in-process backend used when redis is not configured.
// Pending tasks are lost on restart.
type MemoryQueue struct {
	mu    sync.Mutex
	items memoryHeap
	seq   uint64
	now   func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{now: time.Now}
}

func (q *MemoryQueue) Enqueue(_ context.Context, task Task, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.items, memoryItem{task: task, due: q.now().Add(delay), seq: q.seq})
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, limit int) ([]Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Task
	for len(q.items) > 0 && len(out) < limit {
		if q.items[0].due.After(now) {
			break
		}
		it := heap.Pop(&q.items).(memoryItem)
		out = append(out, it.task)
	}
	return out, nil
}

// Len returns the number of tasks waiting, due or not
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
