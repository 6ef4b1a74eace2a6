// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"sync"

	"code.hybscloud.com/taskkernel/internal/task"
)

// EventQueue is the bounded, mutex-guarded event heap: a binary min-heap
// keyed by task.EVQKey(tick, priority, seq). Heap operations aren't
// trivially lock-free and EVQ traffic is expected to be low-rate relative
// to the ready/local queues, so a mutex is the right trade here rather
// than a lock-free priority structure.
type EventQueue struct {
	mu   sync.Mutex
	heap []evqEntry
	cap  int
}

type evqEntry struct {
	key uint64
	t   task.Task
}

// NewEventQueue creates an event queue bounded at capacity entries.
func NewEventQueue(capacity int) *EventQueue {
	return &EventQueue{heap: make([]evqEntry, 0, capacity), cap: capacity}
}

// Push inserts t keyed by (tick, t.Priority(), t.Seq). Fails if the heap
// is at capacity.
func (e *EventQueue) Push(tick uint64, t *task.Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.heap) >= e.cap {
		return ErrEVQFull
	}
	e.heap = append(e.heap, evqEntry{key: task.EVQKey(tick, t.Priority(), t.Seq), t: *t})
	e.siftUp(len(e.heap) - 1)
	return nil
}

// PopDue pops and returns the root entry if its tick is due (≤ currentTick).
func (e *EventQueue) PopDue(currentTick uint64) (task.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.heap) == 0 {
		var zero task.Task
		return zero, false
	}
	root := e.heap[0]
	if root.key>>32 > currentTick {
		var zero task.Task
		return zero, false
	}
	n := len(e.heap) - 1
	e.heap[0] = e.heap[n]
	e.heap = e.heap[:n]
	if n > 0 {
		e.siftDown(0)
	}
	return root.t, true
}

// Len returns the number of queued entries.
func (e *EventQueue) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.heap)
}

func (e *EventQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if e.heap[parent].key <= e.heap[i].key {
			break
		}
		e.heap[parent], e.heap[i] = e.heap[i], e.heap[parent]
		i = parent
	}
}

func (e *EventQueue) siftDown(i int) {
	n := len(e.heap)
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < n && e.heap[left].key < e.heap[smallest].key {
			smallest = left
		}
		if right < n && e.heap[right].key < e.heap[smallest].key {
			smallest = right
		}
		if smallest == i {
			return
		}
		e.heap[smallest], e.heap[i] = e.heap[i], e.heap[smallest]
		i = smallest
	}
}
