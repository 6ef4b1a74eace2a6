// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"sync"

	"code.hybscloud.com/taskkernel/internal/ring"
	"code.hybscloud.com/taskkernel/internal/task"
)

// LocalQueue is a worker's local queue: SPSC on the pop side (only the
// owning worker ever pops), but several goroutines can target the same
// worker (channel delivery with a worker hint, timer-fire, yield), so the
// push side is serialized behind a mutex. The
// mutex only ever contends with other producers, never with the owning
// worker's pop, so the hot dispatch path stays lock-free.
//
// A push-mutex-wrapped SPSC, rather than a true MPSC ring, keeps the
// queue SPSC on its only truly hot side (the owning worker's pop) while
// still accepting pushes from any producer.
type LocalQueue struct {
	mu        sync.Mutex
	r         *ring.SPSC[task.Task]
	watermark uint64
}

// NewLocalQueue creates a local queue of the given capacity (rounds up to
// a power of two) with a yield-reserve watermark at 75% of capacity.
func NewLocalQueue(capacity int) *LocalQueue {
	r := ring.NewSPSC[task.Task](capacity)
	return &LocalQueue{
		r:         r,
		watermark: uint64(r.Cap()) * 75 / 100,
	}
}

// Push enqueues t, respecting the 75% yield-reserve watermark.
func (q *LocalQueue) Push(t *task.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.r.PushUpTo(t, q.watermark)
}

// PushYield enqueues a yielded task into the reserved headroom, up to full
// physical capacity.
func (q *LocalQueue) PushYield(t *task.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.r.Push(t)
}

// Pop dequeues a task. Must only be called by the owning worker.
func (q *LocalQueue) Pop() (task.Task, error) {
	return q.r.Pop()
}

// Cap returns the physical capacity.
func (q *LocalQueue) Cap() int { return q.r.Cap() }

// Len returns an instantaneous occupancy estimate.
func (q *LocalQueue) Len() int { return q.r.Len() }
