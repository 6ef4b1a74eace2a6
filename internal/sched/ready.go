// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"sync"

	"code.hybscloud.com/taskkernel/internal/ring"
	"code.hybscloud.com/taskkernel/internal/task"
)

// ReadyQueue is the global ready queue: four MPMC rings, one per
// priority, served by weighted round robin (8:4:2:1). Each ring is
// independently lock-free; the round-robin counters are guarded by a
// small mutex since pop selection is not itself a hot, per-slot
// operation the way a ring push/pop is.
type ReadyQueue struct {
	rings    [4]*ring.MPMC[task.Task]
	mu       sync.Mutex
	counters [4]int
}

// NewReadyQueue creates a ready queue with capPerPriority slots in each
// of the four priority rings.
func NewReadyQueue(capPerPriority int) *ReadyQueue {
	rq := &ReadyQueue{}
	for p := range rq.rings {
		rq.rings[p] = ring.NewMPMC[task.Task](capPerPriority)
	}
	return rq
}

// Push enqueues t into the ring selected by its priority bits.
func (rq *ReadyQueue) Push(t *task.Task) error {
	return rq.rings[t.Priority()].Push(t)
}

// Pop selects a priority by weighted round robin (weights 8:4:2:1) and
// pops from it. If no priority under quota has anything ready, counters
// reset and one final unweighted pass is attempted.
func (rq *ReadyQueue) Pop() (task.Task, error) {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	for pass := 0; pass < 2; pass++ {
		for p := 0; p < len(rq.rings); p++ {
			if rq.counters[p] >= task.PriorityWeights[p] {
				continue
			}
			v, err := rq.rings[p].Pop()
			if err == nil {
				rq.counters[p]++
				return v, nil
			}
		}
		for i := range rq.counters {
			rq.counters[i] = 0
		}
	}

	var zero task.Task
	return zero, ring.ErrWouldBlock
}

// Len returns the combined instantaneous occupancy across all four rings.
func (rq *ReadyQueue) Len() int {
	n := 0
	for _, r := range rq.rings {
		n += r.Len()
	}
	return n
}
