// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sched implements the kernel's scheduling core: the ready queue
// (RQ), per-worker local queues (LQ), the timed event heap (EVQ), the
// yield overflow bucket, and the unified enqueue/yield primitives every
// task entry path funnels through.
package sched

import (
	"code.hybscloud.com/atomix"

	"code.hybscloud.com/taskkernel/internal/metrics"
	"code.hybscloud.com/taskkernel/internal/ring"
	"code.hybscloud.com/taskkernel/internal/task"
)

// Limits are the scheduler's fixed bounds.
type Limits struct {
	MaxWorkers    int
	MaxTenants    int
	RQCapPerPrio  int
	LQCap         int
	EVQCap        int
	OverflowCap   int
	MaxYields     int
	EVQDrainLimit int
}

// DefaultLimits returns the kernel's documented defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxWorkers:    32,
		MaxTenants:    16,
		RQCapPerPrio:  4096,
		LQCap:         1024,
		EVQCap:        65536,
		OverflowCap:   4096,
		MaxYields:     16,
		EVQDrainLimit: 256,
	}
}

// Scheduler owns the RQ, the per-worker LQs, the EVQ, and the overflow
// bucket, plus the global seq counter every enqueued task is stamped
// with.
type Scheduler struct {
	limits   Limits
	seq      atomix.Uint64
	rq       *ReadyQueue
	lqs      []*LocalQueue
	evq      *EventQueue
	overflow *ring.MPMC[task.Task]
	metrics  *metrics.Counters
}

// New creates a scheduler with nWorkers local queues sized per limits.
func New(limits Limits, nWorkers int) *Scheduler {
	lqs := make([]*LocalQueue, nWorkers)
	for i := range lqs {
		lqs[i] = NewLocalQueue(limits.LQCap)
	}
	return &Scheduler{
		limits:   limits,
		rq:       NewReadyQueue(limits.RQCapPerPrio),
		lqs:      lqs,
		evq:      NewEventQueue(limits.EVQCap),
		overflow: ring.NewMPMC[task.Task](limits.OverflowCap),
	}
}

// SetMetrics wires the counters Yield should account against. Optional:
// a scheduler with no counters attached still yields correctly, it just
// doesn't report TasksYielded.
func (s *Scheduler) SetMetrics(m *metrics.Counters) {
	s.metrics = m
}

// Limits returns the scheduler's configured limits.
func (s *Scheduler) Limits() Limits { return s.limits }

// LocalQueue returns the local queue owned by workerID.
func (s *Scheduler) LocalQueue(workerID int) *LocalQueue {
	return s.lqs[workerID]
}

// Overflow returns the shared overflow bucket.
func (s *Scheduler) Overflow() *ring.MPMC[task.Task] { return s.overflow }

// EVQ returns the event heap.
func (s *Scheduler) EVQ() *EventQueue { return s.evq }

// nextSeq assigns the next globally monotonic sequence number.
func (s *Scheduler) nextSeq() uint32 {
	return uint32(s.seq.AddAcqRel(1))
}

// Enqueue assigns the task's seq (on its first enqueue only) and routes
// it: with a non-negative workerHint it tries that worker's LQ first,
// falling back to the RQ on failure (or immediately on workerHint < 0).
// Every entry path — submit, channel drain, dispatch retry, timer-fire —
// funnels through here.
func (s *Scheduler) Enqueue(t *task.Task, workerHint int) error {
	if t.Seq == 0 {
		t.Seq = s.nextSeq()
	}
	if workerHint >= 0 && workerHint < len(s.lqs) {
		if err := s.lqs[workerHint].Push(t); err == nil {
			return nil
		}
	}
	return s.rq.Push(t)
}

// EnqueueAt schedules t onto the event heap to become due at tick.
func (s *Scheduler) EnqueueAt(t *task.Task, tick uint64) error {
	if t.Seq == 0 {
		t.Seq = s.nextSeq()
	}
	return s.evq.Push(tick, t)
}

// Yield re-queues the currently executing task for later continuation.
// It increments yield_count; past maxYields (0 means use the scheduler
// default) it fails with ErrYieldLimit. Otherwise it tries the owning
// worker's yield reserve, then the shared overflow bucket, failing with
// ErrYieldOverflow only if both are full. This circuit breaker is the
// runtime's only defense against a non-progressing handler.
func (s *Scheduler) Yield(t *task.Task, workerID int, maxYields int) error {
	if maxYields <= 0 {
		maxYields = s.limits.MaxYields
	}
	t.YieldCount++
	if int(t.YieldCount) > maxYields {
		return ErrYieldLimit
	}
	if err := s.lqs[workerID].PushYield(t); err == nil {
		if s.metrics != nil {
			s.metrics.Inc(metrics.TasksYielded)
		}
		return nil
	}
	if err := s.overflow.Push(t); err == nil {
		if s.metrics != nil {
			s.metrics.Inc(metrics.TasksYielded)
		}
		return nil
	}
	return ErrYieldOverflow
}

// PopDueEVQ drains up to limit due entries (tick ≤ currentTick) through
// Enqueue with workerID as the hint (its local queue, else the RQ),
// returning the number drained.
func (s *Scheduler) PopDueEVQ(workerID int, currentTick uint64, limit int) int {
	n := 0
	for n < limit {
		t, ok := s.evq.PopDue(currentTick)
		if !ok {
			break
		}
		_ = s.Enqueue(&t, workerID)
		n++
	}
	return n
}

// RQ returns the global ready queue.
func (s *Scheduler) RQ() *ReadyQueue { return s.rq }
