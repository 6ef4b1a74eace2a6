// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package worker implements the kernel's worker pool: each worker runs a
// gather-dispatch-park loop over its own local queue, the shared overflow
// bucket, the ready queue, and the event queue's due entries, in that
// order.
package worker

import (
	"time"

	"code.hybscloud.com/atomix"

	"code.hybscloud.com/taskkernel/internal/arena"
	"code.hybscloud.com/taskkernel/internal/channel"
	"code.hybscloud.com/taskkernel/internal/metrics"
	"code.hybscloud.com/taskkernel/internal/module"
	"code.hybscloud.com/taskkernel/internal/platform"
	"code.hybscloud.com/taskkernel/internal/sched"
	"code.hybscloud.com/taskkernel/internal/task"
	"code.hybscloud.com/taskkernel/internal/trace"
)

// parkTimeout bounds how long a worker waits for a wake signal before
// re-checking its queues; this guards against a missed wake.
const parkTimeout = time.Millisecond

// waiter is implemented by platforms that can hand a worker loop a
// channel to block on (the hosted deployment). It is not part of the
// platform.Platform contract itself: wake_worker is the signal side;
// how a given deployment observes that signal is deployment-specific.
// Platforms that don't implement it fall back to a short sleep-poll.
type waiter interface {
	WakeChan(workerID int) <-chan struct{}
}

// Pool owns N workers, each running the loop below against the shared
// scheduler, module registry, arena, channel registry, and trace/metrics.
type Pool struct {
	n        int
	sched    *sched.Scheduler
	modules  *module.Registry
	arena    *arena.Arena
	channels *channel.Registry
	trace    *trace.Tracer
	metrics  *metrics.Counters
	plat     platform.Platform

	running atomix.Bool
	ticks   []atomix.Uint64
	parked  []atomix.Bool
}

// New creates a worker pool of n workers.
func New(n int, s *sched.Scheduler, mods *module.Registry, a *arena.Arena, ch *channel.Registry, tr *trace.Tracer, m *metrics.Counters, plat platform.Platform) *Pool {
	return &Pool{
		n:        n,
		sched:    s,
		modules:  mods,
		arena:    a,
		channels: ch,
		trace:    tr,
		metrics:  m,
		plat:     plat,
		ticks:    make([]atomix.Uint64, n),
		parked:   make([]atomix.Bool, n),
	}
}

// Start launches all N worker goroutines.
func (p *Pool) Start() {
	p.running.StoreRelease(true)
	for i := 0; i < p.n; i++ {
		go p.loop(i)
	}
}

// Stop clears running and wakes every worker so each observes the flag
// at its next loop check. It returns right after sending the wakes: it
// does not wait for the worker goroutines to exit, and a worker that is
// mid-dispatch finishes that dispatch after Stop has returned.
func (p *Pool) Stop() {
	p.running.StoreRelease(false)
	for i := 0; i < p.n; i++ {
		p.plat.WakeWorker(i)
	}
}

// TickAdvance propagates tick to every worker, for EVQ due-entry discovery.
func (p *Pool) TickAdvance(tick uint64) {
	for i := range p.ticks {
		p.ticks[i].StoreRelease(tick)
	}
}

// WakeAny signals the first parked worker it finds, or worker 0 if none
// appear parked (the signal is idempotent, so this is always safe).
func (p *Pool) WakeAny() {
	for i := 0; i < p.n; i++ {
		if p.parked[i].LoadAcquire() {
			p.plat.WakeWorker(i)
			p.metrics.Inc(metrics.WorkerWakes)
			return
		}
	}
	p.plat.WakeWorker(0)
	p.metrics.Inc(metrics.WorkerWakes)
}

func (p *Pool) loop(workerID int) {
	lq := p.sched.LocalQueue(workerID)
	limits := p.sched.Limits()

	for p.running.LoadAcquire() {
		got := false

		if t, err := lq.Pop(); err == nil {
			p.metrics.Inc(metrics.TasksDequeued)
			p.dispatch(workerID, &t)
			got = true
		} else if t, err := p.sched.Overflow().Pop(); err == nil {
			p.metrics.Inc(metrics.TasksDequeued)
			p.dispatch(workerID, &t)
			got = true
		} else if t, err := p.sched.RQ().Pop(); err == nil {
			p.metrics.Inc(metrics.TasksDequeued)
			p.dispatch(workerID, &t)
			got = true
		} else {
			tick := p.ticks[workerID].LoadAcquire()
			got = p.sched.PopDueEVQ(workerID, tick, limits.EVQDrainLimit) > 0
		}

		if got {
			continue
		}

		p.parked[workerID].StoreRelease(true)
		p.metrics.Inc(metrics.WorkerParks)
		p.park(workerID)
		p.parked[workerID].StoreRelease(false)
	}
}

func (p *Pool) park(workerID int) {
	if w, ok := p.plat.(waiter); ok {
		select {
		case <-w.WakeChan(workerID):
		case <-time.After(parkTimeout):
		}
		return
	}
	time.Sleep(parkTimeout)
}

// dispatch invokes the module registry and applies the kernel's
// success/retry/failure bookkeeping, including the refcount release
// rule: OK and Fail release a refcounted payload; Retry does not, since
// the task is still live.
func (p *Pool) dispatch(workerID int, t *task.Task) {
	p.metrics.Inc(metrics.TasksDispatched)

	ctx := &module.Context{
		Task:      t,
		Arena:     p.arena,
		Channels:  p.channels,
		Trace:     p.trace,
		Metrics:   p.metrics,
		Scheduler: p.sched,
		WorkerID:  workerID,
		Tick:      p.ticks[workerID].LoadAcquire(),
	}

	hasRefcount := t.HasFlag(task.FlagPayloadRefcnt)
	rc, err := p.modules.Dispatch(ctx)

	switch {
	case err != nil:
		p.metrics.Inc(metrics.TasksFailed)
		p.trace.Emit(t.Tenant, uint16(t.Type), task.EventTaskFail, uint32(rc), 0, trace.Warn)
		if hasRefcount {
			p.arena.PayloadRelease(uintptr(t.PayloadPtr))
		}
	case rc == module.Retry:
		p.metrics.Inc(metrics.TasksRetried)
		p.trace.Emit(t.Tenant, uint16(t.Type), task.EventTaskRetry, 0, 0, trace.Info)
		_ = p.sched.Enqueue(t, -1)
	default: // module.OK or module.Fail
		if rc == module.Fail {
			p.metrics.Inc(metrics.TasksFailed)
			p.trace.Emit(t.Tenant, uint16(t.Type), task.EventTaskFail, uint32(rc), 0, trace.Warn)
		}
		if hasRefcount {
			p.arena.PayloadRelease(uintptr(t.PayloadPtr))
		}
	}
}
