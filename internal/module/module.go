// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package module implements the handler dispatch table: a flat array
// indexed by task type (0..255), per-type poison detection, and the
// dispatch protocol that wraps every handler invocation with trace
// emission.
package module

import (
	"sync"

	"code.hybscloud.com/atomix"

	"code.hybscloud.com/taskkernel/internal/arena"
	"code.hybscloud.com/taskkernel/internal/channel"
	"code.hybscloud.com/taskkernel/internal/metrics"
	"code.hybscloud.com/taskkernel/internal/sched"
	"code.hybscloud.com/taskkernel/internal/task"
	"code.hybscloud.com/taskkernel/internal/trace"
)

// MaxTypes bounds the dispatch table: handler types are 0..255.
const MaxTypes = 256

// PoisonThreshold is the failure count (since registration or the last
// Reset; successes do not clear it) at which a type latches poisoned.
const PoisonThreshold = 16

// Code is a handler's dispatch result.
type Code int

const (
	// OK reports successful completion.
	OK Code = iota
	// Retry asks the worker to re-enqueue the task verbatim; a
	// refcounted payload is NOT released on Retry, since the task is
	// still live.
	Retry
	// Fail reports handler failure.
	Fail
)

// Context is passed to a handler on every dispatch. It carries everything
// a handler needs to inspect its task, allocate or release payloads,
// emit onto channels, yield, or schedule continuations.
type Context struct {
	Task      *task.Task
	Arena     *arena.Arena
	Channels  *channel.Registry
	Trace     *trace.Tracer
	Metrics   *metrics.Counters
	Scheduler *sched.Scheduler
	WorkerID  int
	Tick      uint64
}

// BootContext is passed to a module's Init, once, under the boot sequence.
type BootContext struct {
	Arena     *arena.Arena
	Channels  *channel.Registry
	Trace     *trace.Tracer
	Metrics   *metrics.Counters
	Scheduler *sched.Scheduler
}

// HaltContext is passed to a module's Fini, once, under the halt sequence.
type HaltContext = BootContext

// HandlerFunc is the function a handler registers to run on dispatch.
type HandlerFunc func(ctx *Context) Code

// Handler is one registered task-type handler.
type Handler struct {
	Type      uint32
	Fn        HandlerFunc
	Name      string
	Flags     uint16
	MaxYields int
}

// Def describes a module: its handlers, the channels it expects to use,
// and its lifecycle hooks. Version is packed major.minor.patch as
// (major<<16)|(minor<<8)|patch.
type Def struct {
	Name         string
	Version      uint32
	Handlers     []Handler
	ChannelDecls []string
	Init         func(ctx *BootContext) error
	Fini         func(ctx *HaltContext) error
}

type dispatchEntry struct {
	handler   Handler
	failCount atomix.Uint64
	poisoned  atomix.Bool
}

// Registry is the flat dispatch table plus the registered module list
// (kept in registration order so Fini can run in reverse).
type Registry struct {
	mu      sync.Mutex
	table   [MaxTypes]*dispatchEntry
	modules []Def
}

// New creates an empty dispatch registry.
func New() *Registry {
	return &Registry{}
}

// Register adds every handler of m to the dispatch table. A duplicate
// type (registered by this or any prior module) fails the whole
// registration with ErrExists; nothing is partially applied.
func (r *Registry) Register(m Def) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uint32]bool, len(m.Handlers))
	for _, h := range m.Handlers {
		if h.Type >= MaxTypes {
			return ErrTooManyTypes
		}
		if r.table[h.Type] != nil || seen[h.Type] {
			return ErrExists
		}
		seen[h.Type] = true
	}
	for _, h := range m.Handlers {
		r.table[h.Type] = &dispatchEntry{handler: h}
	}
	r.modules = append(r.modules, m)
	return nil
}

// Modules returns the registered modules in registration order.
func (r *Registry) Modules() []Def {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Def(nil), r.modules...)
}

// Dispatch runs the dispatch protocol for ctx.Task: lookup, poison check,
// TASK_START trace, handler invocation, TASK_END trace, failure
// bookkeeping.
func (r *Registry) Dispatch(ctx *Context) (Code, error) {
	if ctx.Task.Type >= MaxTypes {
		return Fail, ErrNotFound
	}
	entry := r.table[ctx.Task.Type]
	if entry == nil {
		return Fail, ErrNotFound
	}
	if entry.poisoned.LoadAcquire() {
		ctx.Trace.Emit(ctx.Task.Tenant, uint16(ctx.Task.Type), task.EventPoisoned, ctx.Task.Type, 0, trace.Error)
		return Fail, ErrPoisoned
	}

	ctx.Trace.Emit(ctx.Task.Tenant, uint16(ctx.Task.Type), task.EventTaskStart, 0, 0, trace.Info)
	rc := entry.handler.Fn(ctx)
	ctx.Trace.Emit(ctx.Task.Tenant, uint16(ctx.Task.Type), task.EventTaskEnd, uint32(rc), 0, trace.Info)

	if rc == Fail {
		if entry.failCount.AddAcqRel(1) >= PoisonThreshold {
			entry.poisoned.StoreRelease(true)
		}
	}
	return rc, nil
}

// Reset clears the poisoned latch and failure count for typ, if registered.
func (r *Registry) Reset(typ uint32) error {
	if typ >= MaxTypes {
		return ErrTooManyTypes
	}
	entry := r.table[typ]
	if entry == nil {
		return ErrNotFound
	}
	entry.failCount.StoreRelease(0)
	entry.poisoned.StoreRelease(false)
	return nil
}

// Poisoned reports whether typ is currently poisoned.
func (r *Registry) Poisoned(typ uint32) bool {
	if typ >= MaxTypes {
		return false
	}
	entry := r.table[typ]
	if entry == nil {
		return false
	}
	return entry.poisoned.LoadAcquire()
}

// FailCount returns the failure count for typ since registration or the
// last Reset.
func (r *Registry) FailCount(typ uint32) uint64 {
	if typ >= MaxTypes {
		return 0
	}
	entry := r.table[typ]
	if entry == nil {
		return 0
	}
	return entry.failCount.LoadAcquire()
}
