// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package taskkernel

import (
	"errors"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"

	"code.hybscloud.com/taskkernel/internal/arena"
	"code.hybscloud.com/taskkernel/internal/channel"
	"code.hybscloud.com/taskkernel/internal/metrics"
	"code.hybscloud.com/taskkernel/internal/module"
	"code.hybscloud.com/taskkernel/internal/platform"
	"code.hybscloud.com/taskkernel/internal/sched"
	"code.hybscloud.com/taskkernel/internal/task"
	"code.hybscloud.com/taskkernel/internal/trace"
	"code.hybscloud.com/taskkernel/internal/worker"
)

// Config enumerates the three quantities a host must fix at boot: total
// arena size, worker count, and tenant count (trace rings).
type Config struct {
	ArenaSize int
	NWorkers  int
	NTenants  int
}

const (
	defaultTaskObjSize  = task.Size
	defaultTraceObjSize = task.EventSize
	defaultTraceRing    = 4096
)

// Module is the host-facing alias for a registrable module definition.
type Module = module.Def

// Handler is the host-facing alias for one task-type handler.
type Handler = module.Handler

// HandlerFunc is the host-facing alias for a handler's function signature.
type HandlerFunc = module.HandlerFunc

// Context is the host-facing alias for the per-dispatch context a handler
// receives.
type Context = module.Context

// BootContext is the host-facing alias for the context passed to a
// module's Init under the boot sequence.
type BootContext = module.BootContext

// HaltContext is the host-facing alias for the context passed to a
// module's Fini under the halt sequence.
type HaltContext = module.HaltContext

// Task is the host-facing alias for the wire-stable task record.
type Task = task.Task

// Priority is the host-facing alias for a task's scheduling priority.
type Priority = task.Priority

// Re-export the priority constants so callers never need to import
// internal/task directly to build a Task.
const (
	Critical = task.Critical
	High     = task.High
	Normal   = task.Normal
	Low      = task.Low
)

// NewTask builds a Task for taskType at priority p, ready for Submit.
func NewTask(taskType uint32, p Priority) Task {
	return task.New(taskType, p)
}

// ChannelMode is the host-facing alias for P2P/Fanout delivery mode.
type ChannelMode = channel.Mode

const (
	ChannelP2P    = channel.P2P
	ChannelFanout = channel.Fanout
)

// ChannelGuarantee is the host-facing alias for Lossy/Lossless delivery.
type ChannelGuarantee = channel.Guarantee

const (
	ChannelLossy    = channel.Lossy
	ChannelLossless = channel.Lossless
)

// TraceLevel is the host-facing alias for the tracer's severity gate.
type TraceLevel = trace.Level

const (
	TraceOff  = trace.Off
	TraceErr  = trace.Error
	TraceWarn = trace.Warn
	TraceInfo = trace.Info
	TraceAll  = trace.All
)

// MetricID is the host-facing alias for a counter identifier.
type MetricID = metrics.ID

const (
	TasksEnqueued   = metrics.TasksEnqueued
	TasksDequeued   = metrics.TasksDequeued
	TasksDispatched = metrics.TasksDispatched
	TasksFailed     = metrics.TasksFailed
	TasksRetried    = metrics.TasksRetried
	TasksYielded    = metrics.TasksYielded
	AllocBytes      = metrics.AllocBytes
	AllocFails      = metrics.AllocFails
	ChanEmits       = metrics.ChanEmits
	ChanDrops       = metrics.ChanDrops
	ChanFull        = metrics.ChanFull
	WorkerParks     = metrics.WorkerParks
	WorkerWakes     = metrics.WorkerWakes
)

// Kernel is the explicit aggregate the whole runtime hangs off: the
// scheduler, allocator, channel registry, module registry, worker pool,
// trace, and metrics, plus the atomic running flag and tick counter every
// worker reads on dispatch. One Kernel is independent of any other: the
// platform is injected at Boot, not a process-wide singleton, so multiple
// kernels can coexist.
type Kernel struct {
	plat platform.Platform

	arena    *arena.Arena
	trace    *trace.Tracer
	metrics  *metrics.Counters
	sched    *sched.Scheduler
	channels *channel.Registry
	modules  *module.Registry
	pool     *worker.Pool

	cfg     Config
	running atomix.Bool
	tick    atomix.Uint64

	mu     sync.Mutex
	booted bool
}

// New constructs a Kernel bound to plat. Boot must be called before any
// other operation.
func New(plat platform.Platform) *Kernel {
	return &Kernel{plat: plat}
}

// Boot wires the allocator, trace, metrics, scheduler, channel registry,
// and module registry in that order, registers every supplied module,
// calls Init on each under a boot context, starts the worker pool, and
// finally marks the kernel running. Boot order and the BOOT trace after
// start are part of the external contract; do not reorder without reason.
func (k *Kernel) Boot(cfg Config, modules []Module) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.booted {
		return ErrExists
	}
	if cfg.ArenaSize <= 0 || cfg.NWorkers <= 0 || cfg.NTenants <= 0 {
		return ErrInvalid
	}

	a, err := arena.New(k.plat, arena.Config{
		Size:         cfg.ArenaSize,
		TaskObjSize:  defaultTaskObjSize,
		TraceObjSize: defaultTraceObjSize,
	})
	if err != nil {
		return ErrNoMemory
	}

	k.cfg = cfg
	k.arena = a
	k.trace = trace.New(k.plat, cfg.NTenants, defaultTraceRing)
	k.metrics = metrics.New()
	k.sched = sched.New(sched.DefaultLimits(), cfg.NWorkers)
	k.sched.SetMetrics(k.metrics)
	a.SetMetrics(k.metrics)
	k.channels = channel.NewRegistry(k.sched, k.arena, k.trace, k.metrics)
	k.modules = module.New()

	for _, m := range modules {
		if err := k.modules.Register(m); err != nil {
			return errTranslate(err)
		}
	}

	bootCtx := &module.BootContext{
		Arena:     k.arena,
		Channels:  k.channels,
		Trace:     k.trace,
		Metrics:   k.metrics,
		Scheduler: k.sched,
	}
	for _, m := range k.modules.Modules() {
		if m.Init == nil {
			continue
		}
		if err := m.Init(bootCtx); err != nil {
			return err
		}
	}

	k.pool = worker.New(cfg.NWorkers, k.sched, k.modules, k.arena, k.channels, k.trace, k.metrics, k.plat)
	k.pool.Start()

	k.running.StoreRelease(true)
	k.booted = true
	k.trace.Emit(0, 0, task.EventBoot, uint32(cfg.NWorkers), uint32(cfg.NTenants), trace.Info)
	return nil
}

// Halt clears running, emits HALT, stops the worker pool, runs Fini on
// every module in reverse registration order, and releases the arena.
// The scheduler, channel registry, trace, and metrics are dropped with
// the Kernel itself; only the arena holds a platform resource that must
// be explicitly released.
func (k *Kernel) Halt() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.booted {
		return ErrClosed
	}

	k.running.StoreRelease(false)
	k.trace.Emit(0, 0, task.EventHalt, 0, 0, trace.Info)
	k.pool.Stop()

	mods := k.modules.Modules()
	haltCtx := &module.HaltContext{
		Arena:     k.arena,
		Channels:  k.channels,
		Trace:     k.trace,
		Metrics:   k.metrics,
		Scheduler: k.sched,
	}
	for i := len(mods) - 1; i >= 0; i-- {
		if mods[i].Fini == nil {
			continue
		}
		_ = mods[i].Fini(haltCtx)
	}

	k.arena.Close()
	k.booted = false
	return nil
}

// Submit enqueues t for dispatch. It requires the kernel to be running,
// routes through the scheduler's unified enqueue primitive with no worker
// hint (so the task lands in the RQ), and wakes one parked worker.
func (k *Kernel) Submit(t *Task) error {
	if !k.running.LoadAcquire() {
		return ErrClosed
	}
	if err := k.sched.Enqueue(t, -1); err != nil {
		return ErrFull
	}
	k.metrics.Inc(metrics.TasksEnqueued)
	k.pool.WakeAny()
	return nil
}

// TickAdvance atomically increments the kernel's tick and propagates it
// to every worker, so EVQ consumers can discover newly due entries.
func (k *Kernel) TickAdvance() uint64 {
	next := k.tick.AddAcqRel(1)
	k.pool.TickAdvance(next)
	return next
}

// Tick returns the current kernel tick.
func (k *Kernel) Tick() uint64 {
	return k.tick.LoadAcquire()
}

// errTranslate maps an internal/channel or internal/module sentinel to
// its host-facing equivalent, so callers only ever need to compare
// against this package's own error values. iox.ErrWouldBlock (ErrFull's
// underlying value) and nil pass through unchanged.
func errTranslate(err error) error {
	switch {
	case err == nil, errors.Is(err, iox.ErrWouldBlock):
		return err
	case errors.Is(err, channel.ErrNotFound), errors.Is(err, module.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, channel.ErrExists), errors.Is(err, module.ErrExists):
		return ErrExists
	case errors.Is(err, channel.ErrClosed):
		return ErrClosed
	case errors.Is(err, channel.ErrInvalid), errors.Is(err, channel.ErrSystemChannel):
		return ErrInvalid
	case errors.Is(err, channel.ErrAlreadyBound):
		return ErrAlreadyBound
	case errors.Is(err, channel.ErrTypeMismatch):
		return ErrTypeMismatch
	case errors.Is(err, module.ErrPoisoned):
		return ErrPoisoned
	case errors.Is(err, module.ErrTooManyTypes):
		return ErrInvalid
	default:
		return err
	}
}

// ChannelOpen opens a new channel. slots rounds up to a power of two
// inside the registry; 0 defaults to 1024.
func (k *Kernel) ChannelOpen(name string, mode ChannelMode, guarantee ChannelGuarantee, msgType uint32, slots int) (uint32, error) {
	id, err := k.channels.Open(name, mode, guarantee, msgType, slots)
	return id, errTranslate(err)
}

// ChannelEmit delivers t onto channel id.
func (k *Kernel) ChannelEmit(id uint32, t *Task) error {
	return errTranslate(k.channels.Emit(id, t))
}

// ChannelSub registers moduleID as a subscriber of channel id, with an
// optional worker hint (-1 = any).
func (k *Kernel) ChannelSub(id uint32, moduleID uint32, workerHint int) error {
	return errTranslate(k.channels.Subscribe(id, moduleID, workerHint))
}

// ChannelClose closes channel id. Ids 0 and 1 (direct and dead-letter)
// refuse.
func (k *Kernel) ChannelClose(id uint32) error {
	return errTranslate(k.channels.Close(id))
}

// ChannelDrain pops up to limit queued entries from channel id and
// delivers them, returning the number drained.
func (k *Kernel) ChannelDrain(id uint32, limit int) (int, error) {
	n, err := k.channels.Drain(id, limit)
	return n, errTranslate(err)
}

// MetricsRead reads one counter by id.
func (k *Kernel) MetricsRead(id MetricID) uint64 {
	return k.metrics.Read(id)
}

// MetricsSnapshot reads every counter at once.
func (k *Kernel) MetricsSnapshot() [metrics.Count]uint64 {
	return k.metrics.Snapshot()
}

// TracePop pops one trace event for tenant, or ErrEmpty if its ring has
// nothing queued.
func (k *Kernel) TracePop(tenant uint16) (task.Event, error) {
	ev, err := k.trace.Pop(tenant)
	if err != nil {
		return ev, ErrEmpty
	}
	return ev, nil
}

// TraceSetLevel sets the tracer's severity gate.
func (k *Kernel) TraceSetLevel(level TraceLevel) {
	k.trace.SetLevel(level)
}

// TraceSetSampleRate sets the tracer's sampling rate in [0,1].
func (k *Kernel) TraceSetSampleRate(rate float64) {
	k.trace.SetSampleRate(rate)
}

// ModuleReset clears the poison latch and failure count for taskType.
func (k *Kernel) ModuleReset(taskType uint32) error {
	return errTranslate(k.modules.Reset(taskType))
}

// ModulePoisoned reports whether taskType is currently poisoned.
func (k *Kernel) ModulePoisoned(taskType uint32) bool {
	return k.modules.Poisoned(taskType)
}

// AllocStats reads the arena's accumulated allocation counters.
func (k *Kernel) AllocStats() arena.Stats {
	return k.arena.Stats()
}
