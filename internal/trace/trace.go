// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package trace implements the kernel's per-tenant trace rings: one SPSC
// event ring per tenant, gated by a level filter and a deterministic
// sample rate, so a busy handler can emit TASK_START/TASK_END without the
// cost of an unconditional atomic queue push.
package trace

import (
	"code.hybscloud.com/atomix"

	"code.hybscloud.com/taskkernel/internal/platform"
	"code.hybscloud.com/taskkernel/internal/ring"
	"code.hybscloud.com/taskkernel/internal/task"
)

// Level gates which events are emitted.
type Level int32

const (
	Off Level = iota
	Error
	Warn
	Info
	All
)

// Tracer owns one SPSC event ring per tenant plus the global level/sample gate.
type Tracer struct {
	plat    platform.Platform
	level   atomix.Int64  // holds Level
	thresh  atomix.Uint64 // sample threshold in [0, 1<<32]
	prng    atomix.Uint64 // xorshift state, advanced on every gate check
	tenants []*ring.SPSC[task.Event]
}

// New creates a Tracer with nTenants rings, each of the given capacity.
func New(plat platform.Platform, nTenants, ringCapacity int) *Tracer {
	t := &Tracer{
		plat:    plat,
		tenants: make([]*ring.SPSC[task.Event], nTenants),
	}
	t.level.StoreRelaxed(int64(All))
	t.thresh.StoreRelaxed(1 << 32) // sample rate 1.0 by default
	t.prng.StoreRelaxed(0x9e3779b97f4a7c15)
	for i := range t.tenants {
		t.tenants[i] = ring.NewSPSC[task.Event](ringCapacity)
	}
	return t
}

// SetLevel changes the minimum level that passes the gate.
func (t *Tracer) SetLevel(l Level) {
	t.level.StoreRelease(int64(l))
}

// Level returns the current gate level.
func (t *Tracer) Level() Level {
	return Level(t.level.LoadAcquire())
}

// SetSampleRate maps rate (clamped to [0,1]) to a 32-bit threshold checked
// against a deterministic xorshift PRNG on every gated emit.
func (t *Tracer) SetSampleRate(rate float64) {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	t.thresh.StoreRelease(uint64(rate * float64(1<<32)))
}

// nextXorshift advances the deterministic PRNG used for sampling.
func (t *Tracer) nextXorshift() uint64 {
	x := t.prng.LoadRelaxed()
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	t.prng.StoreRelaxed(x)
	return x
}

// sampled reports whether this emit passes the sample-rate check.
func (t *Tracer) sampled() bool {
	x := t.nextXorshift() & 0xFFFFFFFF
	return x < t.thresh.LoadRelaxed()
}

// Emit records an event for tenant if it passes the level and sample
// gates. A full ring silently drops the event: tracing must never apply
// backpressure to the dispatch path.
func (t *Tracer) Emit(tenant uint16, taskType uint16, evType task.EventType, arg0, arg1 uint32, minLevel Level) {
	if t.Level() < minLevel {
		return
	}
	if int(tenant) >= len(t.tenants) {
		return
	}
	if !t.sampled() {
		return
	}
	ev := task.Event{
		Timestamp: t.plat.MonotonicCounter(),
		Tenant:    tenant,
		TaskType:  taskType,
		EventType: uint32(evType),
		Arg0:      arg0,
		Arg1:      arg1,
	}
	_ = t.tenants[tenant].Push(&ev)
}

// Pop removes one event for tenant. Returns ErrWouldBlock if empty.
func (t *Tracer) Pop(tenant uint16) (task.Event, error) {
	if int(tenant) >= len(t.tenants) {
		var zero task.Event
		return zero, ring.ErrWouldBlock
	}
	return t.tenants[tenant].Pop()
}
