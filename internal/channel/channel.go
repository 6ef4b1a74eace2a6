// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package channel implements the kernel's channel registry: named typed
// channels in P2P or fan-out mode, LOSSY or LOSSLESS delivery, backpressure
// with a priority reserve, and a reserved dead-letter channel for
// undeliverable messages.
package channel

import (
	"sync"

	"code.hybscloud.com/atomix"

	"code.hybscloud.com/taskkernel/internal/arena"
	"code.hybscloud.com/taskkernel/internal/metrics"
	"code.hybscloud.com/taskkernel/internal/ring"
	"code.hybscloud.com/taskkernel/internal/sched"
	"code.hybscloud.com/taskkernel/internal/task"
	"code.hybscloud.com/taskkernel/internal/trace"
)

// Mode selects point-to-point or fan-out delivery.
type Mode int

const (
	P2P Mode = iota
	Fanout
)

// Guarantee selects drop-on-backpressure or dead-letter-on-backpressure
// delivery.
type Guarantee int

const (
	Lossy Guarantee = iota
	Lossless
)

// MaxChannels bounds total channel count, including the two reserved ids.
const MaxChannels = 256

// MaxSubscribers bounds a fan-out channel's subscriber count.
const MaxSubscribers = 32

// DeadLetterName is the reserved name of the dead-letter channel.
const DeadLetterName = "sys.dropped"

// Subscriber is one registered consumer of a channel.
type Subscriber struct {
	ModuleID   uint32
	WorkerHint int // -1 = any worker
	Active     bool
}

// Channel is one open channel's full state.
type Channel struct {
	id        uint32
	name      string
	mode      Mode
	guarantee Guarantee
	msgType   uint32

	ring *ring.MPMC[task.Task]

	mu   sync.Mutex
	subs []*Subscriber

	open      atomix.Bool
	emitCount atomix.Uint64
	dropCount atomix.Uint64
}

// ID returns the channel's id.
func (c *Channel) ID() uint32 { return c.id }

// Name returns the channel's name.
func (c *Channel) Name() string { return c.name }

// EmitCount returns the number of successful emits.
func (c *Channel) EmitCount() uint64 { return c.emitCount.LoadAcquire() }

// DropCount returns the number of dropped deliveries.
func (c *Channel) DropCount() uint64 { return c.dropCount.LoadAcquire() }

// Registry owns every open channel plus the reserved direct and
// dead-letter ids.
type Registry struct {
	sched   *sched.Scheduler
	arena   *arena.Arena
	trace   *trace.Tracer
	metrics *metrics.Counters

	mu       sync.Mutex
	channels [MaxChannels]*Channel
	names    map[string]uint32
}

// NewRegistry creates a registry wired to the scheduler, allocator, trace,
// and metrics it needs to deliver and account for messages. It opens the
// reserved dead-letter channel (id 1) immediately; id 0 is the direct
// marker and never backed by a Channel.
func NewRegistry(s *sched.Scheduler, a *arena.Arena, tr *trace.Tracer, m *metrics.Counters) *Registry {
	r := &Registry{
		sched:   s,
		arena:   a,
		trace:   tr,
		metrics: m,
		names:   make(map[string]uint32),
	}
	dl := &Channel{
		id:        task.ChannelDeadLetter,
		name:      DeadLetterName,
		mode:      Fanout,
		guarantee: Lossy,
		ring:      ring.NewMPMC[task.Task](1024),
	}
	dl.open.StoreRelease(true)
	r.channels[task.ChannelDeadLetter] = dl
	r.names[DeadLetterName] = task.ChannelDeadLetter
	return r
}

// Open assigns the next free id (2..255), opens an MPMC ring of the
// requested slot count (rounded to a power of two, default 1024 when 0),
// and returns the new id.
func (r *Registry) Open(name string, mode Mode, guarantee Guarantee, msgType uint32, slots int) (uint32, error) {
	if name == "" {
		return 0, ErrInvalid
	}
	if (mode != P2P && mode != Fanout) || (guarantee != Lossy && guarantee != Lossless) {
		return 0, ErrInvalid
	}
	if slots <= 0 {
		slots = 1024
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[name]; exists {
		return 0, ErrExists
	}
	id := uint32(0)
	found := false
	for i := uint32(2); i < MaxChannels; i++ {
		if r.channels[i] == nil {
			id = i
			found = true
			break
		}
	}
	if !found {
		return 0, ErrFull
	}

	ch := &Channel{
		id:        id,
		name:      name,
		mode:      mode,
		guarantee: guarantee,
		msgType:   msgType,
		ring:      ring.NewMPMC[task.Task](slots),
	}
	ch.open.StoreRelease(true)
	r.channels[id] = ch
	r.names[name] = id
	return id, nil
}

func (r *Registry) lookup(id uint32) *Channel {
	if id >= MaxChannels {
		return nil
	}
	r.mu.Lock()
	ch := r.channels[id]
	r.mu.Unlock()
	return ch
}

// Subscribe registers moduleID as a consumer of channel id, preferring
// worker workerHint (-1 = any). P2P refuses a second subscriber; fan-out
// accepts up to MaxSubscribers.
func (r *Registry) Subscribe(id uint32, moduleID uint32, workerHint int) error {
	ch := r.lookup(id)
	if ch == nil {
		return ErrNotFound
	}
	if !ch.open.LoadAcquire() {
		return ErrClosed
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.mode == P2P && len(ch.subs) >= 1 {
		return ErrAlreadyBound
	}
	if ch.mode == Fanout && len(ch.subs) >= MaxSubscribers {
		return ErrFull
	}
	ch.subs = append(ch.subs, &Subscriber{ModuleID: moduleID, WorkerHint: workerHint, Active: true})
	return nil
}

// reserve returns the number of slots held back for CRITICAL emits: the
// top 10% of capacity, with at least one slot of slack so a CRITICAL
// producer can never be starved exactly at the boundary.
func reserve(capacity int) int {
	n := capacity / 10
	if n < 1 {
		n = 1
	}
	return n
}

// Emit delivers t onto channel id. Non-CRITICAL emits fail with ErrFull
// once the ring reaches its priority reserve; a P2P channel with one
// active subscriber first tries to enqueue t straight to that subscriber,
// and otherwise t is pushed onto the channel's ring.
func (r *Registry) Emit(id uint32, t *task.Task) error {
	ch := r.lookup(id)
	if ch == nil {
		return ErrInvalid
	}
	if !ch.open.LoadAcquire() {
		return ErrClosed
	}
	if ch.msgType != 0 && t.Type != ch.msgType {
		return ErrTypeMismatch
	}

	t.Channel = id
	t.SetFlag(task.FlagChannelMsg)

	capacity := ch.ring.Cap()
	if ch.ring.Len() >= capacity-reserve(capacity) && t.Priority() != task.Critical {
		r.metrics.Inc(metrics.ChanFull)
		r.trace.Emit(t.Tenant, uint16(t.Type), task.EventChanFull, id, 0, trace.Warn)
		return ErrFull
	}

	ch.mu.Lock()
	subsSnapshot := append([]*Subscriber(nil), ch.subs...)
	ch.mu.Unlock()

	if ch.mode == P2P && len(subsSnapshot) == 1 && subsSnapshot[0].Active {
		if err := r.sched.Enqueue(t, subsSnapshot[0].WorkerHint); err == nil {
			ch.emitCount.AddAcqRel(1)
			r.metrics.Inc(metrics.ChanEmits)
			return nil
		}
		// Direct delivery failed (both LQ and RQ full): fall through to
		// the buffered ring path below instead of failing the emit.
	}

	if err := ch.ring.Push(t); err != nil {
		return ErrFull
	}
	ch.emitCount.AddAcqRel(1)
	r.metrics.Inc(metrics.ChanEmits)

	if ch.mode == P2P && len(subsSnapshot) >= 1 {
		r.Drain(id, 1)
	}
	return nil
}

// Drain pops up to limit tasks from channel id's ring and delivers them
// to its subscribers, returning the number popped.
func (r *Registry) Drain(id uint32, limit int) (int, error) {
	ch := r.lookup(id)
	if ch == nil {
		return 0, ErrNotFound
	}

	ch.mu.Lock()
	subsSnapshot := append([]*Subscriber(nil), ch.subs...)
	ch.mu.Unlock()

	n := 0
	for n < limit {
		t, err := ch.ring.Pop()
		if err != nil {
			break
		}
		n++
		r.deliver(ch, &t, subsSnapshot)
	}
	return n, nil
}

func (r *Registry) deliver(ch *Channel, t *task.Task, subs []*Subscriber) {
	hasRefcount := t.HasFlag(task.FlagPayloadRefcnt)

	if ch.mode == P2P {
		if len(subs) == 0 || !subs[0].Active {
			r.routeDeadLetter(t)
			return
		}
		if err := r.sched.Enqueue(t, subs[0].WorkerHint); err != nil {
			r.routeDeadLetter(t)
		}
		return
	}

	active := subs[:0:0]
	for _, sub := range subs {
		if sub.Active {
			active = append(active, sub)
		}
	}

	k := len(active)
	if k == 0 {
		r.routeDeadLetter(t)
		return
	}
	if hasRefcount && k > 1 {
		for i := 0; i < k-1; i++ {
			r.arena.PayloadRetain(uintptr(t.PayloadPtr))
		}
	}
	for _, sub := range active {
		cp := *t
		if err := r.sched.Enqueue(&cp, sub.WorkerHint); err != nil {
			if hasRefcount {
				r.arena.PayloadRelease(uintptr(t.PayloadPtr))
			}
			switch ch.guarantee {
			case Lossy:
				ch.dropCount.AddAcqRel(1)
				r.metrics.Inc(metrics.ChanDrops)
				r.trace.Emit(t.Tenant, uint16(t.Type), task.EventChanDrop, ch.id, 0, trace.Warn)
			default: // Lossless
				r.routeDeadLetter(&cp)
			}
		}
	}
}

// routeDeadLetter pushes t onto the dead-letter channel's ring. Routing
// never blocks: on a full ring the drop is silently counted.
func (r *Registry) routeDeadLetter(t *task.Task) {
	dl := r.channels[task.ChannelDeadLetter]
	if err := dl.ring.Push(t); err != nil {
		r.metrics.Inc(metrics.ChanDrops)
		dl.dropCount.AddAcqRel(1)
	}
}

// Close clears the open flag; ids 0 and 1 refuse. Entries already queued
// remain and may still be drained.
func (r *Registry) Close(id uint32) error {
	if id == task.ChannelDirect || id == task.ChannelDeadLetter {
		return ErrSystemChannel
	}
	ch := r.lookup(id)
	if ch == nil {
		return ErrNotFound
	}
	ch.open.StoreRelease(false)
	return nil
}

// Lookup returns the channel for id, or nil if none is open there.
func (r *Registry) Lookup(id uint32) *Channel {
	return r.lookup(id)
}
