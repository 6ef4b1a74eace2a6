// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package task defines the wire-level task record that flows between every
// queue in the kernel: the ready queue, local queues, the event queue, the
// overflow bucket, and channel rings. All of those queues copy Task by
// value, so the layout here is a stable contract — offsets must not change
// without a corresponding bump to the module's wire-format expectations.
package task

// Priority selects the ready-queue lane a task is routed through.
// Lower numeric value means higher priority.
type Priority uint8

const (
	Critical Priority = 0
	High     Priority = 1
	Normal   Priority = 2
	Low      Priority = 3
)

// PriorityWeights gives the weighted round-robin service ratio (8:4:2:1)
// used by the ready queue, indexed by Priority.
var PriorityWeights = [4]int{8, 4, 2, 1}

// Flag bits packed into Task.Flags. Bits 0-1 hold the priority.
const (
	flagPriorityMask  uint16 = 0x3
	FlagDeterministic uint16 = 1 << 2
	FlagIdempotent    uint16 = 1 << 3
	FlagEmitTrace     uint16 = 1 << 4
	FlagChannelOrigin uint16 = 1 << 5
	FlagPayloadRefcnt uint16 = 1 << 6
	FlagChannelMsg    uint16 = 1 << 7
)

// Reserved and sentinel channel ids.
const (
	ChannelDirect     uint32 = 0
	ChannelDeadLetter uint32 = 1
)

// Task is the 48-byte, wire-stable task record copied by value between
// queues. Field order is chosen so the struct packs to exactly 48 bytes
// with no implicit padding on 64-bit platforms; callers that need 16-byte
// alignment of the backing storage (e.g. arena-resident queues) must
// allocate the containing slice from a 16-byte-aligned base, since Go's
// struct alignment tracks only its widest field (8 bytes here).
type Task struct {
	PayloadPtr uint64 // opaque address into the arena
	Meta0      uint64 // inline continuation state; the EVQ keeps its target tick separately
	Meta1      uint64 // inline continuation state
	Type       uint32 // handler identifier
	Channel    uint32 // source channel id; 0 = direct submit
	PayloadLen uint32
	Seq        uint32 // assigned exactly once, at first enqueue
	Flags      uint16 // bit 0-1 priority, remaining bits single-bit flags
	Tenant     uint16
	YieldCount uint16 // runtime-incremented on every re-queue
	_          uint16 // pad to 48 bytes
}

// Size is the wire size of Task in bytes, part of the external contract.
const Size = 48

// Priority extracts the priority bits from Flags.
func (t *Task) Priority() Priority {
	return Priority(t.Flags & flagPriorityMask)
}

// SetPriority rewrites the priority bits of Flags, leaving other bits intact.
func (t *Task) SetPriority(p Priority) {
	t.Flags = (t.Flags &^ flagPriorityMask) | uint16(p)&flagPriorityMask
}

// HasFlag reports whether all bits of mask are set.
func (t *Task) HasFlag(mask uint16) bool {
	return t.Flags&mask == mask
}

// SetFlag sets the given bits of Flags.
func (t *Task) SetFlag(mask uint16) {
	t.Flags |= mask
}

// New builds a Task for the given handler type and priority. Seq, Channel
// and YieldCount are left zero; Seq is assigned by the scheduler's unified
// enqueue primitive on first enqueue.
func New(taskType uint32, p Priority) Task {
	var t Task
	t.Type = taskType
	t.SetPriority(p)
	return t
}

// EVQKey packs (tick, priority, seq) into the 64-bit ordering key the event
// queue's min-heap compares on: earlier tick first, then higher priority
// (lower numeric value), then earlier seq — giving FIFO within a
// (tick, priority) pair. Only the low 16 bits of seq enter the key, so
// that FIFO order holds among entries whose seqs are less than 65536 apart.
func EVQKey(tick uint64, p Priority, seq uint32) uint64 {
	return (tick << 32) | (uint64(p&0x3) << 16) | uint64(seq&0xFFFF)
}
