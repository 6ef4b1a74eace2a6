// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package task

// EventType enumerates the trace events the dispatch path and channel
// registry emit.
type EventType uint32

const (
	EventBoot EventType = iota
	EventHalt
	EventTaskStart
	EventTaskEnd
	EventPoisoned
	EventChanFull
	EventChanDrop
	EventTaskFail
	EventTaskRetry
	EventTaskYield
)

// Event is the 32-byte, 16-byte-aligned trace record written to a tenant's
// trace ring. Like Task, it is copied by value and field order is chosen to
// avoid implicit padding.
type Event struct {
	Timestamp uint64 // monotonic, from the platform clock
	Tenant    uint16
	TaskType  uint16
	EventType uint32
	Arg0      uint32
	Arg1      uint32
	_         [8]byte // pad to 32 bytes
}

// EventSize is the wire size of Event in bytes.
const EventSize = 32
