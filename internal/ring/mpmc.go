// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ring

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPMC is a multi-producer multi-consumer bounded queue using per-slot
// sequence numbers (the Vyukov discipline): each slot tracks the sequence
// number it expects next, so a producer/consumer can tell by a single
// load+CAS whether it owns the slot, without blindly claiming a position
// the way an FAA-based SCQ ring would. This gives full ABA safety at the
// cost of a CAS per operation under contention, which is the right trade
// for the ready-queue lanes, overflow bucket, and channel rings: moderate
// contention, strict need for per-slot correctness.
//
// Physical slot count equals capacity (n), not 2n.
type MPMC[T any] struct {
	_        pad
	tail     atomix.Uint64 // producer index
	_        pad
	head     atomix.Uint64 // consumer index
	_        pad
	buffer   []mpmcSlot[T]
	mask     uint64
	capacity uint64
}

type mpmcSlot[T any] struct {
	seq atomix.Uint64
	val T
	_   padShort
}

// NewMPMC creates an MPMC queue. Capacity rounds up to the next power of two.
func NewMPMC[T any](capacity int) *MPMC[T] {
	n := uint64(roundToPow2(capacity))
	q := &MPMC[T]{
		buffer:   make([]mpmcSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}
	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}
	return q
}

// Cap returns the queue capacity.
func (q *MPMC[T]) Cap() int { return int(q.capacity) }

// Len returns an instantaneous occupancy estimate.
func (q *MPMC[T]) Len() int {
	return int(q.tail.LoadAcquire() - q.head.LoadAcquire())
}

// Push enqueues t. Safe for concurrent callers. Returns ErrWouldBlock if full.
func (q *MPMC[T]) Push(t *T) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		slot := &q.buffer[tail&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(tail)

		if diff == 0 {
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.val = *t
				slot.seq.StoreRelease(tail + 1)
				return nil
			}
		} else if diff < 0 {
			return ErrWouldBlock
		}
		sw.Once()
	}
}

// Pop dequeues a value. Safe for concurrent callers. Returns ErrWouldBlock if empty.
func (q *MPMC[T]) Pop() (T, error) {
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		slot := &q.buffer[head&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(head+1)

		if diff == 0 {
			if q.head.CompareAndSwapAcqRel(head, head+1) {
				v := slot.val
				slot.seq.StoreRelease(head + q.capacity)
				return v, nil
			}
		} else if diff < 0 {
			var zero T
			return zero, ErrWouldBlock
		}
		sw.Once()
	}
}
