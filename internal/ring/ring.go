// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ring provides the two bounded FIFO primitives the kernel is
// built from: SPSC for per-worker local queues and per-tenant trace rings,
// and MPMC for the shared ready-queue lanes, the overflow bucket, and
// channel rings. Both are lock-free, generic over the element type, and
// copy elements by value; neither allocates on the hot path.
package ring

import "code.hybscloud.com/atomix"

// pad is cache-line padding to prevent false sharing between the producer
// and consumer cursors.
type pad [64]byte

// padShort pads a per-slot sequence counter out to a cache line.
type padShort [64 - 8]byte

// roundToPow2 rounds n up to the next power of two. Capacities below 2
// round up to 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// SPSC is a single-producer single-consumer bounded queue, built on
// Lamport's ring buffer with cached-index optimization: each side caches
// the other's cursor so most pushes/pops never touch the other side's
// atomic, only re-reading it when the cache says the queue looks full or
// empty.
type SPSC[T any] struct {
	_          pad
	head       atomix.Uint64 // consumer cursor
	_          pad
	cachedTail uint64
	_          pad
	tail       atomix.Uint64 // producer cursor
	_          pad
	cachedHead uint64
	_          pad
	buffer     []T
	mask       uint64
}

// NewSPSC creates an SPSC queue. Capacity rounds up to the next power of two.
func NewSPSC[T any](capacity int) *SPSC[T] {
	n := uint64(roundToPow2(capacity))
	return &SPSC[T]{
		buffer: make([]T, n),
		mask:   n - 1,
	}
}

// Cap returns the queue capacity.
func (q *SPSC[T]) Cap() int { return int(q.mask + 1) }

// Len returns an instantaneous occupancy estimate; only exact when no
// concurrent producer/consumer is active.
func (q *SPSC[T]) Len() int {
	return int(q.tail.LoadAcquire() - q.head.LoadAcquire())
}

// Push enqueues t (producer side only). Returns ErrWouldBlock if full.
func (q *SPSC[T]) Push(t *T) error {
	return q.push(t, q.mask)
}

// PushUpTo enqueues t, honoring a watermark below the physical capacity
// (used by the local queue to reserve headroom for yielded tasks). limit is
// the number of occupied slots allowed before Push fails.
func (q *SPSC[T]) PushUpTo(t *T, limit uint64) error {
	return q.push(t, limit-1)
}

func (q *SPSC[T]) push(t *T, occupancyMask uint64) error {
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead > occupancyMask {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead > occupancyMask {
			return ErrWouldBlock
		}
	}
	q.buffer[tail&q.mask] = *t
	q.tail.StoreRelease(tail + 1)
	return nil
}

// Pop dequeues an element (consumer side only). Returns ErrWouldBlock if empty.
func (q *SPSC[T]) Pop() (T, error) {
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			var zero T
			return zero, ErrWouldBlock
		}
	}
	v := q.buffer[head&q.mask]
	q.head.StoreRelease(head + 1)
	return v, nil
}
