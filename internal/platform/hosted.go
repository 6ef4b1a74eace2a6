// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package platform

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/agilira/go-timecache"
)

// Hosted implements Platform for the hosted deployment, where workers are
// goroutines over OS threads rather than CPUs affinitized on bare metal.
// Memory is served from regular Go heap allocations (the arena above it
// never holds live pointers into Go-managed memory past a GC-visible
// boundary other than the byte slice kept alive here), and monotonic time
// comes from a cached timecache.TimeCache to avoid a syscall per read on
// the dispatch hot path.
type Hosted struct {
	clock *timecache.TimeCache

	mu      sync.Mutex
	regions map[uintptr][]byte // keeps allocations reachable for the GC

	wakeMu sync.Mutex
	wake   []chan struct{}
}

// NewHosted creates a Hosted platform with room for nWorkers wake channels.
func NewHosted(nWorkers int) *Hosted {
	wake := make([]chan struct{}, nWorkers)
	for i := range wake {
		wake[i] = make(chan struct{}, 1)
	}
	return &Hosted{
		clock:   timecache.NewWithResolution(time.Millisecond),
		regions: make(map[uintptr][]byte),
		wake:    wake,
	}
}

// AllocAligned satisfies Platform by over-allocating and slicing to the
// requested alignment boundary. The memory is zeroed because every call
// makes a fresh slice, which Go's allocator zeroes.
func (h *Hosted) AllocAligned(size int, align int) (uintptr, error) {
	if size <= 0 {
		return 0, fmt.Errorf("taskkernel: alloc size must be positive")
	}
	buf := make([]byte, size+align)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	aligned := (base + uintptr(align) - 1) &^ (uintptr(align) - 1)

	h.mu.Lock()
	h.regions[aligned] = buf
	h.mu.Unlock()

	return aligned, nil
}

// Free releases the tracked region so the GC can reclaim it.
func (h *Hosted) Free(addr uintptr, _ int) {
	h.mu.Lock()
	delete(h.regions, addr)
	h.mu.Unlock()
}

// WakeWorker sends an idempotent wake signal: if one is already pending the
// send is dropped rather than blocking.
func (h *Hosted) WakeWorker(workerID int) {
	h.wakeMu.Lock()
	ch := h.wake[workerID]
	h.wakeMu.Unlock()
	select {
	case ch <- struct{}{}:
	default:
	}
}

// WakeChan exposes the wake channel for workerID so the worker loop can
// select on it with a park timeout.
func (h *Hosted) WakeChan(workerID int) <-chan struct{} {
	h.wakeMu.Lock()
	ch := h.wake[workerID]
	h.wakeMu.Unlock()
	return ch
}

// MonotonicCounter returns nanoseconds since the Unix epoch from the cached
// clock, which never decreases on a monotonic host clock.
func (h *Hosted) MonotonicCounter() uint64 {
	return uint64(h.clock.CachedTime().UnixNano())
}

// Close stops the background clock refresh goroutine.
func (h *Hosted) Close() {
	h.clock.Stop()
}
