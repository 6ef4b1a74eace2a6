// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package platform defines the two narrow interfaces the core needs from
// its host environment: a Platform for memory and wake signals, and a
// monotonic clock reachable through it. The bare-metal bring-up layer
// (bootloader, page tables, PCI, virtio, LAPIC/IPI, serial console) is an
// external collaborator that implements Platform on real hardware; this
// package also ships Hosted, the implementation used when the kernel runs
// on top of OS threads.
package platform

// Platform is the set of primitives the kernel needs from whatever it runs
// on top of. It is injected at boot, not a process-wide singleton, so
// multiple kernels can coexist in one process.
type Platform interface {
	// AllocAligned returns align-aligned, zeroed, physically-backed memory
	// of the given size, as a base address usable as an arena region.
	AllocAligned(size int, align int) (uintptr, error)
	// Free releases memory previously returned by AllocAligned.
	Free(addr uintptr, size int)
	// WakeWorker is an idempotent signal causing a parked worker to observe
	// the wake on its next check.
	WakeWorker(workerID int)
	// MonotonicCounter returns a u64 that never decreases.
	MonotonicCounter() uint64
}
