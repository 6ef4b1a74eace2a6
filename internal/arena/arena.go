// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package arena implements the kernel's memory provider: one contiguous
// region acquired from the platform and split by fixed percentage into a
// task slab, a trace slab, a power-of-two block allocator, and a bump
// region. Callers never reach for make()/new() on the hot path; every
// allocation is served from one of these four sub-allocators, and a free
// dispatches to the right one by address-range containment.
package arena

import (
	"code.hybscloud.com/atomix"

	"code.hybscloud.com/taskkernel/internal/metrics"
	"code.hybscloud.com/taskkernel/internal/platform"
)

// Percentage split of the arena.
const (
	taskSlabPct  = 10
	traceSlabPct = 2
	blockPct     = 68
	bumpPct      = 20
)

// Arena owns one platform-provided region and the four sub-allocators
// carved out of it.
type Arena struct {
	plat       platform.Platform
	base       uintptr
	size       int
	task       *Slab
	trace      *Slab
	block      *Block
	bump       *Bump
	allocBytes atomix.Uint64
	allocFails atomix.Uint64
	metrics    *metrics.Counters
}

// Config controls the per-object size of the two slab regions; the block
// allocator's twelve bins and the bump region need no configuration beyond
// total size.
type Config struct {
	Size         int // total arena size in bytes
	TaskObjSize  int // size of one task-slab object (>= task.Size)
	TraceObjSize int // size of one trace-slab object (>= task.EventSize)
}

// New acquires Size bytes of zeroed, physically-backed aligned memory from
// plat and splits it into the four sub-allocators.
func New(plat platform.Platform, cfg Config) (*Arena, error) {
	base, err := plat.AllocAligned(cfg.Size, 16)
	if err != nil {
		return nil, ErrNoMemory
	}

	taskSize := cfg.Size * taskSlabPct / 100
	traceSize := cfg.Size * traceSlabPct / 100
	blockSize := cfg.Size * blockPct / 100
	bumpSize := cfg.Size - taskSize - traceSize - blockSize

	off := 0
	a := &Arena{plat: plat, base: base, size: cfg.Size}
	a.task = newSlab(base+uintptr(off), taskSize, cfg.TaskObjSize)
	off += taskSize
	a.trace = newSlab(base+uintptr(off), traceSize, cfg.TraceObjSize)
	off += traceSize
	a.block = newBlock(base+uintptr(off), blockSize)
	off += blockSize
	a.bump = newBump(base+uintptr(off), bumpSize)

	return a, nil
}

// SetMetrics wires the counters PayloadAlloc's accounting should mirror
// into, alongside Stats. Optional: an arena with no counters attached
// still allocates correctly, it just doesn't report AllocBytes/AllocFails.
func (a *Arena) SetMetrics(m *metrics.Counters) {
	a.metrics = m
}

// Close returns the region to the platform.
func (a *Arena) Close() {
	a.plat.Free(a.base, a.size)
}

// TaskSlab returns the fixed-size allocator backing task-record storage.
func (a *Arena) TaskSlab() *Slab { return a.task }

// TraceSlab returns the fixed-size allocator backing trace-event storage.
func (a *Arena) TraceSlab() *Slab { return a.trace }

// Block returns the power-of-two bin allocator for variable-size payloads.
func (a *Arena) Block() *Block { return a.block }

// Bump returns the per-tick transient bump allocator.
func (a *Arena) Bump() *Bump { return a.bump }

// Stats are the unified allocator's success/failure counters, accumulated
// with relaxed ordering: exact interleaving with individual allocations is
// not guaranteed, only monotonic accumulation.
type Stats struct {
	AllocBytes uint64
	AllocFails uint64
}

// Stats reads the accumulated allocation counters.
func (a *Arena) Stats() Stats {
	return Stats{
		AllocBytes: a.allocBytes.LoadRelaxed(),
		AllocFails: a.allocFails.LoadRelaxed(),
	}
}

func (a *Arena) recordAlloc(n int) {
	a.allocBytes.AddAcqRel(uint64(n))
	if a.metrics != nil {
		a.metrics.Add(metrics.AllocBytes, uint64(n))
	}
}

func (a *Arena) recordFail() {
	a.allocFails.AddAcqRel(1)
	if a.metrics != nil {
		a.metrics.Inc(metrics.AllocFails)
	}
}

// Free returns ptr to whichever sub-allocator owns the address range it
// falls in. The bump region is never individually freed; a Free call
// against a bump-resident address is a no-op.
func (a *Arena) Free(ptr uintptr, size int) {
	switch {
	case a.task.owns(ptr):
		a.task.free(ptr)
	case a.trace.owns(ptr):
		a.trace.free(ptr)
	case a.block.owns(ptr):
		a.block.free(ptr)
	case a.bump.owns(ptr):
		// bump allocations are reclaimed in bulk via Bump.Reset, never individually
	}
}
