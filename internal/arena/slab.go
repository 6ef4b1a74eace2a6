// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package arena

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// Slab is a fixed-object-size allocator over a pre-sized region: a
// lock-guarded free list of slot indices, plus an atomic allocation
// counter and high-water mark for observability.
type Slab struct {
	mu        sync.Mutex
	base      uintptr
	objSize   int
	nObjs     int
	freeList  []int32 // stack of free slot indices
	freeTop   int
	allocated atomix.Uint64
	highWater atomix.Uint64
}

func newSlab(base uintptr, regionSize, objSize int) *Slab {
	if objSize <= 0 {
		objSize = 1
	}
	n := regionSize / objSize
	s := &Slab{
		base:     base,
		objSize:  objSize,
		nObjs:    n,
		freeList: make([]int32, n),
	}
	for i := 0; i < n; i++ {
		s.freeList[i] = int32(i)
	}
	s.freeTop = n
	return s
}

// Alloc returns the address of one free object, or ErrNoMemory if the slab
// is exhausted.
func (s *Slab) Alloc() (uintptr, error) {
	s.mu.Lock()
	if s.freeTop == 0 {
		s.mu.Unlock()
		return 0, ErrNoMemory
	}
	s.freeTop--
	idx := s.freeList[s.freeTop]
	s.mu.Unlock()

	n := s.allocated.AddAcqRel(1)
	for {
		hw := s.highWater.LoadRelaxed()
		if n <= hw || s.highWater.CompareAndSwapAcqRel(hw, n) {
			break
		}
	}
	return s.base + uintptr(idx)*uintptr(s.objSize), nil
}

func (s *Slab) free(ptr uintptr) {
	idx := int32((ptr - s.base) / uintptr(s.objSize))
	s.mu.Lock()
	s.freeList[s.freeTop] = idx
	s.freeTop++
	s.mu.Unlock()
	s.allocated.AddAcqRel(^uint64(0)) // -1
}

func (s *Slab) owns(ptr uintptr) bool {
	end := s.base + uintptr(s.nObjs)*uintptr(s.objSize)
	return ptr >= s.base && ptr < end
}

// Stats reports the slab's allocation counter and high-water mark.
func (s *Slab) Stats() (allocated, highWater uint64) {
	return s.allocated.LoadRelaxed(), s.highWater.LoadRelaxed()
}

// Cap returns the number of fixed-size objects the slab holds.
func (s *Slab) Cap() int { return s.nObjs }
