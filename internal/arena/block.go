// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package arena

import "math/bits"

// binSizes are the twelve power-of-two bins the block allocator serves,
// 32 bytes through 64 KiB.
var binSizes = [12]int{32, 64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768, 65536}

// binWeights favor smaller sizes with more objects.
var binWeights = [12]int{16, 12, 8, 6, 4, 2, 2, 2, 2, 2, 2, 2}

// Block is the power-of-two bin allocator: twelve bins, each a Slab, sized
// so smaller bins get proportionally more objects.
type Block struct {
	base uintptr
	size int
	bins [12]*Slab
}

func newBlock(base uintptr, size int) *Block {
	totalWeight := 0
	for _, w := range binWeights {
		totalWeight += w
	}

	b := &Block{base: base, size: size}
	off := 0
	for i, objSize := range binSizes {
		share := size * binWeights[i] / totalWeight
		nObjs := share / objSize
		if nObjs < 1 {
			nObjs = 1
		}
		regionSize := nObjs * objSize
		if off+regionSize > size {
			regionSize = size - off
		}
		b.bins[i] = newSlab(base+uintptr(off), regionSize, objSize)
		off += regionSize
	}
	return b
}

// binIndex rounds n up to the next power of two >= 32 and returns the bin
// index that serves it, or -1 if n exceeds the largest bin (64 KiB).
func binIndex(n int) int {
	if n <= 32 {
		return 0
	}
	if n > 65536 {
		return -1
	}
	rounded := 1 << bits.Len(uint(n-1))
	for i, sz := range binSizes {
		if sz >= rounded {
			return i
		}
	}
	return -1
}

// Alloc serves a request of n bytes from the smallest bin that fits it.
func (b *Block) Alloc(n int) (uintptr, error) {
	idx := binIndex(n)
	if idx < 0 {
		return 0, ErrNoMemory
	}
	return b.bins[idx].Alloc()
}

func (b *Block) free(ptr uintptr) {
	for _, bin := range b.bins {
		if bin.owns(ptr) {
			bin.free(ptr)
			return
		}
	}
}

func (b *Block) owns(ptr uintptr) bool {
	return ptr >= b.base && ptr < b.base+uintptr(b.size)
}
