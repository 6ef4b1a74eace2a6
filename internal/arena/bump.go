// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package arena

import "code.hybscloud.com/atomix"

// Bump is the per-tick transient allocator: an atomic offset that only
// grows until Reset brings it back to zero. Never individually freed —
// Free on a bump-resident address is a documented no-op at the Arena level.
type Bump struct {
	base   uintptr
	size   int
	offset atomix.Uint64
}

func newBump(base uintptr, size int) *Bump {
	return &Bump{base: base, size: size}
}

// align8 rounds n up to the next multiple of 8.
func align8(n int) int {
	return (n + 7) &^ 7
}

// Alloc claims n (8-aligned) bytes with a compare-and-swap retry loop on
// the offset; a request that would pass the region boundary fails with
// ErrNoMemory and leaves the offset unchanged.
func (b *Bump) Alloc(n int) (uintptr, error) {
	aligned := uint64(align8(n))
	for {
		cur := b.offset.LoadAcquire()
		next := cur + aligned
		if next > uint64(b.size) {
			return 0, ErrNoMemory
		}
		if b.offset.CompareAndSwapAcqRel(cur, next) {
			return b.base + uintptr(cur), nil
		}
	}
}

// Reset returns the bump offset to zero. Intended for per-tick transient
// use: callers must ensure nothing still references bump-resident memory
// from the prior tick before calling Reset.
func (b *Bump) Reset() {
	b.offset.StoreRelease(0)
}

func (b *Bump) owns(ptr uintptr) bool {
	return ptr >= b.base && ptr < b.base+uintptr(b.size)
}

// Used returns the current bump offset.
func (b *Bump) Used() int {
	return int(b.offset.LoadAcquire())
}

// Cap returns the bump region size.
func (b *Bump) Cap() int { return b.size }
