// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package arena

import (
	"unsafe"

	"code.hybscloud.com/atomix"
)

// payloadHeader is allocated immediately before any refcounted payload's
// bytes. Payloads without the refcount flag carry no header at all.
type payloadHeader struct {
	refcount atomix.Uint64 // logically a u32; widened so it uses the same
	// atomic primitive as the rest of the kernel instead of a second type
	size uint32
	_    uint32
}

const headerSize = int(unsafe.Sizeof(payloadHeader{}))

func headerAt(ptr uintptr) *payloadHeader {
	return (*payloadHeader)(unsafe.Pointer(ptr))
}

// PayloadAlloc reserves header+n bytes from the block allocator, stamps a
// refcount of 1, and returns the address of the payload bytes (past the
// header).
func (a *Arena) PayloadAlloc(n int) (uintptr, error) {
	raw, err := a.block.Alloc(headerSize + n)
	if err != nil {
		a.recordFail()
		return 0, err
	}
	h := headerAt(raw)
	h.refcount.StoreRelease(1)
	h.size = uint32(n)
	a.recordAlloc(headerSize + n)
	return raw + uintptr(headerSize), nil
}

// PayloadRetain increments the refcount of the payload at ptr (ptr is the
// address returned by PayloadAlloc, not the header address).
func (a *Arena) PayloadRetain(ptr uintptr) {
	h := headerAt(ptr - uintptr(headerSize))
	h.refcount.AddAcqRel(1)
}

// PayloadRelease decrements the refcount; at zero it returns the whole
// block (header + bytes) to the block allocator exactly once.
func (a *Arena) PayloadRelease(ptr uintptr) {
	raw := ptr - uintptr(headerSize)
	h := headerAt(raw)
	if h.refcount.AddAcqRel(^uint64(0)) == 0 {
		a.block.free(raw)
	}
}

// PayloadSize returns the size recorded at allocation time.
func (a *Arena) PayloadSize(ptr uintptr) int {
	return int(headerAt(ptr - uintptr(headerSize)).size)
}
