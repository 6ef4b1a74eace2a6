// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package taskkernel

import (
	"errors"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/taskkernel/internal/module"
)

// Error taxonomy for host-facing operations. OK and Retry are positive
// results, not failures: Retry tells the worker loop to re-enqueue the
// task verbatim rather than treating it as a dispatch failure.
var (
	// ErrNoMemory means an allocator request could not be satisfied.
	ErrNoMemory = errors.New("taskkernel: no memory")

	// ErrFull is an alias for [iox.ErrWouldBlock], raised on a full
	// queue, ring, or channel at the kernel's API boundary.
	ErrFull = iox.ErrWouldBlock

	// ErrEmpty is an alias for [iox.ErrWouldBlock], raised on an empty
	// queue or ring at the kernel's API boundary.
	ErrEmpty = iox.ErrWouldBlock

	// ErrInvalid means the caller's arguments are malformed for the
	// operation (bad channel mode, zero-sized config, and similar).
	ErrInvalid = errors.New("taskkernel: invalid argument")

	// ErrNotFound means a dispatch, channel, or module lookup failed.
	ErrNotFound = errors.New("taskkernel: not found")

	// ErrExists means a registration would collide with an existing
	// entry (duplicate handler type, duplicate channel name).
	ErrExists = errors.New("taskkernel: already exists")

	// ErrClosed means the kernel is halted, or the target channel is closed.
	ErrClosed = errors.New("taskkernel: closed")

	// ErrPoisoned means the task's handler type has latched poisoned
	// after reaching the module's failure threshold.
	ErrPoisoned = errors.New("taskkernel: poisoned")

	// ErrYieldOverflow means a yielded task could not fit in its local
	// queue's reserve or the overflow bucket.
	ErrYieldOverflow = errors.New("taskkernel: yield overflow")

	// ErrYieldLimit means a task exceeded its maximum yield count.
	ErrYieldLimit = errors.New("taskkernel: yield limit exceeded")

	// ErrTypeMismatch means a channel emit carried a task type other
	// than the channel's declared message type.
	ErrTypeMismatch = errors.New("taskkernel: type mismatch")

	// ErrAlreadyBound means a P2P channel already has an active subscriber.
	ErrAlreadyBound = errors.New("taskkernel: already bound")
)

// Code is the dispatch return code a handler reports back to the worker
// loop. It is an alias of [module.Code]: handlers are registered through
// module.Def, so the two packages must agree on one underlying type
// without internal/module importing this package (which would cycle,
// since this package imports internal/module).
type Code = module.Code

const (
	// OK reports successful completion; a refcounted payload is released.
	OK = module.OK
	// Retry asks the worker to re-enqueue the task verbatim through the
	// scheduler's Enqueue with no worker hint. A refcounted payload is NOT released on
	// Retry: the task is still live.
	Retry = module.Retry
	// Fail reports handler failure; the module records the failure
	// (possibly poisoning the type) and the refcount is released.
	Fail = module.Fail
)

// IsWouldBlock reports whether err is the control-flow signal for a full
// or empty queue. Delegates to [iox.IsWouldBlock].
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}
