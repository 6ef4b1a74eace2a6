// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"errors"

	"code.hybscloud.com/iox"
)

var (
	// ErrNotFound means no channel is registered under the given id or name.
	ErrNotFound = errors.New("taskkernel/channel: not found")
	// ErrExists means a channel with that name is already open.
	ErrExists = errors.New("taskkernel/channel: already exists")
	// ErrClosed means the channel is closed to new emits.
	ErrClosed = errors.New("taskkernel/channel: closed")
	// ErrFull is an alias for [iox.ErrWouldBlock]: the channel's ring is
	// within its priority reserve, or a subscriber count limit has been
	// reached. Aliased (not a distinct sentinel) so callers can detect it
	// the same way they detect a full ring anywhere else in the kernel.
	ErrFull = iox.ErrWouldBlock
	// ErrInvalid means a bad id, mode, or guarantee was supplied.
	ErrInvalid = errors.New("taskkernel/channel: invalid")
	// ErrAlreadyBound means a P2P channel already has an active subscriber.
	ErrAlreadyBound = errors.New("taskkernel/channel: already bound")
	// ErrTypeMismatch means an emitted task's type does not match the
	// channel's declared message type.
	ErrTypeMismatch = errors.New("taskkernel/channel: type mismatch")
	// ErrSystemChannel means an operation that system channels refuse
	// (close) was attempted on id 0 or 1.
	ErrSystemChannel = errors.New("taskkernel/channel: system channel")
)
