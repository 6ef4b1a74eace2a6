// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import "errors"

var (
	// ErrEVQFull means the event queue is at capacity.
	ErrEVQFull = errors.New("taskkernel/sched: event queue full")
	// ErrYieldLimit means a task exceeded max_yields.
	ErrYieldLimit = errors.New("taskkernel/sched: yield limit exceeded")
	// ErrYieldOverflow means a yielded task fit in neither the LQ
	// reserve nor the overflow bucket.
	ErrYieldOverflow = errors.New("taskkernel/sched: yield overflow")
)
