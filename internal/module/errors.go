// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package module

import "errors"

var (
	// ErrNotFound means no handler is registered for a task's type.
	ErrNotFound = errors.New("taskkernel/module: not found")
	// ErrPoisoned means the task's type has latched poisoned.
	ErrPoisoned = errors.New("taskkernel/module: poisoned")
	// ErrExists means a handler type is already registered (by this or
	// another module).
	ErrExists = errors.New("taskkernel/module: already exists")
	// ErrTooManyTypes means a handler's type is outside the dispatch
	// table's range (0..255).
	ErrTooManyTypes = errors.New("taskkernel/module: type out of range")
)
