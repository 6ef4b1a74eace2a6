// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package arena

import "errors"

// ErrNoMemory is the sentinel "no memory" result every sub-allocator
// returns on failure.
var ErrNoMemory = errors.New("taskkernel: no memory")

// IsNoMemory reports whether err is ErrNoMemory.
func IsNoMemory(err error) bool {
	return errors.Is(err, ErrNoMemory)
}
