// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ring

import "code.hybscloud.com/iox"

// ErrWouldBlock indicates a push found the queue full, or a pop found it
// empty. It is a control-flow signal, not a failure; callers translate it
// to the kernel's FULL/EMPTY error codes at the API boundary.
var ErrWouldBlock = iox.ErrWouldBlock
