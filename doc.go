// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package taskkernel implements a task-dispatch microkernel core: a
// priority-aware scheduler, a refcounted arena allocator, a channel
// registry for inter-module messaging, and a fixed-size module dispatch
// table, driven by a fixed-size worker pool.
//
// The kernel does not own bring-up (boot loader, page tables, device
// drivers) or persistence; it assumes a host has already prepared a
// memory region and a set of worker contexts, and hands the host back a
// [Kernel] value through which tasks are submitted, channels are opened,
// and metrics and trace events are read.
//
// # Quick Start
//
//	plat := platform.NewHosted(4) // or any platform.Platform
//	k := taskkernel.New(plat)
//
//	mod := taskkernel.Module{
//		Name: "echo",
//		Handlers: []taskkernel.Handler{
//			{Type: 1, Name: "echo", Fn: func(ctx *taskkernel.Context) taskkernel.Code {
//				return taskkernel.OK
//			}},
//		},
//	}
//
//	if err := k.Boot(taskkernel.Config{ArenaSize: 16 << 20, NWorkers: 4, NTenants: 8}, []taskkernel.Module{mod}); err != nil {
//		panic(err)
//	}
//	defer k.Halt()
//
//	tk := taskkernel.NewTask(1, taskkernel.Normal)
//	if err := k.Submit(&tk); err != nil {
//		// ErrClosed: kernel is not running
//	}
//
// # Task lifecycle
//
// A task enters through [Kernel.Submit] or a channel emit, is routed by
// priority into the ready queue (or a worker's local queue, on a yield),
// and is eventually popped and dispatched to the handler registered for
// its type. A handler returns one of three [Code] values:
//
//   - OK: task is done; a refcounted payload is released.
//   - Retry: task is re-queued at its original priority; a refcounted
//     payload is NOT released, since the task is still live.
//   - Fail: the failure is recorded against the handler's type (and may
//     poison it after repeated failures); a refcounted payload is
//     released.
//
// A handler may also call [Context.Scheduler]'s yield primitive directly
// to suspend itself into its own worker's local queue (or, when that is
// full, the shared overflow bucket), or its EnqueueAt to place itself on
// the event queue for a later tick, carrying forward continuation state
// in the task's Meta0/Meta1 fields —
// see the two-phase handler pattern in the package tests.
//
// # Channels
//
// [Kernel.ChannelOpen] creates either a point-to-point or fan-out channel
// with a LOSSY or LOSSLESS delivery guarantee and a priority reserve.
// LOSSLESS fan-out delivery failures are rerouted to the dead-letter
// channel rather than dropped; LOSSY delivery drops a copy (counted, not
// reported to the producer) when the scheduler cannot accept it. Emits
// past the reserved high-priority slots return a
// would-block error the caller can detect with [IsWouldBlock].
//
// # Concurrency
//
// Workers never share a local queue; the ready queue, overflow bucket,
// and channel rings are lock-free MPMC structures; the event queue and
// channel subscriber lists are mutex-guarded since they are mutated far
// less often than they are read. A worker parks on a ~1ms timeout (or a
// platform-supplied wake channel) whenever it finds every queue empty.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit memory
// ordering, [code.hybscloud.com/spin] for CPU pause instructions in the
// lock-free ring implementations, and [github.com/agilira/go-timecache]
// for the hosted platform's monotonic clock.
package taskkernel
