// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package taskkernel_test

import (
	"testing"
	"time"

	"code.hybscloud.com/atomix"

	taskkernel "code.hybscloud.com/taskkernel"
	"code.hybscloud.com/taskkernel/internal/platform"
	"code.hybscloud.com/taskkernel/internal/sched"
	"code.hybscloud.com/taskkernel/internal/task"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func newBootedKernel(t *testing.T, cfg taskkernel.Config, mods []taskkernel.Module) (*taskkernel.Kernel, *platform.Hosted) {
	t.Helper()
	plat := platform.NewHosted(cfg.NWorkers)
	t.Cleanup(plat.Close)
	k := taskkernel.New(plat)
	if err := k.Boot(cfg, mods); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	return k, plat
}

// E1 — boot with no modules, submit nothing, halt.
func TestE1BootSubmitHalt(t *testing.T) {
	k, _ := newBootedKernel(t, taskkernel.Config{ArenaSize: 4 << 20, NWorkers: 2, NTenants: 1}, nil)

	ev, err := k.TracePop(0)
	if err != nil {
		t.Fatalf("TracePop: %v", err)
	}
	if ev.EventType != uint32(0) { // task.EventBoot == 0
		t.Fatalf("first trace event: got type %d, want BOOT", ev.EventType)
	}

	if err := k.Halt(); err != nil {
		t.Fatalf("Halt: %v", err)
	}
}

// E2 — register an echo handler, submit 50 tasks of type 1.
func TestE2FiftyEchoTasks(t *testing.T) {
	h := taskkernel.Handler{Type: 1, Name: "echo", Fn: func(ctx *taskkernel.Context) taskkernel.Code { return taskkernel.OK }}
	mod := taskkernel.Module{Name: "echo", Handlers: []taskkernel.Handler{h}}

	k, _ := newBootedKernel(t, taskkernel.Config{ArenaSize: 4 << 20, NWorkers: 2, NTenants: 1}, []taskkernel.Module{mod})
	defer k.Halt()

	for i := 0; i < 50; i++ {
		tk := taskkernel.NewTask(1, taskkernel.Normal)
		if err := k.Submit(&tk); err != nil {
			t.Fatalf("Submit(%d): %v", i, err)
		}
	}

	waitFor(t, func() bool { return k.MetricsRead(taskkernel.TasksDispatched) >= 50 })
	if got := k.MetricsRead(taskkernel.TasksEnqueued); got < 50 {
		t.Fatalf("TasksEnqueued: got %d, want >= 50", got)
	}
}

// E3 — two-phase yield: meta0==0 sets meta1=42 and yields; meta0==1
// asserts meta1==42 and succeeds.
func TestE3TwoPhaseYield(t *testing.T) {
	var completed atomix.Uint64
	var assertFailed atomix.Bool

	h := taskkernel.Handler{Type: 10, Name: "twophase", Fn: func(ctx *taskkernel.Context) taskkernel.Code {
		tk := ctx.Task
		if tk.Meta0 == 0 {
			tk.Meta1 = 42
			tk.Meta0 = 1
			if err := ctx.Scheduler.Yield(tk, ctx.WorkerID, 0); err != nil {
				assertFailed.StoreRelease(true)
			}
			return taskkernel.OK
		}
		if tk.Meta1 != 42 {
			assertFailed.StoreRelease(true)
		}
		completed.AddAcqRel(1)
		return taskkernel.OK
	}}
	mod := taskkernel.Module{Name: "twophase", Handlers: []taskkernel.Handler{h}}

	k, _ := newBootedKernel(t, taskkernel.Config{ArenaSize: 4 << 20, NWorkers: 2, NTenants: 1}, []taskkernel.Module{mod})
	defer k.Halt()

	for i := 0; i < 20; i++ {
		tk := taskkernel.NewTask(10, taskkernel.Normal)
		if err := k.Submit(&tk); err != nil {
			t.Fatalf("Submit(%d): %v", i, err)
		}
	}

	waitFor(t, func() bool { return completed.LoadAcquire() == 20 })
	if assertFailed.LoadAcquire() {
		t.Fatalf("phase-2 handler observed meta1 != 42, or yield failed")
	}
}

// E4 — P2P channel throughput: one subscriber, 30 emits.
func TestE4P2PChannelThroughput(t *testing.T) {
	h := taskkernel.Handler{Type: 1, Name: "echo", Fn: func(ctx *taskkernel.Context) taskkernel.Code { return taskkernel.OK }}
	mod := taskkernel.Module{Name: "echo", Handlers: []taskkernel.Handler{h}}

	k, _ := newBootedKernel(t, taskkernel.Config{ArenaSize: 4 << 20, NWorkers: 2, NTenants: 1}, []taskkernel.Module{mod})
	defer k.Halt()

	id, err := k.ChannelOpen("test.echo", taskkernel.ChannelP2P, taskkernel.ChannelLossy, 1, 64)
	if err != nil {
		t.Fatalf("ChannelOpen: %v", err)
	}
	if err := k.ChannelSub(id, 1, 0); err != nil {
		t.Fatalf("ChannelSub: %v", err)
	}

	before := k.MetricsRead(taskkernel.TasksDispatched)
	for i := 0; i < 30; i++ {
		tk := taskkernel.NewTask(1, taskkernel.Normal)
		if err := k.ChannelEmit(id, &tk); err != nil {
			t.Fatalf("ChannelEmit(%d): %v", i, err)
		}
	}

	waitFor(t, func() bool { return k.MetricsRead(taskkernel.TasksDispatched)-before >= 30 })
	if got := k.MetricsRead(taskkernel.ChanEmits); got < 30 {
		t.Fatalf("ChanEmits: got %d, want >= 30", got)
	}
}

// E5 — backpressure: 16-slot P2P channel with no subscriber, successful
// emits capped at capacity minus the priority reserve (16-slot reserve is
// 16/10=1, so 15 succeed before FULL).
func TestE5Backpressure(t *testing.T) {
	k, _ := newBootedKernel(t, taskkernel.Config{ArenaSize: 4 << 20, NWorkers: 1, NTenants: 1}, nil)
	defer k.Halt()

	id, err := k.ChannelOpen("test.backpressure", taskkernel.ChannelP2P, taskkernel.ChannelLossy, 30, 16)
	if err != nil {
		t.Fatalf("ChannelOpen: %v", err)
	}

	const capacity = 16
	want := capacity - 1 // reserve(16) = 16/10 = 1, with the 1-slot floor

	ok := 0
	var lastErr error
	for i := 0; i < capacity; i++ {
		tk := taskkernel.NewTask(30, taskkernel.Normal)
		if err := k.ChannelEmit(id, &tk); err != nil {
			lastErr = err
			break
		}
		ok++
	}
	if ok > want {
		t.Fatalf("successful emits: got %d, want <= %d (capacity minus priority reserve)", ok, want)
	}
	if !taskkernel.IsWouldBlock(lastErr) {
		t.Fatalf("emit past reserve: got %v, want a would-block error", lastErr)
	}
}

// E6 — RQ priority ordering: push LOW, NORMAL, HIGH, CRITICAL; expect
// CRITICAL, HIGH, NORMAL, LOW pop order. Exercised directly against the
// scheduler's ready queue, synchronously in this goroutine, so the
// result does not depend on worker-wake timing the way a full Submit
// round trip through a running kernel would.
func TestE6RQPriorityOrdering(t *testing.T) {
	s := sched.New(sched.DefaultLimits(), 1)

	t10 := task.New(10, task.Low)
	t20 := task.New(20, task.Normal)
	t30 := task.New(30, task.High)
	t40 := task.New(40, task.Critical)

	for _, tk := range []*task.Task{&t10, &t20, &t30, &t40} {
		if err := s.RQ().Push(tk); err != nil {
			t.Fatalf("RQ().Push: %v", err)
		}
	}

	want := []uint32{40, 30, 20, 10}
	for i, w := range want {
		got, err := s.RQ().Pop()
		if err != nil {
			t.Fatalf("Pop(%d): %v", i, err)
		}
		if got.Type != w {
			t.Fatalf("pop %d: got type %d, want %d", i, got.Type, w)
		}
	}
}
