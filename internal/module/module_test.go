// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package module_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/taskkernel/internal/arena"
	"code.hybscloud.com/taskkernel/internal/channel"
	"code.hybscloud.com/taskkernel/internal/metrics"
	"code.hybscloud.com/taskkernel/internal/module"
	"code.hybscloud.com/taskkernel/internal/platform"
	"code.hybscloud.com/taskkernel/internal/sched"
	"code.hybscloud.com/taskkernel/internal/task"
	"code.hybscloud.com/taskkernel/internal/trace"
)

func newTestContext(t *testing.T, taskType uint32) *module.Context {
	t.Helper()
	plat := platform.NewHosted(1)
	t.Cleanup(plat.Close)
	a, err := arena.New(plat, arena.Config{Size: 4 << 20, TaskObjSize: 48, TraceObjSize: 32})
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	t.Cleanup(a.Close)
	s := sched.New(sched.DefaultLimits(), 1)
	tr := trace.New(plat, 1, 64)
	m := metrics.New()
	ch := channel.NewRegistry(s, a, tr, m)
	tk := task.New(taskType, task.Normal)
	return &module.Context{
		Task:      &tk,
		Arena:     a,
		Channels:  ch,
		Trace:     tr,
		Metrics:   m,
		Scheduler: s,
		WorkerID:  0,
	}
}

func TestDispatchUnregisteredType(t *testing.T) {
	r := module.New()
	ctx := newTestContext(t, 99)
	if _, err := r.Dispatch(ctx); !errors.Is(err, module.ErrNotFound) {
		t.Fatalf("Dispatch: got %v, want ErrNotFound", err)
	}
}

func TestDuplicateTypeRejected(t *testing.T) {
	r := module.New()
	h := module.Handler{Type: 1, Name: "h", Fn: func(*module.Context) module.Code { return module.OK }}
	if err := r.Register(module.Def{Name: "a", Handlers: []module.Handler{h}}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(module.Def{Name: "b", Handlers: []module.Handler{h}}); !errors.Is(err, module.ErrExists) {
		t.Fatalf("second Register: got %v, want ErrExists", err)
	}
}

func TestPoisonThreshold(t *testing.T) {
	r := module.New()
	h := module.Handler{Type: 1, Name: "fails", Fn: func(*module.Context) module.Code { return module.Fail }}
	if err := r.Register(module.Def{Name: "a", Handlers: []module.Handler{h}}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx := newTestContext(t, 1)
	for i := 0; i < module.PoisonThreshold; i++ {
		rc, err := r.Dispatch(ctx)
		if err != nil {
			t.Fatalf("Dispatch(%d): %v", i, err)
		}
		if rc != module.Fail {
			t.Fatalf("Dispatch(%d): got %v, want Fail", i, rc)
		}
	}

	if !r.Poisoned(1) {
		t.Fatalf("type 1 should be poisoned after %d failures", module.PoisonThreshold)
	}
	if _, err := r.Dispatch(ctx); !errors.Is(err, module.ErrPoisoned) {
		t.Fatalf("Dispatch after poison: got %v, want ErrPoisoned", err)
	}

	if err := r.Reset(1); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if r.Poisoned(1) {
		t.Fatalf("type 1 should not be poisoned after Reset")
	}
}

func TestDispatchSuccess(t *testing.T) {
	r := module.New()
	h := module.Handler{Type: 1, Name: "echo", Fn: func(*module.Context) module.Code { return module.OK }}
	if err := r.Register(module.Def{Name: "a", Handlers: []module.Handler{h}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := newTestContext(t, 1)
	rc, err := r.Dispatch(ctx)
	if err != nil || rc != module.OK {
		t.Fatalf("Dispatch: got rc=%v err=%v, want OK/nil", rc, err)
	}
}
