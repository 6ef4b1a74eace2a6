// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/taskkernel/internal/ring"
	"code.hybscloud.com/taskkernel/internal/sched"
	"code.hybscloud.com/taskkernel/internal/task"
)

func TestEnqueueMonotonicSeq(t *testing.T) {
	s := sched.New(sched.DefaultLimits(), 2)
	var lastSeq uint32
	for i := 0; i < 10; i++ {
		tk := task.New(1, task.Normal)
		if err := s.Enqueue(&tk, -1); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
		if i > 0 && tk.Seq <= lastSeq {
			t.Fatalf("seq not monotonic: got %d after %d", tk.Seq, lastSeq)
		}
		lastSeq = tk.Seq
	}
}

func TestRQWeightedRoundRobin(t *testing.T) {
	s := sched.New(sched.DefaultLimits(), 1)
	for i := 0; i < 20; i++ {
		t0 := task.New(10, task.Critical)
		s.Enqueue(&t0, -1)
		t3 := task.New(40, task.Low)
		s.Enqueue(&t3, -1)
	}

	for i := 0; i < 8; i++ {
		v, err := s.RQ().Pop()
		if err != nil {
			t.Fatalf("Pop(%d): %v", i, err)
		}
		if v.Priority() != task.Critical {
			t.Fatalf("Pop(%d): got priority %d, want Critical", i, v.Priority())
		}
	}
}

func TestLQYieldReserve(t *testing.T) {
	s := sched.New(sched.DefaultLimits(), 1)
	lq := s.LocalQueue(0)
	watermark := lq.Cap() * 75 / 100

	var i int
	for ; i < watermark; i++ {
		tk := task.New(1, task.Normal)
		if err := lq.Push(&tk); err != nil {
			t.Fatalf("Push below watermark failed at %d: %v", i, err)
		}
	}
	tk := task.New(1, task.Normal)
	if err := lq.Push(&tk); !errors.Is(err, ring.ErrWouldBlock) {
		t.Fatalf("Push at watermark: got %v, want ErrWouldBlock", err)
	}
	if err := lq.PushYield(&tk); err != nil {
		t.Fatalf("PushYield within reserve: %v", err)
	}
}

func TestYieldLimit(t *testing.T) {
	s := sched.New(sched.DefaultLimits(), 1)
	tk := task.New(1, task.Normal)
	for i := 0; i < 16; i++ {
		if err := s.Yield(&tk, 0, 16); err != nil {
			t.Fatalf("Yield(%d): %v", i, err)
		}
		s.LocalQueue(0).Pop()
	}
	if err := s.Yield(&tk, 0, 16); !errors.Is(err, sched.ErrYieldLimit) {
		t.Fatalf("Yield past limit: got %v, want ErrYieldLimit", err)
	}
}

func TestEVQOrdering(t *testing.T) {
	s := sched.New(sched.DefaultLimits(), 1)
	tk1 := task.New(1, task.Normal)
	s.EnqueueAt(&tk1, 5)
	tk2 := task.New(2, task.Normal)
	s.EnqueueAt(&tk2, 2)
	tk3 := task.New(3, task.Normal)
	s.EnqueueAt(&tk3, 8)

	v, ok := s.EVQ().PopDue(10)
	if !ok || v.Type != 2 {
		t.Fatalf("first due: got %+v, ok=%v, want type 2", v, ok)
	}
	v, ok = s.EVQ().PopDue(10)
	if !ok || v.Type != 1 {
		t.Fatalf("second due: got %+v, ok=%v, want type 1", v, ok)
	}
	if _, ok := s.EVQ().PopDue(3); ok {
		t.Fatalf("entry with tick 8 should not be due at tick 3")
	}
}
