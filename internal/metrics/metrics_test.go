// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/taskkernel/internal/metrics"
)

func TestIncRead(t *testing.T) {
	c := metrics.New()
	c.Inc(metrics.TasksEnqueued)
	c.Add(metrics.TasksEnqueued, 4)
	if got := c.Read(metrics.TasksEnqueued); got != 5 {
		t.Fatalf("Read: got %d, want 5", got)
	}
}

func TestConcurrentInc(t *testing.T) {
	c := metrics.New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc(metrics.TasksDispatched)
			}
		}()
	}
	wg.Wait()
	if got := c.Read(metrics.TasksDispatched); got != 32*1000 {
		t.Fatalf("Read: got %d, want %d", got, 32*1000)
	}
}

func TestSnapshotLength(t *testing.T) {
	c := metrics.New()
	snap := c.Snapshot()
	if len(snap) != metrics.Count {
		t.Fatalf("Snapshot length: got %d, want %d", len(snap), metrics.Count)
	}
}
