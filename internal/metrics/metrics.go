// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics holds the kernel's fixed set of atomic counters. Callers
// only need monotonic accumulation, not a total order across counters, so
// there is no cross-counter fence: each counter is independently
// acquire-release ordered against its own prior value.
package metrics

import "code.hybscloud.com/atomix"

// ID identifies one of the kernel's counters.
type ID int

const (
	TasksEnqueued ID = iota
	TasksDequeued
	TasksDispatched
	TasksFailed
	TasksRetried
	TasksYielded
	AllocBytes
	AllocFails
	ChanEmits
	ChanDrops
	ChanFull
	WorkerParks
	WorkerWakes

	count
)

// Counters is the fixed array of kernel counters, addressed by ID.
type Counters struct {
	v [count]atomix.Uint64
}

// New returns a zeroed counter set.
func New() *Counters {
	return &Counters{}
}

// Add increments counter id by delta (acquire-release ordering).
func (c *Counters) Add(id ID, delta uint64) {
	c.v[id].AddAcqRel(delta)
}

// Inc increments counter id by one.
func (c *Counters) Inc(id ID) {
	c.Add(id, 1)
}

// Read returns the current value of counter id.
func (c *Counters) Read(id ID) uint64 {
	return c.v[id].LoadAcquire()
}

// Snapshot copies every counter into a plain array, indexed by ID, for a
// host-facing metrics read.
func (c *Counters) Snapshot() [count]uint64 {
	var out [count]uint64
	for i := range out {
		out[i] = c.v[i].LoadAcquire()
	}
	return out
}

// Count is the number of distinct counters the kernel tracks.
const Count = int(count)
