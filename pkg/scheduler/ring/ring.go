/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ring arranges a slot table as a circular run of processes that can
// be used as a queue, a stack or a round-robin rotation.
package ring

import (
	"fmt"
	"strings"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/proctab"
)

// Ring keeps the valid slots of a table in one contiguous run between head
// (oldest) and tail (next insertion point). The empty ring is always
// head == tail == 0.
type Ring struct {
	table *proctab.Table

	head  int
	tail  int
	empty bool
}

// New returns an empty ring over a fresh table of maxProcs slots.
func New(maxProcs int) (*Ring, error) {
	table, err := proctab.New(maxProcs)
	if err != nil {
		return nil, err
	}

	return &Ring{table: table, empty: true}, nil
}

// Reset drops every process and returns to the empty state.
func (r *Ring) Reset() {
	r.table.Reset()
	r.head, r.tail, r.empty = 0, 0, true
}

// Table returns the backing slot table.
func (r *Ring) Table() *proctab.Table {
	return r.table
}

// IsEmpty reports whether the run holds no process.
func (r *Ring) IsEmpty() bool {
	return r.empty
}

// IsFull reports whether every slot holds a process.
func (r *Ring) IsFull() bool {
	return !r.empty && r.head == r.tail
}

// Len returns the number of processes in the run.
func (r *Ring) Len() int {
	switch {
	case r.empty:
		return 0
	case r.head == r.tail:
		return r.table.Cap()
	}

	return r.index(r.tail - r.head)
}

// Head returns the index of the oldest slot.
func (r *Ring) Head() int {
	return r.head
}

// Tail returns the index of the next insertion point.
func (r *Ring) Tail() int {
	return r.tail
}

// Top returns the index of the most recently inserted slot.
func (r *Ring) Top() int {
	return r.index(r.tail - 1)
}

// Enter appends pid at the tail. It fails when the ring is full.
func (r *Ring) Enter(pid int) bool {
	if r.IsFull() {
		return false
	}

	*r.table.Slot(r.tail) = proctab.ProcessSlot{Valid: true, PID: pid}
	r.tail = r.index(r.tail + 1)
	r.empty = false

	return true
}

// ExitFIFO removes pid when it is the oldest process.
func (r *Ring) ExitFIFO(pid int) bool {
	if !r.holds(r.head, pid) {
		return false
	}

	r.table.Clear(r.head)
	r.head = r.index(r.head + 1)
	r.settle()

	return true
}

// ExitLIFO removes pid when it is the newest process.
func (r *Ring) ExitLIFO(pid int) bool {
	top := r.Top()
	if !r.holds(top, pid) {
		return false
	}

	r.table.Clear(top)
	r.tail = top
	r.settle()

	return true
}

// Rotate moves the process at head to the logical end of the run, keeping
// the order of all the others.
func (r *Ring) Rotate() bool {
	switch r.Len() {
	case 0:
		return false
	case 1:
		return true
	}

	// On a full ring tail == head, so the copy is a no-op and both ends move.
	moved := *r.table.Slot(r.head)
	r.table.Clear(r.head)
	*r.table.Slot(r.tail) = moved

	r.head = r.index(r.head + 1)
	r.tail = r.index(r.tail + 1)

	return true
}

// Contains reports whether pid is somewhere in the run.
func (r *Ring) Contains(pid int) bool {
	_, ok := r.table.Find(pid)

	return ok
}

// PIDs returns the processes from head to tail.
func (r *Ring) PIDs() []int {
	n := r.Len()
	pids := make([]int, 0, n)

	for i := range n {
		pids = append(pids, r.table.Slot(r.index(r.head+i)).PID)
	}

	return pids
}

func (r *Ring) String() string {
	pids := make([]string, 0, r.Len())
	for _, pid := range r.PIDs() {
		pids = append(pids, fmt.Sprintf("%d", pid))
	}

	return fmt.Sprintf("Head: %d, Tail: %d, Run: [%s]", r.head, r.tail, strings.Join(pids, " "))
}

func (r *Ring) holds(i int, pid int) bool {
	if r.empty {
		return false
	}

	s := r.table.Slot(i)

	return s.Valid && s.PID == pid
}

// settle restores the canonical empty state once the run is drained.
func (r *Ring) settle() {
	if r.head == r.tail {
		r.head, r.tail, r.empty = 0, 0, true
	}
}

func (r *Ring) index(i int) int {
	n := r.table.Cap()

	return ((i % n) + n) % n
}
