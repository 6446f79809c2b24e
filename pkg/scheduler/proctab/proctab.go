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

// Package proctab implements the fixed-capacity process slot table shared by
// every scheduling discipline.
package proctab

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// ProcessSlot is the scheduling state of one process.
type ProcessSlot struct {
	// Valid is set while the slot holds a live process.
	Valid bool
	// PID is the host-assigned process identity, unique among valid slots.
	PID int

	// Requested is set when the process holds an explicit CPU-share reservation.
	Requested bool
	// Percent is the reserved share, or the implicit share of an unrequested process.
	Percent int
	// Stride is the virtual time charged per selection, L / Percent.
	Stride int64
	// Runnable marks the slot eligible for proportional selection.
	Runnable bool
	// PassValue is the accumulated virtual time.
	PassValue int64
}

func (s ProcessSlot) String() string {
	if !s.Valid {
		return "-"
	}

	return fmt.Sprintf("%d", s.PID)
}

// Table is a fixed-capacity array of process slots.
type Table struct {
	slots []ProcessSlot
}

// New returns a table with maxProcs zeroed slots.
func New(maxProcs int) (*Table, error) {
	if maxProcs <= 0 {
		return nil, fmt.Errorf("table capacity must be positive: maxProcs=%d", maxProcs)
	}

	return &Table{slots: make([]ProcessSlot, maxProcs)}, nil
}

// Cap returns the number of slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Slot returns a pointer to the slot at index i.
func (t *Table) Slot(i int) *ProcessSlot {
	return &t.slots[i]
}

// Clear zeroes the slot at index i.
func (t *Table) Clear(i int) {
	t.slots[i] = ProcessSlot{}
}

// Reset zeroes every slot.
func (t *Table) Reset() {
	clear(t.slots)
}

// Count returns the number of valid slots.
func (t *Table) Count() int {
	n := 0

	for i := range t.slots {
		if t.slots[i].Valid {
			n++
		}
	}

	return n
}

// Find returns the index of the valid slot holding pid.
func (t *Table) Find(pid int) (int, bool) {
	for i := range t.slots {
		if t.slots[i].Valid && t.slots[i].PID == pid {
			return i, true
		}
	}

	return -1, false
}

// FirstFree returns the lowest index of an invalid slot.
func (t *Table) FirstFree() (int, bool) {
	for i := range t.slots {
		if !t.slots[i].Valid {
			return i, true
		}
	}

	return -1, false
}

// FirstValid returns the lowest index of a valid slot.
func (t *Table) FirstValid() (int, bool) {
	for i := range t.slots {
		if t.slots[i].Valid {
			return i, true
		}
	}

	return -1, false
}

// Snapshot returns a copy of all slots.
func (t *Table) Snapshot() []ProcessSlot {
	return append([]ProcessSlot(nil), t.slots...)
}

// Hash returns a fingerprint of the whole table state.
func (t *Table) Hash() (uint64, error) {
	return hashstructure.Hash(t.slots, hashstructure.FormatV2, nil)
}
