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

// Package stride implements proportional-share CPU allocation with stride
// scheduling. Every process accrues virtual time (pass value) in steps of its
// stride, which is inversely proportional to its share; the runnable process
// with the least pass value runs next.
//
// Slots are keyed directly by pid: pid p lives at index p-1, so the pid domain
// is [1, maxProcs].
package stride

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/proctab"
)

const (
	// MinShare and MaxShare bound a share request, in percent.
	MinShare = 0
	MaxShare = 100

	// DefaultStrideConstant is L, the stride of a process holding a 1% share.
	DefaultStrideConstant int64 = 100000
)

// Engine is the stride allocator and selector. It is not safe for concurrent
// use; the caller serializes every call.
type Engine struct {
	table *proctab.Table

	// strideConstant is L, stride = L / percent
	strideConstant int64
	// requested is the sum of explicit reservations of admitted processes
	requested int
	// passLimit is the largest representable pass value
	passLimit int64

	log logr.Logger
}

// NewEngine returns an engine for pids in [1, maxProcs].
func NewEngine(logger logr.Logger, maxProcs int, strideConstant int64) (*Engine, error) {
	if strideConstant < MaxShare {
		return nil, fmt.Errorf("stride constant must be at least %d: strideConstant=%d", MaxShare, strideConstant)
	}

	table, err := proctab.New(maxProcs)
	if err != nil {
		return nil, err
	}

	return &Engine{
		table:          table,
		strideConstant: strideConstant,
		passLimit:      math.MaxInt64,
		log:            logger,
	}, nil
}

// Table returns the pid-keyed slot table.
func (e *Engine) Table() *proctab.Table {
	return e.table
}

// Requested returns the aggregate explicit reservation in percent.
func (e *Engine) Requested() int {
	return e.requested
}

// Reset drops every process.
func (e *Engine) Reset() {
	e.table.Reset()
	e.requested = 0
}

// Admit adds pid as an unrequested process and redistributes the shares.
func (e *Engine) Admit(pid int) error {
	i, err := e.index(pid)
	if err != nil {
		return err
	}

	if e.table.Slot(i).Valid {
		return errors.Wrapf(ErrDuplicatePID, "pid=%d", pid)
	}

	*e.table.Slot(i) = proctab.ProcessSlot{Valid: true, PID: pid, Runnable: true}
	e.Redistribute()

	return nil
}

// Remove drops pid, releasing any reservation, and redistributes the shares.
func (e *Engine) Remove(pid int) error {
	i, err := e.slot(pid)
	if err != nil {
		return err
	}

	e.table.Clear(i)
	e.Redistribute()

	return nil
}

// RequestShare reserves n percent of the CPU for pid. A request of 0 releases
// an existing reservation. A failed request changes nothing.
func (e *Engine) RequestShare(pid, n int) error {
	if n < MinShare || n > MaxShare {
		return errors.Wrapf(ErrInvalidShare, "pid=%d, requested=%d", pid, n)
	}

	i, err := e.slot(pid)
	if err != nil {
		return err
	}

	s := e.table.Slot(i)

	if s.Requested {
		if n == 0 {
			s.Requested = false
			s.Percent = 0
			s.PassValue = 0

			e.Redistribute()

			return nil
		}

		if e.requested-s.Percent+n > MaxShare {
			return errors.Wrapf(ErrShareExceeded, "pid=%d, requested=%d, available=%d", pid, n, MaxShare-e.requested+s.Percent)
		}

		s.Stride = e.strideConstant / int64(n)
		s.Percent = n
		s.PassValue = 0

		e.Redistribute()

		return nil
	}

	if e.requested+n > MaxShare {
		return errors.Wrapf(ErrShareExceeded, "pid=%d, requested=%d, available=%d", pid, n, MaxShare-e.requested)
	}

	if n == 0 {
		return nil
	}

	s.Requested = true
	s.Stride = e.strideConstant / int64(n)
	s.Percent = n

	e.Redistribute()

	return nil
}

// Redistribute recomputes the aggregate reservation and splits the remaining
// capacity evenly between unrequested processes. When fewer than one percent
// is left per unrequested process, they are all starved.
func (e *Engine) Redistribute() {
	requested, unrequested := 0, 0

	for i := range e.table.Cap() {
		s := e.table.Slot(i)
		if !s.Valid {
			continue
		}

		if s.Requested {
			requested += s.Percent
			s.Runnable = true
		} else {
			unrequested++
		}
	}

	e.requested = requested

	if unrequested == 0 {
		return
	}

	share := 0
	if remaining := MaxShare - requested; remaining >= unrequested {
		share = remaining / unrequested
	} else {
		e.log.V(1).Info("Starving unrequested processes", "requested", requested, "unrequested", unrequested)
	}

	for i := range e.table.Cap() {
		s := e.table.Slot(i)
		if !s.Valid || s.Requested {
			continue
		}

		s.Percent = share
		s.Runnable = share > 0

		if share > 0 {
			s.Stride = e.strideConstant / int64(share)
		}
	}
}

// Select picks the runnable process with the smallest pass value, lowest
// index first on ties, and charges it one stride. It returns the pid.
func (e *Engine) Select() (int, bool) {
	winner := -1

	for i := range e.table.Cap() {
		s := e.table.Slot(i)
		if !s.Valid || !s.Runnable {
			continue
		}

		if winner < 0 || s.PassValue < e.table.Slot(winner).PassValue {
			winner = i
		}
	}

	if winner < 0 {
		return 0, false
	}

	w := e.table.Slot(winner)

	if w.PassValue > e.passLimit-w.Stride {
		e.shift(w.PassValue)
	}

	w.PassValue += w.Stride

	return w.PID, true
}

// Status returns a one-line summary of reservations.
func (e *Engine) Status() string {
	procs := []string{}

	for i := range e.table.Cap() {
		s := e.table.Slot(i)
		if !s.Valid {
			continue
		}

		mark := ""
		if s.Requested {
			mark = "*"
		}

		if !s.Runnable {
			mark = "!"
		}

		procs = append(procs, fmt.Sprintf("%d:%d%%%s", s.PID, s.Percent, mark))
	}

	return fmt.Sprintf("Requested: %d%%, Procs: [%s]", e.requested, strings.Join(procs, " "))
}

// shift subtracts base from the pass value of every admitted process.
func (e *Engine) shift(base int64) {
	e.log.V(1).Info("Normalizing pass values", "base", base)

	for i := range e.table.Cap() {
		if s := e.table.Slot(i); s.Valid {
			s.PassValue -= base
		}
	}
}

func (e *Engine) index(pid int) (int, error) {
	if pid < 1 || pid > e.table.Cap() {
		return -1, errors.Wrapf(ErrPIDOutOfRange, "pid=%d, maxProcs=%d", pid, e.table.Cap())
	}

	return pid - 1, nil
}

func (e *Engine) slot(pid int) (int, error) {
	i, err := e.index(pid)
	if err != nil {
		return -1, err
	}

	if !e.table.Slot(i).Valid {
		return -1, errors.Wrapf(ErrNotFound, "pid=%d", pid)
	}

	return i, nil
}
