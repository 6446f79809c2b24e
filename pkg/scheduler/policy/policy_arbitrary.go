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

package policy

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/proctab"
)

// PolicyArbitrary runs any admitted process, the first one found in the table.
const PolicyArbitrary Name = "arbitrary"

type arbitraryPolicy struct {
	table *proctab.Table
}

// Ensure arbitraryPolicy implements Policy interface
var _ Policy = &arbitraryPolicy{}

// NewArbitraryPolicy returns an arbitrary discipline for up to maxProcs processes.
func NewArbitraryPolicy(maxProcs int) (Policy, error) {
	table, err := proctab.New(maxProcs)
	if err != nil {
		return nil, err
	}

	return &arbitraryPolicy{table: table}, nil
}

func (p *arbitraryPolicy) Name() string {
	return string(PolicyArbitrary)
}

func (p *arbitraryPolicy) Preemptive() bool    { return false }
func (p *arbitraryPolicy) SchedOnChange() bool { return false }

func (p *arbitraryPolicy) Start(pid int) error {
	if _, ok := p.table.Find(pid); ok {
		return errors.Wrapf(ErrDuplicatePID, "pid=%d", pid)
	}

	i, ok := p.table.FirstFree()
	if !ok {
		return errors.Wrapf(ErrTableFull, "pid=%d, maxProcs=%d", pid, p.table.Cap())
	}

	*p.table.Slot(i) = proctab.ProcessSlot{Valid: true, PID: pid}

	return nil
}

func (p *arbitraryPolicy) End(pid int) error {
	i, ok := p.table.Find(pid)
	if !ok {
		return errors.Wrapf(ErrNotFound, "pid=%d", pid)
	}

	p.table.Clear(i)

	return nil
}

func (p *arbitraryPolicy) Next() (int, bool) {
	i, ok := p.table.FirstValid()
	if !ok {
		return 0, false
	}

	return p.table.Slot(i).PID, true
}

func (p *arbitraryPolicy) RequestShare(pid, _ int) error {
	return errors.Wrapf(ErrSharesUnsupported, "policy=%s, pid=%d", p.Name(), pid)
}

func (p *arbitraryPolicy) Reset() {
	p.table.Reset()
}

func (p *arbitraryPolicy) Table() *proctab.Table {
	return p.table
}

func (p *arbitraryPolicy) Status() string {
	return fmt.Sprintf("Procs: %d/%d, Table: %v", p.table.Count(), p.table.Cap(), p.table.Snapshot())
}
