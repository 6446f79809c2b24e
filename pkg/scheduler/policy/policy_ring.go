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
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/ring"
)

// ringPolicy holds what the queue, stack and round-robin disciplines share:
// admission at the tail of a ring.
type ringPolicy struct {
	name Name
	ring *ring.Ring
}

func newRingPolicy(name Name, maxProcs int) (ringPolicy, error) {
	r, err := ring.New(maxProcs)
	if err != nil {
		return ringPolicy{}, err
	}

	return ringPolicy{name: name, ring: r}, nil
}

func (p *ringPolicy) Name() string {
	return string(p.name)
}

func (p *ringPolicy) Start(pid int) error {
	if p.ring.Contains(pid) {
		return errors.Wrapf(ErrDuplicatePID, "pid=%d", pid)
	}

	if !p.ring.Enter(pid) {
		return errors.Wrapf(ErrTableFull, "pid=%d, maxProcs=%d", pid, p.ring.Table().Cap())
	}

	return nil
}

// exit removes pid with the given ring rule, telling apart a pid that is
// absent from one that is present but not allowed to leave.
func (p *ringPolicy) exit(pid int, rule func(int) bool) error {
	if rule(pid) {
		return nil
	}

	if !p.ring.Contains(pid) {
		return errors.Wrapf(ErrNotFound, "pid=%d", pid)
	}

	return errors.Wrapf(ErrNotInPosition, "policy=%s, pid=%d", p.name, pid)
}

func (p *ringPolicy) at(i int) (int, bool) {
	if p.ring.IsEmpty() {
		return 0, false
	}

	s := p.ring.Table().Slot(i)
	if !s.Valid {
		return 0, false
	}

	return s.PID, true
}

func (p *ringPolicy) RequestShare(pid, _ int) error {
	return errors.Wrapf(ErrSharesUnsupported, "policy=%s, pid=%d", p.name, pid)
}

func (p *ringPolicy) Reset() {
	p.ring.Reset()
}

func (p *ringPolicy) Table() *proctab.Table {
	return p.ring.Table()
}

func (p *ringPolicy) Status() string {
	return fmt.Sprintf("Procs: %d/%d, %s", p.ring.Len(), p.ring.Table().Cap(), p.ring)
}
