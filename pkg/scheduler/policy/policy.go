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

// Package policy implements the interchangeable scheduling disciplines.
package policy

import (
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/proctab"
)

// Name identifies a scheduling discipline.
type Name string

const (
	// PolicyUnset is the selection before any discipline is chosen.
	PolicyUnset Name = ""
)

// Policy admits, removes and selects processes under one discipline.
// Implementations are not safe for concurrent use.
type Policy interface {
	Name() string
	Status() string

	// Preemptive policies reschedule on every timer tick.
	Preemptive() bool
	// SchedOnChange policies reschedule on every admission and removal.
	SchedOnChange() bool

	Start(pid int) error
	End(pid int) error
	// Next returns the pid to run next, or false when nothing can run.
	Next() (int, bool)
	RequestShare(pid, percent int) error

	Reset()
	Table() *proctab.Table
}

// Options configure a policy.
type Options struct {
	// MaxProcs is the capacity of the process table.
	MaxProcs int
	// StrideConstant is L, the stride of a 1% share under the proportional discipline.
	StrideConstant int64
}

// Names returns every supported discipline.
func Names() []Name {
	return []Name{PolicyArbitrary, PolicyFIFO, PolicyLIFO, PolicyRoundRobin, PolicyProportional}
}

// IsValid reports whether n names a supported discipline.
func (n Name) IsValid() bool {
	return lo.Contains(Names(), n)
}

// New returns the discipline called name.
func New(logger logr.Logger, name Name, opts Options) (Policy, error) {
	switch name {
	case PolicyArbitrary:
		return NewArbitraryPolicy(opts.MaxProcs)
	case PolicyFIFO:
		return NewFIFOPolicy(opts.MaxProcs)
	case PolicyLIFO:
		return NewLIFOPolicy(opts.MaxProcs)
	case PolicyRoundRobin:
		return NewRoundRobinPolicy(opts.MaxProcs)
	case PolicyProportional:
		return NewProportionalPolicy(logger, opts.MaxProcs, opts.StrideConstant)
	}

	return nil, errors.Wrapf(ErrUnknownPolicy, "policy=%q", name)
}
