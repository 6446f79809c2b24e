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
	"github.com/go-logr/logr"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/proctab"
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/stride"
)

// PolicyProportional shares the CPU by stride scheduling. Processes may
// reserve a percentage of the CPU; the rest is split evenly between the others.
const PolicyProportional Name = "proportional"

type proportionalPolicy struct {
	engine *stride.Engine
}

// Ensure proportionalPolicy implements Policy interface
var _ Policy = &proportionalPolicy{}

// NewProportionalPolicy returns a stride scheduler over pids [1, maxProcs].
// A zero strideConstant selects the default.
func NewProportionalPolicy(logger logr.Logger, maxProcs int, strideConstant int64) (Policy, error) {
	if strideConstant == 0 {
		strideConstant = stride.DefaultStrideConstant
	}

	engine, err := stride.NewEngine(logger.WithName(string(PolicyProportional)), maxProcs, strideConstant)
	if err != nil {
		return nil, err
	}

	return &proportionalPolicy{engine: engine}, nil
}

func (p *proportionalPolicy) Name() string {
	return string(PolicyProportional)
}

func (p *proportionalPolicy) Preemptive() bool    { return true }
func (p *proportionalPolicy) SchedOnChange() bool { return false }

func (p *proportionalPolicy) Start(pid int) error {
	return p.engine.Admit(pid)
}

func (p *proportionalPolicy) End(pid int) error {
	return p.engine.Remove(pid)
}

func (p *proportionalPolicy) Next() (int, bool) {
	return p.engine.Select()
}

func (p *proportionalPolicy) RequestShare(pid, percent int) error {
	return p.engine.RequestShare(pid, percent)
}

func (p *proportionalPolicy) Reset() {
	p.engine.Reset()
}

func (p *proportionalPolicy) Table() *proctab.Table {
	return p.engine.Table()
}

func (p *proportionalPolicy) Status() string {
	return p.engine.Status()
}
