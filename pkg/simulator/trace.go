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

package simulator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/policy"
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/settings"

	"k8s.io/utils/ptr"
)

// Op is a host callback replayed by the simulator.
type Op string

const (
	OpStart   Op = "start"
	OpEnd     Op = "end"
	OpTick    Op = "tick"
	OpDecide  Op = "decide"
	OpRequest Op = "request"
)

// Step is one trace entry.
type Step struct {
	Op      Op  `yaml:"op"`
	PID     int `yaml:"pid,omitempty"`
	Percent int `yaml:"percent,omitempty"`
	// Count repeats the step, 1 when unset.
	Count int `yaml:"count,omitempty"`
}

// Trace is a recorded sequence of host callbacks.
type Trace struct {
	// Policy is the discipline the host has selected, empty to let the
	// scheduler pick its default.
	Policy        policy.Name `yaml:"policy,omitempty"`
	MaxProcs      int         `yaml:"maxprocs,omitempty"`
	TimerInterval int         `yaml:"timerinterval,omitempty"`
	Steps         []Step      `yaml:"steps"`
}

// trace example
// policy: proportional
// maxprocs: 4
// steps:
//   - {op: start, pid: 1}
//   - {op: start, pid: 2}
//   - {op: request, pid: 1, percent: 75}
//   - {op: tick, count: 100}

// LoadTrace reads a YAML trace file.
func LoadTrace(name string) (*Trace, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file %s: %w", name, err)
	}

	return ParseTrace(data)
}

// ParseTrace decodes and validates a YAML trace.
func ParseTrace(data []byte) (*Trace, error) {
	trace := &Trace{}

	if err := yaml.Unmarshal(data, trace); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
	}

	if err := trace.Validate(); err != nil {
		return nil, err
	}

	return trace, nil
}

// Validate checks the trace for unknown operations and bad repeat counts.
func (t *Trace) Validate() error {
	if t.Policy != policy.PolicyUnset && !t.Policy.IsValid() {
		return fmt.Errorf("unknown scheduling policy %q", t.Policy)
	}

	for i, s := range t.Steps {
		switch s.Op {
		case OpStart, OpEnd, OpTick, OpDecide, OpRequest:
		default:
			return fmt.Errorf("step %d: unknown operation %q", i, s.Op)
		}

		if s.Count < 0 {
			return fmt.Errorf("step %d: negative count %d", i, s.Count)
		}
	}

	return nil
}

// Settings returns the scheduler settings described by the trace.
func (t *Trace) Settings() settings.Settings {
	s := settings.Settings{}

	if t.MaxProcs > 0 {
		s.MaxProcs = ptr.To(t.MaxProcs)
	}

	if t.TimerInterval > 0 {
		s.TimerInterval = ptr.To(t.TimerInterval)
	}

	return s
}
