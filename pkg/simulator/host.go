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
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/engine"
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/policy"
)

// Host is an in-memory kernel. It records what the scheduler asks of it and
// defers reschedule requests until the current callback has returned.
type Host struct {
	policy policy.Name

	// Timer is the last armed interval, in ticks.
	Timer int
	// TimerArms counts SetTimer calls.
	TimerArms int

	pending bool
}

// Ensure Host implements engine.Host interface
var _ engine.Host = &Host{}

// NewHost returns a host with the discipline name preselected; use
// policy.PolicyUnset to let the scheduler choose.
func NewHost(name policy.Name) *Host {
	return &Host{policy: name}
}

func (h *Host) SchedPolicy() policy.Name {
	return h.policy
}

func (h *Host) SetSchedPolicy(name policy.Name) {
	if h.policy == policy.PolicyUnset {
		h.policy = name
	}
}

func (h *Host) SetTimer(ticks int) {
	h.Timer = ticks
	h.TimerArms++
}

func (h *Host) DoSched() {
	h.pending = true
}

// TakePending reports and clears a pending reschedule request.
func (h *Host) TakePending() bool {
	pending := h.pending
	h.pending = false

	return pending
}
