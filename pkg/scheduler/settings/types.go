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

package settings

import (
	"fmt"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/policy"
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/stride"

	"k8s.io/utils/ptr"
)

const (
	// DefaultPolicy is selected when neither the host nor the settings pick one.
	DefaultPolicy = policy.PolicyRoundRobin
	// DefaultMaxProcs is the process table capacity.
	DefaultMaxProcs = 10
	// DefaultTimerInterval is the timer period in ticks.
	DefaultTimerInterval = 1
)

// Settings represents the scheduler configuration of a host.
type Settings struct {
	// Policy is the discipline used when the host has none selected.
	Policy policy.Name `json:"policy,omitempty"`
	// MaxProcs is the process table capacity.
	MaxProcs *int `json:"maxprocs,omitempty"`
	// TimerInterval is the timer period in ticks.
	TimerInterval *int `json:"timerinterval,omitempty"`
	// StrideConstant is L, the stride of a 1% CPU share.
	StrideConstant *int64 `json:"strideconstant,omitempty"`
}

// SettingsConfig is a map from host name (or "*") to Settings.
type SettingsConfig map[string]Settings

// yaml config example
// "*":
//   policy: roundrobin
// node1:
//   policy: proportional
//   maxprocs: 16
//   timerinterval: 2
//   strideconstant: 1000000

// SchedPolicy returns the configured discipline or the default one.
func (s Settings) SchedPolicy() policy.Name {
	if s.Policy == policy.PolicyUnset {
		return DefaultPolicy
	}

	return s.Policy
}

func (s Settings) GetMaxProcs() int {
	return ptr.Deref(s.MaxProcs, DefaultMaxProcs)
}

func (s Settings) GetTimerInterval() int {
	return ptr.Deref(s.TimerInterval, DefaultTimerInterval)
}

func (s Settings) GetStrideConstant() int64 {
	return ptr.Deref(s.StrideConstant, stride.DefaultStrideConstant)
}

// Validate checks the settings for impossible values.
func (s Settings) Validate() error {
	if s.Policy != policy.PolicyUnset && !s.Policy.IsValid() {
		return fmt.Errorf("unknown scheduling policy %q, expected one of %v", s.Policy, policy.Names())
	}

	if v := s.GetMaxProcs(); v <= 0 {
		return fmt.Errorf("maxprocs must be positive: maxprocs=%d", v)
	}

	if v := s.GetTimerInterval(); v <= 0 {
		return fmt.Errorf("timer interval must be positive: timerinterval=%d", v)
	}

	if v := s.GetStrideConstant(); v < stride.MaxShare {
		return fmt.Errorf("stride constant must be at least %d: strideconstant=%d", stride.MaxShare, v)
	}

	return nil
}
