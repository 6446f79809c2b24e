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

package engine

import "github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/policy"

// Host is what the engine consumes from the kernel that embeds it.
type Host interface {
	// SchedPolicy returns the selected discipline, policy.PolicyUnset before
	// the first selection.
	SchedPolicy() policy.Name
	// SetSchedPolicy selects the discipline. The engine calls it at most once,
	// and only while the selection is unset.
	SetSchedPolicy(name policy.Name)
	// SetTimer arms the timer to fire after ticks timer ticks.
	SetTimer(ticks int)
	// DoSched asks the host for a scheduling decision. The host must call
	// Decide later, never from inside the engine call that requested it.
	DoSched()
}
