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

// PolicyLIFO runs the newest process; only the newest may end. Every
// admission and removal asks the host for a new decision.
const PolicyLIFO Name = "lifo"

type lifoPolicy struct {
	ringPolicy
}

// Ensure lifoPolicy implements Policy interface
var _ Policy = &lifoPolicy{}

// NewLIFOPolicy returns a last-in first-out discipline.
func NewLIFOPolicy(maxProcs int) (Policy, error) {
	rp, err := newRingPolicy(PolicyLIFO, maxProcs)
	if err != nil {
		return nil, err
	}

	return &lifoPolicy{ringPolicy: rp}, nil
}

func (p *lifoPolicy) Preemptive() bool    { return false }
func (p *lifoPolicy) SchedOnChange() bool { return true }

func (p *lifoPolicy) End(pid int) error {
	return p.exit(pid, p.ring.ExitLIFO)
}

func (p *lifoPolicy) Next() (int, bool) {
	return p.at(p.ring.Top())
}
