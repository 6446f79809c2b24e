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

// PolicyRoundRobin rotates through processes in admission order on every
// decision; the timer preempts the running process.
const PolicyRoundRobin Name = "roundrobin"

type roundRobinPolicy struct {
	ringPolicy

	// current is the pid handed out by the previous decision, 0 if none
	current int
}

// Ensure roundRobinPolicy implements Policy interface
var _ Policy = &roundRobinPolicy{}

// NewRoundRobinPolicy returns a round-robin discipline.
func NewRoundRobinPolicy(maxProcs int) (Policy, error) {
	rp, err := newRingPolicy(PolicyRoundRobin, maxProcs)
	if err != nil {
		return nil, err
	}

	return &roundRobinPolicy{ringPolicy: rp}, nil
}

func (p *roundRobinPolicy) Preemptive() bool    { return true }
func (p *roundRobinPolicy) SchedOnChange() bool { return false }

func (p *roundRobinPolicy) End(pid int) error {
	return p.exit(pid, p.ring.ExitFIFO)
}

// Next sends the process that ran last to the back of the run and returns
// the new head. A head that has not run yet is returned as is.
func (p *roundRobinPolicy) Next() (int, bool) {
	if head, ok := p.at(p.ring.Head()); ok && head == p.current {
		if !p.ring.Rotate() {
			return 0, false
		}
	}

	pid, ok := p.at(p.ring.Head())
	if !ok {
		p.current = 0

		return 0, false
	}

	p.current = pid

	return pid, true
}

func (p *roundRobinPolicy) Reset() {
	p.ringPolicy.Reset()
	p.current = 0
}
