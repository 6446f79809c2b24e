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

// PolicyFIFO runs processes in admission order; only the oldest may end.
const PolicyFIFO Name = "fifo"

type fifoPolicy struct {
	ringPolicy
}

// Ensure fifoPolicy implements Policy interface
var _ Policy = &fifoPolicy{}

// NewFIFOPolicy returns a first-in first-out discipline.
func NewFIFOPolicy(maxProcs int) (Policy, error) {
	rp, err := newRingPolicy(PolicyFIFO, maxProcs)
	if err != nil {
		return nil, err
	}

	return &fifoPolicy{ringPolicy: rp}, nil
}

func (p *fifoPolicy) Preemptive() bool    { return false }
func (p *fifoPolicy) SchedOnChange() bool { return false }

func (p *fifoPolicy) End(pid int) error {
	return p.exit(pid, p.ring.ExitFIFO)
}

func (p *fifoPolicy) Next() (int, bool) {
	return p.at(p.ring.Head())
}
