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

// Package simulator replays traces of host callbacks through the scheduler.
package simulator

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/engine"
)

// StepResult is the outcome of one executed step.
type StepResult struct {
	Index int    `json:"index"`
	Op    Op     `json:"op"`
	PID   int    `json:"pid,omitempty"`
	Error string `json:"error,omitempty"`
	// Decisions lists the pids chosen during the step, 0 for no process.
	Decisions []int `json:"decisions,omitempty"`
}

// Result is the outcome of a whole trace.
type Result struct {
	Policy string       `json:"policy"`
	Steps  []StepResult `json:"steps"`
	// Dispatched counts decisions per pid.
	Dispatched map[int]int `json:"dispatched"`
	Idle       int         `json:"idle"`
	TimerArms  int         `json:"timerArms"`
	Status     string      `json:"status"`
	StateHash  uint64      `json:"stateHash"`
}

// Options configure a run.
type Options struct {
	// Strict makes Run return every failed step as an error.
	Strict bool
}

// Run replays trace on a fresh scheduler.
func Run(ctx context.Context, logger logr.Logger, trace *Trace, opts Options) (*Result, error) {
	host := NewHost(trace.Policy)

	sched, err := engine.NewEngine(logger, host, trace.Settings())
	if err != nil {
		return nil, err
	}

	if err := sched.Init(); err != nil {
		return nil, err
	}

	res := &Result{
		Policy:     string(sched.Policy()),
		Dispatched: map[int]int{},
	}

	var errs error

	for i, s := range trace.Steps {
		for range max(1, s.Count) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			r := StepResult{Index: i, Op: s.Op, PID: s.PID}

			if err := apply(sched, s); err != nil {
				r.Error = err.Error()

				if opts.Strict {
					errs = multierr.Append(errs, fmt.Errorf("step %d: %s %d: %w", i, s.Op, s.PID, err))
				}
			}

			if pending := host.TakePending(); pending || s.Op == OpDecide {
				r.Decisions = append(r.Decisions, decide(sched, res))
			}

			res.Steps = append(res.Steps, r)
		}
	}

	res.TimerArms = host.TimerArms
	res.Status = sched.Status()

	res.StateHash, err = sched.StateHash()
	if err != nil {
		return nil, err
	}

	logger.V(1).Info("Trace finished", "steps", len(res.Steps), "dispatched", res.Dispatched, "status", res.Status)

	return res, errs
}

func apply(sched *engine.Engine, s Step) error {
	switch s.Op {
	case OpStart:
		return sched.OnStart(s.PID)
	case OpEnd:
		return sched.OnEnd(s.PID)
	case OpRequest:
		return sched.RequestShare(s.PID, s.Percent)
	case OpTick:
		sched.OnTick()
	case OpDecide:
	}

	return nil
}

func decide(sched *engine.Engine, res *Result) int {
	pid, ok := sched.Decide()
	if !ok {
		res.Idle++

		return engine.NoProcess
	}

	res.Dispatched[pid]++

	return pid
}
