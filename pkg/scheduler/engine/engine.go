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

// Package engine routes host lifecycle and scheduling callbacks to the active
// scheduling discipline.
//
// The engine does no locking. The host must serialize every call: no two
// callbacks may run concurrently or re-entrantly.
package engine

import (
	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/policy"
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/proctab"
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/settings"
)

// NoProcess is the pid the host sees when there is nothing to run.
const NoProcess = 0

// ErrNotInitialized is returned by callbacks made before Init.
var ErrNotInitialized = errors.New("scheduler is not initialized")

// Engine is the policy dispatcher.
type Engine struct {
	host     Host
	settings settings.Settings

	// policy is the active discipline, fixed by the first Init
	policy policy.Policy

	log logr.Logger
}

// NewEngine returns an engine that is inert until Init.
func NewEngine(logger logr.Logger, host Host, s settings.Settings) (*Engine, error) {
	if host == nil {
		return nil, errors.New("host must be provided")
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		host:     host,
		settings: s,
		log:      logger,
	}, nil
}

// Init selects the discipline unless the host already has one, zeroes the
// process table and arms the timer.
func (e *Engine) Init() error {
	if e.policy == nil {
		name := e.host.SchedPolicy()
		if name == policy.PolicyUnset {
			name = e.settings.SchedPolicy()
			e.host.SetSchedPolicy(name)
		}

		p, err := policy.New(e.log, name, policy.Options{
			MaxProcs:       e.settings.GetMaxProcs(),
			StrideConstant: e.settings.GetStrideConstant(),
		})
		if err != nil {
			return err
		}

		e.policy = p
	}

	e.policy.Reset()
	e.host.SetTimer(e.settings.GetTimerInterval())

	e.log.Info("Scheduler initialized", "policy", e.policy.Name(),
		"maxProcs", e.settings.GetMaxProcs(),
		"timerInterval", e.settings.GetTimerInterval(),
	)

	return nil
}

// Policy returns the active discipline name, or policy.PolicyUnset before Init.
func (e *Engine) Policy() policy.Name {
	if e.policy == nil {
		return policy.PolicyUnset
	}

	return policy.Name(e.policy.Name())
}

// OnStart admits the process pid.
func (e *Engine) OnStart(pid int) error {
	if e.policy == nil {
		return ErrNotInitialized
	}

	if e.policy.SchedOnChange() {
		e.host.DoSched()
	}

	if err := e.policy.Start(pid); err != nil {
		e.log.Error(err, "Failed to admit process", "pid", pid, "policy", e.policy.Name())

		return err
	}

	e.log.V(1).Info("Process started", "pid", pid, "status", e.policy.Status())

	return nil
}

// OnEnd removes the process pid.
func (e *Engine) OnEnd(pid int) error {
	if e.policy == nil {
		return ErrNotInitialized
	}

	err := e.policy.End(pid)

	if e.policy.SchedOnChange() {
		e.host.DoSched()
	}

	if err != nil {
		e.log.Error(err, "Failed to remove process", "pid", pid, "policy", e.policy.Name())

		return err
	}

	e.log.V(1).Info("Process ended", "pid", pid, "status", e.policy.Status())

	return nil
}

// Decide returns the pid that should run next.
func (e *Engine) Decide() (int, bool) {
	if e.policy == nil {
		return NoProcess, false
	}

	pid, ok := e.policy.Next()
	if !ok {
		e.log.V(2).Info("No process to run", "policy", e.policy.Name())

		return NoProcess, false
	}

	e.log.V(2).Info("Process selected", "pid", pid, "policy", e.policy.Name())

	return pid, true
}

// RequestShare reserves percent of the CPU for pid.
func (e *Engine) RequestShare(pid, percent int) error {
	if e.policy == nil {
		return ErrNotInitialized
	}

	if err := e.policy.RequestShare(pid, percent); err != nil {
		e.log.Error(err, "CPU share request rejected", "pid", pid, "percent", percent)

		return err
	}

	e.log.V(1).Info("CPU share granted", "pid", pid, "percent", percent, "status", e.policy.Status())

	return nil
}

// Status returns a summary of the active discipline.
func (e *Engine) Status() string {
	if e.policy == nil {
		return "Policy: unset"
	}

	return "Policy: " + e.policy.Name() + ", " + e.policy.Status()
}

// Snapshot returns a copy of the process table of the active discipline.
func (e *Engine) Snapshot() []proctab.ProcessSlot {
	if e.policy == nil {
		return nil
	}

	return e.policy.Table().Snapshot()
}

// StateHash returns a fingerprint of the process table.
func (e *Engine) StateHash() (uint64, error) {
	if e.policy == nil {
		return 0, ErrNotInitialized
	}

	return e.policy.Table().Hash()
}
