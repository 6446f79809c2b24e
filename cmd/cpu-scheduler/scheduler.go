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

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/engine"
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/policy"
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/settings"
	"github.com/sergelogvinov/cpu-scheduler/pkg/utils/reconciler"
	utilsys "github.com/sergelogvinov/cpu-scheduler/pkg/utils/sys"
)

const (
	// pidFileExtension is the file extension for PID files
	pidFileExtension = ".pid"
	// shareFileExtension is the file extension for CPU share requests
	shareFileExtension = ".share"
)

// SchedulerHandler is the host of the scheduling engine. It turns watched
// files and timer ticks into engine events and dispatches a process after
// every event that asked for a decision, when an idle CPU gets work, and
// when the running process ends.
type SchedulerHandler struct {
	policy   policy.Name
	tick     time.Duration
	features FeatureFlags

	sched *engine.Engine
	rearm func(time.Duration)

	// pids maps a pid file to the process it announced
	pids    map[string]int
	pending bool
	running int

	logger logr.Logger
}

var _ engine.Host = &SchedulerHandler{}

func NewHandler(logger logr.Logger, s settings.Settings, name policy.Name, tick time.Duration, features FeatureFlags) (*SchedulerHandler, error) {
	if name != policy.PolicyUnset && !name.IsValid() {
		return nil, fmt.Errorf("%w: %q", policy.ErrUnknownPolicy, name)
	}

	if tick <= 0 {
		return nil, fmt.Errorf("tick duration must be positive: %s", tick)
	}

	h := &SchedulerHandler{
		policy:   name,
		tick:     tick,
		features: features,
		rearm:    func(time.Duration) {},
		pids:     map[string]int{},
		logger:   logger,
	}

	sched, err := engine.NewEngine(logger.WithName("engine"), h, s)
	if err != nil {
		return nil, err
	}

	h.sched = sched

	return h, nil
}

// Init binds the timer and initializes the engine.
func (r *SchedulerHandler) Init(rearm func(time.Duration)) error {
	if rearm != nil {
		r.rearm = rearm
	}

	return r.sched.Init()
}

func (r *SchedulerHandler) SchedPolicy() policy.Name {
	return r.policy
}

func (r *SchedulerHandler) SetSchedPolicy(name policy.Name) {
	if r.policy == policy.PolicyUnset {
		r.policy = name
	}
}

func (r *SchedulerHandler) SetTimer(ticks int) {
	r.rearm(time.Duration(ticks) * r.tick)
}

// DoSched defers the decision until the current event is handled.
func (r *SchedulerHandler) DoSched() {
	r.pending = true
}

// Running returns the last dispatched process, 0 when idle.
func (r *SchedulerHandler) Running() int {
	return r.running
}

func (r *SchedulerHandler) Status() string {
	return r.sched.Status()
}

func (r *SchedulerHandler) Reconcile(_ context.Context, event reconciler.Event) error {
	r.logger.V(2).Info("Processing event", "type", event.Type, "key", event.Key)

	defer r.dispatch()

	switch event.Type {
	case reconciler.TimerEvent:
		r.sched.OnTick()
	case reconciler.FileEvent:
		fsEvent, ok := event.Data.(fsnotify.Event)
		if !ok {
			return nil
		}

		switch filepath.Ext(fsEvent.Name) {
		case pidFileExtension:
			return r.handlePidFile(fsEvent)
		case shareFileExtension:
			return r.handleShareFile(fsEvent)
		default:
			r.logger.V(2).Info("Ignoring unknown file", "file", fsEvent.Name)
		}
	}

	return nil
}

func (r *SchedulerHandler) handlePidFile(fsEvent fsnotify.Event) error {
	known, tracked := r.pids[fsEvent.Name]

	if fsEvent.Op&fsnotify.Remove == fsnotify.Remove {
		if !tracked {
			return nil
		}

		return r.end(fsEvent.Name, known)
	}

	pid, err := utilsys.GetPidFromFile(fsEvent.Name)
	if err != nil {
		r.logger.Error(err, "Failed to read PID from file", "file", fsEvent.Name)

		return err
	}

	if tracked && known == pid {
		return nil
	}

	if r.features.IsEnabled(FeatureProcfs) && !utilsys.ProcessExists(pid) {
		return fmt.Errorf("process %d from %s does not exist", pid, fsEvent.Name)
	}

	if tracked {
		if err := r.end(fsEvent.Name, known); err != nil {
			return err
		}
	}

	if err := r.sched.OnStart(pid); err != nil {
		// Rejected admissions are final, the engine logged the reason.
		return nil //nolint:nilerr
	}

	r.pids[fsEvent.Name] = pid

	if r.running == engine.NoProcess {
		r.pending = true
	}

	return nil
}

// end removes the process announced by name. The file stays tracked while
// the engine refuses the removal, so a retry or a later event can end it.
func (r *SchedulerHandler) end(name string, pid int) error {
	if err := r.sched.OnEnd(pid); err != nil {
		return fmt.Errorf("failed to end process %d from %s: %w", pid, name, err)
	}

	delete(r.pids, name)

	if pid == r.running {
		r.pending = true
	}

	return nil
}

func (r *SchedulerHandler) handleShareFile(fsEvent fsnotify.Event) error {
	pid, err := strconv.Atoi(strings.TrimSuffix(filepath.Base(fsEvent.Name), shareFileExtension))
	if err != nil {
		r.logger.V(1).Info("Ignoring share file with non-integer name", "file", fsEvent.Name)

		return nil //nolint:nilerr
	}

	percent := 0

	if fsEvent.Op&fsnotify.Remove == 0 {
		if percent, err = utilsys.ReadIntFromFile(fsEvent.Name); err != nil {
			r.logger.Error(err, "Failed to read CPU share from file", "file", fsEvent.Name)

			return err
		}
	}

	//nolint:errcheck
	r.sched.RequestShare(pid, percent)

	return nil
}

func (r *SchedulerHandler) dispatch() {
	if !r.pending {
		return
	}

	r.pending = false

	pid, _ := r.sched.Decide()
	if pid != r.running {
		r.logger.Info("Dispatching process", "pid", pid, "previous", r.running)
	}

	r.running = pid
}
