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
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/policy"
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/settings"
	"github.com/sergelogvinov/cpu-scheduler/pkg/utils/reconciler"

	"k8s.io/klog/v2/ktesting"
	"k8s.io/utils/ptr"
)

type testHost struct {
	*SchedulerHandler

	dir    string
	timers []time.Duration
}

func newTestHost(t *testing.T, s settings.Settings, name policy.Name, features FeatureFlags) *testHost {
	t.Helper()

	logger, _ := ktesting.NewTestContext(t)

	h, err := NewHandler(logger, s, name, 10*time.Millisecond, features)
	require.NoError(t, err)

	th := &testHost{SchedulerHandler: h, dir: t.TempDir()}
	require.NoError(t, h.Init(func(d time.Duration) { th.timers = append(th.timers, d) }))

	return th
}

func (th *testHost) write(t *testing.T, name, value string) error {
	t.Helper()

	path := filepath.Join(th.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(value), 0o600))

	return th.file(path, fsnotify.Create)
}

func (th *testHost) remove(t *testing.T, name string) error {
	t.Helper()

	path := filepath.Join(th.dir, name)
	require.NoError(t, os.Remove(path))

	return th.file(path, fsnotify.Remove)
}

func (th *testHost) file(path string, op fsnotify.Op) error {
	return th.Reconcile(context.Background(), reconciler.Event{
		Type: reconciler.FileEvent,
		Key:  path,
		Data: fsnotify.Event{Name: path, Op: op},
	})
}

func (th *testHost) ticks(t *testing.T, n int) []int {
	t.Helper()

	pids := make([]int, 0, n)

	for range n {
		require.NoError(t, th.Reconcile(context.Background(), reconciler.Event{Type: reconciler.TimerEvent, Key: "tick"}))
		pids = append(pids, th.Running())
	}

	return pids
}

func TestNewHandler(t *testing.T) {
	t.Parallel()

	logger, _ := ktesting.NewTestContext(t)

	_, err := NewHandler(logger, settings.Settings{}, "priority", time.Second, nil)
	assert.ErrorIs(t, err, policy.ErrUnknownPolicy)

	_, err = NewHandler(logger, settings.Settings{}, policy.PolicyFIFO, 0, nil)
	assert.Error(t, err)
}

func TestHandlerRoundRobin(t *testing.T) {
	t.Parallel()

	th := newTestHost(t, settings.Settings{TimerInterval: ptr.To(3)}, policy.PolicyUnset, nil)
	assert.Equal(t, policy.PolicyRoundRobin, th.SchedPolicy())
	assert.Equal(t, []time.Duration{30 * time.Millisecond}, th.timers)

	require.NoError(t, th.write(t, "vm-a.pid", "11\n"))
	assert.Equal(t, 11, th.Running())

	require.NoError(t, th.write(t, "vm-b.pid", "12\n"))
	assert.Equal(t, 11, th.Running())

	assert.Equal(t, []int{12, 11, 12}, th.ticks(t, 3))
	assert.Len(t, th.timers, 4)

	// only the head of the run may leave
	assert.ErrorIs(t, th.remove(t, "vm-a.pid"), policy.ErrNotInPosition)
	assert.Equal(t, 12, th.Running())

	require.NoError(t, th.remove(t, "vm-b.pid"))
	assert.Equal(t, 11, th.Running())
	assert.Equal(t, []int{11, 11}, th.ticks(t, 2))

	require.NoError(t, th.file(filepath.Join(th.dir, "vm-a.pid"), fsnotify.Remove))
	assert.Equal(t, 0, th.Running())
	assert.Empty(t, th.pids)
	assert.Equal(t, []int{0}, th.ticks(t, 1))
}

func TestHandlerIdleDispatch(t *testing.T) {
	t.Parallel()

	for _, name := range []policy.Name{policy.PolicyFIFO, policy.PolicyArbitrary} {
		t.Run(string(name), func(t *testing.T) {
			t.Parallel()

			th := newTestHost(t, settings.Settings{}, name, nil)

			require.NoError(t, th.write(t, "a.pid", "5"))
			assert.Equal(t, []int{5, 5, 5}, th.ticks(t, 3))

			require.NoError(t, th.write(t, "b.pid", "6"))
			assert.Equal(t, 5, th.Running())

			require.NoError(t, th.remove(t, "a.pid"))
			assert.Equal(t, 6, th.Running())

			require.NoError(t, th.remove(t, "b.pid"))
			assert.Equal(t, 0, th.Running())
		})
	}
}

func TestHandlerLIFO(t *testing.T) {
	t.Parallel()

	th := newTestHost(t, settings.Settings{}, policy.PolicyLIFO, nil)

	require.NoError(t, th.write(t, "a.pid", "5"))
	assert.Equal(t, 5, th.Running())

	require.NoError(t, th.write(t, "b.pid", "6"))
	assert.Equal(t, 6, th.Running())

	assert.Equal(t, []int{6, 6}, th.ticks(t, 2))

	require.NoError(t, th.remove(t, "b.pid"))
	assert.Equal(t, 5, th.Running())
}

func TestHandlerPidFileRewrite(t *testing.T) {
	t.Parallel()

	th := newTestHost(t, settings.Settings{}, policy.PolicyFIFO, nil)

	require.NoError(t, th.write(t, "a.pid", "5"))
	require.NoError(t, th.write(t, "a.pid", "5"))
	require.NoError(t, th.write(t, "a.pid", "7"))

	assert.Equal(t, map[string]int{filepath.Join(th.dir, "a.pid"): 7}, th.pids)
	assert.Contains(t, th.Status(), "Run: [7]")
}

func TestHandlerProportional(t *testing.T) {
	t.Parallel()

	th := newTestHost(t, settings.Settings{MaxProcs: ptr.To(4)}, policy.PolicyProportional, nil)

	require.NoError(t, th.write(t, "a.pid", "1"))
	require.NoError(t, th.write(t, "b.pid", "2"))
	require.NoError(t, th.write(t, "1.share", "75"))

	// pid 1 was dispatched on admission to the idle host
	assert.Equal(t, []int{2, 1, 1, 1}, th.ticks(t, 4))
	assert.Contains(t, th.Status(), "Requested: 75%")

	require.NoError(t, th.remove(t, "1.share"))
	assert.Contains(t, th.Status(), "Requested: 0%")
}

func TestHandlerProcfs(t *testing.T) {
	t.Parallel()

	th := newTestHost(t, settings.Settings{}, policy.PolicyFIFO, FeatureFlags{FeatureProcfs: true})

	assert.Error(t, th.write(t, "a.pid", "vm"))
	assert.Error(t, th.write(t, "a.pid", "999999999"))
	assert.Empty(t, th.pids)

	require.NoError(t, th.write(t, "a.pid", strconv.Itoa(os.Getpid())))
	assert.Len(t, th.pids, 1)
}

func TestHandlerRejections(t *testing.T) {
	t.Parallel()

	th := newTestHost(t, settings.Settings{MaxProcs: ptr.To(1)}, policy.PolicyFIFO, nil)

	require.NoError(t, th.write(t, "a.pid", "100"))
	// table full is final
	require.NoError(t, th.write(t, "b.pid", "101"))
	assert.Equal(t, map[string]int{filepath.Join(th.dir, "a.pid"): 100}, th.pids)

	// shares are rejected by fifo, unknown files are ignored
	require.NoError(t, th.write(t, "100.share", "10"))
	require.NoError(t, th.write(t, "x.share", "10"))
	require.NoError(t, th.write(t, "notes.txt", "hello"))
	require.NoError(t, th.remove(t, "notes.txt"))
	require.NoError(t, th.remove(t, "b.pid"))
	assert.Contains(t, th.Status(), "Run: [100]")

	require.NoError(t, th.remove(t, "a.pid"))
	assert.Empty(t, th.pids)
	assert.Equal(t, 0, th.Running())
}

func TestHandlerRemoveOutOfOrder(t *testing.T) {
	t.Parallel()

	th := newTestHost(t, settings.Settings{}, policy.PolicyFIFO, nil)

	require.NoError(t, th.write(t, "a.pid", "5"))
	require.NoError(t, th.write(t, "b.pid", "6"))

	assert.ErrorIs(t, th.remove(t, "b.pid"), policy.ErrNotInPosition)
	assert.Equal(t, 6, th.pids[filepath.Join(th.dir, "b.pid")])

	require.NoError(t, th.remove(t, "a.pid"))
	assert.Equal(t, 6, th.Running())

	// recreating the file with the same pid is a no-op, removing it ends 6
	require.NoError(t, th.write(t, "b.pid", "6"))
	require.NoError(t, th.remove(t, "b.pid"))

	assert.Empty(t, th.pids)
	assert.Equal(t, 0, th.Running())
	assert.Contains(t, th.Status(), "Procs: 0/")

	require.NoError(t, th.write(t, "b.pid", "6"))
	assert.Equal(t, 6, th.Running())
}

func TestHandlerRewriteRejected(t *testing.T) {
	t.Parallel()

	th := newTestHost(t, settings.Settings{}, policy.PolicyFIFO, nil)

	require.NoError(t, th.write(t, "a.pid", "5"))
	require.NoError(t, th.write(t, "b.pid", "6"))

	// 6 is not at the head, so it cannot be replaced yet
	assert.ErrorIs(t, th.write(t, "b.pid", "7"), policy.ErrNotInPosition)
	assert.Equal(t, 6, th.pids[filepath.Join(th.dir, "b.pid")])
	assert.Contains(t, th.Status(), "Run: [5 6]")
}
