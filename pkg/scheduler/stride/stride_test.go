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

package stride

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k8s.io/klog/v2/ktesting"
)

func newTestEngine(t *testing.T, maxProcs int, pids ...int) *Engine {
	t.Helper()

	logger, _ := ktesting.NewTestContext(t)
	e := lo.Must(NewEngine(logger, maxProcs, DefaultStrideConstant))

	for _, pid := range pids {
		require.NoError(t, e.Admit(pid))
	}

	return e
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	logger, _ := ktesting.NewTestContext(t)

	_, err := NewEngine(logger, 4, 10)
	assert.Error(t, err)

	_, err = NewEngine(logger, 0, DefaultStrideConstant)
	assert.Error(t, err)
}

func TestAdmitRemove(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 4, 1, 2)
	assert.Equal(t, "Requested: 0%, Procs: [1:50% 2:50%]", e.Status())

	assert.ErrorIs(t, e.Admit(1), ErrDuplicatePID)
	assert.ErrorIs(t, e.Admit(0), ErrPIDOutOfRange)
	assert.ErrorIs(t, e.Admit(5), ErrPIDOutOfRange)
	assert.ErrorIs(t, e.Remove(3), ErrNotFound)

	require.NoError(t, e.Admit(4))
	assert.Equal(t, "Requested: 0%, Procs: [1:33% 2:33% 4:33%]", e.Status())

	require.NoError(t, e.RequestShare(2, 40))
	require.NoError(t, e.Remove(2))
	assert.Equal(t, 0, e.Requested())
	assert.Equal(t, "Requested: 0%, Procs: [1:50% 4:50%]", e.Status())
}

func TestRequestShare(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		pids     []int
		requests [][2]int

		err       error
		requested int
		status    string
	}{
		{
			name:      "explicit share with two unrequested",
			pids:      []int{1, 2, 3},
			requests:  [][2]int{{1, 40}},
			requested: 40,
			status:    "Requested: 40%, Procs: [1:40%* 2:30% 3:30%]",
		},
		{
			name:      "second request exceeds capacity",
			pids:      []int{1, 2},
			requests:  [][2]int{{1, 60}, {2, 50}},
			err:       ErrShareExceeded,
			requested: 60,
			status:    "Requested: 60%, Procs: [1:60%* 2:40%]",
		},
		{
			name:      "request above range",
			pids:      []int{1},
			requests:  [][2]int{{1, 101}},
			err:       ErrInvalidShare,
			requested: 0,
			status:    "Requested: 0%, Procs: [1:100%]",
		},
		{
			name:      "request below range",
			pids:      []int{1},
			requests:  [][2]int{{1, 30}, {1, -1}},
			err:       ErrInvalidShare,
			requested: 30,
			status:    "Requested: 30%, Procs: [1:30%*]",
		},
		{
			name:      "request for unknown pid",
			pids:      []int{1},
			requests:  [][2]int{{2, 10}},
			err:       ErrNotFound,
			requested: 0,
			status:    "Requested: 0%, Procs: [1:100%]",
		},
		{
			name:      "zero without reservation",
			pids:      []int{1, 2},
			requests:  [][2]int{{1, 0}},
			requested: 0,
			status:    "Requested: 0%, Procs: [1:50% 2:50%]",
		},
		{
			name:      "update reservation",
			pids:      []int{1, 2},
			requests:  [][2]int{{1, 60}, {2, 30}, {1, 70}},
			requested: 100,
			status:    "Requested: 100%, Procs: [1:70%* 2:30%*]",
		},
		{
			name:      "update reservation exceeds capacity",
			pids:      []int{1, 2},
			requests:  [][2]int{{1, 60}, {2, 30}, {1, 71}},
			err:       ErrShareExceeded,
			requested: 90,
			status:    "Requested: 90%, Procs: [1:60%* 2:30%*]",
		},
		{
			name:      "release reservation",
			pids:      []int{1, 2},
			requests:  [][2]int{{1, 60}, {1, 0}},
			requested: 0,
			status:    "Requested: 0%, Procs: [1:50% 2:50%]",
		},
		{
			name:      "starve unrequested",
			pids:      []int{1, 2, 3, 4},
			requests:  [][2]int{{1, 98}},
			requested: 98,
			status:    "Requested: 98%, Procs: [1:98%* 2:0%! 3:0%! 4:0%!]",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e := newTestEngine(t, 4, tc.pids...)

			var err error

			for i, r := range tc.requests {
				before := e.Table().Snapshot()

				err = e.RequestShare(r[0], r[1])
				if err != nil {
					require.Equal(t, len(tc.requests)-1, i, "unexpected failure: %v", err)
					assert.Empty(t, cmp.Diff(before, e.Table().Snapshot()), "failed request changed the table")
				}
			}

			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, tc.requested, e.Requested())
			assert.Equal(t, tc.status, e.Status())
		})
	}
}

func TestImplicitStride(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 4, 1, 2, 3)
	require.NoError(t, e.RequestShare(1, 40))

	assert.Equal(t, DefaultStrideConstant/40, e.Table().Slot(0).Stride)
	assert.Equal(t, DefaultStrideConstant/30, e.Table().Slot(1).Stride)
	assert.Equal(t, DefaultStrideConstant/30, e.Table().Slot(2).Stride)
}

func TestReservationResetsPass(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 4, 1, 2)
	require.NoError(t, e.RequestShare(1, 50))

	for range 5 {
		_, ok := e.Select()
		require.True(t, ok)
	}

	require.NotZero(t, e.Table().Slot(0).PassValue)

	require.NoError(t, e.RequestShare(1, 25))
	assert.Zero(t, e.Table().Slot(0).PassValue)
	assert.Equal(t, DefaultStrideConstant/25, e.Table().Slot(0).Stride)

	for range 5 {
		_, ok := e.Select()
		require.True(t, ok)
	}

	require.NoError(t, e.RequestShare(1, 0))
	assert.Zero(t, e.Table().Slot(0).PassValue)
	assert.False(t, e.Table().Slot(0).Requested)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 4)

	_, ok := e.Select()
	assert.False(t, ok, "empty table has nothing to run")

	require.NoError(t, e.Admit(2))
	require.NoError(t, e.Admit(1))

	picks := []int{}
	for range 6 {
		pid, ok := e.Select()
		require.True(t, ok)

		picks = append(picks, pid)
	}

	assert.Equal(t, []int{1, 2, 1, 2, 1, 2}, picks, "ties go to the lowest pid")
}

func TestSelectStarved(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 4, 1, 2, 3)
	require.NoError(t, e.RequestShare(2, 99))

	for range 10 {
		pid, ok := e.Select()
		require.True(t, ok)
		assert.Equal(t, 2, pid)
	}

	require.NoError(t, e.Remove(2))

	pid, ok := e.Select()
	require.True(t, ok)
	assert.Equal(t, 1, pid)
}

func TestSelectProportion(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 4, 1, 2)
	require.NoError(t, e.RequestShare(1, 75))

	counts := map[int]int{}

	for range 400 {
		pid, ok := e.Select()
		require.True(t, ok)

		counts[pid]++
	}

	assert.InDelta(t, 300, counts[1], 3)
	assert.InDelta(t, 100, counts[2], 3)
}

func TestStrideMonotonic(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 4, 1, 2, 3)
	require.NoError(t, e.RequestShare(3, 20))

	last := map[int]int64{}

	for range 200 {
		pid, ok := e.Select()
		require.True(t, ok)

		s := e.Table().Slot(pid - 1)
		if prev, seen := last[pid]; seen {
			assert.Greater(t, s.PassValue, prev)
			assert.Equal(t, prev+s.Stride, s.PassValue)
		}

		last[pid] = s.PassValue
	}
}

func TestSelectOverflow(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 4, 1, 2, 3)
	require.NoError(t, e.RequestShare(3, 20))

	// stride 2500 for 1 and 2, 5000 for 3
	e.passLimit = 12000

	for range 50 {
		before := e.Table().Snapshot()

		pid, ok := e.Select()
		require.True(t, ok)

		after := e.Table().Snapshot()
		w := after[pid-1]

		assert.LessOrEqual(t, w.PassValue, e.passLimit)

		// Every pairwise ordering among the other admitted processes is kept.
		for i := range before {
			for j := range before {
				if i == pid-1 || j == pid-1 || !before[i].Valid || !before[j].Valid {
					continue
				}

				assert.Equal(t, before[i].PassValue < before[j].PassValue, after[i].PassValue < after[j].PassValue)
			}
		}
	}
}

func TestCapacityConservation(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 8)

	ops := []func(){
		func() { _ = e.Admit(1) },
		func() { _ = e.Admit(2) },
		func() { _ = e.RequestShare(1, 55) },
		func() { _ = e.Admit(3) },
		func() { _ = e.RequestShare(2, 45) },
		func() { _ = e.Admit(4) },
		func() { _ = e.RequestShare(2, 30) },
		func() { _ = e.Admit(5) },
		func() { _ = e.Remove(1) },
		func() { _ = e.RequestShare(4, 99) },
		func() { _ = e.Admit(6) },
		func() { _ = e.RequestShare(2, 0) },
	}

	for _, op := range ops {
		op()

		total := 0
		for _, s := range e.Table().Snapshot() {
			if s.Valid && s.Runnable {
				total += s.Percent
			}
		}

		assert.LessOrEqual(t, total, MaxShare, e.Status())
	}
}
