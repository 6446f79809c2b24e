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

import (
	"github.com/pkg/errors"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/stride"
)

var (
	// ErrTableFull is returned when admitting into a full table.
	ErrTableFull = errors.New("no free table entries")
	// ErrNotInPosition is returned when removing a process that the discipline
	// does not allow to leave yet.
	ErrNotInPosition = errors.New("process is not in removal position")
	// ErrDuplicatePID is returned when admitting a pid that is already present.
	ErrDuplicatePID = stride.ErrDuplicatePID
	// ErrNotFound is returned when removing a pid that is not present.
	ErrNotFound = stride.ErrNotFound
	// ErrPIDOutOfRange is returned by the proportional discipline for a pid
	// outside [1, MaxProcs].
	ErrPIDOutOfRange = stride.ErrPIDOutOfRange
	// ErrInvalidShare is returned for a share request outside [0, 100].
	ErrInvalidShare = stride.ErrInvalidShare
	// ErrShareExceeded is returned when reservations would exceed 100%.
	ErrShareExceeded = stride.ErrShareExceeded
	// ErrSharesUnsupported is returned for share requests under a discipline
	// without CPU reservations.
	ErrSharesUnsupported = errors.New("CPU share requests are not supported")
	// ErrUnknownPolicy is returned by New for an unknown name.
	ErrUnknownPolicy = errors.New("unknown scheduling policy")
)
