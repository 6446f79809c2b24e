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

import "github.com/pkg/errors"

var (
	// ErrPIDOutOfRange is returned for a pid outside [1, maxProcs].
	ErrPIDOutOfRange = errors.New("pid out of range")
	// ErrDuplicatePID is returned when admitting a pid that is already present.
	ErrDuplicatePID = errors.New("pid already admitted")
	// ErrNotFound is returned for a pid that is not admitted.
	ErrNotFound = errors.New("pid not admitted")
	// ErrInvalidShare is returned for a share outside [0, 100].
	ErrInvalidShare = errors.New("invalid CPU share")
	// ErrShareExceeded is returned when the aggregate reservation would exceed 100%.
	ErrShareExceeded = errors.New("CPU share exceeds available capacity")
)
