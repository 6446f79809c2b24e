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

package sys

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadIntFromFile returns the integer stored in filePath, ignoring
// surrounding whitespace.
func ReadIntFromFile(filePath string) (int, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, err
	}

	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid number in file %s: %w", filePath, err)
	}

	return v, nil
}

func GetPidFromFile(filePath string) (int, error) {
	pid, err := ReadIntFromFile(filePath)
	if err != nil {
		return 0, err
	}

	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID %d in file %s", pid, filePath)
	}

	return pid, nil
}

func ProcessExists(pid int) bool {
	if pid <= 0 {
		return false
	}

	if _, err := os.Stat(fmt.Sprintf("/proc/%d", pid)); os.IsNotExist(err) {
		return false
	}

	if _, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid)); err != nil {
		return false
	}

	return true
}
