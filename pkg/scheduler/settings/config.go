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

// Package settings loads the scheduler configuration.
package settings

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// LoadSettingsFromFile loads the settings of host from a YAML or JSON file.
// It falls back to the "*" entry and returns nil when neither exists.
func LoadSettingsFromFile(name, host string) (*Settings, error) {
	if name == "" {
		return nil, nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read scheduler settings file %s: %w", name, err)
	}

	config := SettingsConfig{}

	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scheduler settings %s: %w", name, err)
	}

	params, ok := config[host]
	if !ok {
		if params, ok = config["*"]; !ok {
			return nil, nil
		}
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler settings for %s in %s: %w", host, name, err)
	}

	return &params, nil
}
