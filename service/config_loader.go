//    Copyright 2025 The linekit authors
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package service

import (
	"encoding/json"
	"os"

	"github.com/gpiokit/linekit/model"
)

// LoadMonitorConfig reads and validates a monitor configuration from
// the JSON file at the given path.
func LoadMonitorConfig(path string) (model.MonitorConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.MonitorConfig{}, maskAny(err)
	}
	var config model.MonitorConfig
	if err := json.Unmarshal(raw, &config); err != nil {
		return model.MonitorConfig{}, maskAny(err)
	}
	if err := config.Validate(); err != nil {
		return model.MonitorConfig{}, maskAny(err)
	}
	return config, nil
}
