// Copyright 2025 The linekit authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gpio

import (
	"github.com/gpiokit/linekit/pkg/metrics"
)

const (
	subSystem = "gpio"
)

var (
	// Number of chips opened
	chipsOpenedTotal = metrics.MustRegisterCounter(subSystem,
		"chips_opened_total",
		"Number of chips opened")

	// Number of line requests granted
	requestsTotal = metrics.MustRegisterCounter(subSystem,
		"requests_total",
		"Number of line requests granted")

	// Number of line requests denied by the device
	requestFailuresTotal = metrics.MustRegisterCounter(subSystem,
		"request_failures_total",
		"Number of line requests denied by the device")

	// Number of lines reserved across all granted requests
	linesRequestedTotal = metrics.MustRegisterCounter(subSystem,
		"lines_requested_total",
		"Number of lines reserved across all granted requests")

	// Number of line value reads
	valueGetsTotal = metrics.MustRegisterCounter(subSystem,
		"value_gets_total",
		"Number of line value reads")

	// Number of line value writes
	valueSetsTotal = metrics.MustRegisterCounter(subSystem,
		"value_sets_total",
		"Number of line value writes")

	// Number of watches started
	watchesStartedTotal = metrics.MustRegisterCounter(subSystem,
		"watches_started_total",
		"Number of watches started")

	// Number of watches stopped
	watchesStoppedTotal = metrics.MustRegisterCounter(subSystem,
		"watches_stopped_total",
		"Number of watches stopped")

	// Number of edge events delivered, per offset
	edgeEventsTotal = metrics.MustRegisterCounterVec(subSystem,
		"edge_events_total",
		"Number of edge events delivered",
		"offset")

	// Number of device errors delivered to watch error callbacks
	watchErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"watch_errors_total",
		"Number of device errors delivered to watch error callbacks")
)
