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

package gpio

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gpiokit/linekit/model"
	"github.com/gpiokit/linekit/service/device"
)

// Consumer tag recorded by the device for every line request.
const consumerName = "linekit"

// RequestLines resolves the settings for the given offsets from the
// given configuration and reserves the lines in one atomic request on
// the device. The request is granted or denied as a whole; there is no
// partial grant.
//
// Settings resolution, per offset in caller order:
//   - settings explicitly configured for the offset, when present;
//   - otherwise the settings configured for offset 0, when present;
//   - otherwise the settings of the first configured offset.
//
// When no offset was ever configured, all lines are requested with
// device default settings.
func RequestLines(chip *Chip, offsets []uint, config *LineConfig, log zerolog.Logger) (*LineRequest, error) {
	conn, err := chip.connection()
	if err != nil {
		return nil, maskAny(err)
	}

	devReq := device.Request{
		Consumer: consumerName,
		Lines:    make([]device.LineSpec, 0, len(offsets)),
	}
	resolved := make(map[uint]model.LineSettings, len(offsets))
	for _, offset := range offsets {
		settings := resolveSettings(offset, config)
		resolved[offset] = settings
		devReq.Lines = append(devReq.Lines, device.LineSpec{
			Offset:   offset,
			Settings: settings,
		})
	}

	lines, err := conn.RequestLines(devReq)
	if err != nil {
		requestFailuresTotal.Inc()
		return nil, maskAny(err)
	}
	requestsTotal.Inc()
	linesRequestedTotal.Add(float64(len(offsets)))
	log.Debug().
		Str("chip", chip.Name()).
		Uints("offsets", offsets).
		Msg("lines requested")
	return &LineRequest{
		chip:     chip,
		offsets:  append([]uint(nil), offsets...),
		resolved: resolved,
		log:      log.With().Str("component", "gpio.request").Str("chip", chip.Name()).Logger(),
		lines:    lines,
	}, nil
}

// resolveSettings returns the settings to request for the given offset.
func resolveSettings(offset uint, config *LineConfig) model.LineSettings {
	if config == nil || config.IsEmpty() {
		return model.LineSettings{}
	}
	if s, found := config.SettingsFor(offset); found {
		return s
	}
	if s, found := config.SettingsFor(0); found {
		return s
	}
	s, _ := config.firstConfigured()
	return s
}

// LineRequest is a live reservation of one or more lines under
// resolved settings. It is either fully live or fully released.
type LineRequest struct {
	chip     *Chip
	offsets  []uint
	resolved map[uint]model.LineSettings
	log      zerolog.Logger
	mutex    sync.Mutex
	lines    device.Lines
}

// Offsets returns the requested offsets in caller order.
func (r *LineRequest) Offsets() []uint {
	return append([]uint(nil), r.offsets...)
}

// Settings returns the resolved settings the line at given offset was
// requested with. Returns false when the offset is not part of this
// request.
func (r *LineRequest) Settings(offset uint) (model.LineSettings, bool) {
	s, found := r.resolved[offset]
	return s, found
}

// GetValue returns the value (0 or 1) of the line at given offset.
func (r *LineRequest) GetValue(offset uint) (int, error) {
	lines, err := r.liveLines()
	if err != nil {
		return 0, maskAny(err)
	}
	if _, found := r.resolved[offset]; !found {
		return 0, errors.Wrapf(model.DeviceError, "offset %d is not part of this request", offset)
	}
	value, err := lines.Value(offset)
	if err != nil {
		return 0, maskAny(err)
	}
	valueGetsTotal.Inc()
	return value, nil
}

// SetValue drives the line at given offset to the given value (0 or 1).
// The line must have been requested as output.
func (r *LineRequest) SetValue(offset uint, value int) error {
	lines, err := r.liveLines()
	if err != nil {
		return maskAny(err)
	}
	settings, found := r.resolved[offset]
	if !found {
		return errors.Wrapf(model.DeviceError, "offset %d is not part of this request", offset)
	}
	if settings.Direction != model.LineDirectionOutput {
		return errors.Wrapf(model.StateError, "line %d is not configured as output", offset)
	}
	if err := lines.SetValue(offset, value); err != nil {
		return maskAny(err)
	}
	valueSetsTotal.Inc()
	return nil
}

// Release the reservation, invalidating all offsets of this request
// simultaneously. Releasing an already released request is a no-op.
func (r *LineRequest) Release() error {
	r.mutex.Lock()
	lines := r.lines
	r.lines = nil
	r.mutex.Unlock()
	if lines == nil {
		return nil
	}
	if err := lines.Close(); err != nil {
		return maskAny(err)
	}
	r.log.Debug().Uints("offsets", r.offsets).Msg("lines released")
	return nil
}

// waitForEdge blocks until an edge event is available on one of the
// reserved lines, or the timeout expires.
func (r *LineRequest) waitForEdge(timeout time.Duration) (bool, error) {
	lines, err := r.liveLines()
	if err != nil {
		return false, maskAny(err)
	}
	return lines.WaitForEdge(timeout)
}

// readEdge reads a single buffered edge event.
func (r *LineRequest) readEdge() (device.EdgeEvent, error) {
	lines, err := r.liveLines()
	if err != nil {
		return device.EdgeEvent{}, maskAny(err)
	}
	return lines.ReadEdge()
}

// liveLines returns the device reservation,
// or a state error when the request has been released.
func (r *LineRequest) liveLines() (device.Lines, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.lines == nil {
		return nil, errors.Wrap(model.StateError, "request is not active")
	}
	return r.lines, nil
}
