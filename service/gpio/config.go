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
	"time"

	"github.com/pkg/errors"

	"github.com/gpiokit/linekit/model"
)

// LineConfig accumulates desired per-line settings before a request is
// made. Setters apply to the current offset, selected with SetOffset
// (offset 0 before the first SetOffset call). Settings entries are
// created on demand with device defaults.
//
// A LineConfig is a single-writer builder; it is not safe for
// concurrent mutation.
type LineConfig struct {
	current  uint
	settings map[uint]*model.LineSettings
	// offsets in the order they were first configured
	order []uint
}

// NewLineConfig creates an empty line configuration.
func NewLineConfig() *LineConfig {
	return &LineConfig{
		settings: make(map[uint]*model.LineSettings),
	}
}

// SetOffset selects the line offset targeted by subsequent setters,
// creating a default settings entry for it when absent.
func (c *LineConfig) SetOffset(offset uint) {
	c.current = offset
	c.ensureCurrent()
}

// SetDirection sets the direction ("input" or "output") of the current line.
func (c *LineConfig) SetDirection(direction string) error {
	d := model.LineDirection(direction)
	if err := d.Validate(); err != nil {
		return maskAny(err)
	}
	c.ensureCurrent().Direction = d
	return nil
}

// SetEdge sets the edge detection mode ("none", "rising", "falling" or
// "both") of the current line.
func (c *LineConfig) SetEdge(edge string) error {
	e := model.LineEdge(edge)
	if err := e.Validate(); err != nil {
		return maskAny(err)
	}
	c.ensureCurrent().Edge = e
	return nil
}

// SetDrive sets the drive mode ("push_pull", "open_drain" or
// "open_source") of the current line.
func (c *LineConfig) SetDrive(drive string) error {
	d := model.LineDrive(drive)
	if err := d.Validate(); err != nil {
		return maskAny(err)
	}
	c.ensureCurrent().Drive = d
	return nil
}

// SetBias sets the bias mode ("unknown", "disabled", "pull_up" or
// "pull_down") of the current line.
func (c *LineConfig) SetBias(bias string) error {
	b := model.LineBias(bias)
	if err := b.Validate(); err != nil {
		return maskAny(err)
	}
	c.ensureCurrent().Bias = b
	return nil
}

// SetActiveLow sets the active-low flag of the current line.
func (c *LineConfig) SetActiveLow(activeLow bool) {
	c.ensureCurrent().ActiveLow = activeLow
}

// SetOutputValue sets the initial output value of the current line.
func (c *LineConfig) SetOutputValue(value bool) {
	c.ensureCurrent().OutputValue = value
}

// SetDebouncePeriod sets the debounce period of the current line,
// in microseconds.
func (c *LineConfig) SetDebouncePeriod(microseconds int64) error {
	if microseconds < 0 {
		return errors.Wrapf(model.ValidationError, "invalid debounce period %d", microseconds)
	}
	c.ensureCurrent().DebouncePeriod = time.Duration(microseconds) * time.Microsecond
	return nil
}

// SettingsFor returns the settings configured for the given offset.
// Returns false when the offset was never configured.
func (c *LineConfig) SettingsFor(offset uint) (model.LineSettings, bool) {
	if s, found := c.settings[offset]; found {
		return *s, true
	}
	return model.LineSettings{}, false
}

// Offsets returns the configured offsets in the order they were first
// configured. The order makes the first-configured fallback used during
// settings resolution deterministic.
func (c *LineConfig) Offsets() []uint {
	result := make([]uint, len(c.order))
	copy(result, c.order)
	return result
}

// IsEmpty returns true when no offset was ever configured.
func (c *LineConfig) IsEmpty() bool {
	return len(c.order) == 0
}

// firstConfigured returns the settings of the offset that was
// configured first.
func (c *LineConfig) firstConfigured() (model.LineSettings, bool) {
	if len(c.order) == 0 {
		return model.LineSettings{}, false
	}
	return *c.settings[c.order[0]], true
}

// ensureCurrent returns the settings entry for the current offset,
// creating it with device defaults when absent.
func (c *LineConfig) ensureCurrent() *model.LineSettings {
	if s, found := c.settings[c.current]; found {
		return s
	}
	s := &model.LineSettings{}
	c.settings[c.current] = s
	c.order = append(c.order, c.current)
	return s
}
