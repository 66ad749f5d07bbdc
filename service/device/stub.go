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

package device

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gpiokit/linekit/model"
)

// NewStub creates an in-memory device API without any chips.
// Chips are added with AddChip. Intended for tests and dry runs.
func NewStub() *Stub {
	return &Stub{
		chips: make(map[string]*StubChip),
	}
}

// Stub is an in-memory implementation of the device API.
type Stub struct {
	mutex sync.Mutex
	chips map[string]*StubChip
}

// AddChip adds a simulated chip with given name, label and line count.
func (s *Stub) AddChip(name, label string, lines uint) *StubChip {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	chip := &StubChip{
		name:  name,
		label: label,
		lines: make([]stubLine, lines),
		start: time.Now(),
	}
	s.chips[name] = chip
	return chip
}

// Open a connection to the chip with given name.
func (s *Stub) Open(name string) (Conn, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	chip, found := s.chips[name]
	if !found {
		return nil, errors.Wrapf(model.DeviceError, "failed to open chip '%s': no such device", name)
	}
	return &stubConn{chip: chip}, nil
}

// StubChip is a single simulated GPIO controller.
type StubChip struct {
	mutex sync.Mutex
	name  string
	label string
	lines []stubLine
	start time.Time
	seqno uint32
}

type stubLine struct {
	name     string
	value    int
	req      *stubLines
	settings model.LineSettings
}

// SetLineName sets the kernel name reported for the line at given offset.
func (c *StubChip) SetLineName(offset uint, name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if int(offset) < len(c.lines) {
		c.lines[offset].name = name
	}
}

// SetPull simulates an external drive of the line at given offset.
// When the line is requested with a matching edge detection mode,
// an edge event is delivered to the holder of the request.
func (c *StubChip) SetPull(offset uint, value int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if int(offset) >= len(c.lines) {
		return errors.Wrapf(model.DeviceError, "invalid offset %d", offset)
	}
	line := &c.lines[offset]
	if line.value == value {
		return nil
	}
	line.value = value
	if line.req == nil || !line.settings.HasEdgeDetection() {
		return nil
	}
	rising := value != 0
	switch line.settings.Edge {
	case model.LineEdgeRising:
		if !rising {
			return nil
		}
	case model.LineEdgeFalling:
		if rising {
			return nil
		}
	}
	c.seqno++
	line.req.buf.Push(EdgeEvent{
		Offset:    offset,
		Rising:    rising,
		Timestamp: time.Since(c.start),
		Seqno:     c.seqno,
	})
	return nil
}

// InjectError makes all device calls of active reservations on this chip
// fail with the given error, to exercise failure paths in tests.
func (c *StubChip) InjectError(err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	seen := make(map[*stubLines]struct{})
	for i := range c.lines {
		if req := c.lines[i].req; req != nil {
			if _, found := seen[req]; !found {
				seen[req] = struct{}{}
				req.setFailure(err)
			}
		}
	}
}

type stubConn struct {
	mutex  sync.Mutex
	chip   *StubChip
	closed bool
}

// ChipInfo queries the controller metadata.
func (c *stubConn) ChipInfo() (model.ChipInfo, error) {
	if err := c.check(); err != nil {
		return model.ChipInfo{}, err
	}
	c.chip.mutex.Lock()
	defer c.chip.mutex.Unlock()
	return model.ChipInfo{
		Name:  c.chip.name,
		Label: c.chip.label,
		Lines: uint(len(c.chip.lines)),
	}, nil
}

// LineInfo queries the state of the line at given offset.
func (c *stubConn) LineInfo(offset uint) (model.LineInfo, error) {
	if err := c.check(); err != nil {
		return model.LineInfo{}, err
	}
	c.chip.mutex.Lock()
	defer c.chip.mutex.Unlock()
	if int(offset) >= len(c.chip.lines) {
		return model.LineInfo{}, errors.Wrapf(model.DeviceError, "invalid offset %d", offset)
	}
	line := c.chip.lines[offset]
	info := model.LineInfo{
		Name:      line.name,
		Direction: model.LineDirectionUnknown,
	}
	if line.req != nil {
		info.Used = true
		info.Consumer = line.req.consumer
		info.ActiveLow = line.settings.ActiveLow
		switch line.settings.Direction {
		case model.LineDirectionInput:
			info.Direction = model.LineDirectionInput
		case model.LineDirectionOutput:
			info.Direction = model.LineDirectionOutput
		}
	}
	return info, nil
}

// RequestLines atomically reserves the lines in the given request.
// The grant is all-or-nothing, as with the kernel uAPI.
func (c *stubConn) RequestLines(req Request) (Lines, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	c.chip.mutex.Lock()
	defer c.chip.mutex.Unlock()
	for _, l := range req.Lines {
		if int(l.Offset) >= len(c.chip.lines) {
			return nil, errors.Wrapf(model.DeviceError, "failed to request lines: invalid offset %d", l.Offset)
		}
		if c.chip.lines[l.Offset].req != nil {
			return nil, errors.Wrapf(model.DeviceError, "failed to request lines: line %d busy", l.Offset)
		}
	}
	result := &stubLines{
		chip:     c.chip,
		consumer: req.Consumer,
		settings: make(map[uint]model.LineSettings, len(req.Lines)),
		buf:      newEventBuffer(),
	}
	for _, l := range req.Lines {
		line := &c.chip.lines[l.Offset]
		line.req = result
		line.settings = l.Settings
		if l.Settings.Direction == model.LineDirectionOutput {
			line.value = 0
			if l.Settings.OutputValue {
				line.value = 1
			}
		}
		result.settings[l.Offset] = l.Settings
	}
	return result, nil
}

// Close the connection. Outstanding reservations stay valid.
func (c *stubConn) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.closed = true
	return nil
}

func (c *stubConn) check() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return errors.Wrap(model.DeviceError, "chip connection closed")
	}
	return nil
}

type stubLines struct {
	mutex    sync.Mutex
	chip     *StubChip
	consumer string
	settings map[uint]model.LineSettings
	buf      *eventBuffer
	failure  error
	closed   bool
}

// Value returns the value of the line at given offset.
func (l *stubLines) Value(offset uint) (int, error) {
	if err := l.check(offset); err != nil {
		return 0, err
	}
	l.chip.mutex.Lock()
	defer l.chip.mutex.Unlock()
	return l.chip.lines[offset].value, nil
}

// SetValue drives the line at given offset to the given value.
func (l *stubLines) SetValue(offset uint, value int) error {
	if err := l.check(offset); err != nil {
		return err
	}
	l.mutex.Lock()
	output := l.settings[offset].Direction == model.LineDirectionOutput
	l.mutex.Unlock()
	if !output {
		return errors.Wrapf(model.DeviceError, "offset %d is not requested as output", offset)
	}
	l.chip.mutex.Lock()
	defer l.chip.mutex.Unlock()
	l.chip.lines[offset].value = value
	return nil
}

// WaitForEdge blocks until an edge event is available or the timeout expires.
func (l *stubLines) WaitForEdge(timeout time.Duration) (bool, error) {
	l.mutex.Lock()
	if l.closed {
		l.mutex.Unlock()
		return false, errors.Wrap(model.DeviceError, "lines released")
	}
	failure := l.failure
	buf := l.buf
	l.mutex.Unlock()
	if failure != nil {
		return false, maskAny(failure)
	}
	ok := buf.Wait(timeout)
	l.mutex.Lock()
	failure = l.failure
	l.mutex.Unlock()
	if failure != nil {
		return false, maskAny(failure)
	}
	return ok, nil
}

// ReadEdge reads a single buffered edge event.
func (l *stubLines) ReadEdge() (EdgeEvent, error) {
	l.mutex.Lock()
	if l.closed {
		l.mutex.Unlock()
		return EdgeEvent{}, errors.Wrap(model.DeviceError, "lines released")
	}
	failure := l.failure
	buf := l.buf
	l.mutex.Unlock()
	if failure != nil {
		return EdgeEvent{}, maskAny(failure)
	}
	return buf.Next()
}

// Close releases the reservation.
func (l *stubLines) Close() error {
	l.mutex.Lock()
	if l.closed {
		l.mutex.Unlock()
		return nil
	}
	l.closed = true
	l.mutex.Unlock()
	l.chip.mutex.Lock()
	defer l.chip.mutex.Unlock()
	for i := range l.chip.lines {
		if l.chip.lines[i].req == l {
			l.chip.lines[i].req = nil
			l.chip.lines[i].settings = model.LineSettings{}
		}
	}
	return nil
}

func (l *stubLines) setFailure(err error) {
	l.mutex.Lock()
	l.failure = err
	l.mutex.Unlock()
	l.buf.signal()
}

func (l *stubLines) check(offset uint) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return errors.Wrap(model.DeviceError, "lines released")
	}
	if l.failure != nil {
		return maskAny(l.failure)
	}
	if _, found := l.settings[offset]; !found {
		return errors.Wrapf(model.DeviceError, "offset %d is not part of this request", offset)
	}
	return nil
}

var maskAny = errors.WithStack
