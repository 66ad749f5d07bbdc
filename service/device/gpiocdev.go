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
	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"

	"github.com/gpiokit/linekit/model"
)

// NewCharDev creates a device API backed by the kernel GPIO character
// device, accessed through go-gpiocdev.
func NewCharDev() API {
	return &charDev{}
}

type charDev struct{}

// Open a connection to the GPIO controller with given name.
func (d *charDev) Open(name string) (Conn, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, errors.Wrapf(model.DeviceError, "failed to open chip '%s': %s", name, describeErrno(err))
	}
	return &charDevConn{chip: chip}, nil
}

type charDevConn struct {
	mutex  sync.Mutex
	chip   *gpiocdev.Chip
	closed bool
}

// ChipInfo queries the controller metadata.
func (c *charDevConn) ChipInfo() (model.ChipInfo, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return model.ChipInfo{}, errors.Wrap(model.DeviceError, "chip connection closed")
	}
	return model.ChipInfo{
		Name:  c.chip.Name,
		Label: c.chip.Label,
		Lines: uint(c.chip.Lines()),
	}, nil
}

// LineInfo queries the state of the line at given offset.
func (c *charDevConn) LineInfo(offset uint) (model.LineInfo, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return model.LineInfo{}, errors.Wrap(model.DeviceError, "chip connection closed")
	}
	info, err := c.chip.LineInfo(int(offset))
	if err != nil {
		return model.LineInfo{}, errors.Wrapf(model.DeviceError, "failed to get info of line %d: %s", offset, describeErrno(err))
	}
	direction := model.LineDirectionUnknown
	switch info.Config.Direction {
	case gpiocdev.LineDirectionInput:
		direction = model.LineDirectionInput
	case gpiocdev.LineDirectionOutput:
		direction = model.LineDirectionOutput
	}
	return model.LineInfo{
		Name:      info.Name,
		Used:      info.Used,
		Direction: direction,
		ActiveLow: info.Config.ActiveLow,
		Consumer:  info.Consumer,
	}, nil
}

// RequestLines atomically reserves the lines in the given request.
func (c *charDevConn) RequestLines(req Request) (Lines, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil, errors.Wrap(model.DeviceError, "chip connection closed")
	}

	// Order output lines first, so a partial SetValues call can target
	// exactly the output lines of a mixed-direction request.
	specs := make([]LineSpec, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.Settings.Direction == model.LineDirectionOutput {
			specs = append(specs, l)
		}
	}
	outputs := len(specs)
	for _, l := range req.Lines {
		if l.Settings.Direction != model.LineDirectionOutput {
			specs = append(specs, l)
		}
	}

	buf := newEventBuffer()
	opts := []gpiocdev.LineReqOption{gpiocdev.WithConsumer(req.Consumer)}
	hasEdges := false
	for _, l := range specs {
		if l.Settings.HasEdgeDetection() {
			hasEdges = true
			break
		}
	}
	if hasEdges {
		opts = append(opts, gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			buf.Push(EdgeEvent{
				Offset:    uint(evt.Offset),
				Rising:    evt.Type == gpiocdev.LineEventRisingEdge,
				Timestamp: evt.Timestamp,
				Seqno:     evt.Seqno,
			})
		}))
	}

	offsets := make([]int, len(specs))
	index := make(map[uint]int, len(specs))
	driven := make([]int, outputs)
	for i, l := range specs {
		offsets[i] = int(l.Offset)
		index[l.Offset] = i
		if subset := lineOptions(l.Settings); len(subset) > 0 {
			opts = append(opts, gpiocdev.WithLines([]int{int(l.Offset)}, subset...))
		}
		if i < outputs && l.Settings.OutputValue {
			driven[i] = 1
		}
	}

	lines, err := c.chip.RequestLines(offsets, opts...)
	if err != nil {
		return nil, errors.Wrapf(model.DeviceError, "failed to request lines: %s", describeErrno(err))
	}
	return &charDevLines{
		lines:   lines,
		index:   index,
		count:   len(specs),
		outputs: outputs,
		driven:  driven,
		buf:     buf,
	}, nil
}

// Close the connection to the chip.
func (c *charDevConn) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.chip.Close(); err != nil {
		return errors.Wrapf(model.DeviceError, "failed to close chip: %s", describeErrno(err))
	}
	return nil
}

// lineOptions maps resolved settings onto go-gpiocdev request options
// for a single line.
func lineOptions(s model.LineSettings) []gpiocdev.SubsetLineConfigOption {
	var opts []gpiocdev.SubsetLineConfigOption
	switch s.Direction {
	case model.LineDirectionInput:
		opts = append(opts, gpiocdev.AsInput)
	case model.LineDirectionOutput:
		v := 0
		if s.OutputValue {
			v = 1
		}
		opts = append(opts, gpiocdev.AsOutput(v))
	}
	switch s.Edge {
	case model.LineEdgeRising:
		opts = append(opts, gpiocdev.WithRisingEdge)
	case model.LineEdgeFalling:
		opts = append(opts, gpiocdev.WithFallingEdge)
	case model.LineEdgeBoth:
		opts = append(opts, gpiocdev.WithBothEdges)
	}
	switch s.Drive {
	case model.LineDrivePushPull:
		opts = append(opts, gpiocdev.AsPushPull)
	case model.LineDriveOpenDrain:
		opts = append(opts, gpiocdev.AsOpenDrain)
	case model.LineDriveOpenSource:
		opts = append(opts, gpiocdev.AsOpenSource)
	}
	switch s.Bias {
	case model.LineBiasDisabled:
		opts = append(opts, gpiocdev.WithBiasDisabled)
	case model.LineBiasPullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case model.LineBiasPullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	}
	if s.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	if s.DebouncePeriod > 0 {
		opts = append(opts, gpiocdev.WithDebounce(s.DebouncePeriod))
	}
	return opts
}

type charDevLines struct {
	mutex   sync.Mutex
	lines   *gpiocdev.Lines
	index   map[uint]int
	count   int
	outputs int
	// Shadow of the values driven on the output lines, which occupy the
	// first outputs positions of the request.
	driven []int
	buf    *eventBuffer
	closed bool
}

// Value returns the value of the line at given offset.
func (l *charDevLines) Value(offset uint) (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return 0, errors.Wrap(model.DeviceError, "lines released")
	}
	idx, found := l.index[offset]
	if !found {
		return 0, errors.Wrapf(model.DeviceError, "offset %d is not part of this request", offset)
	}
	vv := make([]int, l.count)
	if err := l.lines.Values(vv); err != nil {
		return 0, errors.Wrapf(model.DeviceError, "failed to get value of line %d: %s", offset, describeErrno(err))
	}
	return vv[idx], nil
}

// SetValue drives the line at given offset to the given value.
func (l *charDevLines) SetValue(offset uint, value int) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return errors.Wrap(model.DeviceError, "lines released")
	}
	idx, found := l.index[offset]
	if !found {
		return errors.Wrapf(model.DeviceError, "offset %d is not part of this request", offset)
	}
	if idx >= l.outputs {
		return errors.Wrapf(model.DeviceError, "offset %d is not requested as output", offset)
	}
	prev := l.driven[idx]
	l.driven[idx] = value
	if err := l.lines.SetValues(l.driven); err != nil {
		l.driven[idx] = prev
		return errors.Wrapf(model.DeviceError, "failed to set value of line %d: %s", offset, describeErrno(err))
	}
	return nil
}

// WaitForEdge blocks until an edge event is available or the timeout expires.
func (l *charDevLines) WaitForEdge(timeout time.Duration) (bool, error) {
	l.mutex.Lock()
	if l.closed {
		l.mutex.Unlock()
		return false, errors.Wrap(model.DeviceError, "lines released")
	}
	buf := l.buf
	l.mutex.Unlock()
	return buf.Wait(timeout), nil
}

// ReadEdge reads a single buffered edge event.
func (l *charDevLines) ReadEdge() (EdgeEvent, error) {
	l.mutex.Lock()
	if l.closed {
		l.mutex.Unlock()
		return EdgeEvent{}, errors.Wrap(model.DeviceError, "lines released")
	}
	buf := l.buf
	l.mutex.Unlock()
	return buf.Next()
}

// Close releases the reservation.
func (l *charDevLines) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.lines.Close(); err != nil {
		return errors.Wrapf(model.DeviceError, "failed to release lines: %s", describeErrno(err))
	}
	return nil
}

// describeErrno translates common errnos into stable messages.
func describeErrno(err error) string {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV):
		return "no such device"
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return "permission denied"
	case errors.Is(err, unix.EBUSY):
		return "line busy"
	case errors.Is(err, unix.EINVAL):
		return "invalid argument"
	}
	return err.Error()
}
