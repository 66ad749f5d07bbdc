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

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gpiokit/linekit/model"
	"github.com/gpiokit/linekit/service/device"
)

// Chip represents a single open connection to a GPIO controller.
// Lines and requests hold a non-owning reference to the chip; whoever
// opened the chip owns it and must keep it open while they exist.
type Chip struct {
	name  string
	log   zerolog.Logger
	mutex sync.Mutex
	conn  device.Conn
}

// Open a connection to the GPIO controller with given name
// (e.g. "gpiochip0").
func Open(name string, dev device.API, log zerolog.Logger) (*Chip, error) {
	conn, err := dev.Open(name)
	if err != nil {
		return nil, maskAny(err)
	}
	chipsOpenedTotal.Inc()
	return &Chip{
		name: name,
		log:  log.With().Str("component", "gpio.chip").Str("chip", name).Logger(),
		conn: conn,
	}, nil
}

// Name returns the name the chip was opened with.
func (c *Chip) Name() string {
	return c.name
}

// LineCount returns the number of lines on the controller.
func (c *Chip) LineCount() (uint, error) {
	conn, err := c.connection()
	if err != nil {
		return 0, maskAny(err)
	}
	info, err := conn.ChipInfo()
	if err != nil {
		return 0, maskAny(err)
	}
	return info.Lines, nil
}

// Label returns the label of the controller.
func (c *Chip) Label() (string, error) {
	conn, err := c.connection()
	if err != nil {
		return "", maskAny(err)
	}
	info, err := conn.ChipInfo()
	if err != nil {
		return "", maskAny(err)
	}
	return info.Label, nil
}

// LineInfo returns the state of the line at given offset.
// Every call queries the device again; line state can be changed by
// other processes at any time.
func (c *Chip) LineInfo(offset uint) (model.LineInfo, error) {
	conn, err := c.connection()
	if err != nil {
		return model.LineInfo{}, maskAny(err)
	}
	info, err := conn.LineInfo(offset)
	if err != nil {
		return model.LineInfo{}, maskAny(err)
	}
	if info.Consumer == "" {
		info.Consumer = model.ConsumerUnused
	}
	return info, nil
}

// Close the connection to the controller.
// Closing an already closed chip is a no-op.
func (c *Chip) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	if err := conn.Close(); err != nil {
		return maskAny(err)
	}
	c.log.Debug().Msg("chip closed")
	return nil
}

// connection returns the open device connection,
// or a state error when the chip is closed.
func (c *Chip) connection() (device.Conn, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.conn == nil {
		return nil, errors.Wrapf(model.StateError, "chip '%s' is closed", c.name)
	}
	return c.conn, nil
}
