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
	"time"

	"github.com/gpiokit/linekit/model"
)

// API of the device service, the boundary towards the kernel GPIO
// character device. All higher layers go through this interface so they
// can run against real hardware or an in-memory stub.
type API interface {
	// Open a connection to the GPIO controller with given name.
	Open(name string) (Conn, error)
}

// Conn is a single open connection to a GPIO controller.
type Conn interface {
	// ChipInfo queries the controller metadata.
	ChipInfo() (model.ChipInfo, error)
	// LineInfo queries the state of the line at given offset.
	// The consumer field is raw; empty when the line is unused.
	LineInfo(offset uint) (model.LineInfo, error)
	// RequestLines atomically reserves the lines in the given request.
	// The request is granted or denied as a whole.
	RequestLines(req Request) (Lines, error)
	// Close the connection. Outstanding line reservations stay valid.
	Close() error
}

// Request describes one atomic multi-line reservation.
type Request struct {
	// Consumer tag recorded by the device for this reservation
	Consumer string
	// Requested lines in caller order, each with resolved settings
	Lines []LineSpec
}

// LineSpec pairs one offset with its resolved settings.
type LineSpec struct {
	Offset   uint
	Settings model.LineSettings
}

// Lines is a live multi-line reservation.
type Lines interface {
	// Value returns the value (0 or 1) of the line at given offset.
	Value(offset uint) (int, error)
	// SetValue drives the line at given offset to the given value (0 or 1).
	SetValue(offset uint, value int) error
	// WaitForEdge blocks until an edge event is available on any of the
	// reserved lines, or the given timeout expires.
	// Returns true when an event is available for reading.
	WaitForEdge(timeout time.Duration) (bool, error)
	// ReadEdge reads a single buffered edge event.
	// Fails when no event is available.
	ReadEdge() (EdgeEvent, error)
	// Close releases the reservation. Idempotent.
	Close() error
}

// EdgeEvent is a single edge transition reported by the device.
type EdgeEvent struct {
	// Offset of the line the transition occurred on
	Offset uint
	// True for a rising edge, false for a falling edge
	Rising bool
	// Time of the transition, as reported by the kernel
	Timestamp time.Duration
	// Sequence number of the event on this line
	Seqno uint32
}
