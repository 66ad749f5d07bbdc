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
	"go.uber.org/multierr"

	"github.com/gpiokit/linekit/model"
)

// Line binds a chip, one offset and optionally a line request into a
// single addressable unit. Exporting a line binds a request to it;
// once exported the line owns the request and releases it on
// unexport or close.
type Line struct {
	chip   *Chip
	offset uint
	log    zerolog.Logger

	// mutex guards request & watcher references
	mutex   sync.Mutex
	request *LineRequest
	watcher *watcher
	// watchMutex serializes Watch/Unwatch/Unexport, so a watcher join
	// never runs while holding mutex. Callbacks that call back into the
	// Line therefore cannot deadlock an in-flight Unwatch.
	watchMutex sync.Mutex
}

// NewLine creates a line bound to the given chip and offset.
func NewLine(chip *Chip, offset uint, log zerolog.Logger) *Line {
	return &Line{
		chip:   chip,
		offset: offset,
		log: log.With().
			Str("component", "gpio.line").
			Str("chip", chip.Name()).
			Uint("offset", offset).
			Logger(),
	}
}

// Offset returns the offset this line is bound to.
func (l *Line) Offset() uint {
	return l.offset
}

// Export binds the given request to this line. When the line is
// already exported, the previous watch is stopped and the previous
// request released first.
func (l *Line) Export(request *LineRequest) error {
	if err := l.Unexport(); err != nil {
		return maskAny(err)
	}
	l.mutex.Lock()
	l.request = request
	l.mutex.Unlock()
	l.log.Debug().Msg("line exported")
	return nil
}

// Unexport stops any active watch, then releases the bound request.
// Unexporting a line that is not exported is a no-op.
func (l *Line) Unexport() error {
	l.watchMutex.Lock()
	defer l.watchMutex.Unlock()
	l.stopWatch()
	l.mutex.Lock()
	request := l.request
	l.request = nil
	l.mutex.Unlock()
	if request == nil {
		return nil
	}
	if err := request.Release(); err != nil {
		return maskAny(err)
	}
	l.log.Debug().Msg("line unexported")
	return nil
}

// Exported returns true when a request is bound to this line.
func (l *Line) Exported() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.request != nil
}

// GetValue returns the value (0 or 1) of the line.
func (l *Line) GetValue() (int, error) {
	request, err := l.exportedRequest()
	if err != nil {
		return 0, maskAny(err)
	}
	return request.GetValue(l.offset)
}

// SetValue drives the line to the given value (0 or 1).
func (l *Line) SetValue(value int) error {
	request, err := l.exportedRequest()
	if err != nil {
		return maskAny(err)
	}
	return request.SetValue(l.offset, value)
}

// Watch starts a background watch, delivering each edge event of the
// bound request through onEvent (1 for rising, 0 for falling) and the
// first device error through onError, after which the watch self-stops.
// An active watch must be stopped with Unwatch before a new one can be
// started.
func (l *Line) Watch(onEvent func(value int), onError func(err error)) error {
	l.watchMutex.Lock()
	defer l.watchMutex.Unlock()
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.request == nil {
		return errors.Wrapf(model.StateError, "line %d is not exported", l.offset)
	}
	if l.watcher != nil {
		return errors.Wrapf(model.StateError, "line %d is already being watched", l.offset)
	}
	l.watcher = newWatcher(l.request, l.offset, onEvent, onError, l.log)
	l.log.Debug().Msg("watch started")
	return nil
}

// Unwatch stops the active watch, blocking until the watch loop has
// fully exited. After Unwatch returns no further callback fires.
// Unwatching a line without an active watch is a no-op.
func (l *Line) Unwatch() {
	l.watchMutex.Lock()
	defer l.watchMutex.Unlock()
	l.stopWatch()
}

// Watching returns true while a watch is actively running.
func (l *Line) Watching() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.watcher != nil && l.watcher.watching()
}

// Close tears the line down: the watch is stopped and the bound
// request released. Secondary errors are collected, not retried.
func (l *Line) Close() error {
	var result error
	multierr.AppendInto(&result, l.Unexport())
	return result
}

// stopWatch joins the active watcher. Caller must hold watchMutex.
func (l *Line) stopWatch() {
	l.mutex.Lock()
	watcher := l.watcher
	l.mutex.Unlock()
	if watcher == nil {
		return
	}
	watcher.stop()
	l.mutex.Lock()
	l.watcher = nil
	l.mutex.Unlock()
	l.log.Debug().Msg("watch stopped")
}

// exportedRequest returns the bound request,
// or a state error when the line is not exported.
func (l *Line) exportedRequest() (*LineRequest, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.request == nil {
		return nil, errors.Wrapf(model.StateError, "line %d is not exported", l.offset)
	}
	return l.request, nil
}
