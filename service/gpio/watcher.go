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
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Bound on each edge wait. Determines how quickly a stop request takes
// effect; it has no other externally observable behavior.
const edgeWaitTimeout = 100 * time.Millisecond

type watchState int32

const (
	stateIdle watchState = iota
	stateWatching
	stateStopping
)

// watcher runs a background loop delivering edge events of one line
// request to a pair of callbacks. Deliveries are strictly ordered and
// never overlap; the loop does not read the next event before the
// previous delivery has returned.
type watcher struct {
	log      zerolog.Logger
	request  *LineRequest
	offset   uint
	onEvent  func(value int)
	onError  func(err error)
	state    int32
	stopc    chan struct{}
	donec    chan struct{}
	stopOnce sync.Once
}

// newWatcher creates a watcher in the Watching state and starts its loop.
func newWatcher(request *LineRequest, offset uint, onEvent func(int), onError func(error), log zerolog.Logger) *watcher {
	w := &watcher{
		log:     log,
		request: request,
		offset:  offset,
		onEvent: onEvent,
		onError: onError,
		state:   int32(stateWatching),
		stopc:   make(chan struct{}),
		donec:   make(chan struct{}),
	}
	watchesStartedTotal.Inc()
	go w.run()
	return w
}

// run is the watch loop. It exits on stop or after the first device
// error.
func (w *watcher) run() {
	defer close(w.donec)
	offsetLabel := strconv.FormatUint(uint64(w.offset), 10)
	for {
		select {
		case <-w.stopc:
			return
		default:
		}
		available, err := w.request.waitForEdge(edgeWaitTimeout)
		if err != nil {
			w.fail(err)
			return
		}
		if !available {
			continue
		}
		// Re-check before reading; a stop that arrived during the wait
		// must not trigger another delivery.
		select {
		case <-w.stopc:
			return
		default:
		}
		evt, err := w.request.readEdge()
		if err != nil {
			w.fail(err)
			return
		}
		value := 0
		if evt.Rising {
			value = 1
		}
		w.log.Debug().
			Uint("offset", evt.Offset).
			Int("value", value).
			Uint32("seqno", evt.Seqno).
			Msg("edge event")
		edgeEventsTotal.WithLabelValues(offsetLabel).Inc()
		w.onEvent(value)
	}
}

// fail delivers a device error exactly once and puts the watcher in the
// Stopping state, so no further deliveries occur.
func (w *watcher) fail(err error) {
	if atomic.CompareAndSwapInt32(&w.state, int32(stateWatching), int32(stateStopping)) {
		watchErrorsTotal.Inc()
		w.log.Error().Err(err).Uint("offset", w.offset).Msg("edge wait failed")
		w.onError(err)
	}
}

// stop signals the loop to exit and blocks until it has fully exited.
// After stop returns no further delivery occurs. Safe to call from any
// goroutine, multiple times.
func (w *watcher) stop() {
	atomic.CompareAndSwapInt32(&w.state, int32(stateWatching), int32(stateStopping))
	w.stopOnce.Do(func() {
		close(w.stopc)
	})
	<-w.donec
	atomic.StoreInt32(&w.state, int32(stateIdle))
	watchesStoppedTotal.Inc()
}

// watching returns true while the watcher is in the Watching state.
func (w *watcher) watching() bool {
	return watchState(atomic.LoadInt32(&w.state)) == stateWatching
}
