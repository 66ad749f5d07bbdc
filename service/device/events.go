package device

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gpiokit/linekit/model"
)

// Capacity of the per-reservation edge event buffer.
// Events arriving while the buffer is full push out the oldest event.
const eventBufferSize = 64

// eventBuffer is a bounded FIFO of edge events with a blocking wait.
// Written by the event producer (device watcher or stub pull changes),
// drained by a single reader.
type eventBuffer struct {
	mutex  sync.Mutex
	queue  []EdgeEvent
	notify chan struct{}
}

func newEventBuffer() *eventBuffer {
	return &eventBuffer{
		notify: make(chan struct{}, 1),
	}
}

// Push appends an event, dropping the oldest event when full.
func (b *eventBuffer) Push(evt EdgeEvent) {
	b.mutex.Lock()
	if len(b.queue) == eventBufferSize {
		b.queue = b.queue[1:]
	}
	b.queue = append(b.queue, evt)
	b.mutex.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Wait blocks until an event is available or the timeout expires.
func (b *eventBuffer) Wait(timeout time.Duration) bool {
	if b.len() > 0 {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-b.notify:
		return b.len() > 0
	case <-timer.C:
		return false
	}
}

// signal wakes a blocked Wait without queueing an event.
func (b *eventBuffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Next pops the oldest buffered event.
func (b *eventBuffer) Next() (EdgeEvent, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if len(b.queue) == 0 {
		return EdgeEvent{}, errors.Wrap(model.DeviceError, "no edge event available")
	}
	evt := b.queue[0]
	b.queue = b.queue[1:]
	return evt, nil
}

func (b *eventBuffer) len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.queue)
}
