package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBufferOrder(t *testing.T) {
	buf := newEventBuffer()
	for i := uint32(1); i <= 3; i++ {
		buf.Push(EdgeEvent{Seqno: i})
	}
	for i := uint32(1); i <= 3; i++ {
		evt, err := buf.Next()
		require.NoError(t, err)
		assert.Equal(t, i, evt.Seqno)
	}
	_, err := buf.Next()
	assert.Error(t, err)
}

func TestEventBufferWait(t *testing.T) {
	buf := newEventBuffer()

	start := time.Now()
	available := buf.Wait(20 * time.Millisecond)
	assert.False(t, available)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	go func() {
		time.Sleep(10 * time.Millisecond)
		buf.Push(EdgeEvent{Seqno: 1})
	}()
	available = buf.Wait(5 * time.Second)
	assert.True(t, available)
}

func TestEventBufferOverflow(t *testing.T) {
	buf := newEventBuffer()
	// The buffer is bounded; the oldest events are dropped first.
	for i := uint32(1); i <= 100; i++ {
		buf.Push(EdgeEvent{Seqno: i})
	}
	evt, err := buf.Next()
	require.NoError(t, err)
	assert.Equal(t, uint32(37), evt.Seqno)
}
