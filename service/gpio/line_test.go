package gpio

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpiokit/linekit/model"
)

// testLine exports a line at given offset, requested with edge
// detection on both edges.
func testLine(t *testing.T, chip *Chip, offset uint) *Line {
	t.Helper()
	config := NewLineConfig()
	config.SetOffset(offset)
	require.NoError(t, config.SetDirection("input"))
	require.NoError(t, config.SetEdge("both"))
	req, err := RequestLines(chip, []uint{offset}, config, zerolog.Nop())
	require.NoError(t, err)
	line := NewLine(chip, offset, zerolog.Nop())
	require.NoError(t, line.Export(req))
	t.Cleanup(func() { line.Close() })
	return line
}

func waitForValue(t *testing.T, values <-chan int) int {
	t.Helper()
	select {
	case value := <-values:
		return value
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for edge event")
		return 0
	}
}

func TestLineExport(t *testing.T) {
	chip, _ := testChip(t, 8)
	line := NewLine(chip, 4, zerolog.Nop())
	assert.Equal(t, uint(4), line.Offset())
	assert.False(t, line.Exported())

	// Operations on an unexported line fail.
	_, err := line.GetValue()
	assert.True(t, model.IsState(err))
	assert.True(t, model.IsState(line.SetValue(1)))
	assert.True(t, model.IsState(line.Watch(func(int) {}, func(error) {})))

	req, err := RequestLines(chip, []uint{4}, NewLineConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, line.Export(req))
	assert.True(t, line.Exported())

	require.NoError(t, line.Unexport())
	assert.False(t, line.Exported())
	// Unexporting again is a no-op.
	require.NoError(t, line.Unexport())

	// Unexport released the request.
	_, err = req.GetValue(4)
	assert.True(t, model.IsState(err))
}

func TestLineReExport(t *testing.T) {
	chip, _ := testChip(t, 8)
	line := NewLine(chip, 4, zerolog.Nop())

	first, err := RequestLines(chip, []uint{4}, NewLineConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, line.Export(first))

	// Re-exporting releases the previous request, freeing the line for
	// the next one.
	second, err := RequestLines(chip, []uint{5}, NewLineConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, line.Export(second))

	_, err = first.GetValue(4)
	assert.True(t, model.IsState(err))
	assert.True(t, line.Exported())
	require.NoError(t, line.Close())
}

func TestLineValues(t *testing.T) {
	chip, _ := testChip(t, 8)

	config := NewLineConfig()
	config.SetOffset(2)
	require.NoError(t, config.SetDirection("output"))
	config.SetOutputValue(true)
	req, err := RequestLines(chip, []uint{2}, config, zerolog.Nop())
	require.NoError(t, err)

	line := NewLine(chip, 2, zerolog.Nop())
	require.NoError(t, line.Export(req))
	defer line.Close()

	value, err := line.GetValue()
	require.NoError(t, err)
	assert.Equal(t, 1, value)

	require.NoError(t, line.SetValue(0))
	value, err = line.GetValue()
	require.NoError(t, err)
	assert.Equal(t, 0, value)
}

func TestLineWatch(t *testing.T) {
	chip, stubChip := testChip(t, 8)
	line := testLine(t, chip, 4)

	values := make(chan int, 16)
	errs := make(chan error, 16)
	require.NoError(t, line.Watch(func(value int) { values <- value }, func(err error) { errs <- err }))
	assert.True(t, line.Watching())

	require.NoError(t, stubChip.SetPull(4, 1))
	assert.Equal(t, 1, waitForValue(t, values))
	require.NoError(t, stubChip.SetPull(4, 0))
	assert.Equal(t, 0, waitForValue(t, values))

	line.Unwatch()
	assert.False(t, line.Watching())
	assert.Empty(t, errs)
}

func TestLineWatchWhileWatching(t *testing.T) {
	chip, _ := testChip(t, 8)
	line := testLine(t, chip, 4)

	require.NoError(t, line.Watch(func(int) {}, func(error) {}))
	err := line.Watch(func(int) {}, func(error) {})
	require.Error(t, err)
	assert.True(t, model.IsState(err))

	// The original watch is unaffected.
	assert.True(t, line.Watching())
	line.Unwatch()
}

func TestLineUnwatchStopsDelivery(t *testing.T) {
	chip, stubChip := testChip(t, 8)
	line := testLine(t, chip, 4)

	values := make(chan int, 16)
	require.NoError(t, line.Watch(func(value int) { values <- value }, func(error) {}))
	require.NoError(t, stubChip.SetPull(4, 1))
	waitForValue(t, values)

	line.Unwatch()
	// Events arriving after the watch stopped are never delivered.
	require.NoError(t, stubChip.SetPull(4, 0))
	require.NoError(t, stubChip.SetPull(4, 1))
	select {
	case value := <-values:
		t.Fatalf("unexpected delivery of value %d after unwatch", value)
	case <-time.After(300 * time.Millisecond):
	}

	// Unwatching again is a no-op.
	line.Unwatch()
}

func TestLineWatchError(t *testing.T) {
	chip, stubChip := testChip(t, 8)
	line := testLine(t, chip, 4)

	errs := make(chan error, 16)
	require.NoError(t, line.Watch(func(int) {}, func(err error) { errs <- err }))

	boom := errors.Wrap(model.DeviceError, "chip gone")
	stubChip.InjectError(boom)

	select {
	case err := <-errs:
		assert.True(t, model.IsDevice(err))
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for watch error")
	}

	// The error is delivered exactly once, then the watch self-stops.
	assert.Eventually(t, func() bool { return !line.Watching() }, 5*time.Second, 10*time.Millisecond)
	select {
	case err := <-errs:
		t.Fatalf("unexpected second error delivery: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	line.Unwatch()
	// A new watch can be started after the failed one is stopped.
	require.NoError(t, line.Watch(func(int) {}, func(error) {}))
	line.Unwatch()
}

func TestLineUnexportStopsWatch(t *testing.T) {
	chip, stubChip := testChip(t, 8)
	line := testLine(t, chip, 4)

	values := make(chan int, 16)
	require.NoError(t, line.Watch(func(value int) { values <- value }, func(error) {}))
	require.NoError(t, line.Unexport())
	assert.False(t, line.Watching())
	assert.False(t, line.Exported())

	require.NoError(t, stubChip.SetPull(4, 1))
	select {
	case value := <-values:
		t.Fatalf("unexpected delivery of value %d after unexport", value)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestLineWatchOrdering(t *testing.T) {
	chip, stubChip := testChip(t, 8)
	line := testLine(t, chip, 4)

	values := make(chan int, 64)
	require.NoError(t, line.Watch(func(value int) { values <- value }, func(error) {}))

	// Events are delivered in order, alternating with the pulls.
	expected := make([]int, 0, 10)
	for i := 0; i < 10; i++ {
		value := (i + 1) % 2
		require.NoError(t, stubChip.SetPull(4, value))
		expected = append(expected, value)
	}
	for _, want := range expected {
		assert.Equal(t, want, waitForValue(t, values))
	}
	line.Unwatch()
}

func TestLineClose(t *testing.T) {
	chip, _ := testChip(t, 8)
	line := testLine(t, chip, 4)

	require.NoError(t, line.Watch(func(int) {}, func(error) {}))
	require.NoError(t, line.Close())
	assert.False(t, line.Watching())
	assert.False(t, line.Exported())

	// The line is free for a new request.
	req, err := RequestLines(chip, []uint{4}, NewLineConfig(), zerolog.Nop())
	require.NoError(t, err)
	req.Release()
}
