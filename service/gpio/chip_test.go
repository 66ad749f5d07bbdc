package gpio

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpiokit/linekit/model"
	"github.com/gpiokit/linekit/service/device"
)

// testChip opens a chip on a fresh stub device with given number of lines.
func testChip(t *testing.T, lines uint) (*Chip, *device.StubChip) {
	t.Helper()
	stub := device.NewStub()
	stubChip := stub.AddChip("gpiochip0", "stub-chip", lines)
	chip, err := Open("gpiochip0", stub, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { chip.Close() })
	return chip, stubChip
}

func TestChipOpen(t *testing.T) {
	chip, _ := testChip(t, 8)
	assert.Equal(t, "gpiochip0", chip.Name())

	count, err := chip.LineCount()
	require.NoError(t, err)
	assert.Equal(t, uint(8), count)

	label, err := chip.Label()
	require.NoError(t, err)
	assert.Equal(t, "stub-chip", label)
}

func TestChipOpenUnknownDevice(t *testing.T) {
	stub := device.NewStub()
	_, err := Open("gpiochip7", stub, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, model.IsDevice(err))
}

func TestChipLineInfo(t *testing.T) {
	chip, stubChip := testChip(t, 8)
	stubChip.SetLineName(3, "LED0")

	info, err := chip.LineInfo(3)
	require.NoError(t, err)
	assert.Equal(t, "LED0", info.Name)
	assert.False(t, info.Used)
	// Lines without a holder report the "unused" sentinel.
	assert.Equal(t, model.ConsumerUnused, info.Consumer)

	req, err := RequestLines(chip, []uint{3}, NewLineConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer req.Release()

	info, err = chip.LineInfo(3)
	require.NoError(t, err)
	assert.True(t, info.Used)
	assert.Equal(t, "linekit", info.Consumer)
}

func TestChipClose(t *testing.T) {
	chip, _ := testChip(t, 8)
	require.NoError(t, chip.Close())
	// Closing again is a no-op.
	require.NoError(t, chip.Close())

	_, err := chip.LineCount()
	require.Error(t, err)
	assert.True(t, model.IsState(err))
	_, err = chip.LineInfo(0)
	assert.True(t, model.IsState(err))
	_, err = RequestLines(chip, []uint{1}, NewLineConfig(), zerolog.Nop())
	assert.True(t, model.IsState(err))
}
