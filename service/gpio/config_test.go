package gpio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpiokit/linekit/model"
)

func TestLineConfigCursor(t *testing.T) {
	config := NewLineConfig()
	assert.True(t, config.IsEmpty())

	// Setters target offset 0 before the first SetOffset call.
	require.NoError(t, config.SetDirection("input"))
	settings, found := config.SettingsFor(0)
	require.True(t, found)
	assert.Equal(t, model.LineDirectionInput, settings.Direction)

	config.SetOffset(5)
	require.NoError(t, config.SetDirection("output"))
	config.SetOutputValue(true)
	settings, found = config.SettingsFor(5)
	require.True(t, found)
	assert.Equal(t, model.LineDirectionOutput, settings.Direction)
	assert.True(t, settings.OutputValue)

	// Offset 0 is untouched by setters aimed at offset 5.
	settings, _ = config.SettingsFor(0)
	assert.Equal(t, model.LineDirectionInput, settings.Direction)

	assert.Equal(t, []uint{0, 5}, config.Offsets())
	assert.False(t, config.IsEmpty())
}

func TestLineConfigSetOffsetCreatesEntry(t *testing.T) {
	config := NewLineConfig()
	config.SetOffset(7)
	settings, found := config.SettingsFor(7)
	require.True(t, found)
	assert.Equal(t, model.LineSettings{}, settings)
	assert.Equal(t, []uint{7}, config.Offsets())
}

func TestLineConfigInvalidInput(t *testing.T) {
	config := NewLineConfig()

	err := config.SetDirection("sideways")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.True(t, model.IsValidation(config.SetEdge("sloped")))
	assert.True(t, model.IsValidation(config.SetDrive("tristate")))
	assert.True(t, model.IsValidation(config.SetBias("magnetic")))
	assert.True(t, model.IsValidation(config.SetDebouncePeriod(-1)))

	// Rejected input never creates or mutates an entry.
	assert.True(t, config.IsEmpty())
	_, found := config.SettingsFor(0)
	assert.False(t, found)
}

func TestLineConfigAllSetters(t *testing.T) {
	config := NewLineConfig()
	config.SetOffset(3)
	require.NoError(t, config.SetDirection("input"))
	require.NoError(t, config.SetEdge("both"))
	require.NoError(t, config.SetBias("pull_up"))
	require.NoError(t, config.SetDebouncePeriod(2500))
	config.SetActiveLow(true)

	settings, found := config.SettingsFor(3)
	require.True(t, found)
	assert.Equal(t, model.LineDirectionInput, settings.Direction)
	assert.Equal(t, model.LineEdgeBoth, settings.Edge)
	assert.Equal(t, model.LineBiasPullUp, settings.Bias)
	assert.Equal(t, 2500*time.Microsecond, settings.DebouncePeriod)
	assert.True(t, settings.ActiveLow)

	require.NoError(t, config.SetDrive("open_drain"))
	settings, _ = config.SettingsFor(3)
	assert.Equal(t, model.LineDriveOpenDrain, settings.Drive)
}

func TestLineConfigFirstConfigured(t *testing.T) {
	config := NewLineConfig()
	config.SetOffset(9)
	require.NoError(t, config.SetDirection("output"))
	config.SetOffset(2)
	require.NoError(t, config.SetDirection("input"))

	settings, found := config.firstConfigured()
	require.True(t, found)
	assert.Equal(t, model.LineDirectionOutput, settings.Direction)
}
