package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpiokit/linekit/model"
)

func TestLoadMonitorConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linekit.json")
	content := `{
		"chip": "gpiochip0",
		"lines": [
			{"offset": 4, "id": "door", "settings": {"edge": "rising", "bias": "pull_up"}},
			{"offset": 7}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadMonitorConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gpiochip0", config.Chip)
	require.Len(t, config.Lines, 2)
	assert.Equal(t, "door", config.Lines[0].ID)
	assert.Equal(t, model.LineEdgeRising, config.Lines[0].Settings.Edge)
	assert.Equal(t, model.LineBiasPullUp, config.Lines[0].Settings.Bias)
	assert.Equal(t, uint(7), config.Lines[1].Offset)
}

func TestLoadMonitorConfigMissingFile(t *testing.T) {
	_, err := LoadMonitorConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadMonitorConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linekit.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"lines": [{"offset": 1}]}`), 0644))
	_, err := LoadMonitorConfig(path)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}
