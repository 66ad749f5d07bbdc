package model

import (
	"github.com/pkg/errors"
)

// MonitorConfig holds the configuration of the line monitor service.
type MonitorConfig struct {
	// Name of the GPIO chip to open (e.g. "gpiochip0")
	Chip string `json:"chip"`
	// Lines to request and watch
	Lines []MonitorLine `json:"lines"`
}

// MonitorLine holds the configuration of a single watched line.
type MonitorLine struct {
	// Offset of the line on the chip
	Offset uint `json:"offset"`
	// Optional identifier used in logs, metrics and MQTT topics.
	// Defaults to the decimal offset.
	ID string `json:"id,omitempty"`
	// Desired settings of the line.
	// Edge detection defaults to "both" when left empty.
	Settings LineSettings `json:"settings,omitempty"`
}

// LineByOffset returns the line config with given offset.
// Return false if not found.
func (c MonitorConfig) LineByOffset(offset uint) (MonitorLine, bool) {
	for _, l := range c.Lines {
		if l.Offset == offset {
			return l, true
		}
	}
	return MonitorLine{}, false
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (c MonitorConfig) Validate() error {
	if c.Chip == "" {
		return errors.Wrap(ValidationError, "Chip is empty")
	}
	if len(c.Lines) == 0 {
		return errors.Wrap(ValidationError, "Lines is empty")
	}
	seen := make(map[uint]struct{})
	for _, l := range c.Lines {
		if _, found := seen[l.Offset]; found {
			return errors.Wrapf(ValidationError, "Duplicate line offset %d", l.Offset)
		}
		seen[l.Offset] = struct{}{}
		if l.Settings.Edge != "" {
			if err := l.Settings.Edge.Validate(); err != nil {
				return maskAny(err)
			}
		}
		if l.Settings.Bias != "" {
			if err := l.Settings.Bias.Validate(); err != nil {
				return maskAny(err)
			}
		}
		if l.Settings.Direction != "" {
			if err := l.Settings.Direction.Validate(); err != nil {
				return maskAny(err)
			}
		}
		if l.Settings.DebouncePeriod < 0 {
			return errors.Wrapf(ValidationError, "Negative debounce period for offset %d", l.Offset)
		}
	}
	return nil
}
