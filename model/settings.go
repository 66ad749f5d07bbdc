package model

import (
	"time"

	"github.com/pkg/errors"
)

// LineDirection identifies the direction of a line.
type LineDirection string

const (
	// LineDirectionAsIs leaves the direction of the line untouched.
	LineDirectionAsIs   LineDirection = ""
	LineDirectionInput  LineDirection = "input"
	LineDirectionOutput LineDirection = "output"
	// LineDirectionUnknown is only reported in line info, never requested.
	LineDirectionUnknown LineDirection = "unknown"
)

// Validate the given direction, returning nil on ok,
// or an error upon validation issues.
func (d LineDirection) Validate() error {
	switch d {
	case LineDirectionInput, LineDirectionOutput:
		return nil
	default:
		return errors.Wrapf(ValidationError, "invalid direction '%s'", string(d))
	}
}

// LineEdge identifies the edge detection mode of a line.
type LineEdge string

const (
	LineEdgeNone    LineEdge = "none"
	LineEdgeRising  LineEdge = "rising"
	LineEdgeFalling LineEdge = "falling"
	LineEdgeBoth    LineEdge = "both"
)

// Validate the given edge mode, returning nil on ok,
// or an error upon validation issues.
func (e LineEdge) Validate() error {
	switch e {
	case LineEdgeNone, LineEdgeRising, LineEdgeFalling, LineEdgeBoth:
		return nil
	default:
		return errors.Wrapf(ValidationError, "invalid edge '%s'", string(e))
	}
}

// LineDrive identifies the drive mode of an output line.
type LineDrive string

const (
	LineDrivePushPull   LineDrive = "push_pull"
	LineDriveOpenDrain  LineDrive = "open_drain"
	LineDriveOpenSource LineDrive = "open_source"
)

// Validate the given drive mode, returning nil on ok,
// or an error upon validation issues.
func (d LineDrive) Validate() error {
	switch d {
	case LineDrivePushPull, LineDriveOpenDrain, LineDriveOpenSource:
		return nil
	default:
		return errors.Wrapf(ValidationError, "invalid drive '%s'", string(d))
	}
}

// LineBias identifies the bias mode of a line.
type LineBias string

const (
	// LineBiasAsIs leaves the bias of the line untouched.
	LineBiasAsIs     LineBias = ""
	LineBiasUnknown  LineBias = "unknown"
	LineBiasDisabled LineBias = "disabled"
	LineBiasPullUp   LineBias = "pull_up"
	LineBiasPullDown LineBias = "pull_down"
)

// Validate the given bias mode, returning nil on ok,
// or an error upon validation issues.
func (b LineBias) Validate() error {
	switch b {
	case LineBiasUnknown, LineBiasDisabled, LineBiasPullUp, LineBiasPullDown:
		return nil
	default:
		return errors.Wrapf(ValidationError, "invalid bias '%s'", string(b))
	}
}

// LineSettings holds the desired configuration of a single line.
// Zero values leave the corresponding hardware setting at its device default.
type LineSettings struct {
	Direction LineDirection `json:"direction,omitempty"`
	Edge      LineEdge      `json:"edge,omitempty"`
	Drive     LineDrive     `json:"drive,omitempty"`
	Bias      LineBias      `json:"bias,omitempty"`
	ActiveLow bool          `json:"active-low,omitempty"`
	// Initial value of the line when requested as output.
	OutputValue bool `json:"output-value,omitempty"`
	// Minimum period a signal must be stable before an edge is reported.
	DebouncePeriod time.Duration `json:"debounce-period,omitempty"`
}

// HasEdgeDetection returns true when the settings enable edge detection.
func (s LineSettings) HasEdgeDetection() bool {
	switch s.Edge {
	case LineEdgeRising, LineEdgeFalling, LineEdgeBoth:
		return true
	default:
		return false
	}
}
