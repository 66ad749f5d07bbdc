package model

// ChipInfo describes an open GPIO controller.
type ChipInfo struct {
	// Kernel name of the chip (e.g. "gpiochip0")
	Name string `json:"name"`
	// Label of the controller
	Label string `json:"label"`
	// Number of lines on the controller
	Lines uint `json:"lines"`
}

// ConsumerUnused is reported as consumer for lines that are not requested
// by any process.
const ConsumerUnused = "unused"

// LineInfo describes the published state of a single line.
// It reflects the state at the moment of the query; other processes can
// change it at any time.
type LineInfo struct {
	// Kernel name of the line (may be empty)
	Name string `json:"name"`
	// True when the line is requested by some process
	Used bool `json:"used"`
	// Direction the line is currently configured for
	Direction LineDirection `json:"direction"`
	// True when the line logic is inverted
	ActiveLow bool `json:"activeLow"`
	// Name of the process holding the line, or ConsumerUnused
	Consumer string `json:"consumer"`
}
