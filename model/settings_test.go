package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLineDirectionValidate(t *testing.T) {
	assert.NoError(t, LineDirectionInput.Validate())
	assert.NoError(t, LineDirectionOutput.Validate())
	assert.Error(t, LineDirectionAsIs.Validate())
	assert.Error(t, LineDirectionUnknown.Validate())
	assert.Error(t, LineDirection("sideways").Validate())
	assert.True(t, IsValidation(LineDirection("sideways").Validate()))
}

func TestLineEdgeValidate(t *testing.T) {
	for _, e := range []LineEdge{LineEdgeNone, LineEdgeRising, LineEdgeFalling, LineEdgeBoth} {
		assert.NoError(t, e.Validate())
	}
	err := LineEdge("sloped").Validate()
	assert.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestLineDriveValidate(t *testing.T) {
	for _, d := range []LineDrive{LineDrivePushPull, LineDriveOpenDrain, LineDriveOpenSource} {
		assert.NoError(t, d.Validate())
	}
	err := LineDrive("tristate").Validate()
	assert.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestLineBiasValidate(t *testing.T) {
	for _, b := range []LineBias{LineBiasUnknown, LineBiasDisabled, LineBiasPullUp, LineBiasPullDown} {
		assert.NoError(t, b.Validate())
	}
	err := LineBias("magnetic").Validate()
	assert.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestHasEdgeDetection(t *testing.T) {
	assert.False(t, LineSettings{}.HasEdgeDetection())
	assert.False(t, LineSettings{Edge: LineEdgeNone}.HasEdgeDetection())
	assert.True(t, LineSettings{Edge: LineEdgeRising}.HasEdgeDetection())
	assert.True(t, LineSettings{Edge: LineEdgeFalling}.HasEdgeDetection())
	assert.True(t, LineSettings{Edge: LineEdgeBoth, DebouncePeriod: time.Millisecond}.HasEdgeDetection())
}
