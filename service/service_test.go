package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpiokit/linekit/model"
	"github.com/gpiokit/linekit/service/device"
)

func TestNewServiceInvalidConfig(t *testing.T) {
	_, err := NewService(Config{}, Dependencies{Log: zerolog.Nop(), Device: device.NewStub()})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestServiceRun(t *testing.T) {
	stub := device.NewStub()
	stubChip := stub.AddChip("gpiochip0", "stub-chip", 8)

	svc, err := NewService(Config{
		Monitor: model.MonitorConfig{
			Chip: "gpiochip0",
			Lines: []model.MonitorLine{
				{Offset: 4, ID: "door"},
				{Offset: 6},
			},
		},
	}, Dependencies{
		Log:    zerolog.Nop(),
		Device: stub,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Wait until the service reports its lines.
	require.Eventually(t, func() bool { return len(svc.Lines()) == 2 }, 5*time.Second, 10*time.Millisecond)

	statuses := svc.Lines()
	byID := make(map[string]LineStatus, len(statuses))
	for _, status := range statuses {
		byID[status.ID] = status
	}
	door, found := byID["door"]
	require.True(t, found)
	assert.Equal(t, uint(4), door.Offset)
	assert.True(t, door.Watching)
	assert.Equal(t, "linekit", door.Info.Consumer)
	// Unnamed lines fall back to the decimal offset.
	_, found = byID["6"]
	assert.True(t, found)

	// Edge events keep the reported value current.
	require.NoError(t, stubChip.SetPull(4, 1))
	require.Eventually(t, func() bool {
		for _, status := range svc.Lines() {
			if status.ID == "door" {
				return status.Value == 1
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for service to stop")
	}

	// After shutdown all lines are released.
	assert.Empty(t, svc.Lines())
	conn, err := stub.Open("gpiochip0")
	require.NoError(t, err)
	defer conn.Close()
	info, err := conn.LineInfo(4)
	require.NoError(t, err)
	assert.False(t, info.Used)
}

func TestServiceRunUnknownChip(t *testing.T) {
	svc, err := NewService(Config{
		Monitor: model.MonitorConfig{
			Chip:  "gpiochip9",
			Lines: []model.MonitorLine{{Offset: 1}},
		},
	}, Dependencies{
		Log:    zerolog.Nop(),
		Device: device.NewStub(),
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
}

func TestServiceRunBusyLine(t *testing.T) {
	stub := device.NewStub()
	stub.AddChip("gpiochip0", "stub-chip", 8)

	// Occupy offset 3 before the service starts.
	conn, err := stub.Open("gpiochip0")
	require.NoError(t, err)
	defer conn.Close()
	held, err := conn.RequestLines(device.Request{
		Consumer: "other",
		Lines:    []device.LineSpec{{Offset: 3}},
	})
	require.NoError(t, err)
	defer held.Close()

	svc, err := NewService(Config{
		Monitor: model.MonitorConfig{
			Chip:  "gpiochip0",
			Lines: []model.MonitorLine{{Offset: 2}, {Offset: 3}},
		},
	}, Dependencies{
		Log:    zerolog.Nop(),
		Device: stub,
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)

	// The line that was granted before the failure is released again.
	info, err := conn.LineInfo(2)
	require.NoError(t, err)
	assert.False(t, info.Used)
}
