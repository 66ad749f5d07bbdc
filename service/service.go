//    Copyright 2025 The linekit authors
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gpiokit/linekit/model"
	"github.com/gpiokit/linekit/service/device"
	"github.com/gpiokit/linekit/service/gpio"
	"github.com/gpiokit/linekit/service/mqtt"
	"github.com/gpiokit/linekit/service/util"
)

// Service contains the API exposed by the line monitor service.
type Service interface {
	// Run the monitor until the given context is canceled.
	Run(ctx context.Context) error
	// Lines returns the current status of all monitored lines.
	Lines() []LineStatus
}

type Config struct {
	// Monitor configuration (chip + lines)
	Monitor model.MonitorConfig
	// Topic prefix for MQTT edge messages (no publishing when empty)
	MQTTTopicPrefix string
	ProgramVersion  string
}

type Dependencies struct {
	Log zerolog.Logger
	// Device API used to access the GPIO controllers
	Device device.API
	// MQTTBuilder creates the MQTT service used to publish edge
	// messages. Nil disables publishing.
	MQTTBuilder func(clientID string) (mqtt.Service, error)
}

// LineStatus is the published status of one monitored line.
type LineStatus struct {
	ID       string         `json:"id"`
	Offset   uint           `json:"offset"`
	Value    int            `json:"value"`
	Watching bool           `json:"watching"`
	Info     model.LineInfo `json:"info"`
}

// EdgeMessage is the JSON payload published for each edge event.
type EdgeMessage struct {
	ID     string `json:"id"`
	Chip   string `json:"chip"`
	Offset uint   `json:"offset"`
	Value  int    `json:"value"`
	Time   int64  `json:"time"`
}

// NewService instantiates a new monitor service.
func NewService(config Config, deps Dependencies) (Service, error) {
	if err := config.Monitor.Validate(); err != nil {
		return nil, maskAny(err)
	}
	return &service{
		config:       config,
		Dependencies: deps,
	}, nil
}

type service struct {
	config Config
	Dependencies

	mutex sync.Mutex
	chip  *gpio.Chip
	lines map[uint]*gpio.Line
	ids   map[uint]string
}

// Run the monitor until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	log := s.Log.With().Str("component", "monitor").Logger()

	// Open chip
	log.Debug().Str("chip", s.config.Monitor.Chip).Msg("open chip")
	chip, err := gpio.Open(s.config.Monitor.Chip, s.Device, s.Log)
	if err != nil {
		log.Debug().Err(err).Msg("open chip failed")
		return fmt.Errorf("failed to open chip '%s': %w", s.config.Monitor.Chip, err)
	}
	defer func() {
		log.Debug().Msg("closing chip")
		if err := chip.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close chip")
		}
	}()

	// Build MQTT service when configured
	var publisher mqtt.Service
	if s.MQTTBuilder != nil && s.config.MQTTTopicPrefix != "" {
		publisher, err = s.MQTTBuilder("linekit-" + s.config.Monitor.Chip)
		if err != nil {
			return fmt.Errorf("mqtt.NewService failed: %w", err)
		}
		defer publisher.Close()
	}

	// Request & watch all configured lines
	lines := make(map[uint]*gpio.Line, len(s.config.Monitor.Lines))
	ids := make(map[uint]string, len(s.config.Monitor.Lines))
	defer func() {
		var closeErr util.SyncError
		for _, line := range lines {
			closeErr.Add(line.Close())
		}
		if err := closeErr.AsError(); err != nil {
			log.Error().Err(err).Msg("not all lines closed cleanly")
		}
		s.setLines(nil, nil, nil)
	}()
	for _, ml := range s.config.Monitor.Lines {
		line, err := s.setupLine(chip, ml, publisher, log)
		if err != nil {
			return maskAny(err)
		}
		lines[ml.Offset] = line
		ids[ml.Offset] = lineID(ml)
	}
	s.setLines(chip, lines, ids)
	log.Info().
		Str("chip", chip.Name()).
		Int("lines", len(lines)).
		Msg("monitoring lines")

	// Wait for cancellation
	g, lctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-lctx.Done()
		return nil
	})
	return g.Wait()
}

// setupLine requests and watches a single configured line.
func (s *service) setupLine(chip *gpio.Chip, ml model.MonitorLine, publisher mqtt.Service, log zerolog.Logger) (*gpio.Line, error) {
	id := lineID(ml)
	settings := ml.Settings
	if settings.Direction == "" {
		settings.Direction = model.LineDirectionInput
	}
	if settings.Edge == "" {
		settings.Edge = model.LineEdgeBoth
	}

	config := gpio.NewLineConfig()
	config.SetOffset(ml.Offset)
	if err := config.SetDirection(string(settings.Direction)); err != nil {
		return nil, maskAny(err)
	}
	if err := config.SetEdge(string(settings.Edge)); err != nil {
		return nil, maskAny(err)
	}
	if settings.Bias != "" {
		if err := config.SetBias(string(settings.Bias)); err != nil {
			return nil, maskAny(err)
		}
	}
	config.SetActiveLow(settings.ActiveLow)
	if settings.DebouncePeriod > 0 {
		if err := config.SetDebouncePeriod(settings.DebouncePeriod.Microseconds()); err != nil {
			return nil, maskAny(err)
		}
	}

	request, err := gpio.RequestLines(chip, []uint{ml.Offset}, config, s.Log)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to request line %s", id)
	}
	line := gpio.NewLine(chip, ml.Offset, s.Log)
	if err := line.Export(request); err != nil {
		return nil, maskAny(err)
	}

	chipName := chip.Name()
	offset := ml.Offset
	onEvent := func(value int) {
		log.Info().
			Str("id", id).
			Uint("offset", offset).
			Int("value", value).
			Msg("edge")
		if publisher != nil {
			topic := s.config.MQTTTopicPrefix + "/" + id
			msg := EdgeMessage{
				ID:     id,
				Chip:   chipName,
				Offset: offset,
				Value:  value,
				Time:   time.Now().Unix(),
			}
			pctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			if err := publisher.Publish(pctx, msg, topic, mqtt.QosAtMostOnce); err != nil {
				log.Error().Err(err).Str("id", id).Msg("failed to publish edge message")
			}
		}
	}
	onError := func(err error) {
		// The watch self-stops after the first device error;
		// remaining lines keep running.
		log.Error().Err(err).Str("id", id).Msg("watch failed")
	}
	if err := line.Watch(onEvent, onError); err != nil {
		line.Close()
		return nil, maskAny(err)
	}
	return line, nil
}

// Lines returns the current status of all monitored lines.
func (s *service) Lines() []LineStatus {
	s.mutex.Lock()
	chip := s.chip
	lines := s.lines
	ids := s.ids
	s.mutex.Unlock()
	if chip == nil {
		return nil
	}
	result := make([]LineStatus, 0, len(lines))
	for offset, line := range lines {
		status := LineStatus{
			ID:       ids[offset],
			Offset:   offset,
			Value:    -1,
			Watching: line.Watching(),
		}
		if value, err := line.GetValue(); err == nil {
			status.Value = value
		}
		if info, err := chip.LineInfo(offset); err == nil {
			status.Info = info
		}
		result = append(result, status)
	}
	return result
}

func (s *service) setLines(chip *gpio.Chip, lines map[uint]*gpio.Line, ids map[uint]string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.chip = chip
	s.lines = lines
	s.ids = ids
}

// lineID returns the identifier used for the line in logs, metrics and
// MQTT topics.
func lineID(ml model.MonitorLine) string {
	if ml.ID != "" {
		return ml.ID
	}
	return strconv.FormatUint(uint64(ml.Offset), 10)
}

var maskAny = errors.WithStack
