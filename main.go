// Copyright 2026 The linekit authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/gpiokit/linekit/server"
	"github.com/gpiokit/linekit/service"
	"github.com/gpiokit/linekit/service/device"
	"github.com/gpiokit/linekit/service/gpio"
	"github.com/gpiokit/linekit/service/mqtt"
	"github.com/gpiokit/linekit/service/util"
)

const (
	projectName       = "linekit"
	defaultServerPort = 7312
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
	maskAny        = errors.WithStack
)

func main() {
	var levelFlag string
	var serverHost string
	var serverPort int
	var configPath string
	var mqttHost string
	var mqttPort int
	var mqttUserName string
	var mqttPassword string
	var mqttTopicPrefix string

	pflag.StringVarP(&levelFlag, "level", "l", "debug", "Set log level")
	pflag.StringVarP(&configPath, "config", "c", "linekit.json", "Path of the monitor configuration file")
	pflag.StringVar(&serverHost, "host", "0.0.0.0", "Host address the HTTP server will listen on")
	pflag.IntVar(&serverPort, "port", defaultServerPort, "Port the HTTP server will listen on")
	pflag.StringVar(&mqttHost, "mqtt-host", "", "Host of the MQTT broker used to publish edge events")
	pflag.IntVar(&mqttPort, "mqtt-port", 1883, "Port of the MQTT broker")
	pflag.StringVar(&mqttUserName, "mqtt-username", "", "Username for the MQTT broker")
	pflag.StringVar(&mqttPassword, "mqtt-password", "", "Password for the MQTT broker")
	pflag.StringVar(&mqttTopicPrefix, "mqtt-topic-prefix", "linekit", "Topic prefix for published edge messages")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(levelFlag); err == nil {
		logger = logger.Level(level)
	}

	dev := device.NewCharDev()
	args := pflag.Args()
	if len(args) == 0 {
		Exitf("Expected a command (info|get|set|mon)\n")
	}

	switch cmd := args[0]; cmd {
	case "info":
		if len(args) < 2 {
			Exitf("Usage: %s info <chip>\n", projectName)
		}
		runInfo(dev, args[1], logger)
	case "get":
		if len(args) < 3 {
			Exitf("Usage: %s get <chip> <offset> [offset...]\n", projectName)
		}
		runGet(dev, args[1], args[2:], logger)
	case "set":
		if len(args) < 3 {
			Exitf("Usage: %s set <chip> <offset=value> [offset=value...]\n", projectName)
		}
		runSet(dev, args[1], args[2:], logger)
	case "mon":
		runMonitor(dev, configPath, monitorOptions{
			ServerHost:      serverHost,
			ServerPort:      serverPort,
			MQTTHost:        mqttHost,
			MQTTPort:        mqttPort,
			MQTTUserName:    mqttUserName,
			MQTTPassword:    mqttPassword,
			MQTTTopicPrefix: mqttTopicPrefix,
		}, logger)
	default:
		Exitf("Unknown command '%s' (info|get|set|mon)\n", cmd)
	}
}

// runInfo prints chip information and a table of all its lines.
func runInfo(dev device.API, chipName string, logger zerolog.Logger) {
	chip, err := gpio.Open(chipName, dev, logger)
	if err != nil {
		Exitf("Failed to open chip '%s': %v\n", chipName, err)
	}
	defer chip.Close()

	label, err := chip.Label()
	if err != nil {
		Exitf("Failed to read chip info: %v\n", err)
	}
	count, err := chip.LineCount()
	if err != nil {
		Exitf("Failed to read chip info: %v\n", err)
	}
	fmt.Printf("%s [%s] (%d lines)\n", chip.Name(), label, count)
	for offset := uint(0); offset < count; offset++ {
		info, err := chip.LineInfo(offset)
		if err != nil {
			Exitf("Failed to read info of line %d: %v\n", offset, err)
		}
		flags := string(info.Direction)
		if info.ActiveLow {
			flags += " active-low"
		}
		if info.Used {
			flags += " used"
		}
		fmt.Printf("\tline %3d: %-24q consumer=%-16q %s\n", offset, info.Name, info.Consumer, flags)
	}
}

// runGet requests the given offsets as inputs and prints their values.
func runGet(dev device.API, chipName string, args []string, logger zerolog.Logger) {
	offsets, err := parseOffsets(args)
	if err != nil {
		Exitf("Invalid offset: %v\n", err)
	}
	chip, err := gpio.Open(chipName, dev, logger)
	if err != nil {
		Exitf("Failed to open chip '%s': %v\n", chipName, err)
	}
	defer chip.Close()

	config := gpio.NewLineConfig()
	if err := config.SetDirection("input"); err != nil {
		Exitf("Failed to configure lines: %v\n", err)
	}
	req, err := gpio.RequestLines(chip, offsets, config, logger)
	if err != nil {
		Exitf("Failed to request lines: %v\n", err)
	}
	defer req.Release()

	for _, offset := range offsets {
		value, err := req.GetValue(offset)
		if err != nil {
			Exitf("Failed to read line %d: %v\n", offset, err)
		}
		fmt.Printf("%d=%d\n", offset, value)
	}
}

// runSet requests the given offsets as outputs and drives them.
func runSet(dev device.API, chipName string, args []string, logger zerolog.Logger) {
	offsets := make([]uint, 0, len(args))
	values := make(map[uint]int, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			Exitf("Invalid assignment '%s' (expected offset=value)\n", arg)
		}
		offset, err := parseOffset(parts[0])
		if err != nil {
			Exitf("Invalid offset: %v\n", err)
		}
		value, err := strconv.Atoi(parts[1])
		if err != nil || (value != 0 && value != 1) {
			Exitf("Invalid value '%s' for line %d (expected 0 or 1)\n", parts[1], offset)
		}
		offsets = append(offsets, offset)
		values[offset] = value
	}

	chip, err := gpio.Open(chipName, dev, logger)
	if err != nil {
		Exitf("Failed to open chip '%s': %v\n", chipName, err)
	}
	defer chip.Close()

	config := gpio.NewLineConfig()
	for _, offset := range offsets {
		config.SetOffset(offset)
		if err := config.SetDirection("output"); err != nil {
			Exitf("Failed to configure line %d: %v\n", offset, err)
		}
		config.SetOutputValue(values[offset] != 0)
	}
	req, err := gpio.RequestLines(chip, offsets, config, logger)
	if err != nil {
		Exitf("Failed to request lines: %v\n", err)
	}
	defer req.Release()

	for _, offset := range offsets {
		fmt.Printf("%d=%d\n", offset, values[offset])
	}
}

type monitorOptions struct {
	ServerHost      string
	ServerPort      int
	MQTTHost        string
	MQTTPort        int
	MQTTUserName    string
	MQTTPassword    string
	MQTTTopicPrefix string
}

// runMonitor loads the monitor configuration and runs the monitor
// service together with the HTTP server until terminated.
func runMonitor(dev device.API, configPath string, opts monitorOptions, logger zerolog.Logger) {
	monitorConfig, err := service.LoadMonitorConfig(configPath)
	if err != nil {
		Exitf("Failed to load configuration '%s': %v\n", configPath, err)
	}

	var mqttBuilder func(clientID string) (mqtt.Service, error)
	if opts.MQTTHost != "" {
		mqttBuilder = func(clientID string) (mqtt.Service, error) {
			result, err := mqtt.NewService(mqtt.Config{
				Host:     opts.MQTTHost,
				Port:     opts.MQTTPort,
				UserName: opts.MQTTUserName,
				Password: opts.MQTTPassword,
				ClientID: clientID,
			}, logger)
			if err != nil {
				return nil, maskAny(err)
			}
			return result, nil
		}
	}

	svc, err := service.NewService(service.Config{
		Monitor:         monitorConfig,
		MQTTTopicPrefix: opts.MQTTTopicPrefix,
		ProgramVersion:  projectVersion,
	}, service.Dependencies{
		Log:         logger,
		Device:      dev,
		MQTTBuilder: mqttBuilder,
	})
	if err != nil {
		Exitf("Failed to initialize Service: %v\n", err)
	}

	httpServer, err := server.New(server.Config{
		Host:     opts.ServerHost,
		HTTPPort: opts.ServerPort,
	}, logger, svc)
	if err != nil {
		Exitf("Failed to initialize Server: %v\n", err)
	}

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Retry with backoff; a busy line or unplugged chip should not
		// kill the monitor.
		return util.UntilCanceled(ctx, logger, "monitor", func() error { return svc.Run(ctx) })
	})
	g.Go(func() error { return httpServer.Run(ctx) })
	if err := g.Wait(); err != nil && err != context.Canceled {
		Exitf("Service run failed: %#v", err)
	}
}

func parseOffsets(args []string) ([]uint, error) {
	result := make([]uint, 0, len(args))
	for _, arg := range args {
		offset, err := parseOffset(arg)
		if err != nil {
			return nil, maskAny(err)
		}
		result = append(result, offset)
	}
	return result, nil
}

func parseOffset(arg string) (uint, error) {
	value, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, maskAny(err)
	}
	return uint(value), nil
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
