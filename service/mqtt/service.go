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

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// QosAtMostOnce represents "QoS 0: At most once delivery".
	QosAtMostOnce = byte(0)
	// QosAtLeastOnce represents "QoS 1: At least once delivery".
	QosAtLeastOnce = byte(1)

	connectTimeout = time.Second * 10
)

type Config struct {
	Host     string
	Port     int
	UserName string
	Password string
	ClientID string
}

// Service contains the API exposed by the MQTT service.
type Service interface {
	// Close the service
	Close() error
	// Publish a JSON encoded message into a topic.
	Publish(ctx context.Context, msg interface{}, topic string, qos byte) error
}

// NewService instantiates a new MQTT service.
func NewService(config Config, logger zerolog.Logger) (Service, error) {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s", addr)).
		SetClientID(config.ClientID).
		SetUsername(config.UserName).
		SetPassword(config.Password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Error().Err(err).Msg("MQTT connection lost")
		})
	return &service{
		Config: config,
		client: paho.NewClient(opts),
	}, nil
}

type service struct {
	Config
	mutex     sync.Mutex
	client    paho.Client
	connected bool
}

// Close the service
func (s *service) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.connected {
		s.client.Disconnect(250)
		s.connected = false
	}
	return nil
}

// connect opens a connection when needed.
func (s *service) connect() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.connected {
		return nil
	}
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.Errorf("timeout connecting to MQTT broker at %s:%d", s.Host, s.Port)
	}
	if err := token.Error(); err != nil {
		return maskAny(err)
	}
	s.connected = true
	return nil
}

// Publish a JSON encoded message into a topic.
func (s *service) Publish(ctx context.Context, msg interface{}, topic string, qos byte) error {
	if err := s.connect(); err != nil {
		return maskAny(err)
	}
	encodedMsg, err := json.Marshal(msg)
	if err != nil {
		return maskAny(err)
	}
	token := s.client.Publish(topic, qos, false, encodedMsg)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return maskAny(err)
		}
	case <-ctx.Done():
		return maskAny(ctx.Err())
	}
	return nil
}

var maskAny = errors.WithStack
