/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus fans events out across service instances over NATS or Redis.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/infoscreen/internal/events"
)

const subjectPrefix = "infoscreen.events."

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL   string
	Token string

	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// publisher is the part of *nats.Conn used for outbound messages.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSBus delivers events to local subscribers and mirrors them to every
// other instance connected to the same NATS server.
type NATSBus struct {
	local  *events.Bus
	conn   *nats.Conn
	out    publisher
	sub    *nats.Subscription
	nodeID string
	logger zerolog.Logger
}

// NewNATSBus connects to NATS and starts relaying remote events to local subscribers.
func NewNATSBus(cfg NATSConfig, logger zerolog.Logger) (*NATSBus, error) {
	logger = logger.With().Str("component", "eventbus").Logger()

	opts := []nats.Option{
		nats.Name("infoscreen"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	bus := newNATSBus(conn, logger)
	bus.conn = conn

	sub, err := conn.Subscribe(subjectPrefix+">", bus.handleMessage)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s>: %w", subjectPrefix, err)
	}
	bus.sub = sub

	logger.Info().Str("url", conn.ConnectedUrl()).Str("node_id", bus.nodeID).Msg("nats event bus connected")
	return bus, nil
}

func newNATSBus(out publisher, logger zerolog.Logger) *NATSBus {
	return &NATSBus{
		local:  events.NewBus(),
		out:    out,
		nodeID: generateNodeID(),
		logger: logger,
	}
}

// Subscribe registers a local subscriber for an event type.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	return nb.local.Subscribe(eventType)
}

// Unsubscribe removes a local subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)
}

// Publish delivers locally, then forwards to NATS. Forwarding failures are
// logged; local delivery has already happened.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Warn().Err(err).Str("event", string(eventType)).Msg("encode event for nats")
		return
	}
	if err := nb.out.Publish(subjectFor(eventType), data); err != nil {
		nb.logger.Warn().Err(err).Str("event", string(eventType)).Msg("publish event to nats")
	}
}

// handleMessage relays events published by other nodes to local subscribers.
func (nb *NATSBus) handleMessage(m *nats.Msg) {
	msg, err := unmarshalMessage(m.Data)
	if err != nil {
		nb.logger.Debug().Err(err).Str("subject", m.Subject).Msg("dropping malformed nats message")
		return
	}
	relay(nb.local, msg, nb.nodeID)
}

// Close drains the subscription and closes the connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	return nb.conn.Drain()
}

// wireMessage is the envelope exchanged between instances over NATS or Redis.
type wireMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// relay hands a remote message to local subscribers, tagged with its origin.
// Messages published by this node were already delivered locally.
func relay(local *events.Bus, msg *wireMessage, nodeID string) {
	if msg.NodeID == nodeID {
		return
	}
	if msg.Payload == nil {
		msg.Payload = events.Payload{}
	}
	msg.Payload[events.KeyOrigin] = msg.NodeID
	local.Publish(msg.EventType, msg.Payload)
}

func subjectFor(eventType events.EventType) string {
	return subjectPrefix + string(eventType)
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(wireMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalMessage(data []byte) (*wireMessage, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event message: %w", err)
	}
	if msg.EventType == "" {
		return nil, fmt.Errorf("event message without type")
	}
	return &msg, nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return strings.ToLower(host) + "-" + uuid.NewString()[:8]
}
