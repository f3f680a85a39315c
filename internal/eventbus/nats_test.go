/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/infoscreen/internal/events"
)

type recordingPublisher struct {
	subjects []string
	data     [][]byte
	err      error
}

func (r *recordingPublisher) Publish(subject string, data []byte) error {
	r.subjects = append(r.subjects, subject)
	r.data = append(r.data, data)
	return r.err
}

func TestPublishDeliversLocallyAndForwards(t *testing.T) {
	out := &recordingPublisher{}
	bus := newNATSBus(out, zerolog.Nop())
	sub := bus.Subscribe(events.EventPlaylistPublished)

	bus.Publish(events.EventPlaylistPublished, events.Payload{"infoscreen_id": "lobby"})

	select {
	case p := <-sub:
		assert.Equal(t, "lobby", p["infoscreen_id"])
	default:
		t.Fatal("local subscriber did not receive event")
	}

	require.Len(t, out.subjects, 1)
	assert.Equal(t, "infoscreen.events.playlist.published", out.subjects[0])

	msg, err := unmarshalMessage(out.data[0])
	require.NoError(t, err)
	assert.Equal(t, events.EventPlaylistPublished, msg.EventType)
	assert.Equal(t, bus.nodeID, msg.NodeID)
	assert.NotEmpty(t, msg.MessageID)
}

func TestPublishSurvivesForwardingFailure(t *testing.T) {
	bus := newNATSBus(&recordingPublisher{err: errors.New("nats down")}, zerolog.Nop())
	sub := bus.Subscribe(events.EventSlideReviewed)

	bus.Publish(events.EventSlideReviewed, events.Payload{"slide_id": "s1"})

	assert.Len(t, sub, 1)
}

func TestHandleMessageRelaysRemoteEventsOnly(t *testing.T) {
	bus := newNATSBus(&recordingPublisher{}, zerolog.Nop())
	sub := bus.Subscribe(events.EventPlaylistPublished)

	own, err := marshalMessage(events.EventPlaylistPublished, events.Payload{"from": "self"}, bus.nodeID)
	require.NoError(t, err)
	bus.handleMessage(&nats.Msg{Subject: subjectFor(events.EventPlaylistPublished), Data: own})
	assert.Len(t, sub, 0, "own messages must not be delivered twice")

	remote, err := marshalMessage(events.EventPlaylistPublished, events.Payload{"from": "other"}, "other-node")
	require.NoError(t, err)
	bus.handleMessage(&nats.Msg{Subject: subjectFor(events.EventPlaylistPublished), Data: remote})
	require.Len(t, sub, 1)
	relayed := <-sub
	assert.Equal(t, "other", relayed["from"])
	assert.True(t, events.IsRemote(relayed))

	bus.handleMessage(&nats.Msg{Subject: "infoscreen.events.x", Data: []byte("not json")})
	assert.Len(t, sub, 0)
}

func TestUnmarshalRejectsMissingType(t *testing.T) {
	_, err := unmarshalMessage([]byte(`{"payload":{}}`))
	assert.Error(t, err)
}
