package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ai-sqlnotebook-be/pkg/events"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "events.NOTEBOOK_ENTRY_FAILED", Subject(events.NotebookEntryFailed))
}

func TestEncode(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := events.BaseEvent{Type: "X", Data: map[string]interface{}{"entry_id": "e1"}, OccurredAt: at}

	raw, err := Encode(ev)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "X", body["event_type"])
	assert.Equal(t, "e1", body["entry_id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", body["occurred_at"])
}

func TestEncodeEntryFailed(t *testing.T) {
	ev := events.NewEntryFailed(uuid.New(), uuid.New(), uuid.New(), "transport", true, "status 502")

	raw, err := Encode(ev)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, true, body["rolled_back"])
	assert.Equal(t, "transport", body["kind"])
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	assert.NoError(t, p.Publish(context.Background(), events.BaseEvent{Type: "X"}))
	p.Close()
}

func TestNewPublisherClosesConnectionWhenJetStreamFails(t *testing.T) {
	var conn *nats.Conn
	orig := newJetStream
	newJetStream = func(nc *nats.Conn) (jetstream.JetStream, error) {
		conn = nc
		return nil, errors.New("jetstream unavailable")
	}
	t.Cleanup(func() { newJetStream = orig })

	// Nothing listens here; RetryOnFailedConnect still hands back a connection.
	p, err := NewPublisher("nats://127.0.0.1:1")

	require.Error(t, err)
	assert.Nil(t, p)
	require.NotNil(t, conn)
	assert.True(t, conn.IsClosed())
}
