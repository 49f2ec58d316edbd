package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/confirming/marketplace/internal/domain"
)

func sampleEvent() domain.Event {
	return domain.NewEvent(
		domain.EventInvoiceAdjudicated,
		"6f1c3a52-8f2e-4b7a-9a61-0c1a2b3c4d5e",
		time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
		map[string]any{"declined": 2},
	)
}

func TestToRecord(t *testing.T) {
	e := sampleEvent()

	rec, err := toRecord("confirming.events", e)
	require.NoError(t, err)

	assert.Equal(t, "confirming.events", rec.Topic)
	assert.Equal(t, e.Key, string(rec.Key))
	assert.Equal(t, e.OccurredAt, rec.Timestamp)
	require.Len(t, rec.Headers, 2)
	assert.Equal(t, "event_type", rec.Headers[0].Key)
	assert.Equal(t, "invoice.adjudicated", string(rec.Headers[0].Value))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, e.Type, decoded.Type)
	assert.EqualValues(t, 2, decoded.Payload["declined"])
}

func TestToRecordRejectsUnencodablePayload(t *testing.T) {
	e := sampleEvent()
	e.Payload = map[string]any{"bad": make(chan int)}

	_, err := toRecord("confirming.events", e)
	assert.Error(t, err)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	pub := NewLogPublisher(zap.New(core))

	e := sampleEvent()
	require.NoError(t, pub.Publish(context.Background(), e, e))

	entries := logs.FilterMessage("Domain event").All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "invoice.adjudicated", fields["type"])
	assert.Equal(t, e.Key, fields["key"])
}
