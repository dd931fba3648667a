package event

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository/memstore"
)

func TestEmitWritesPendingEvent(t *testing.T) {
	store := memstore.New()
	svc := NewEventService(store.Outbox())

	svc.Emit(context.Background(), model.EventRoutineToggled, map[string]bool{"is_completed": true})

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventRoutineToggled, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)

	var payload map[string]bool
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.True(t, payload["is_completed"])
}

func TestEmitSwallowsMarshalErrors(t *testing.T) {
	store := memstore.New()
	svc := NewEventService(store.Outbox())

	assert.NotPanics(t, func() {
		svc.Emit(context.Background(), model.EventMemoryCreated, make(chan int))
	})
	assert.Empty(t, store.Events())
}
