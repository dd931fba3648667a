package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository/memstore"
	"github.com/jwalitptl/caregiver-api/pkg/logger"
	"github.com/jwalitptl/caregiver-api/pkg/messaging"
	"github.com/jwalitptl/caregiver-api/pkg/metrics"
)

type recordingBroker struct {
	mu        sync.Mutex
	published []messaging.Message
	failTypes map[string]bool
}

func (b *recordingBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failTypes[channel] {
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, message.(messaging.Message))
	return nil
}

func (b *recordingBroker) Close() error { return nil }

func newTestProcessor(t *testing.T, store *memstore.Store, broker messaging.Broker, attempts int) *OutboxProcessor {
	t.Helper()
	p, err := NewOutboxProcessor(store.Outbox(), broker, "test", OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: attempts,
		RetryDelay:    time.Millisecond,
	}, logger.NewLogger(&logger.Config{Output: io.Discard}), metrics.New("test", prometheus.NewRegistry()))
	require.NoError(t, err)
	return p
}

func addEvent(t *testing.T, store *memstore.Store, eventType string) *model.OutboxEvent {
	t.Helper()
	evt, err := model.NewOutboxEvent(eventType, map[string]string{"type": eventType})
	require.NoError(t, err)
	require.NoError(t, store.Outbox().Create(context.Background(), evt))
	return evt
}

func statusOf(store *memstore.Store, evt *model.OutboxEvent) model.OutboxStatus {
	for _, e := range store.Events() {
		if e.ID == evt.ID {
			return e.Status
		}
	}
	return ""
}

func TestProcessOncePublishesAndMarksProcessed(t *testing.T) {
	store := memstore.New()
	broker := &recordingBroker{}
	p := newTestProcessor(t, store, broker, 3)

	a := addEvent(t, store, model.EventPatientCreated)
	b := addEvent(t, store, model.EventMedicationTaken)

	n, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, broker.published, 2)
	types := []string{broker.published[0].Type, broker.published[1].Type}
	assert.ElementsMatch(t, []string{model.EventPatientCreated, model.EventMedicationTaken}, types)

	assert.Equal(t, model.OutboxStatusProcessed, statusOf(store, a))
	assert.Equal(t, model.OutboxStatusProcessed, statusOf(store, b))

	// nothing left to claim
	n, err = p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFailedPublishIsRetriedThenParked(t *testing.T) {
	store := memstore.New()
	broker := &recordingBroker{failTypes: map[string]bool{model.EventRoutineToggled: true}}
	p := newTestProcessor(t, store, broker, 2)

	evt := addEvent(t, store, model.EventRoutineToggled)

	_, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusRetry, statusOf(store, evt))

	time.Sleep(5 * time.Millisecond)
	_, err = p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusFailed, statusOf(store, evt))
	assert.Empty(t, broker.published)
}

func TestCleanupDeletesOldProcessedEvents(t *testing.T) {
	store := memstore.New()
	p := newTestProcessor(t, store, &recordingBroker{}, 1)
	addEvent(t, store, model.EventMemoryCreated)
	_, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)

	w := NewOutboxCleanupWorker(store.Outbox(), OutboxCleanupConfig{Retention: time.Hour},
		logger.NewLogger(&logger.Config{Output: io.Discard}), metrics.New("test", prometheus.NewRegistry()))

	assert.Zero(t, w.RunOnce(context.Background(), time.Now()))
	assert.Equal(t, int64(1), w.RunOnce(context.Background(), time.Now().Add(2*time.Hour)))
	assert.Empty(t, store.Events())
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	_, err := NewOutboxProcessor(memstore.New().Outbox(), &recordingBroker{}, "test", OutboxProcessorConfig{},
		logger.NewLogger(nil), metrics.New("test", prometheus.NewRegistry()))
	assert.Error(t, err)
}
