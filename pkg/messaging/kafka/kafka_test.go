package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishKeysByChannel(t *testing.T) {
	w := &fakeWriter{}
	broker := &KafkaBroker{writer: w}

	require.NoError(t, broker.Publish(context.Background(), "routine.toggled", map[string]bool{"is_completed": true}))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "routine.toggled", string(msg.Key))
	assert.JSONEq(t, `{"is_completed":true}`, string(msg.Value))
	assert.Equal(t, "event-type", msg.Headers[0].Key)
}

func TestPublishWrapsWriterError(t *testing.T) {
	broker := &KafkaBroker{writer: &fakeWriter{err: errors.New("leader not available")}}
	err := broker.Publish(context.Background(), "x", "y")
	assert.ErrorContains(t, err, "leader not available")
}

func TestNewKafkaBrokerValidates(t *testing.T) {
	_, err := NewKafkaBroker(Config{Topic: "t"})
	assert.Error(t, err)
	_, err = NewKafkaBroker(Config{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}
