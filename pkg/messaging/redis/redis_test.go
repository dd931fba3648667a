package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	calls    int
	channels []string
	payloads [][]byte
	err      error
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.calls++
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, message.([]byte))
	cmd.SetVal(1)
	return cmd
}

func (f *fakeClient) Close() error { return nil }

func TestPublishPrefixesChannel(t *testing.T) {
	logger := zerolog.Nop()
	client := &fakeClient{}
	broker := newRedisBroker(client, Config{ChannelPrefix: "caregiver."}, &logger)

	err := broker.Publish(context.Background(), "medication.taken", map[string]string{"id": "1"})
	require.NoError(t, err)

	require.Len(t, client.channels, 1)
	assert.Equal(t, "caregiver.medication.taken", client.channels[0])

	var body map[string]string
	require.NoError(t, json.Unmarshal(client.payloads[0], &body))
	assert.Equal(t, "1", body["id"])
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	logger := zerolog.Nop()
	client := &fakeClient{err: errors.New("connection refused")}
	broker := newRedisBroker(client, Config{}, &logger)

	for i := 0; i < 5; i++ {
		assert.Error(t, broker.Publish(context.Background(), "x", "y"))
	}
	assert.Equal(t, 5, client.calls)

	err := broker.Publish(context.Background(), "x", "y")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, client.calls)
}
