package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittolpd/pkg/notify"
)

func testEvent() *notify.Event {
	return &notify.Event{
		Type:      notify.EventJobReceived,
		JobID:     "4f9d3c1e-job",
		Queue:     "lp",
		Number:    42,
		Owner:     "ibmuser",
		Bytes:     60,
		Timestamp: time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

// asyncReceive reads one message from the subscriber in the background.
// Must be called before Publish: miniredis delivers pub/sub synchronously.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() {
		ch <- <-sub.Messages()
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{}
	}
}

func TestPublishDefaultChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	n, err := New(Config{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer func() { _ = n.Close() }()
	assert.Equal(t, DefaultChannel, n.Channel())

	sub := mr.NewSubscriber()
	sub.Subscribe(DefaultChannel)
	ch := asyncReceive(sub)

	require.NoError(t, n.Publish(context.Background(), testEvent()))

	msg := waitMessage(t, ch)
	assert.Equal(t, DefaultChannel, msg.Channel)

	var received notify.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Message), &received))
	assert.Equal(t, notify.EventJobReceived, received.Type)
	assert.Equal(t, "lp", received.Queue)
	assert.Equal(t, 42, received.Number)
	assert.Equal(t, int64(60), received.Bytes)
}

func TestPublishCustomChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	n, err := New(Config{URL: "redis://" + mr.Addr(), Channel: "print:events"})
	require.NoError(t, err)
	defer func() { _ = n.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe("print:events")
	ch := asyncReceive(sub)

	require.NoError(t, n.Publish(context.Background(), testEvent()))
	assert.Equal(t, "print:events", waitMessage(t, ch).Channel)
}

func TestPublishFailsAfterRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	n, err := New(Config{
		URL:     "redis://" + addr,
		Retries: 2,
		Timeout: 200 * time.Millisecond,
		Backoff: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer func() { _ = n.Close() }()

	err = n.Publish(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestPublishCancelledContext(t *testing.T) {
	mr := miniredis.RunT(t)

	n, err := New(Config{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer func() { _ = n.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = n.Publish(ctx, testEvent())
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{URL: "http://not-redis"})
	require.Error(t, err)

	_, err = New(Config{URL: "redis://localhost:6379", Retries: -1})
	require.Error(t, err)

	n, err := New(Config{URL: "redis://localhost:6379"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, n.config.Timeout)
	assert.Equal(t, DefaultBackoff, n.config.Backoff)
	require.NoError(t, n.Close())
}
