package rabbitmq

import (
	"context"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chatrelay/internal/chat"
)

func TestEncodeDecodeEvent(t *testing.T) {
	ev := chat.NewEvent(chat.EventChatRenamed, "Final Plan")
	ev.Detail = "draft"

	msg, err := EncodeEvent(ev)
	require.NoError(t, err)
	require.Equal(t, "application/json", msg.ContentType)
	require.Equal(t, amqp.Persistent, msg.DeliveryMode)
	require.Equal(t, ev.ID, msg.MessageId)
	require.Equal(t, "chat.renamed", msg.Type)

	got, err := DecodeEvent(msg.Body)
	require.NoError(t, err)
	require.Equal(t, ev.ID, got.ID)
	require.Equal(t, ev.Chat, got.Chat)
	require.Equal(t, "draft", got.Detail)
	require.True(t, ev.At.Equal(got.At))
}

func TestDecodeEvent_Rejects(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"job_id":"x"}`))
	require.Error(t, err)
	_, err = DecodeEvent([]byte(`not json`))
	require.Error(t, err)
}

func TestPublisher_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_RABBIT_URL")
	if url == "" {
		t.Skip("TEST_RABBIT_URL not set")
	}
	queue := "chat_events_test_" + chat.NewEvent(chat.EventChatReset, "").ID

	p, err := NewPublisher(url, queue)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = p.ch.QueueDelete(queue, false, false, false)
		_ = p.Close()
	})

	ev := chat.NewEvent(chat.EventChatReset, "default")
	require.NoError(t, p.Publish(context.Background(), ev))

	var d amqp.Delivery
	require.Eventually(t, func() bool {
		var ok bool
		d, ok, err = p.ch.Get(queue, true)
		return err == nil && ok
	}, 5*time.Second, 50*time.Millisecond)

	got, err := DecodeEvent(d.Body)
	require.NoError(t, err)
	require.Equal(t, ev.ID, got.ID)
}
