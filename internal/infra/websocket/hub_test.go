package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsync "github.com/sonartrack/api/internal/app/sync"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/logger"
)

// newTestClient builds a client with no underlying connection. SendMessage
// only touches the send buffer, so tests read frames straight off c.send.
func newTestClient(hub *Hub) *Client {
	return NewClient(hub, nil, logger.NewNop())
}

func recvMessage(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHubBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.NewNop())
	go hub.Run(ctx)

	t.Run("delivers to subscribed clients only", func(t *testing.T) {
		subscribed := newTestClient(hub)
		other := newTestClient(hub)
		hub.RegisterClient(subscribed)
		hub.RegisterClient(other)
		defer hub.UnregisterClient(subscribed)
		defer hub.UnregisterClient(other)

		hub.subscribeToChannel(subscribed, "sync:p1")

		hub.BroadcastEvent("sync:p1", map[string]string{"state": "running"})

		msg := recvMessage(t, subscribed)
		assert.Equal(t, MessageTypeEvent, msg.Type)
		assert.Equal(t, "sync:p1", msg.Channel)
		assert.Len(t, other.send, 0)
	})

	t.Run("broadcast to empty channel is a no-op", func(t *testing.T) {
		hub.Broadcast("sync:nobody", NewMessage(MessageTypeEvent))
	})

	t.Run("unsubscribed client stops receiving", func(t *testing.T) {
		c := newTestClient(hub)
		hub.RegisterClient(c)
		defer hub.UnregisterClient(c)

		hub.subscribeToChannel(c, "project:p2")
		hub.unsubscribeFromChannel(c, "project:p2")

		hub.BroadcastEvent("project:p2", map[string]string{"event": "deleted"})

		// The broadcast loop must have drained before we assert.
		hub.Broadcast("project:p2", NewMessage(MessageTypeEvent))
		time.Sleep(50 * time.Millisecond)
		assert.Len(t, c.send, 0)
	})
}

func TestHubStats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.NewNop())
	go hub.Run(ctx)

	c := newTestClient(hub)
	hub.RegisterClient(c)
	hub.subscribeToChannel(c, "sync:p1")
	hub.subscribeToChannel(c, "project:p1")

	// Registration is asynchronous.
	assert.Eventually(t, func() bool {
		return hub.GetStats().TotalClients == 1
	}, time.Second, 10*time.Millisecond)

	stats := hub.GetStats()
	assert.Equal(t, 2, stats.TotalChannels)
	assert.Equal(t, 1, stats.ChannelClients["sync:p1"])

	hub.UnregisterClient(c)
	assert.Eventually(t, func() bool {
		return hub.GetStats().TotalClients == 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.GetStats().TotalChannels)
}

func TestClientSubscriptions(t *testing.T) {
	hub := NewHub(logger.NewNop())
	c := newTestClient(hub)

	t.Run("subscribe is idempotent", func(t *testing.T) {
		assert.True(t, c.Subscribe("sync:p1"))
		assert.False(t, c.Subscribe("sync:p1"))
		assert.True(t, c.IsSubscribed("sync:p1"))
	})

	t.Run("unsubscribe", func(t *testing.T) {
		assert.True(t, c.Unsubscribe("sync:p1"))
		assert.False(t, c.Unsubscribe("sync:p1"))
		assert.False(t, c.IsSubscribed("sync:p1"))
	})

	t.Run("subscription cap", func(t *testing.T) {
		capped := newTestClient(hub)
		for i := 0; i < maxSubscriptionsPerClient; i++ {
			require.True(t, capped.Subscribe(MakeChannel(ChannelTypeSync, shared.NewID().String())))
		}
		assert.False(t, capped.Subscribe("sync:one-too-many"))
	})
}

func TestValidChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    bool
	}{
		{"sync:abc-123", true},
		{"project:abc-123", true},
		{"sync:", false},
		{"project:", false},
		{"metrics:abc-123", false},
		{"abc-123", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			assert.Equal(t, tt.want, validChannel(tt.channel))
		})
	}
}

func TestParseChannel(t *testing.T) {
	typ, id := ParseChannel("sync:abc:def")
	assert.Equal(t, ChannelTypeSync, typ)
	assert.Equal(t, "abc:def", id)

	typ, id = ParseChannel("bare")
	assert.Equal(t, ChannelType(""), typ)
	assert.Equal(t, "bare", id)

	assert.Equal(t, "project:p1", MakeChannel(ChannelTypeProject, "p1"))
}

func TestProgressNotifier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.NewNop())
	go hub.Run(ctx)

	projectID := shared.NewID()
	channel := MakeChannel(ChannelTypeSync, projectID.String())

	c := newTestClient(hub)
	hub.RegisterClient(c)
	defer hub.UnregisterClient(c)
	hub.subscribeToChannel(c, channel)

	notifier := NewProgressNotifier(hub)
	notifier.SyncProgress(projectID, appsync.Status{State: appsync.StateRunning, Progress: 40})

	msg := recvMessage(t, c)
	assert.Equal(t, MessageTypeEvent, msg.Type)
	assert.Equal(t, channel, msg.Channel)

	var status appsync.Status
	require.NoError(t, json.Unmarshal(msg.Data, &status))
	assert.Equal(t, appsync.StateRunning, status.State)
	assert.Equal(t, 40, status.Progress)
}
