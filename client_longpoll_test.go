package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
)

func setupLongPollBridgeServer(t *testing.T) (*LongPollBridge, *httptest.Server) {
	t.Helper()
	bridge, err := NewLongPollBridge(100, 60)
	assert.Nil(t, err)

	mux := http.NewServeMux()
	mux.Handle("/v1/events/subscribe", bridge.SubscriptionHandler())
	testServer := httptest.NewServer(mux)

	t.Cleanup(func() {
		testServer.Close()
		bridge.Shutdown()
	})
	return bridge, testServer
}

func TestLongPollClientReceivesUserEvents(t *testing.T) {
	bridge, testServer := setupLongPollBridgeServer(t)

	timestamp := time.Now().UnixMilli()
	event := Event{
		ID:        NewEventID(timestamp),
		Type:      EventTypeNotification,
		Timestamp: timestamp,
		Payload:   map[string]interface{}{"title": "Test"},
		Metadata:  &EventMetadata{TargetUserIDs: []string{"u1"}},
	}
	bridge.OnEvent(context.Background(), event)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewLongPollClient(resty.New(), testServer.URL, 1)
	go client.StartUserLongPolling(ctx, "u1")

	select {
	case received := <-client.GetEventsChan():
		assert.Equal(t, event.ID, received.ID)
		assert.Equal(t, EventTypeNotification, received.Type)
		assert.Equal(t, timestamp, received.Timestamp)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received over long-poll")
	}
}

func TestLongPollClientStopsOnContextCancel(t *testing.T) {
	bridge, testServer := setupLongPollBridgeServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewLongPollClient(resty.New(), testServer.URL, 1)

	done := make(chan struct{})
	go func() {
		client.StartBroadcastLongPolling(ctx)
		close(done)
	}()

	cancel()
	timestamp := time.Now().UnixMilli()
	bridge.OnEvent(context.Background(), Event{
		ID:        NewEventID(timestamp),
		Type:      EventTypePing,
		Timestamp: timestamp,
		Payload:   "p",
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("long-poll loop did not stop after cancel")
	}
	assert.Equal(t, 0, len(client.GetEventsChan()))
}
