package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type longPollPollResponse struct {
	Events []struct {
		Category string `json:"category"`
		Data     Event  `json:"data"`
	} `json:"events"`
	Timestamp int64 `json:"timestamp"`
}

func pollCategory(t *testing.T, url, category string) longPollPollResponse {
	t.Helper()
	response, err := http.Get(url + "?timeout=1&category=" + category + "&since_time=1")
	assert.Nil(t, err)
	defer response.Body.Close()

	var decoded longPollPollResponse
	assert.Nil(t, json.NewDecoder(response.Body).Decode(&decoded))
	return decoded
}

func TestLongPollBridgeCategoryRouting(t *testing.T) {
	bridge, err := NewLongPollBridge(100, 60)
	assert.Nil(t, err)
	defer bridge.Shutdown()

	testServer := httptest.NewServer(bridge.SubscriptionHandler())
	defer testServer.Close()

	bridge.OnEvent(context.Background(), makeEvent("direct", time.Now().UnixMilli(), EventTypeNotification,
		&EventMetadata{TargetUserIDs: []string{"u1"}}))
	bridge.OnEvent(context.Background(), makeEvent("roled", time.Now().UnixMilli(), EventTypeReportUpdate,
		&EventMetadata{TargetRoles: []UserRole{RoleManager}}))
	bridge.OnEvent(context.Background(), makeEvent("everyone", time.Now().UnixMilli(), EventTypeSystemAlert, nil))

	decoded := pollCategory(t, testServer.URL, "user:u1")
	assert.Equal(t, 1, len(decoded.Events))
	assert.Equal(t, "direct", decoded.Events[0].Data.ID)

	decoded = pollCategory(t, testServer.URL, "role:manager")
	assert.Equal(t, 1, len(decoded.Events))
	assert.Equal(t, "roled", decoded.Events[0].Data.ID)

	decoded = pollCategory(t, testServer.URL, "broadcast")
	assert.Equal(t, 1, len(decoded.Events))
	assert.Equal(t, "everyone", decoded.Events[0].Data.ID)

	// the user bucket does not leak broadcasts or foreign users
	decoded = pollCategory(t, testServer.URL, "user:u2")
	assert.Equal(t, 0, len(decoded.Events))
}
