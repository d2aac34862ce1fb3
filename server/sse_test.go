package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	notifier "github.com/branchpulse/notifier"
)

func setupStreamServer(heartbeatInterval time.Duration, connectionLimiter *notifier.RateLimiter) (notifier.ConnectionRegistry, *httptest.Server) {
	registry := notifier.NewConnectionRegistry(notifier.RegistrySettings{
		IdleThreshold:       time.Minute,
		StaleThreshold:      5 * time.Minute,
		DisconnectThreshold: 10 * time.Minute,
		SweepInterval:       30 * time.Second,
		EventBufferSize:     16,
	})

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	streamServer := NewEventStreamServer(registry, heartbeatInterval, connectionLimiter)
	engine.GET("/v1/events/stream", streamServer.ServeHTTP())

	return registry, httptest.NewServer(engine)
}

// readFrame reads one SSE frame and returns the value of its event
// field, ignoring other fields.
func readFrame(scanner *bufio.Scanner) (string, bool) {
	eventName := ""
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			return eventName, true
		}
		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		}
	}
	return "", false
}

func TestStreamLifecycle(t *testing.T) {
	registry, testServer := setupStreamServer(time.Hour, nil)
	defer testServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, testServer.URL+"/v1/events/stream?userId=u1&roles=user", nil)
	assert.Nil(t, err)

	response, err := http.DefaultClient.Do(request)
	assert.Nil(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)

	scanner := bufio.NewScanner(response.Body)

	eventName, ok := readFrame(scanner)
	assert.True(t, ok)
	assert.Equal(t, string(notifier.EventTypeConnected), eventName)

	assert.Eventually(t, func() bool {
		stats := registry.GetStats()
		return stats.TotalConnections == 1 && stats.ByState[notifier.StateConnected] == 1
	}, time.Second, 10*time.Millisecond)

	delivered := registry.Broadcast(notifier.Event{
		ID:        "e1",
		Type:      notifier.EventTypeDashboardUpdate,
		Timestamp: time.Now().UnixMilli(),
		Payload:   map[string]interface{}{"widget": "delinquency"},
	})
	assert.Equal(t, 1, delivered)

	eventName, ok = readFrame(scanner)
	assert.True(t, ok)
	assert.Equal(t, string(notifier.EventTypeDashboardUpdate), eventName)

	// dropping the request unregisters the connection
	cancel()
	assert.Eventually(t, func() bool {
		return registry.GetStats().TotalConnections == 0
	}, time.Second, 10*time.Millisecond)
}

func TestStreamHeartbeat(t *testing.T) {
	_, testServer := setupStreamServer(50*time.Millisecond, nil)
	defer testServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	request, _ := http.NewRequestWithContext(ctx, http.MethodGet, testServer.URL+"/v1/events/stream?userId=u1", nil)

	response, err := http.DefaultClient.Do(request)
	assert.Nil(t, err)
	defer response.Body.Close()

	scanner := bufio.NewScanner(response.Body)

	eventName, ok := readFrame(scanner)
	assert.True(t, ok)
	assert.Equal(t, string(notifier.EventTypeConnected), eventName)

	eventName, ok = readFrame(scanner)
	assert.True(t, ok)
	assert.Equal(t, string(notifier.EventTypePing), eventName)
}

func TestStreamRequiresIdentity(t *testing.T) {
	_, testServer := setupStreamServer(time.Hour, nil)
	defer testServer.Close()

	response, err := http.Get(testServer.URL + "/v1/events/stream")
	assert.Nil(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
}

func TestStreamConnectionRateLimit(t *testing.T) {
	limiter := notifier.NewRateLimiter(1, time.Minute)
	_, testServer := setupStreamServer(time.Hour, limiter)
	defer testServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	request, _ := http.NewRequestWithContext(ctx, http.MethodGet, testServer.URL+"/v1/events/stream?userId=u1", nil)
	response, err := http.DefaultClient.Do(request)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	second, err := http.Get(testServer.URL + "/v1/events/stream?userId=u1")
	assert.Nil(t, err)
	defer second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	// a different user is not affected
	thirdCtx, thirdCancel := context.WithCancel(context.Background())
	thirdRequest, _ := http.NewRequestWithContext(thirdCtx, http.MethodGet, testServer.URL+"/v1/events/stream?userId=u2", nil)
	third, err := http.DefaultClient.Do(thirdRequest)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusOK, third.StatusCode)

	thirdCancel()
	third.Body.Close()
	cancel()
	response.Body.Close()
}
