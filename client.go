package notifier

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type ClientState string

const (
	ClientDisconnected  ClientState = "disconnected"
	ClientConnecting    ClientState = "connecting"
	ClientConnected     ClientState = "connected"
	ClientReconnecting  ClientState = "reconnecting"
	ClientForcedPolling ClientState = "forcedPolling"
)

// EventTypeWildcard is the reserved dispatch-table key matching every
// event type. Wildcard handlers run after type-specific handlers.
const EventTypeWildcard EventType = "*"

type EventHandler func(event Event)

type ClientSettings struct {
	BaseReconnectDelay time.Duration
	MaxReconnectDelay  time.Duration
	BackoffFactor      float64
	MaxSSEFailures     int
	PollInterval       time.Duration
	SSEProbeInterval   time.Duration
	PollLimit          int
}

func DefaultClientSettings() ClientSettings {
	return ClientSettings{
		BaseReconnectDelay: time.Second,
		MaxReconnectDelay:  30 * time.Second,
		BackoffFactor:      2,
		MaxSSEFailures:     3,
		PollInterval:       5 * time.Second,
		SSEProbeInterval:   time.Minute,
		PollLimit:          100,
	}
}

// EventStreamClient consumes the notifier's event surface: SSE while
// the stream holds, interval polling with a since-cursor once SSE has
// failed too often in a row.
type EventStreamClient interface {
	Connect(ctx context.Context)
	Disconnect()
	On(eventType EventType, handler EventHandler)
	State() ClientState
	LastEventTimestamp() int64
}

type eventStreamClient struct {
	restyClient *resty.Client
	baseURL     string
	settings    ClientSettings

	mutex              sync.Mutex
	state              ClientState
	handlers           map[EventType][]EventHandler
	lastEventID        string
	lastEventTimestamp int64
	cancel             context.CancelFunc
	sseFailures        int
	reconnectDelay     time.Duration
}

func NewEventStreamClient(restyClient *resty.Client, baseURL string, settings ClientSettings) EventStreamClient {
	if settings.BackoffFactor < 1 {
		settings.BackoffFactor = 1
	}
	return &eventStreamClient{
		restyClient:    restyClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		settings:       settings,
		state:          ClientDisconnected,
		handlers:       make(map[EventType][]EventHandler),
		reconnectDelay: settings.BaseReconnectDelay,
	}
}

func (c *eventStreamClient) On(eventType EventType, handler EventHandler) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

func (c *eventStreamClient) State() ClientState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

func (c *eventStreamClient) LastEventTimestamp() int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.lastEventTimestamp
}

func (c *eventStreamClient) Connect(ctx context.Context) {
	c.mutex.Lock()
	if c.cancel != nil {
		c.mutex.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mutex.Unlock()

	go c.run(runCtx)
}

// Disconnect stops the client terminally. Any pending reconnect or
// polling timer is cancelled and no further attempts follow.
func (c *eventStreamClient) Disconnect() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = ClientDisconnected
}

func (c *eventStreamClient) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.setState(ClientDisconnected)
			return
		}

		c.setState(ClientConnecting)
		err := c.streamOnce(ctx)
		if ctx.Err() != nil {
			c.setState(ClientDisconnected)
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("event stream interrupted")
		}

		c.mutex.Lock()
		c.sseFailures++
		forcePolling := c.sseFailures >= c.settings.MaxSSEFailures
		c.mutex.Unlock()

		if forcePolling {
			if !c.pollUntilProbe(ctx) {
				c.setState(ClientDisconnected)
				return
			}
			continue
		}

		c.setState(ClientReconnecting)
		if !c.waitReconnect(ctx) {
			c.setState(ClientDisconnected)
			return
		}
	}
}

// streamOnce opens the SSE stream and consumes frames until the stream
// breaks or the context is cancelled. A nil error means the server
// closed an established stream cleanly.
func (c *eventStreamClient) streamOnce(ctx context.Context) error {
	request := c.restyClient.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream")
	if lastEventID := c.getLastEventID(); lastEventID != "" {
		request.SetHeader("Last-Event-ID", lastEventID)
	}

	response, err := request.Get(c.baseURL + "/v1/events/stream")
	if err != nil {
		return errors.Wrap(err, "open event stream failed")
	}
	body := response.RawBody()
	defer body.Close()

	if response.StatusCode() != http.StatusOK {
		return errors.Errorf("unexpected event stream status: %d", response.StatusCode())
	}

	c.markConnected()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)

	var frameID, frameData string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if frameData != "" {
				c.handleFrame(frameID, frameData)
			}
			frameID, frameData = "", ""
		case strings.HasPrefix(line, "id:"):
			frameID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "data:"):
			frameData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "read event stream failed")
	}

	return nil
}

func (c *eventStreamClient) handleFrame(frameID, frameData string) {
	var event Event
	if err := json.Unmarshal([]byte(frameData), &event); err != nil {
		log.Error().Err(err).Str("data", frameData).Msg("unmarshal stream event failed")
		return
	}
	if event.ID == "" {
		event.ID = frameID
	}
	c.recordEvent(event)
	c.dispatch(event)
}

// pollUntilProbe runs forced-polling mode: interval polls with the
// last-event timestamp as cursor, until the SSE probe timer fires.
// Returns false when the context was cancelled.
func (c *eventStreamClient) pollUntilProbe(ctx context.Context) bool {
	c.setState(ClientForcedPolling)
	log.Info().Int("failures", c.failureCount()).Msg("event stream degraded to polling")

	pollTicker := time.NewTicker(c.settings.PollInterval)
	defer pollTicker.Stop()
	probeTimer := time.NewTimer(c.settings.SSEProbeInterval)
	defer probeTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-pollTicker.C:
			c.pollOnce(ctx)
		case <-probeTimer.C:
			// Give SSE another chance; a failed probe lands
			// straight back here on the next loop iteration.
			c.mutex.Lock()
			c.sseFailures = c.settings.MaxSSEFailures - 1
			c.mutex.Unlock()
			return true
		}
	}
}

func (c *eventStreamClient) pollOnce(ctx context.Context) {
	since := c.LastEventTimestamp()

	var events []Event
	response, err := c.restyClient.R().
		SetContext(ctx).
		SetQueryParam("since", fmt.Sprintf("%d", since)).
		SetQueryParam("limit", fmt.Sprintf("%d", c.settings.PollLimit)).
		SetResult(&events).
		Get(c.baseURL + "/v1/events")
	if err != nil {
		log.Error().Err(err).Msg("poll events failed")
		return
	}
	if response.StatusCode() != http.StatusOK {
		log.Error().Int("status", response.StatusCode()).Msg("poll events failed")
		return
	}

	for _, event := range events {
		c.recordEvent(event)
		c.dispatch(event)
	}
}

func (c *eventStreamClient) waitReconnect(ctx context.Context) bool {
	c.mutex.Lock()
	delay := c.reconnectDelay
	next := time.Duration(float64(c.reconnectDelay) * c.settings.BackoffFactor)
	if next > c.settings.MaxReconnectDelay {
		next = c.settings.MaxReconnectDelay
	}
	c.reconnectDelay = next
	c.mutex.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// dispatch runs type-specific handlers first, then wildcard handlers.
func (c *eventStreamClient) dispatch(event Event) {
	c.mutex.Lock()
	handlers := make([]EventHandler, 0, len(c.handlers[event.Type])+len(c.handlers[EventTypeWildcard]))
	handlers = append(handlers, c.handlers[event.Type]...)
	handlers = append(handlers, c.handlers[EventTypeWildcard]...)
	c.mutex.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (c *eventStreamClient) recordEvent(event Event) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if event.ID != "" {
		c.lastEventID = event.ID
	}
	if event.Timestamp > c.lastEventTimestamp {
		c.lastEventTimestamp = event.Timestamp
	}
}

func (c *eventStreamClient) markConnected() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.state = ClientConnected
	c.sseFailures = 0
	c.reconnectDelay = c.settings.BaseReconnectDelay
}

func (c *eventStreamClient) setState(state ClientState) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.state = state
}

func (c *eventStreamClient) getLastEventID() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.lastEventID
}

func (c *eventStreamClient) failureCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.sseFailures
}
