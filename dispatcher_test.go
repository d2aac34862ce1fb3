package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	mutex  sync.Mutex
	events []Event
}

func (s *recordingSink) OnEvent(_ context.Context, event Event) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.events)
}

func newTestDispatcher(limiter *RateLimiter, sinks ...EventSink) (Dispatcher, ConnectionRegistry, EventStore) {
	registry := NewConnectionRegistry(testRegistrySettings())
	store := NewFailoverEventStore(NewMemoryEventStore(time.Hour, 100), NewMemoryEventStore(time.Hour, 100), 30*time.Second)
	return NewDispatcher(registry, store, limiter, sinks...), registry, store
}

func TestPublishValidation(t *testing.T) {
	dispatcher, _, _ := newTestDispatcher(nil)

	_, err := dispatcher.Publish(context.Background(), EventDraft{Payload: "data"})
	assert.Equal(t, ErrMissingEventType, err)

	_, err = dispatcher.Publish(context.Background(), EventDraft{Type: EventTypeNotification})
	assert.Equal(t, ErrMissingEventPayload, err)
}

func TestPublishAssignsIdentityAndCoercesPriority(t *testing.T) {
	dispatcher, _, _ := newTestDispatcher(nil)

	event, err := dispatcher.Publish(context.Background(), EventDraft{
		Type:     EventTypeNotification,
		Payload:  map[string]interface{}{"title": "Test"},
		Priority: EventPriority("shouting"),
	})
	assert.Nil(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Greater(t, event.Timestamp, int64(0))
	assert.Equal(t, PriorityNormal, event.Priority)
	assert.Nil(t, event.Metadata)

	event, err = dispatcher.Publish(context.Background(), EventDraft{
		Type:     EventTypeNotification,
		Payload:  map[string]interface{}{"title": "Test"},
		Priority: PriorityCritical,
	})
	assert.Nil(t, err)
	assert.Equal(t, PriorityCritical, event.Priority)
}

func TestPublishRateLimit(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	dispatcher, _, _ := newTestDispatcher(limiter)

	draft := EventDraft{Type: EventTypePing, Payload: "p", Source: "reporting"}

	_, err := dispatcher.Publish(context.Background(), draft)
	assert.Nil(t, err)
	_, err = dispatcher.Publish(context.Background(), draft)
	assert.Nil(t, err)
	_, err = dispatcher.Publish(context.Background(), draft)
	assert.Equal(t, ErrPublishRateLimited, err)

	// drafts without a source are not rate limited
	_, err = dispatcher.Publish(context.Background(), EventDraft{Type: EventTypePing, Payload: "p"})
	assert.Nil(t, err)
}

func TestPublishEndToEnd(t *testing.T) {
	dispatcher, registry, store := newTestDispatcher(nil)

	c1 := registry.Register("c1", "u1", []UserRole{RoleUser})
	c2 := registry.Register("c2", "u2", []UserRole{RoleUser})
	registry.Confirm("c1")
	registry.Confirm("c2")

	event, err := dispatcher.Publish(context.Background(), EventDraft{
		Type:          EventTypeNotification,
		TargetUserIDs: []string{"u1"},
		Priority:      PriorityHigh,
		Payload:       map[string]interface{}{"title": "Test"},
	})
	assert.Nil(t, err)

	assert.Equal(t, 1, len(c1.Events()))
	assert.Equal(t, 0, len(c2.Events()))

	received := <-c1.Events()
	assert.Equal(t, event.ID, received.Id)
	assert.Equal(t, string(EventTypeNotification), received.Event)

	assert.Eventually(t, func() bool {
		return len(store.Query(context.Background(), 0, EventFilter{UserID: "u1"})) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, len(store.Query(context.Background(), 0, EventFilter{UserID: "u2"})))
}

func TestPublishBroadcast(t *testing.T) {
	dispatcher, registry, store := newTestDispatcher(nil)

	c1 := registry.Register("c1", "u1", []UserRole{RoleUser})
	c2 := registry.Register("c2", "u2", []UserRole{RoleManager})
	registry.Confirm("c1")
	registry.Confirm("c2")

	_, err := dispatcher.Publish(context.Background(), EventDraft{
		Type:    EventTypeSystemAlert,
		Payload: map[string]interface{}{"title": "maintenance"},
	})
	assert.Nil(t, err)

	assert.Equal(t, 1, len(c1.Events()))
	assert.Equal(t, 1, len(c2.Events()))

	// broadcasts show up for every query identity
	assert.Eventually(t, func() bool {
		return len(store.Query(context.Background(), 0, EventFilter{UserID: "u2"})) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublishRoleTargeting(t *testing.T) {
	dispatcher, registry, _ := newTestDispatcher(nil)

	c1 := registry.Register("c1", "u1", []UserRole{RoleAdmin})
	c2 := registry.Register("c2", "u2", []UserRole{RoleUser})
	registry.Confirm("c1")
	registry.Confirm("c2")

	_, err := dispatcher.Publish(context.Background(), EventDraft{
		Type:        EventTypeUserUpdate,
		TargetRoles: []UserRole{RoleAdmin},
		Payload:     map[string]interface{}{"userId": "u3"},
	})
	assert.Nil(t, err)

	assert.Equal(t, 1, len(c1.Events()))
	assert.Equal(t, 0, len(c2.Events()))
}

func TestPublishDualTargetingDeliversOnce(t *testing.T) {
	dispatcher, registry, _ := newTestDispatcher(nil)

	// c1 matches both the user list and the role list
	c1 := registry.Register("c1", "u1", []UserRole{RoleManager})
	c2 := registry.Register("c2", "u2", []UserRole{RoleManager})
	c3 := registry.Register("c3", "u3", []UserRole{RoleUser})
	registry.Confirm("c1")
	registry.Confirm("c2")
	registry.Confirm("c3")

	_, err := dispatcher.Publish(context.Background(), EventDraft{
		Type:          EventTypeUserUpdate,
		TargetUserIDs: []string{"u1"},
		TargetRoles:   []UserRole{RoleManager},
		Payload:       map[string]interface{}{"userId": "u1"},
	})
	assert.Nil(t, err)

	assert.Equal(t, 1, len(c1.Events()))
	assert.Equal(t, 1, len(c2.Events()))
	assert.Equal(t, 0, len(c3.Events()))
}

func TestPublishReportUpdateRoundTrip(t *testing.T) {
	dispatcher, registry, store := newTestDispatcher(nil)

	c1 := registry.Register("c1", "u1", []UserRole{RoleManager})
	registry.Confirm("c1")

	amount := decimal.RequireFromString("1250.75")
	payload := ReportUpdatePayload{
		ReportID: uuid.New(),
		BranchID: uuid.New(),
		Category: ReportCategoryWriteOff,
		Status:   ReportStatusApproved,
		Amount:   amount,
		Comment:  "approved after review",
	}

	event, err := dispatcher.Publish(context.Background(), EventDraft{
		Type:        EventTypeReportUpdate,
		Source:      "reporting",
		TargetRoles: []UserRole{RoleManager},
		Payload:     payload,
	})
	assert.Nil(t, err)

	assert.Equal(t, 1, len(c1.Events()))
	received := <-c1.Events()
	assert.Equal(t, event.ID, received.Id)
	assert.Equal(t, string(EventTypeReportUpdate), received.Event)

	// consumers see the event as JSON, the amount must survive the wire
	wire, err := json.Marshal(received.Data)
	assert.Nil(t, err)
	var decodedEvent Event
	assert.Nil(t, json.Unmarshal(wire, &decodedEvent))

	payloadJSON, err := json.Marshal(decodedEvent.Payload)
	assert.Nil(t, err)
	var decodedPayload ReportUpdatePayload
	assert.Nil(t, json.Unmarshal(payloadJSON, &decodedPayload))

	assert.Equal(t, payload.ReportID, decodedPayload.ReportID)
	assert.Equal(t, ReportCategoryWriteOff, decodedPayload.Category)
	assert.Equal(t, ReportStatusApproved, decodedPayload.Status)
	assert.True(t, amount.Equal(decodedPayload.Amount))

	assert.Eventually(t, func() bool {
		return len(store.Query(context.Background(), 0, EventFilter{
			Roles: []UserRole{RoleManager},
			Types: []EventType{EventTypeReportUpdate},
		})) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublishNotifiesSinks(t *testing.T) {
	sink := &recordingSink{}
	dispatcher, _, _ := newTestDispatcher(nil, sink)

	_, err := dispatcher.Publish(context.Background(), EventDraft{
		Type:    EventTypeNotification,
		Payload: map[string]interface{}{"title": "Test"},
	})
	assert.Nil(t, err)

	assert.Eventually(t, func() bool {
		return sink.count() == 1
	}, time.Second, 10*time.Millisecond)
}
