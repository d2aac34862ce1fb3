package notifier

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// EventSink receives every published event after the live push. Sinks
// run off the producer's call path; the long-poll bridge and the
// notification persister are sinks.
type EventSink interface {
	OnEvent(ctx context.Context, event Event)
}

type Dispatcher interface {
	Publish(ctx context.Context, draft EventDraft) (Event, error)
}

const storeAppendTimeout = 5 * time.Second

type dispatcher struct {
	registry ConnectionRegistry
	store    EventStore
	limiter  *RateLimiter
	sinks    []EventSink
	nowFn    func() time.Time
}

func NewDispatcher(registry ConnectionRegistry, store EventStore, limiter *RateLimiter, sinks ...EventSink) Dispatcher {
	return &dispatcher{
		registry: registry,
		store:    store,
		limiter:  limiter,
		sinks:    sinks,
		nowFn:    time.Now,
	}
}

// Publish validates the draft, assigns identity, pushes to live
// connections and hands the event to the store and the sinks. Delivery
// failures never surface to the producer; only malformed input and a
// tripped source rate limit do.
func (d *dispatcher) Publish(ctx context.Context, draft EventDraft) (Event, error) {
	if draft.Type == "" {
		return Event{}, ErrMissingEventType
	}
	if draft.Payload == nil {
		return Event{}, ErrMissingEventPayload
	}
	if d.limiter != nil && draft.Source != "" && !d.limiter.Allow("publish:"+draft.Source) {
		log.Warn().Str("source", draft.Source).Msg(MsgPublishRateLimited)
		return Event{}, ErrPublishRateLimited
	}

	priority := draft.Priority
	if !priority.IsValid() {
		// Permissive on purpose, this is a best-effort path.
		priority = PriorityNormal
	}

	timestamp := d.nowFn().UnixMilli()
	event := Event{
		ID:        NewEventID(timestamp),
		Type:      draft.Type,
		Timestamp: timestamp,
		Priority:  priority,
		Source:    draft.Source,
		Payload:   draft.Payload,
	}
	if len(draft.TargetUserIDs) > 0 || len(draft.TargetRoles) > 0 || draft.CorrelationID != "" {
		event.Metadata = &EventMetadata{
			TargetUserIDs: draft.TargetUserIDs,
			TargetRoles:   draft.TargetRoles,
			CorrelationID: draft.CorrelationID,
		}
	}

	delivered := d.push(event)
	log.Debug().Str("eventId", event.ID).Str("type", string(event.Type)).
		Int("delivered", delivered).Msg("Event pushed to live connections")

	// The store append and the sinks must not stall live delivery.
	appendCtx := context.WithoutCancel(ctx)
	go func() {
		storeCtx, cancel := context.WithTimeout(appendCtx, storeAppendTimeout)
		defer cancel()
		d.store.Append(storeCtx, event)
	}()
	for _, sink := range d.sinks {
		go sink.OnEvent(appendCtx, event)
	}

	return event, nil
}

func (d *dispatcher) push(event Event) int {
	if event.Metadata.IsBroadcast() {
		return d.registry.Broadcast(event)
	}
	return d.registry.SendToTargets(event, event.Metadata.TargetUserIDs, event.Metadata.TargetRoles)
}
