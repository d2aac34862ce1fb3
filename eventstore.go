package notifier

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/branchpulse/notifier/utils"
)

// EventStoreBackend is one concrete retention backend. Backends share
// the bucket layout so the failover wrapper can switch between them
// without changing query semantics.
type EventStoreBackend interface {
	Append(ctx context.Context, event Event) error
	Query(ctx context.Context, sinceTimestamp int64, filter EventFilter) ([]Event, error)
	Prune(ctx context.Context) error
	Name() string
}

// EventStore is the error-swallowing surface handed to the dispatcher
// and the polling handler. Store failures degrade the replay path only,
// they never reach a producer.
type EventStore interface {
	Append(ctx context.Context, event Event)
	Query(ctx context.Context, sinceTimestamp int64, filter EventFilter) []Event
	StartPruneLoop(ctx context.Context, interval time.Duration)
}

const (
	bucketGlobal    = "global"
	bucketBroadcast = "broadcast"
)

func bucketForUser(userID string) string {
	return "user:" + userID
}

func bucketForRole(role UserRole) string {
	return "role:" + string(role)
}

// appendBuckets lists every bucket an event is stored under. The global
// bucket holds everything for unfiltered administrative queries.
func appendBuckets(event Event) []string {
	buckets := []string{bucketGlobal}
	if event.Metadata.IsBroadcast() {
		return append(buckets, bucketBroadcast)
	}
	for _, userID := range event.Metadata.TargetUserIDs {
		buckets = append(buckets, bucketForUser(userID))
	}
	for _, role := range event.Metadata.TargetRoles {
		buckets = append(buckets, bucketForRole(role))
	}
	return buckets
}

// queryBuckets lists the buckets a filtered query reads. Broadcasts are
// always included; a query with no recipient criteria reads everything.
func queryBuckets(filter EventFilter) []string {
	if filter.UserID == "" && len(filter.Roles) == 0 {
		return []string{bucketGlobal}
	}
	buckets := []string{bucketBroadcast}
	if filter.UserID != "" {
		buckets = append(buckets, bucketForUser(filter.UserID))
	}
	for _, role := range filter.Roles {
		buckets = append(buckets, bucketForRole(role))
	}
	return buckets
}

func matchesTypeFilter(event Event, types []EventType) bool {
	if len(types) == 0 {
		return true
	}
	return utils.SliceContains(event.Type, types)
}

// mergeQueryResults deduplicates bucket overlaps, restores the
// oldest-to-newest order and applies the limit.
func mergeQueryResults(collected []Event, limit int) []Event {
	seen := make(map[string]struct{}, len(collected))
	merged := make([]Event, 0, len(collected))
	for _, event := range collected {
		if _, ok := seen[event.ID]; ok {
			continue
		}
		seen[event.ID] = struct{}{}
		merged = append(merged, event)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

type failoverEventStore struct {
	primary          EventStoreBackend
	fallback         EventStoreBackend
	cooldown         time.Duration
	mutex            sync.Mutex
	primaryDownUntil time.Time
	nowFn            func() time.Time
}

// NewFailoverEventStore wraps a primary backend with an in-process
// fallback. After a primary failure the primary is skipped for the
// cooldown window, then probed again. No gap reconciliation happens on
// recovery.
func NewFailoverEventStore(primary, fallback EventStoreBackend, cooldown time.Duration) EventStore {
	return &failoverEventStore{
		primary:  primary,
		fallback: fallback,
		cooldown: cooldown,
		nowFn:    time.Now,
	}
}

func (s *failoverEventStore) Append(ctx context.Context, event Event) {
	if s.primaryUsable() {
		err := s.primary.Append(ctx, event)
		if err == nil {
			return
		}
		s.markPrimaryDown(err)
	}

	if err := s.fallback.Append(ctx, event); err != nil {
		log.Error().Err(err).Str("backend", s.fallback.Name()).Str("eventId", event.ID).Msg(MsgEventStoreAppendFailed)
	}
}

func (s *failoverEventStore) Query(ctx context.Context, sinceTimestamp int64, filter EventFilter) []Event {
	if s.primaryUsable() {
		events, err := s.primary.Query(ctx, sinceTimestamp, filter)
		if err == nil {
			return events
		}
		s.markPrimaryDown(err)
	}

	events, err := s.fallback.Query(ctx, sinceTimestamp, filter)
	if err != nil {
		log.Error().Err(err).Str("backend", s.fallback.Name()).Msg(MsgEventStoreQueryFailed)
		return []Event{}
	}
	return events
}

func (s *failoverEventStore) StartPruneLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.prune(ctx)
			}
		}
	}()
}

func (s *failoverEventStore) prune(ctx context.Context) {
	// Both backends accumulate over time, prune both.
	if s.primaryUsable() {
		if err := s.primary.Prune(ctx); err != nil {
			s.markPrimaryDown(err)
		}
	}
	if err := s.fallback.Prune(ctx); err != nil {
		log.Error().Err(err).Str("backend", s.fallback.Name()).Msg(MsgEventStorePruneFailed)
	}
}

func (s *failoverEventStore) primaryUsable() bool {
	if s.primary == nil {
		return false
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return !s.nowFn().Before(s.primaryDownUntil)
}

func (s *failoverEventStore) markPrimaryDown(err error) {
	s.mutex.Lock()
	s.primaryDownUntil = s.nowFn().Add(s.cooldown)
	s.mutex.Unlock()
	log.Warn().Err(err).Str("backend", s.primary.Name()).
		Msgf("%s (cooldown %s)", MsgEventStorePrimaryUnavailable, s.cooldown)
}
