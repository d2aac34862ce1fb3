package notifier

import (
	"context"
	"sync"
	"time"
)

type memoryEventStore struct {
	buckets      map[string][]Event
	retention    time.Duration
	maxPerBucket int
	mutex        sync.Mutex
	nowFn        func() time.Time
}

// NewMemoryEventStore is the bounded in-process backend used when the
// external key-value service is not reachable. Buckets mirror the Redis
// layout so queries behave identically on either backend.
func NewMemoryEventStore(retention time.Duration, maxPerBucket int) EventStoreBackend {
	return &memoryEventStore{
		buckets:      make(map[string][]Event),
		retention:    retention,
		maxPerBucket: maxPerBucket,
		nowFn:        time.Now,
	}
}

func (s *memoryEventStore) Name() string {
	return "memory"
}

func (s *memoryEventStore) Append(_ context.Context, event Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, bucket := range appendBuckets(event) {
		events := append(s.buckets[bucket], event)
		if s.maxPerBucket > 0 && len(events) > s.maxPerBucket {
			events = events[len(events)-s.maxPerBucket:]
		}
		s.buckets[bucket] = events
	}
	return nil
}

func (s *memoryEventStore) Query(_ context.Context, sinceTimestamp int64, filter EventFilter) ([]Event, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	collected := make([]Event, 0)
	for _, bucket := range queryBuckets(filter) {
		for _, event := range s.buckets[bucket] {
			if event.Timestamp <= sinceTimestamp {
				continue
			}
			if !matchesTypeFilter(event, filter.Types) {
				continue
			}
			collected = append(collected, event)
		}
	}
	return mergeQueryResults(collected, filter.Limit), nil
}

func (s *memoryEventStore) Prune(_ context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := s.nowFn().Add(-s.retention).UnixMilli()
	for bucket, events := range s.buckets {
		kept := events[:0]
		for _, event := range events {
			if event.Timestamp >= cutoff {
				kept = append(kept, event)
			}
		}
		if len(kept) == 0 {
			delete(s.buckets, bucket)
			continue
		}
		s.buckets[bucket] = kept
	}
	return nil
}
