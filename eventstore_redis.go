package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/branchpulse/notifier/config"
)

type redisEventStore struct {
	client       *redis.Client
	keyPrefix    string
	retention    time.Duration
	maxPerBucket int
}

func NewRedisClient(configuration *config.Configuration) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", configuration.RedisUrl, configuration.RedisPort),
	})
}

// NewRedisEventStore stores events in one sorted set per bucket, scored
// by their epoch-milli timestamp. Bucket keys are tracked in a set so
// prune can walk them without a SCAN.
func NewRedisEventStore(client *redis.Client, keyPrefix string, retention time.Duration, maxPerBucket int) EventStoreBackend {
	return &redisEventStore{
		client:       client,
		keyPrefix:    keyPrefix,
		retention:    retention,
		maxPerBucket: maxPerBucket,
	}
}

func (s *redisEventStore) Name() string {
	return "redis"
}

func (s *redisEventStore) bucketKey(bucket string) string {
	return fmt.Sprintf("%s:events:%s", s.keyPrefix, bucket)
}

func (s *redisEventStore) bucketSetKey() string {
	return fmt.Sprintf("%s:events:buckets", s.keyPrefix)
}

func (s *redisEventStore) Append(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, bucket := range appendBuckets(event) {
		key := s.bucketKey(bucket)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(event.Timestamp), Member: string(data)})
		pipe.SAdd(ctx, s.bucketSetKey(), key)
		pipe.Expire(ctx, key, s.retention+time.Minute)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisEventStore) Query(ctx context.Context, sinceTimestamp int64, filter EventFilter) ([]Event, error) {
	collected := make([]Event, 0)
	for _, bucket := range queryBuckets(filter) {
		members, err := s.client.ZRangeByScore(ctx, s.bucketKey(bucket), &redis.ZRangeBy{
			Min: "(" + strconv.FormatInt(sinceTimestamp, 10),
			Max: "+inf",
		}).Result()
		if err != nil {
			return nil, err
		}
		for _, member := range members {
			var event Event
			if err := json.Unmarshal([]byte(member), &event); err != nil {
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

func (s *redisEventStore) Prune(ctx context.Context) error {
	keys, err := s.client.SMembers(ctx, s.bucketSetKey()).Result()
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-s.retention).UnixMilli()
	for _, key := range keys {
		if err := s.client.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
			return err
		}
		if s.maxPerBucket > 0 {
			if err := s.client.ZRemRangeByRank(ctx, key, 0, int64(-s.maxPerBucket-1)).Err(); err != nil {
				return err
			}
		}
		count, err := s.client.ZCard(ctx, key).Result()
		if err != nil {
			return err
		}
		if count == 0 {
			pipe := s.client.TxPipeline()
			pipe.SRem(ctx, s.bucketSetKey(), key)
			pipe.Del(ctx, key)
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
