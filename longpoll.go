package notifier

import (
	"context"
	"net/http"

	"github.com/jcuga/golongpoll"
	"github.com/rs/zerolog/log"
)

// LongPollBridge mirrors every dispatched event into a golongpoll
// manager so clients that can hold a request open get push-like
// latency without SSE. Categories follow the store bucket naming.
type LongPollBridge struct {
	manager *golongpoll.LongpollManager
}

func NewLongPollBridge(maxEventBufferSize, eventTTLSeconds int) (*LongPollBridge, error) {
	manager, err := golongpoll.StartLongpoll(golongpoll.Options{
		LoggingEnabled:         false,
		MaxEventBufferSize:     maxEventBufferSize,
		EventTimeToLiveSeconds: eventTTLSeconds,
	})
	if err != nil {
		return nil, err
	}
	return &LongPollBridge{manager: manager}, nil
}

func (b *LongPollBridge) OnEvent(_ context.Context, event Event) {
	for _, category := range appendBuckets(event) {
		if category == bucketGlobal {
			continue
		}
		if err := b.manager.Publish(category, event); err != nil {
			log.Error().Err(err).Str("eventId", event.ID).Str("category", category).
				Msg("publish event to long-poll manager failed")
		}
	}
}

func (b *LongPollBridge) SubscriptionHandler() http.HandlerFunc {
	return b.manager.SubscriptionHandler
}

func (b *LongPollBridge) Shutdown() {
	b.manager.Shutdown()
}
