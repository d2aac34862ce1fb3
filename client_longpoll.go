package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	longpollclient "github.com/jcuga/golongpoll/client"
	"github.com/rs/zerolog/log"
)

// LongPollClient consumes the notifier's long-poll subscription
// endpoint. It is the third transport next to SSE and interval
// polling, for callers that can hold a request open but cannot keep a
// stream. One category is polled per Start call; categories follow the
// store bucket naming (user:<id>, role:<role>, broadcast).
type LongPollClient interface {
	GetEventsChan() chan Event
	StartBroadcastLongPolling(ctx context.Context)
	StartUserLongPolling(ctx context.Context, userID string)
	StartRoleLongPolling(ctx context.Context, role UserRole)
}

type longPollClient struct {
	restyClient    *resty.Client
	notifierUrl    string
	timeoutSeconds uint
	eventsChan     chan Event
}

func NewLongPollClient(restyClient *resty.Client, notifierUrl string, timeoutSeconds uint) LongPollClient {
	return &longPollClient{
		restyClient:    restyClient,
		notifierUrl:    notifierUrl,
		timeoutSeconds: timeoutSeconds,
		eventsChan:     make(chan Event, 100),
	}
}

func (l *longPollClient) GetEventsChan() chan Event {
	return l.eventsChan
}

func (l *longPollClient) StartBroadcastLongPolling(ctx context.Context) {
	l.startLongPolling(ctx, bucketBroadcast)
}

func (l *longPollClient) StartUserLongPolling(ctx context.Context, userID string) {
	l.startLongPolling(ctx, bucketForUser(userID))
}

func (l *longPollClient) StartRoleLongPolling(ctx context.Context, role UserRole) {
	l.startLongPolling(ctx, bucketForRole(role))
}

func (l *longPollClient) startLongPolling(ctx context.Context, category string) {
	u, err := url.Parse(l.notifierUrl + "/v1/events/subscribe")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse URL for long-poll")
	}

	httpClient := &http.Client{
		Transport: &RestyRoundTripper{restyClient: l.restyClient},
	}

	c, err := longpollclient.NewClient(longpollclient.ClientOptions{
		SubscribeUrl:       *u,
		Category:           category,
		PollTimeoutSeconds: l.timeoutSeconds,
		HttpClient:         httpClient,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create long-poll client")
		return
	}

	for polled := range c.Start(time.Now().UTC().Add(-time.Hour)) {
		select {
		case <-ctx.Done():
			log.Info().Msg("Long poll gracefully stopped")
			return
		default:
			data, ok := polled.Data.(map[string]interface{})
			if !ok {
				log.Error().Msg("Unexpected event data type")
				continue
			}

			jsonData, err := json.Marshal(data)
			if err != nil {
				log.Error().Err(err).Msg("Failed to marshal event data")
				continue
			}

			var event Event
			if err := json.Unmarshal(jsonData, &event); err != nil {
				log.Error().Err(err).Msg("Failed to unmarshal event data to Event")
				continue
			}

			log.Debug().
				Str("eventId", event.ID).
				Str("type", string(event.Type)).
				Msg("Received event over long-poll")

			select {
			case l.eventsChan <- event:
			case <-ctx.Done():
				log.Info().Msg("Long poll gracefully stopped")
				return
			}
		}
	}
}
