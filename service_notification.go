package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NotificationService persists "notification" events as in-app
// notifications so users see them after the fact, independent of the
// live push. It is registered as a dispatcher sink.
type NotificationService interface {
	EventSink
	GetNotifications(ctx context.Context, userID string, onlyUnread bool) ([]InAppNotification, error)
	GetNotificationsPage(ctx context.Context, userID string, filter NotificationFilter) ([]InAppNotification, int, error)
	MarkRead(ctx context.Context, id uuid.UUID, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type notificationService struct {
	repository NotificationRepository
}

func NewNotificationService(repository NotificationRepository) NotificationService {
	return &notificationService{
		repository: repository,
	}
}

// OnEvent is best-effort like the store append: persistence failures
// are logged and swallowed, live delivery already happened.
func (s *notificationService) OnEvent(ctx context.Context, event Event) {
	if event.Type != EventTypeNotification {
		return
	}
	if event.Metadata == nil || len(event.Metadata.TargetUserIDs) == 0 {
		return
	}

	payload, ok := decodeNotificationPayload(event.Payload)
	if !ok {
		log.Warn().Str("eventId", event.ID).Msg("notification event payload has no title, skipping persistence")
		return
	}

	for _, userID := range event.Metadata.TargetUserIDs {
		notification := InAppNotification{
			UserID:    userID,
			Title:     payload.Title,
			Body:      payload.Body,
			Type:      event.Type,
			Data:      payload.Data,
			CreatedAt: time.UnixMilli(event.Timestamp).UTC(),
			ActionURL: payload.ActionURL,
		}
		notificationID, err := s.repository.CreateNotification(ctx, notification)
		if err != nil {
			log.Error().Err(err).Str("eventId", event.ID).Str("userId", userID).Msg(MsgCreateNotificationFailed)
			continue
		}
		err = s.repository.CreateNotificationEvent(ctx, notificationID, NotificationDelivered, map[string]interface{}{
			"eventId":  event.ID,
			"source":   event.Source,
			"priority": string(event.Priority),
		})
		if err != nil {
			log.Error().Err(err).Str("eventId", event.ID).Msg(MsgCreateNotificationEventFailed)
		}
	}
}

func (s *notificationService) GetNotifications(ctx context.Context, userID string, onlyUnread bool) ([]InAppNotification, error) {
	return s.repository.GetNotificationsByUserID(ctx, userID, onlyUnread)
}

func (s *notificationService) GetNotificationsPage(ctx context.Context, userID string, filter NotificationFilter) ([]InAppNotification, int, error) {
	return s.repository.GetNotificationPageByUserID(ctx, userID, filter)
}

func (s *notificationService) MarkRead(ctx context.Context, id uuid.UUID, userID string) error {
	err := s.repository.MarkNotificationRead(ctx, id, userID)
	if err != nil {
		return err
	}
	err = s.repository.CreateNotificationEvent(ctx, id, NotificationRead, nil)
	if err != nil {
		log.Error().Err(err).Str("notificationId", id.String()).Msg(MsgCreateNotificationEventFailed)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.repository.MarkAllNotificationsRead(ctx, userID)
}

// decodeNotificationPayload accepts the typed payload from in-process
// producers and the generic map shape arriving over the publish
// endpoint.
func decodeNotificationPayload(payload interface{}) (NotificationPayload, bool) {
	switch typed := payload.(type) {
	case NotificationPayload:
		return typed, typed.Title != ""
	case *NotificationPayload:
		return *typed, typed.Title != ""
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return NotificationPayload{}, false
		}
		var decoded NotificationPayload
		if err := json.Unmarshal(data, &decoded); err != nil {
			return NotificationPayload{}, false
		}
		return decoded, decoded.Title != ""
	}
}
