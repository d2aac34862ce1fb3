package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNotificationRoundTrip(t *testing.T) {
	dbConn, _ := setupDbConnectorAndRunMigration("notificationroundtrip")
	repository := NewNotificationRepository(dbConn, "notificationroundtrip")
	ctx := context.Background()

	notificationID, err := repository.CreateNotification(ctx, InAppNotification{
		UserID:    "u1",
		Title:     "Report approved",
		Body:      "Your write-off report has been approved",
		Type:      EventTypeNotification,
		Data:      map[string]interface{}{"reportId": "r1"},
		ActionURL: "/reports/r1",
	})
	assert.Nil(t, err)
	assert.NotEqual(t, uuid.Nil, notificationID)

	notifications, err := repository.GetNotificationsByUserID(ctx, "u1", false)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(notifications))
	assert.Equal(t, "Report approved", notifications[0].Title)
	assert.Equal(t, "/reports/r1", notifications[0].ActionURL)
	assert.Equal(t, "r1", notifications[0].Data["reportId"])
	assert.False(t, notifications[0].IsRead)
	assert.Nil(t, notifications[0].ReadAt)

	notifications, err = repository.GetNotificationsByUserID(ctx, "u2", false)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(notifications))
}

func TestNotificationPaging(t *testing.T) {
	dbConn, _ := setupDbConnectorAndRunMigration("notificationpaging")
	repository := NewNotificationRepository(dbConn, "notificationpaging")
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_, err := repository.CreateNotification(ctx, InAppNotification{
			UserID:    "u1",
			Title:     "Report approved",
			Body:      "Batch result",
			Type:      EventTypeNotification,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		assert.Nil(t, err)
	}
	_, err := repository.CreateNotification(ctx, InAppNotification{
		UserID:    "u1",
		Title:     "Maintenance window",
		Type:      EventTypeNotification,
		CreatedAt: base.Add(10 * time.Minute),
	})
	assert.Nil(t, err)

	notifications, totalCount, err := repository.GetNotificationPageByUserID(ctx, "u1", NotificationFilter{
		Pageable: Pageable{Page: 0, PageSize: 4},
	})
	assert.Nil(t, err)
	assert.Equal(t, 6, totalCount)
	assert.Equal(t, 4, len(notifications))
	// default ordering is newest first
	assert.Equal(t, "Maintenance window", notifications[0].Title)

	notifications, totalCount, err = repository.GetNotificationPageByUserID(ctx, "u1", NotificationFilter{
		Pageable: Pageable{Page: 1, PageSize: 4},
	})
	assert.Nil(t, err)
	assert.Equal(t, 6, totalCount)
	assert.Equal(t, 2, len(notifications))

	filterText := "maintenance"
	notifications, totalCount, err = repository.GetNotificationPageByUserID(ctx, "u1", NotificationFilter{
		Filter:   &filterText,
		Pageable: Pageable{PageSize: 25},
	})
	assert.Nil(t, err)
	assert.Equal(t, 1, totalCount)
	assert.Equal(t, 1, len(notifications))

	timeFrom := base.Add(5 * time.Minute)
	notifications, totalCount, err = repository.GetNotificationPageByUserID(ctx, "u1", NotificationFilter{
		TimeFrom: &timeFrom,
		Pageable: Pageable{Direction: SortAsc, PageSize: 25},
	})
	assert.Nil(t, err)
	assert.Equal(t, 1, totalCount)
	assert.Equal(t, "Maintenance window", notifications[0].Title)
}

func TestMarkNotificationRead(t *testing.T) {
	dbConn, _ := setupDbConnectorAndRunMigration("notificationmarkread")
	repository := NewNotificationRepository(dbConn, "notificationmarkread")
	ctx := context.Background()

	notificationID, err := repository.CreateNotification(ctx, InAppNotification{
		UserID: "u1",
		Title:  "Pending approval",
		Type:   EventTypeNotification,
	})
	assert.Nil(t, err)

	err = repository.MarkNotificationRead(ctx, notificationID, "u1")
	assert.Nil(t, err)

	notifications, err := repository.GetNotificationsByUserID(ctx, "u1", false)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(notifications))
	assert.True(t, notifications[0].IsRead)
	assert.NotNil(t, notifications[0].ReadAt)

	unread, err := repository.GetNotificationsByUserID(ctx, "u1", true)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(unread))

	// already read, and unknown IDs, report not found
	err = repository.MarkNotificationRead(ctx, notificationID, "u1")
	assert.Equal(t, ErrNotificationNotFound, err)
	err = repository.MarkNotificationRead(ctx, uuid.New(), "u1")
	assert.Equal(t, ErrNotificationNotFound, err)

	// a foreign user cannot mark someone else's notification
	otherID, _ := repository.CreateNotification(ctx, InAppNotification{
		UserID: "u2",
		Title:  "For u2 only",
		Type:   EventTypeNotification,
	})
	err = repository.MarkNotificationRead(ctx, otherID, "u1")
	assert.Equal(t, ErrNotificationNotFound, err)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	dbConn, _ := setupDbConnectorAndRunMigration("notificationmarkall")
	repository := NewNotificationRepository(dbConn, "notificationmarkall")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repository.CreateNotification(ctx, InAppNotification{
			UserID: "u1",
			Title:  "Pending",
			Type:   EventTypeNotification,
		})
		assert.Nil(t, err)
	}
	_, err := repository.CreateNotification(ctx, InAppNotification{
		UserID: "u2",
		Title:  "Untouched",
		Type:   EventTypeNotification,
	})
	assert.Nil(t, err)

	err = repository.MarkAllNotificationsRead(ctx, "u1")
	assert.Nil(t, err)

	unread, err := repository.GetNotificationsByUserID(ctx, "u1", true)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(unread))

	unread, err = repository.GetNotificationsByUserID(ctx, "u2", true)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(unread))
}

func TestNotificationServicePersistsPublishedEvents(t *testing.T) {
	dbConn, sqlConn := setupDbConnectorAndRunMigration("notificationsink")
	repository := NewNotificationRepository(dbConn, "notificationsink")
	service := NewNotificationService(repository)

	registry := NewConnectionRegistry(testRegistrySettings())
	store := NewFailoverEventStore(NewMemoryEventStore(time.Hour, 100), NewMemoryEventStore(time.Hour, 100), 30*time.Second)
	dispatcher := NewDispatcher(registry, store, nil, service)

	_, err := dispatcher.Publish(context.Background(), EventDraft{
		Type:          EventTypeNotification,
		TargetUserIDs: []string{"u1"},
		Priority:      PriorityHigh,
		Source:        "reporting",
		Payload: NotificationPayload{
			Title: "Report rejected",
			Body:  "See reviewer comment",
		},
	})
	assert.Nil(t, err)

	assert.Eventually(t, func() bool {
		notifications, err := service.GetNotifications(context.Background(), "u1", true)
		return err == nil && len(notifications) == 1
	}, 5*time.Second, 50*time.Millisecond)

	notifications, err := service.GetNotifications(context.Background(), "u1", true)
	assert.Nil(t, err)
	assert.Equal(t, "Report rejected", notifications[0].Title)
	assert.Equal(t, "See reviewer comment", notifications[0].Body)

	// the delivery is recorded as an audit row
	var eventCount int
	err = sqlConn.QueryRowx(`SELECT COUNT(*) FROM notificationsink.np_notification_events WHERE event = 'DELIVERED';`).Scan(&eventCount)
	assert.Nil(t, err)
	assert.Equal(t, 1, eventCount)

	// ping events are not persisted
	_, err = dispatcher.Publish(context.Background(), EventDraft{
		Type:          EventTypePing,
		TargetUserIDs: []string{"u1"},
		Payload:       map[string]interface{}{"timestamp": 1},
	})
	assert.Nil(t, err)
	time.Sleep(200 * time.Millisecond)
	notifications, _ = service.GetNotifications(context.Background(), "u1", false)
	assert.Equal(t, 1, len(notifications))
}

func TestNotificationServiceMarkReadWritesAuditRow(t *testing.T) {
	dbConn, sqlConn := setupDbConnectorAndRunMigration("notificationaudit")
	repository := NewNotificationRepository(dbConn, "notificationaudit")
	service := NewNotificationService(repository)
	ctx := context.Background()

	notificationID, err := repository.CreateNotification(ctx, InAppNotification{
		UserID: "u1",
		Title:  "Pending",
		Type:   EventTypeNotification,
	})
	assert.Nil(t, err)

	err = service.MarkRead(ctx, notificationID, "u1")
	assert.Nil(t, err)

	var eventCount int
	err = sqlConn.QueryRowx(`SELECT COUNT(*) FROM notificationaudit.np_notification_events WHERE event = 'READ';`).Scan(&eventCount)
	assert.Nil(t, err)
	assert.Equal(t, 1, eventCount)

	err = service.MarkRead(ctx, uuid.New(), "u1")
	assert.Equal(t, ErrNotificationNotFound, err)
}
