package notifier

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/branchpulse/notifier/db"
)

type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification InAppNotification) (uuid.UUID, error)
	GetNotificationsByUserID(ctx context.Context, userID string, onlyUnread bool) ([]InAppNotification, error)
	GetNotificationPageByUserID(ctx context.Context, userID string, filter NotificationFilter) ([]InAppNotification, int, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID, userID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	CreateNotificationEvent(ctx context.Context, notificationID uuid.UUID, kind NotificationEventKind, metadata map[string]interface{}) error

	CreateTransaction() (db.DbConnector, error)
	WithTransaction(db db.DbConnector) NotificationRepository
}

type notificationRepository struct {
	db       db.DbConnector
	dbSchema string
}

func NewNotificationRepository(db db.DbConnector, dbSchema string) NotificationRepository {
	return &notificationRepository{
		db:       db,
		dbSchema: dbSchema,
	}
}

func (r *notificationRepository) CreateNotification(ctx context.Context, notification InAppNotification) (uuid.UUID, error) {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	query := fmt.Sprintf(`INSERT INTO %s.np_in_app_notifications(id, user_id, title, body, type, data, is_read, created_at, action_url)
				VALUES (:id, :user_id, :title, :body, :type, :data, :is_read, :created_at, :action_url);`, r.dbSchema)
	_, err := r.db.NamedExecContext(ctx, query, convertNotificationToDAO(notification))
	if err != nil {
		log.Error().Err(err).Msg(MsgCreateNotificationFailed)
		return uuid.Nil, ErrCreateNotificationFailed
	}
	return notification.ID, nil
}

func (r *notificationRepository) GetNotificationsByUserID(ctx context.Context, userID string, onlyUnread bool) ([]InAppNotification, error) {
	query := fmt.Sprintf(`SELECT * FROM %s.np_in_app_notifications WHERE user_id = $1`, r.dbSchema)
	if onlyUnread {
		query += ` AND is_read = false`
	}
	query += ` ORDER BY created_at DESC;`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		log.Error().Err(err).Msg(MsgGetNotificationsFailed)
		return nil, ErrGetNotificationsFailed
	}
	defer rows.Close()

	notifications := make([]InAppNotification, 0)
	for rows.Next() {
		var dao inAppNotificationDAO
		err = rows.StructScan(&dao)
		if err != nil {
			log.Error().Err(err).Msg(MsgGetNotificationsFailed)
			return nil, ErrGetNotificationsFailed
		}
		notifications = append(notifications, convertDAOToNotification(dao))
	}
	return notifications, nil
}

func (r *notificationRepository) GetNotificationPageByUserID(ctx context.Context, userID string, filter NotificationFilter) ([]InAppNotification, int, error) {
	where := `WHERE user_id = $1`
	args := []interface{}{userID}
	if filter.TimeFrom != nil {
		args = append(args, *filter.TimeFrom)
		where += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if filter.Filter != nil && *filter.Filter != "" {
		args = append(args, "%"+*filter.Filter+"%")
		where += fmt.Sprintf(` AND (title ILIKE $%d OR body ILIKE $%d)`, len(args), len(args))
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s.np_in_app_notifications %s;`, r.dbSchema, where)
	var totalCount int
	err := r.db.QueryRowxContext(ctx, countQuery, args...).Scan(&totalCount)
	if err != nil {
		log.Error().Err(err).Msg(MsgGetNotificationsFailed)
		return nil, 0, ErrGetNotificationsFailed
	}

	direction := "DESC"
	if filter.Pageable.Direction == SortAsc {
		direction = "ASC"
	}
	query := fmt.Sprintf(`SELECT * FROM %s.np_in_app_notifications %s ORDER BY created_at %s`, r.dbSchema, where, direction)
	if filter.Pageable.IsPaged() {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, filter.Pageable.PageSize, filter.Pageable.Page*filter.Pageable.PageSize)
	}
	query += `;`

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Msg(MsgGetNotificationsFailed)
		return nil, 0, ErrGetNotificationsFailed
	}
	defer rows.Close()

	notifications := make([]InAppNotification, 0)
	for rows.Next() {
		var dao inAppNotificationDAO
		err = rows.StructScan(&dao)
		if err != nil {
			log.Error().Err(err).Msg(MsgGetNotificationsFailed)
			return nil, 0, ErrGetNotificationsFailed
		}
		notifications = append(notifications, convertDAOToNotification(dao))
	}
	return notifications, totalCount, nil
}

func (r *notificationRepository) MarkNotificationRead(ctx context.Context, id uuid.UUID, userID string) error {
	query := fmt.Sprintf(`UPDATE %s.np_in_app_notifications SET is_read = true, read_at = timezone('utc', now())
				WHERE id = $1 AND user_id = $2 AND is_read = false;`, r.dbSchema)
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		log.Error().Err(err).Msg(MsgMarkNotificationReadFailed)
		return ErrMarkNotificationReadFailed
	}
	affected, err := result.RowsAffected()
	if err != nil {
		log.Error().Err(err).Msg(MsgMarkNotificationReadFailed)
		return ErrMarkNotificationReadFailed
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	query := fmt.Sprintf(`UPDATE %s.np_in_app_notifications SET is_read = true, read_at = timezone('utc', now())
				WHERE user_id = $1 AND is_read = false;`, r.dbSchema)
	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		log.Error().Err(err).Msg(MsgMarkNotificationReadFailed)
		return ErrMarkNotificationReadFailed
	}
	return nil
}

func (r *notificationRepository) CreateNotificationEvent(ctx context.Context, notificationID uuid.UUID, kind NotificationEventKind, metadata map[string]interface{}) error {
	dao := notificationEventDAO{
		ID:             uuid.New(),
		NotificationID: notificationID,
		Event:          string(kind),
	}
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			log.Error().Err(err).Msg(MsgCreateNotificationEventFailed)
			return ErrCreateNotificationEventFailed
		}
		dao.EventMetadata = sql.NullString{String: string(data), Valid: true}
	}

	query := fmt.Sprintf(`INSERT INTO %s.np_notification_events(id, notification_id, event, event_metadata)
				VALUES (:id, :notification_id, :event, :event_metadata);`, r.dbSchema)
	_, err := r.db.NamedExecContext(ctx, query, dao)
	if err != nil {
		log.Error().Err(err).Msg(MsgCreateNotificationEventFailed)
		return ErrCreateNotificationEventFailed
	}
	return nil
}

func (r *notificationRepository) CreateTransaction() (db.DbConnector, error) {
	return r.db.CreateTransactionConnector()
}

func (r *notificationRepository) WithTransaction(db db.DbConnector) NotificationRepository {
	return &notificationRepository{
		db:       db,
		dbSchema: r.dbSchema,
	}
}

type inAppNotificationDAO struct {
	ID        uuid.UUID      `db:"id"`
	UserID    string         `db:"user_id"`
	Title     string         `db:"title"`
	Body      string         `db:"body"`
	Type      string         `db:"type"`
	Data      sql.NullString `db:"data"`
	IsRead    bool           `db:"is_read"`
	CreatedAt time.Time      `db:"created_at"`
	ReadAt    sql.NullTime   `db:"read_at"`
	ActionURL sql.NullString `db:"action_url"`
}

type notificationEventDAO struct {
	ID             uuid.UUID      `db:"id"`
	NotificationID uuid.UUID      `db:"notification_id"`
	Event          string         `db:"event"`
	EventMetadata  sql.NullString `db:"event_metadata"`
	CreatedAt      time.Time      `db:"created_at"`
}

func convertNotificationToDAO(notification InAppNotification) inAppNotificationDAO {
	dao := inAppNotificationDAO{
		ID:        notification.ID,
		UserID:    notification.UserID,
		Title:     notification.Title,
		Body:      notification.Body,
		Type:      string(notification.Type),
		IsRead:    notification.IsRead,
		CreatedAt: notification.CreatedAt,
	}
	if notification.CreatedAt.IsZero() {
		dao.CreatedAt = time.Now().UTC()
	}
	if notification.Data != nil {
		if data, err := json.Marshal(notification.Data); err == nil {
			dao.Data = sql.NullString{String: string(data), Valid: true}
		}
	}
	if notification.ActionURL != "" {
		dao.ActionURL = sql.NullString{String: notification.ActionURL, Valid: true}
	}
	if notification.ReadAt != nil {
		dao.ReadAt = sql.NullTime{Time: *notification.ReadAt, Valid: true}
	}
	return dao
}

func convertDAOToNotification(dao inAppNotificationDAO) InAppNotification {
	notification := InAppNotification{
		ID:        dao.ID,
		UserID:    dao.UserID,
		Title:     dao.Title,
		Body:      dao.Body,
		Type:      EventType(dao.Type),
		IsRead:    dao.IsRead,
		CreatedAt: dao.CreatedAt,
	}
	if dao.Data.Valid {
		_ = json.Unmarshal([]byte(dao.Data.String), &notification.Data)
	}
	if dao.ReadAt.Valid {
		readAt := dao.ReadAt.Time
		notification.ReadAt = &readAt
	}
	if dao.ActionURL.Valid {
		notification.ActionURL = dao.ActionURL.String
	}
	return notification
}
