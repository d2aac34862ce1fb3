package notifier

import (
	"fmt"
)

var (
	ErrMissingEventType    = fmt.Errorf(MsgMissingEventType)
	ErrMissingEventPayload = fmt.Errorf(MsgMissingEventPayload)
	ErrPublishRateLimited  = fmt.Errorf(MsgPublishRateLimited)

	ErrCreateNotificationFailed      = fmt.Errorf(MsgCreateNotificationFailed)
	ErrGetNotificationsFailed        = fmt.Errorf(MsgGetNotificationsFailed)
	ErrMarkNotificationReadFailed    = fmt.Errorf(MsgMarkNotificationReadFailed)
	ErrCreateNotificationEventFailed = fmt.Errorf(MsgCreateNotificationEventFailed)
	ErrNotificationNotFound          = fmt.Errorf(MsgNotificationNotFound)
)

const (
	ApiStartMsg           = "API server notifier has been started"
	ApiEndedGracefullyMsg = "API server notifier ended gracefully"
	ApiFailedToStartMsg   = "Failed to start API server notifier"

	MsgMissingEventType    = "event draft has no type"
	MsgMissingEventPayload = "event draft has no payload"
	MsgPublishRateLimited  = "publish rate limit exceeded for source"

	MsgEventStorePrimaryUnavailable = "primary event store unavailable, using in-process fallback"
	MsgEventStoreAppendFailed       = "append event to store failed"
	MsgEventStoreQueryFailed        = "query events from store failed"
	MsgEventStorePruneFailed        = "prune events from store failed"

	MsgConnectionAlreadyRegistered = "connection already registered, treating as re-registration"
	MsgConnectionForceDisconnected = "connection force-disconnected"
	MsgConnectionSweptIdle         = "connection moved to idle by health sweep"
	MsgConnectionSweptStale        = "connection moved to stale by health sweep"
	MsgConnectionSweptRemoved      = "stale connection removed by health sweep"
	MsgConnectionBufferFull        = "connection event buffer full, dropping event"

	MsgCreateNotificationFailed      = "create in-app notification failed"
	MsgGetNotificationsFailed        = "get in-app notifications failed"
	MsgMarkNotificationReadFailed    = "mark in-app notification read failed"
	MsgCreateNotificationEventFailed = "create notification event failed"
	MsgNotificationNotFound          = "in-app notification not found"

	MsgFailedToConnectToPostgresDbMsg = "failed to connect to postgres db"
)
