package notifier

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleUser    UserRole = "user"
)

func (r UserRole) ToString() string {
	return string(r)
}

type EventType string

const (
	EventTypeConnected       EventType = "connected"
	EventTypeDisconnected    EventType = "disconnected"
	EventTypePing            EventType = "ping"
	EventTypeError           EventType = "error"
	EventTypeNotification    EventType = "notification"
	EventTypeDashboardUpdate EventType = "dashboard-update"
	EventTypeReportUpdate    EventType = "report-update"
	EventTypeUserUpdate      EventType = "user-update"
	EventTypeSystemAlert     EventType = "system-alert"
)

type EventPriority string

const (
	PriorityLow      EventPriority = "low"
	PriorityNormal   EventPriority = "normal"
	PriorityHigh     EventPriority = "high"
	PriorityCritical EventPriority = "critical"
)

func (p EventPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// EventMetadata targets an event. An event carrying neither user IDs
// nor roles is a broadcast.
type EventMetadata struct {
	TargetUserIDs []string   `json:"targetUserIds,omitempty"`
	TargetRoles   []UserRole `json:"targetRoles,omitempty"`
	CorrelationID string     `json:"correlationId,omitempty"`
}

func (m *EventMetadata) IsBroadcast() bool {
	return m == nil || (len(m.TargetUserIDs) == 0 && len(m.TargetRoles) == 0)
}

// Event is immutable once the dispatcher has assigned ID and Timestamp.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Priority  EventPriority  `json:"priority"`
	Source    string         `json:"source,omitempty"`
	Payload   interface{}    `json:"payload"`
	Metadata  *EventMetadata `json:"metadata,omitempty"`
}

// NewEventID builds the timestamp-plus-random-suffix event ID. The
// timestamp prefix keeps IDs roughly sortable, the suffix keeps them
// unique within a millisecond.
func NewEventID(timestamp int64) string {
	return fmt.Sprintf("%d-%s", timestamp, uuid.NewString()[:8])
}

type EventDraft struct {
	Type          EventType     `json:"type"`
	Payload       interface{}   `json:"payload"`
	Priority      EventPriority `json:"priority,omitempty"`
	TargetUserIDs []string      `json:"targetUserIds,omitempty"`
	TargetRoles   []UserRole    `json:"targetRoles,omitempty"`
	Source        string        `json:"source,omitempty"`
	CorrelationID string        `json:"correlationId,omitempty"`
}

type EventFilter struct {
	UserID string
	Roles  []UserRole
	Types  []EventType
	Limit  int
}

type ConnectionState string

const (
	StateConnecting    ConnectionState = "connecting"
	StateConnected     ConnectionState = "connected"
	StateIdle          ConnectionState = "idle"
	StateStale         ConnectionState = "stale"
	StateDisconnecting ConnectionState = "disconnecting"
)

type RegistryStats struct {
	TotalConnections int                     `json:"totalConnections"`
	ByState          map[ConnectionState]int `json:"byState"`
}

// NotificationPayload is the payload shape of "notification" events;
// it doubles as the persisted in-app notification content.
type NotificationPayload struct {
	Title     string                 `json:"title"`
	Body      string                 `json:"body,omitempty"`
	ActionURL string                 `json:"actionUrl,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

type ReportStatus string

const (
	ReportStatusSubmitted ReportStatus = "SUBMITTED"
	ReportStatusApproved  ReportStatus = "APPROVED"
	ReportStatusRejected  ReportStatus = "REJECTED"
)

type ReportCategory string

const (
	ReportCategoryWriteOff    ReportCategory = "WRITE_OFF"
	ReportCategoryDelinquency ReportCategory = "DELINQUENCY_90_PLUS"
)

// ReportUpdatePayload is the payload shape of "report-update" events
// produced by the report approval workflow.
type ReportUpdatePayload struct {
	ReportID uuid.UUID       `json:"reportId"`
	BranchID uuid.UUID       `json:"branchId"`
	Category ReportCategory  `json:"category"`
	Status   ReportStatus    `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Comment  string          `json:"comment,omitempty"`
}

type InAppNotification struct {
	ID        uuid.UUID              `json:"id"`
	UserID    string                 `json:"userId"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Type      EventType              `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	IsRead    bool                   `json:"isRead"`
	CreatedAt time.Time              `json:"createdAt"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	ActionURL string                 `json:"actionUrl,omitempty"`
}

type NotificationEventKind string

const (
	NotificationDelivered NotificationEventKind = "DELIVERED"
	NotificationRead      NotificationEventKind = "READ"
)
