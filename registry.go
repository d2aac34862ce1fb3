package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/rs/zerolog/log"

	"github.com/branchpulse/notifier/utils"
)

// Connection is one live SSE stream owned by an authenticated user.
// All mutation goes through the registry; the stream handler only
// reads from Events().
type Connection struct {
	ID           string
	UserID       string
	Roles        []UserRole
	State        ConnectionState
	CreatedAt    time.Time
	LastActivity time.Time

	events chan sse.Event
	closed bool
}

func (c *Connection) Events() <-chan sse.Event {
	return c.events
}

type ConnectionRegistry interface {
	Register(connectionID, userID string, roles []UserRole) *Connection
	Confirm(connectionID string)
	Unregister(connectionID string)
	Touch(connectionID string)
	Broadcast(event Event) int
	SendToUsers(event Event, userIDs []string) int
	SendToRoles(event Event, roles []UserRole) int
	SendToTargets(event Event, userIDs []string, roles []UserRole) int
	GetStats() RegistryStats
	ForceDisconnect(connectionID, reason string)
	StartHealthSweep(ctx context.Context)
}

type RegistrySettings struct {
	IdleThreshold       time.Duration
	StaleThreshold      time.Duration
	DisconnectThreshold time.Duration
	SweepInterval       time.Duration
	EventBufferSize     int
}

type connectionRegistry struct {
	settings    RegistrySettings
	connections map[string]*Connection
	mutex       sync.Mutex
	nowFn       func() time.Time
}

func NewConnectionRegistry(settings RegistrySettings) ConnectionRegistry {
	if settings.EventBufferSize <= 0 {
		settings.EventBufferSize = 16
	}
	return &connectionRegistry{
		settings:    settings,
		connections: make(map[string]*Connection),
		nowFn:       time.Now,
	}
}

func (r *connectionRegistry) Register(connectionID, userID string, roles []UserRole) *Connection {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.connections[connectionID]; ok {
		log.Warn().Str("connectionId", connectionID).Str("userId", userID).Msg(MsgConnectionAlreadyRegistered)
		r.touchLocked(existing)
		return existing
	}

	now := r.nowFn()
	connection := &Connection{
		ID:           connectionID,
		UserID:       userID,
		Roles:        roles,
		State:        StateConnecting,
		CreatedAt:    now,
		LastActivity: now,
		events:       make(chan sse.Event, r.settings.EventBufferSize),
	}
	r.connections[connectionID] = connection

	log.Debug().Str("connectionId", connectionID).Str("userId", userID).
		Msgf("Client added... registry has %d connections", len(r.connections))

	return connection
}

func (r *connectionRegistry) Confirm(connectionID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	connection, ok := r.connections[connectionID]
	if !ok || connection.State != StateConnecting {
		return
	}
	connection.State = StateConnected
	connection.LastActivity = r.nowFn()
}

func (r *connectionRegistry) Unregister(connectionID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.removeLocked(connectionID)
}

func (r *connectionRegistry) Touch(connectionID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	connection, ok := r.connections[connectionID]
	if !ok {
		return
	}
	r.touchLocked(connection)
}

func (r *connectionRegistry) Broadcast(event Event) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delivered := 0
	for _, connection := range r.connections {
		if r.sendLocked(connection, event) {
			delivered++
		}
	}
	return delivered
}

func (r *connectionRegistry) SendToUsers(event Event, userIDs []string) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delivered := 0
	for _, connection := range r.connections {
		if !utils.SliceContains(connection.UserID, userIDs) {
			continue
		}
		if r.sendLocked(connection, event) {
			delivered++
		}
	}
	return delivered
}

func (r *connectionRegistry) SendToRoles(event Event, roles []UserRole) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delivered := 0
	for _, connection := range r.connections {
		if !utils.SlicesIntersect(connection.Roles, roles) {
			continue
		}
		if r.sendLocked(connection, event) {
			delivered++
		}
	}
	return delivered
}

// SendToTargets delivers to connections matching either the user id
// list or the role list in a single pass, so a connection matching
// both receives the event exactly once.
func (r *connectionRegistry) SendToTargets(event Event, userIDs []string, roles []UserRole) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delivered := 0
	for _, connection := range r.connections {
		matchesUser := len(userIDs) > 0 && utils.SliceContains(connection.UserID, userIDs)
		matchesRole := len(roles) > 0 && utils.SlicesIntersect(connection.Roles, roles)
		if !matchesUser && !matchesRole {
			continue
		}
		if r.sendLocked(connection, event) {
			delivered++
		}
	}
	return delivered
}

func (r *connectionRegistry) GetStats() RegistryStats {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stats := RegistryStats{
		TotalConnections: len(r.connections),
		ByState:          make(map[ConnectionState]int),
	}
	for _, connection := range r.connections {
		stats.ByState[connection.State]++
	}
	return stats
}

func (r *connectionRegistry) ForceDisconnect(connectionID, reason string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.connections[connectionID]; !ok {
		return
	}
	log.Info().Str("connectionId", connectionID).Str("reason", reason).Msg(MsgConnectionForceDisconnected)
	r.removeLocked(connectionID)
}

func (r *connectionRegistry) StartHealthSweep(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.settings.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

// sweep drives every timeout-based state transition from one place.
// Last-writer-wins against Touch is acceptable, delivery is best-effort.
func (r *connectionRegistry) sweep() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.nowFn()
	for id, connection := range r.connections {
		inactive := now.Sub(connection.LastActivity)
		switch connection.State {
		case StateConnected:
			if inactive > r.settings.IdleThreshold {
				connection.State = StateIdle
				log.Debug().Str("connectionId", id).Msg(MsgConnectionSweptIdle)
			}
		case StateIdle:
			if inactive > r.settings.StaleThreshold {
				connection.State = StateStale
				log.Debug().Str("connectionId", id).Msg(MsgConnectionSweptStale)
			}
		case StateStale:
			if inactive > r.settings.DisconnectThreshold {
				log.Info().Str("connectionId", id).Str("userId", connection.UserID).Msg(MsgConnectionSweptRemoved)
				r.removeLocked(id)
			}
		}
	}
}

func (r *connectionRegistry) touchLocked(connection *Connection) {
	connection.LastActivity = r.nowFn()
	if connection.State == StateIdle || connection.State == StateStale {
		connection.State = StateConnected
	}
}

func (r *connectionRegistry) sendLocked(connection *Connection, event Event) bool {
	if connection.closed || connection.State == StateDisconnecting {
		return false
	}
	select {
	case connection.events <- sse.Event{
		Id:    event.ID,
		Event: string(event.Type),
		Data:  event,
	}:
		r.touchLocked(connection)
		return true
	default:
		log.Warn().Str("connectionId", connection.ID).Str("eventId", event.ID).Msg(MsgConnectionBufferFull)
		return false
	}
}

func (r *connectionRegistry) removeLocked(connectionID string) {
	connection, ok := r.connections[connectionID]
	if !ok {
		return
	}
	connection.State = StateDisconnecting
	if !connection.closed {
		connection.closed = true
		close(connection.events)
	}
	delete(r.connections, connectionID)
	log.Debug().Str("connectionId", connectionID).
		Msgf("Removed client... registry has %d connections", len(r.connections))
}
