package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	notifier "github.com/branchpulse/notifier"
	"github.com/branchpulse/notifier/middleware"
	"github.com/branchpulse/notifier/utils"
)

// EventStreamServer serves the SSE endpoint. All connection
// bookkeeping lives in the registry; this is only the bridge between
// one HTTP request and one registry entry.
type EventStreamServer struct {
	registry          notifier.ConnectionRegistry
	heartbeatInterval time.Duration
	connectionLimiter *notifier.RateLimiter
}

func NewEventStreamServer(registry notifier.ConnectionRegistry, heartbeatInterval time.Duration, connectionLimiter *notifier.RateLimiter) *EventStreamServer {
	return &EventStreamServer{
		registry:          registry,
		heartbeatInterval: heartbeatInterval,
		connectionLimiter: connectionLimiter,
	}
}

func (s *EventStreamServer) ServeHTTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, roles, ok := resolveStreamIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, middleware.ErrInvalidToken)
			return
		}

		if s.connectionLimiter != nil && !s.connectionLimiter.Allow("connect:"+userID) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, middleware.ErrTooManyConnectionAttempts)
			return
		}

		connectionID := uuid.NewString()
		connection := s.registry.Register(connectionID, userID, roles)
		defer s.registry.Unregister(connectionID)

		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		c.Render(-1, sse.Event{
			Id:    connectionID,
			Event: string(notifier.EventTypeConnected),
			Data:  connectedPayload{ConnectionID: connectionID, UserID: userID},
		})
		c.Writer.Flush()
		s.registry.Confirm(connectionID)

		heartbeat := time.NewTicker(s.heartbeatInterval)
		defer heartbeat.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case event, open := <-connection.Events():
				if !open {
					return false
				}
				c.Render(-1, event)
				return true
			case <-heartbeat.C:
				c.Render(-1, sse.Event{
					Event: string(notifier.EventTypePing),
					Data:  pingPayload{Timestamp: time.Now().UnixMilli()},
				})
				s.registry.Touch(connectionID)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})

		log.Debug().Str("connectionId", connectionID).Str("userId", userID).Msg("Event stream closed")
	}
}

// resolveStreamIdentity reads the authenticated user from the auth
// middleware, or from query parameters when authorization is turned
// off (local development). A stream without an owning user is refused.
func resolveStreamIdentity(c *gin.Context) (string, []notifier.UserRole, bool) {
	if userObj, ok := c.Get("User"); ok {
		user, ok := userObj.(middleware.UserToken)
		if !ok || user.UserID == "" {
			return "", nil, false
		}
		return user.UserID, user.AllRoles(), true
	}

	userID := c.Query("userId")
	if userID == "" {
		return "", nil, false
	}
	roles := utils.SplitStringToEnums[notifier.UserRole](c.Query("roles"), ",")
	return userID, roles, true
}
