package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	notifier "github.com/branchpulse/notifier"
	"github.com/branchpulse/notifier/middleware"
	"github.com/branchpulse/notifier/utils"
)

// Poll events
// @Summary Poll events newer than the given cursor
// @Description Polling fallback for clients without a working SSE connection
// @Tags Events
// @Produce json
// @Param since query int64 false "Cursor, epoch millis of the last seen event"
// @Param limit query int false "Maximum number of events"
// @Param types query string false "Comma-separated event types"
// @Success 200 {array} notifier.Event
// @Router /v1/events [GET]
func (api *api) GetEvents(c *gin.Context) {
	since := int64(0)
	if sinceString, ok := c.GetQuery("since"); ok {
		var err error
		since, err = strconv.ParseInt(sinceString, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrInvalidQueryParamSince)
			return
		}
	}

	limit := api.config.QueryDefaultLimit
	if limitString, ok := c.GetQuery("limit"); ok {
		parsedLimit, err := strconv.Atoi(limitString)
		if err != nil || parsedLimit < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrInvalidQueryParamLimit)
			return
		}
		// limit=0 would disable the cap further down, keep the default
		if parsedLimit > 0 {
			limit = parsedLimit
		}
	}
	if limit > api.config.QueryMaxLimit {
		limit = api.config.QueryMaxLimit
	}

	userID, roles, ok := api.requestIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrMissingUserIdentity)
		return
	}

	filter := notifier.EventFilter{
		UserID: userID,
		Roles:  roles,
		Types:  utils.SplitStringToEnums[notifier.EventType](c.Query("types"), ","),
		Limit:  limit,
	}

	events := api.eventStore.Query(c, since, filter)
	c.JSON(http.StatusOK, events)
}

// Publish event
// @Summary Publish an event to the notification fan-out
// @Description In-cluster producer endpoint, live push plus replay buffer
// @Tags Events
// @Produce json
// @Accept json
// @Success 201 {object} notifier.Event
// @Router /v1/events [POST]
func (api *api) PublishEvent(c *gin.Context) {
	var draft notifier.EventDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrInvalidRequestBody)
		return
	}

	event, err := api.dispatcher.Publish(c, draft)
	if err != nil {
		switch {
		case errors.Is(err, notifier.ErrMissingEventType):
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrMissingEventType)
		case errors.Is(err, notifier.ErrMissingEventPayload):
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrMissingEventPayload)
		case errors.Is(err, notifier.ErrPublishRateLimited):
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrPublishRateLimited)
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusCreated, event)
}

// requestIdentity resolves the user the request acts for: the token
// subject, or query parameters when authorization is turned off.
func (api *api) requestIdentity(c *gin.Context) (string, []notifier.UserRole, bool) {
	if userObj, ok := c.Get("User"); ok {
		user, ok := userObj.(middleware.UserToken)
		if !ok || user.UserID == "" {
			return "", nil, false
		}
		return user.UserID, user.AllRoles(), true
	}

	if api.config.Authorization {
		return "", nil, false
	}

	userID := c.Query("userId")
	if userID == "" {
		return "", nil, false
	}
	return userID, utils.SplitStringToEnums[notifier.UserRole](c.Query("roles"), ","), true
}
