package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	notifier "github.com/branchpulse/notifier"
)

// Get notifications
// @Summary List in-app notifications of the authenticated user
// @Tags Notifications
// @Produce json
// @Param filter query notifier.NotificationFilter false "Filter"
// @Success 200 {object} notifier.Page{content=[]notifier.InAppNotification}
// @Router /v1/notifications [GET]
func (api *api) GetNotifications(c *gin.Context) {
	userID, _, ok := api.requestIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrMissingUserIdentity)
		return
	}

	var filter notifier.NotificationFilter
	err := c.ShouldBindQuery(&filter)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrInvalidPageableData)
		return
	}

	notifications, totalCount, err := api.notificationService.GetNotificationsPage(c, userID, filter)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, notifier.NewPage(filter.Pageable, totalCount, notifications))
}

// Get unread notifications
// @Summary List unread in-app notifications of the authenticated user
// @Tags Notifications
// @Produce json
// @Success 200 {array} notifier.InAppNotification
// @Router /v1/notifications/unread [GET]
func (api *api) GetUnreadNotifications(c *gin.Context) {
	userID, _, ok := api.requestIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrMissingUserIdentity)
		return
	}

	notifications, err := api.notificationService.GetNotifications(c, userID, true)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// Mark notification read
// @Summary Mark one in-app notification as read
// @Tags Notifications
// @Produce json
// @Success 204 "No Content"
// @Router /v1/notifications/{notificationId}/read [PUT]
func (api *api) MarkNotificationRead(c *gin.Context) {
	notificationID, err := uuid.Parse(c.Param("notificationId"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrInvalidIDParameterNotification)
		return
	}

	userID, _, ok := api.requestIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrMissingUserIdentity)
		return
	}

	err = api.notificationService.MarkRead(c, notificationID, userID)
	if err != nil {
		if errors.Is(err, notifier.ErrNotificationNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, ErrNotificationNotFound)
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

// Mark all notifications read
// @Summary Mark every in-app notification of the user as read
// @Tags Notifications
// @Success 204 "No Content"
// @Router /v1/notifications/read-all [PUT]
func (api *api) MarkAllNotificationsRead(c *gin.Context) {
	userID, _, ok := api.requestIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrMissingUserIdentity)
		return
	}

	if err := api.notificationService.MarkAllRead(c, userID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}
