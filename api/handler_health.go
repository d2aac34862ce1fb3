package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	notifier "github.com/branchpulse/notifier"
)

// BuildVersion - will be filled at build process in pipeline
var BuildVersion string

type healthCheck struct {
	Service     string                 `json:"service"`
	Status      string                 `json:"status"`
	ApiVersion  []string               `json:"apiVersion"`
	BuildNumber string                 `json:"buildNumber"`
	Connections notifier.RegistryStats `json:"connections"`
}

func (api *api) GetHealth(c *gin.Context) {
	defaultInfo := healthCheck{
		Service:     api.config.ApplicationName,
		Status:      "running",
		ApiVersion:  []string{"v1"},
		BuildNumber: BuildVersion,
		Connections: api.registry.GetStats(),
	}

	c.JSON(http.StatusOK, defaultInfo)
}

type healthActionTO struct {
	Action       string `json:"action" binding:"required"`
	ConnectionID string `json:"connectionId,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

const (
	healthActionBroadcast       = "health-check-broadcast"
	healthActionForceDisconnect = "force-disconnect"
)

// Health action
// @Summary Administrative actions on the notification layer
// @Description health-check-broadcast pings every connection, force-disconnect terminates one
// @Tags Health
// @Accept json
// @Produce json
// @Router /v1/health/actions [POST]
func (api *api) PostHealthAction(c *gin.Context) {
	var action healthActionTO
	if err := c.ShouldBindJSON(&action); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrInvalidRequestBody)
		return
	}

	switch action.Action {
	case healthActionBroadcast:
		event, err := api.dispatcher.Publish(c, notifier.EventDraft{
			Type:    notifier.EventTypePing,
			Payload: map[string]interface{}{"reason": "health-check"},
			Source:  "health-endpoint",
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrInternalServerError)
			return
		}
		c.JSON(http.StatusOK, event)
	case healthActionForceDisconnect:
		if action.ConnectionID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrInvalidRequestBody)
			return
		}
		api.registry.ForceDisconnect(action.ConnectionID, action.Reason)
		c.Status(http.StatusNoContent)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrUnknownHealthAction)
	}
}
