package api

import (
	notifier "github.com/branchpulse/notifier"
)

type HTTPError struct {
	MessageKey    string            `json:"messageKey"`
	MessageParams map[string]string `json:"messageParams"`
	Message       string            `json:"message"`
	Errors        []HTTPError       `json:"errors"`
}

var (
	ErrInvalidQueryParamSince = HTTPError{
		MessageKey: "40001",
		Message:    "invalid or missing queryParam since",
	}
	ErrInvalidQueryParamLimit = HTTPError{
		MessageKey: "40002",
		Message:    "invalid queryParam limit",
	}
	ErrInvalidIDParameterNotification = HTTPError{
		MessageKey: "40003",
		Message:    "invalid id parameter for notificationId",
	}
	ErrInvalidPageableData = HTTPError{
		MessageKey: "40004",
		Message:    "malformed pageable data",
	}
	ErrInvalidRequestBody = HTTPError{
		MessageKey: "40012",
		Message:    "can not bind request body",
	}
	ErrMissingEventType = HTTPError{
		MessageKey: "40013",
		Message:    notifier.MsgMissingEventType,
	}
	ErrMissingEventPayload = HTTPError{
		MessageKey: "40014",
		Message:    notifier.MsgMissingEventPayload,
	}
	ErrUnknownHealthAction = HTTPError{
		MessageKey: "40015",
		Message:    "unknown health action",
	}
	ErrPublishRateLimited = HTTPError{
		MessageKey: "42900",
		Message:    notifier.MsgPublishRateLimited,
	}
	ErrMissingUserIdentity = HTTPError{
		MessageKey: "40102",
		Message:    "no user identity on request",
	}
	ErrNotificationNotFound = HTTPError{
		MessageKey: "40400",
		Message:    notifier.MsgNotificationNotFound,
	}
	ErrInternalServerError = HTTPError{
		MessageKey: "50000",
		Message:    "Unexpected error.",
	}
)
