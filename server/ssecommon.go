package server

// connectedPayload is the body of the first frame on a new stream; the
// client keeps the connection id for diagnostics and admin tooling.
type connectedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
}

type pingPayload struct {
	Timestamp int64 `json:"timestamp"`
}
