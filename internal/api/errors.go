package api

import (
	"errors"
	"fmt"
)

// ErrNoRoom is returned by GetChatRoom when no room exists yet for a
// participant pair. It is a valid state, not a failure: callers react
// by creating the room.
var ErrNoRoom = errors.New("no chat room for participant pair")

// ApiError is a server-rejected request. Message carries the server's
// response text verbatim so views can surface it unchanged.
type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func newApiError(statusCode int, body []byte) *ApiError {
	return &ApiError{
		StatusCode: statusCode,
		Message:    string(body),
	}
}
