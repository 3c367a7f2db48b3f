package stream

import (
	"errors"
	"fmt"
)

// UnknownErrorMessage is used when a failure carries no description.
const UnknownErrorMessage = "An unknown error has occurred."

const noBodyMessage = "No response body available for streaming"

// ErrNoBody is returned (via Result.Err) when a response has no body to read.
var ErrNoBody = errors.New("stream: no response body")

// HTTPError reports a non-2xx response.
type HTTPError struct {
	Code   int
	Reason string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.Code, e.Reason)
}

// Result is the outcome of one fetch. Fetch never panics or returns an error
// value; every failure ends up here.
type Result struct {
	Successful bool   `json:"successful"`
	Data       string `json:"data"`            // full text on success, partial text on failure
	Error      string `json:"error,omitempty"` // human readable; empty on success

	Status int   `json:"-"` // HTTP status, 0 if no response arrived
	Err    error `json:"-"` // underlying error for errors.Is/As
}

func failureMessage(err error) string {
	if errors.Is(err, ErrNoBody) {
		return noBodyMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnknownErrorMessage
}
