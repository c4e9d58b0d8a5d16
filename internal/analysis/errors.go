package analysis

import "fmt"

// TransportError reports that a request did not produce a usable response:
// the server was unreachable, answered with a non-success status, or sent a
// body that is not JSON.
type TransportError struct {
	Endpoint   string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP error %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ApplicationError carries the error message the backend put in the "error"
// field of its JSON response.
type ApplicationError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: server error: %s", e.Endpoint, e.Message)
}
