package api

import "fmt"

// RequestError reports a failed bulk or paginated fetch: transport failure,
// non-success status, or an undecodable body.
type RequestError struct {
	Endpoint   string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("request %s failed", e.Endpoint)
	}
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
