package gateway

import "fmt"

const maxErrorBody = 256

// StatusError is the untranslated failure for a non-2xx response. It is
// returned as is for statuses outside the problems taxonomy and is the Cause
// of every classified error.
type StatusError struct {
	Method     string
	Target     string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Target, e.StatusCode, body)
}
