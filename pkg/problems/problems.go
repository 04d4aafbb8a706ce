// Package problems holds the closed error taxonomy for failed SlashID API calls
// and the classifier that maps an HTTP failure onto it.
package problems

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	jmes "github.com/jmespath/go-jmespath"
)

// Kind identifies a member of the taxonomy.
type Kind int

const (
	// Unclassified means the status is outside the taxonomy; the caller must
	// surface the original transport error untouched.
	Unclassified Kind = iota
	BadRequest
	Unauthorized
	AccessDenied
	IDNotFound
	InvalidEndpoint
	Conflict
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "bad_request"
	case Unauthorized:
		return "unauthorized"
	case AccessDenied:
		return "access_denied"
	case IDNotFound:
		return "id_not_found"
	case InvalidEndpoint:
		return "invalid_endpoint"
	case Conflict:
		return "conflict"
	default:
		return "unclassified"
	}
}

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrBadRequest      = &Error{Kind: BadRequest}
	ErrUnauthorized    = &Error{Kind: Unauthorized}
	ErrAccessDenied    = &Error{Kind: AccessDenied}
	ErrIDNotFound      = &Error{Kind: IDNotFound}
	ErrInvalidEndpoint = &Error{Kind: InvalidEndpoint}
	ErrConflict        = &Error{Kind: Conflict}
)

// Error is a classified API failure. It is immutable once returned by Classify.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Method     string
	Target     string // request path plus query, e.g. /organizations/webhooks?x=y
	Cause      error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "slashid: " + e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a taxonomy sentinel of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// KindOf returns the taxonomy kind carried by err, or Unclassified.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Unclassified
}

const genericMessage = "Error"

// Classify maps a failed exchange onto the taxonomy. It is a pure function of
// its inputs; cause is only attached, never inspected. When the status is not
// part of the taxonomy the returned Error has Kind Unclassified and callers
// must return cause instead.
func Classify(status int, body []byte, method, target string, cause error) *Error {
	msg, parsed := ErrorMessage(body)
	e := &Error{
		StatusCode: status,
		Method:     method,
		Target:     target,
		Cause:      cause,
	}
	if !parsed {
		msg = genericMessage
	}

	switch status {
	case http.StatusBadRequest:
		e.Kind = BadRequest
	case http.StatusUnauthorized:
		e.Kind = Unauthorized
		e.Message = fmt.Sprintf("Unauthorized request at %s %s: check that the organization ID and API key are correct and belong to the selected environment", method, target)
		return e
	case http.StatusForbidden:
		e.Kind = AccessDenied
		msg = "Access has been denied: " + msg
	case http.StatusNotFound:
		// A valid route with an unknown ID answers with a JSON error body; an
		// unknown route answers with plain text.
		if parsed {
			e.Kind = IDNotFound
		} else {
			e.Kind = InvalidEndpoint
		}
	case http.StatusConflict:
		e.Kind = Conflict
	default:
		e.Kind = Unclassified
	}
	e.Message = fmt.Sprintf("%s at %s %s", msg, method, target)
	return e
}

// ErrorMessage extracts errors[0].message from an error envelope. The second
// return is false when the body is not JSON or carries no such string.
func ErrorMessage(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", false
	}
	v, err := jmes.Search("errors[0].message", doc)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return s, true
}
