package client

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorKind classifies a failed call the way the UI reacts to it.
type ErrorKind int

const (
	KindServer ErrorKind = iota
	KindValidation
	KindPermission
	KindNotFound
	KindConflict
	KindUnauthenticated
	KindTransient
)

var kindNames = [...]string{"server", "validation", "permission", "not_found", "conflict", "unauthenticated", "transient"}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

var (
	// ErrUnauthenticated is wrapped by every 401 response; the session is torn down before it is returned.
	ErrUnauthenticated = errors.New("session expired, please log in again")
	ErrSubmitInFlight  = errors.New("a submission is already in progress")
	ErrNoGradingAction = errors.New("no grading action is available for this proyek")
	errStale           = errors.New("stale response discarded")
)

// APIError is a failed call, either rejected locally before any request or answered with an error envelope.
type APIError struct {
	Kind    ErrorKind
	Status  int // 0 when the request never completed
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsKind reports whether err is an *APIError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == k
}

func kindOf(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status == http.StatusForbidden:
		return KindPermission
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusRequestTimeout, status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return KindTransient
	}
	return KindServer
}

func validationError(fields map[string][]string) *APIError {
	return &APIError{Kind: KindValidation, Message: "the given data was invalid", Fields: fields}
}

// LoadError is a failed read; Op names the list that could not be loaded.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s failed: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
