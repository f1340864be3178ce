package duty

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized is returned when no active session exists or the remote
	// rejected the bearer token. Observing it always tears the session down.
	ErrUnauthorized = errors.New("duty: unauthorized")
	// ErrUnavailable is returned when the remote produced no response at all.
	ErrUnavailable = errors.New("duty: remote unavailable")
	// ErrNotFound is returned when no assignment exists for the requested date.
	ErrNotFound = errors.New("duty: not found")
	// ErrBusy is returned when a batch action is requested while another batch
	// is still outstanding.
	ErrBusy = errors.New("duty: batch in flight")
)

// ValidationError captures field level validation issues that callers can
// surface to users. It never reaches the network.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// RemoteError reports a well formed, authenticated request the backend
// rejected with a non-success status.
type RemoteError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote rejected request: status %d", e.Status)
	}
	return fmt.Sprintf("remote rejected request: status %d: %s", e.Status, e.Message)
}

// BatchError aggregates per-date failures from one batch action. The cache is
// guaranteed untouched when it is returned.
type BatchError struct {
	Failed map[string]error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e == nil || len(e.Failed) == 0 {
		return "batch failed"
	}
	dates := e.Dates()
	return fmt.Sprintf("batch failed for %d of the requested dates: %s", len(dates), strings.Join(dates, ", "))
}

// Dates returns the failed date keys in ascending order.
func (e *BatchError) Dates() []string {
	if e == nil {
		return nil
	}
	dates := make([]string, 0, len(e.Failed))
	for date := range e.Failed {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Unwrap exposes the underlying failures so callers can probe with errors.Is.
func (e *BatchError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, len(e.Failed))
	for _, date := range e.Dates() {
		errs = append(errs, e.Failed[date])
	}
	return errs
}

// ErrorKind maps sentinel and structured errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBusy):
		return "busy"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var rErr *RemoteError
	if errors.As(err, &rErr) {
		return "remote"
	}
	var bErr *BatchError
	if errors.As(err, &bErr) {
		return "batch"
	}

	return "unexpected"
}
