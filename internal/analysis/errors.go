package analysis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sells-group/credit-predictor/internal/resilience"
)

// ErrorKind classifies a BackendError.
type ErrorKind string

// Backend failure kinds.
const (
	KindUnavailable ErrorKind = "unavailable"
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindCircuitOpen ErrorKind = "circuit_open"
	KindSchema      ErrorKind = "schema"
	KindEmpty       ErrorKind = "empty"
)

// BackendError is returned for any failed analysis call. It never
// accompanies partial results.
type BackendError struct {
	Op   Kind
	Kind ErrorKind
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("analysis: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// AsBackendError unwraps err to a *BackendError.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// classify maps a transport or breaker failure onto a BackendError.
func classify(op Kind, err error) *BackendError {
	var (
		kind   ErrorKind
		netErr net.Error
	)
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		kind = KindCircuitOpen
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case resilience.StatusCode(err) == http.StatusTooManyRequests:
		kind = KindRateLimited
	default:
		kind = KindUnavailable
	}
	return &BackendError{Op: op, Kind: kind, Err: err}
}

func schemaError(op Kind, err error) *BackendError {
	return &BackendError{Op: op, Kind: KindSchema, Err: err}
}
