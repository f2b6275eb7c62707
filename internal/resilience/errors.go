package resilience

import (
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// statusOverloaded is Anthropic's "overloaded_error" status.
const statusOverloaded = 529

// TransientError marks an AI backend failure caused by the backend's health
// rather than by the request.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err with an optional HTTP status code (0 if none).
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// FromStatus wraps err in a TransientError when status is one the backend
// may recover from, and returns err unchanged otherwise.
func FromStatus(err error, status int) error {
	if err == nil || !IsTransientHTTPStatus(status) {
		return err
	}
	return NewTransientError(err, status)
}

// go-openai (under eino) only reports the status inside the message:
// "error, status code: 429, status: 429 Too Many Requests, message: ...".
var statusInMessage = regexp.MustCompile(`status code: (\d{3})`)

// StatusFromMessage extracts an HTTP status from an error message, or 0.
func StatusFromMessage(msg string) int {
	m := statusInMessage.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

// Error types the providers put in response bodies for conditions that
// clear on their own. Quota and auth errors are permanent and not listed.
var providerPatterns = []string{
	"overloaded_error",    // anthropic
	"rate_limit_error",    // anthropic
	"rate_limit_exceeded", // openai
	"server_error",        // openai
	"engine_overloaded",   // openai-compatible gateways
}

// Connection failures that HTTP clients flatten into the message.
var networkPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"tls handshake timeout",
	"i/o timeout",
	"unexpected eof",
	"http2: server sent goaway",
	"temporary failure in name resolution",
}

// IsTransient reports whether err is worth counting against the backend:
// a TransientError, a network timeout, a dropped connection, or a provider
// overload/rate-limit body.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	if IsTransientHTTPStatus(StatusFromMessage(msg)) {
		return true
	}
	return containsAny(msg, providerPatterns) || containsAny(msg, networkPatterns)
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether a backend status code reflects a
// temporary condition on the backend's side.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		statusOverloaded:
		return true
	default:
		return false
	}
}

// StatusCode returns the HTTP status carried by a TransientError in err's
// chain, or 0.
func StatusCode(err error) int {
	var te *TransientError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
