package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("overloaded"), 529), true},
		{"wrapped with fmt", fmt.Errorf("anthropic: create message: %w", NewTransientError(errors.New("slow down"), 429)), true},
		{"wrapped with eris", eris.Wrap(NewTransientError(errors.New("bad gateway"), 502), "analysis: complete"), true},
		{"plain", errors.New("model returned invalid JSON"), false},
		{"connection reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"dns timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"message pattern", errors.New("read: connection reset by peer"), true},
		{"message pattern mixed case", errors.New("net/http: TLS handshake timeout"), true},
		{"unexpected eof", errors.New("Post \"https://api.example\": unexpected EOF"), true},
		{"http2 goaway", errors.New("http2: server sent GOAWAY and closed the connection"), true},
		{"openai status in message", errors.New("error, status code: 503, status: 503 Service Unavailable"), true},
		{"openai client error in message", errors.New("error, status code: 400, status: 400 Bad Request"), false},
		{"anthropic overloaded body", errors.New(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`), true},
		{"openai rate limit code", errors.New("Rate limit reached (code: rate_limit_exceeded)"), true},
		{"openai quota is permanent", errors.New("You exceeded your current quota (code: insufficient_quota)"), false},
		{"auth is permanent", errors.New(`{"type":"authentication_error","message":"invalid x-api-key"}`), false},
		{"unknown host is permanent", errors.New("dial tcp: lookup api.example: no such host"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 413, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("root cause")
	te := NewTransientError(inner, 503)

	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "root cause", te.Error())
}

func TestStatusFromMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 429, StatusFromMessage("error, status code: 429, status: 429 Too Many Requests, message: slow down"))
	assert.Equal(t, 0, StatusFromMessage("status: unknown"))
	assert.Equal(t, 0, StatusFromMessage(""))
}

func TestFromStatus(t *testing.T) {
	t.Parallel()

	base := errors.New("upstream")

	err := FromStatus(base, 529)
	assert.Equal(t, 529, StatusCode(err))
	assert.ErrorIs(t, err, base)

	assert.Same(t, base, FromStatus(base, 401))
	assert.Same(t, base, FromStatus(base, 0))
	assert.NoError(t, FromStatus(nil, 503))
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 429, StatusCode(fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 429))))
	assert.Equal(t, 0, StatusCode(errors.New("plain")))
	assert.Equal(t, 0, StatusCode(nil))
}
