package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-predictor/internal/model"
	"github.com/sells-group/credit-predictor/internal/resilience"
)

type stubService struct {
	mu         sync.Mutex
	predictRaw model.RawProfile
	predictErr error
	panics     bool
}

func (s *stubService) Predict(_ context.Context, raw model.RawProfile) (model.PredictionResult, error) {
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	s.predictRaw = raw
	s.mu.Unlock()
	if s.predictErr != nil {
		return model.PredictionResult{}, s.predictErr
	}
	if _, err := model.ParseProfile(raw); err != nil {
		return model.PredictionResult{}, err
	}
	return model.PredictionResult{
		RequestID:   "req-42",
		Score:       688,
		Explanation: "explained",
		Advice:      "advised",
		Anomalies:   []string{},
		Mode:        "combined",
	}, nil
}

func (s *stubService) Score(_ context.Context, raw model.RawProfile) (model.ScoreResult, error) {
	if _, err := model.ParseProfile(raw); err != nil {
		return model.ScoreResult{}, err
	}
	return model.ScoreResult{Score: 688, Breakdown: model.ScoreBreakdown{Score: 688, DTI: 0.2}}, nil
}

type stubCircuit resilience.State

func (c stubCircuit) CircuitState() resilience.State { return resilience.State(c) }

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	if opts.Service == nil {
		opts.Service = &stubService{}
	}
	s := New(opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Options{Circuit: stubCircuit(resilience.Open)})
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "ok", "ai_circuit": "open"}, body)
}

func TestHealth_NoCircuit(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Options{})
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "closed", body["ai_circuit"])
}

func TestPredict(t *testing.T) {
	t.Parallel()

	svc := &stubService{}
	ts := newTestServer(t, Options{Service: svc})

	resp, body := post(t, ts.URL+"/api/v1/predict", `{"income": 50000, "debts": "10000", "paymentHistory": "good"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-Id"))

	assert.Equal(t, float64(688), body["score"])
	assert.Equal(t, "explained", body["explanation"])
	assert.Equal(t, []any{}, body["anomalies"])
	assert.Equal(t, false, body["degraded"])

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, model.NumericInput("50000"), svc.predictRaw.Income)
	assert.Equal(t, model.NumericInput("10000"), svc.predictRaw.Debts)
}

func TestPredict_ValidationFailure(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Options{})
	resp, body := post(t, ts.URL+"/api/v1/predict", `{"income": 0, "debts": -5, "paymentHistory": ""}`)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation failed", body["error"])
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Annual income must be greater than 0.", fields["income"])
	assert.Equal(t, "Debts cannot be negative.", fields["debts"])
	assert.Equal(t, "You need to select a payment history status.", fields["paymentHistory"])
}

func TestPredict_BadBodies(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Options{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", "income=5", http.StatusBadRequest},
		{"object income", `{"income": {"v": 1}}`, http.StatusBadRequest},
		{"too large", `{"paymentHistory": "` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, ts.URL+"/api/v1/predict", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestPredict_ServiceError(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Options{Service: &stubService{predictErr: errors.New("unexpected")}})
	resp, body := post(t, ts.URL+"/api/v1/predict", `{"income": 1, "debts": 0, "paymentHistory": "fair"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", body["error"])
}

func TestPredict_PanicRecovered(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Options{Service: &stubService{panics: true}})
	resp, err := http.Post(ts.URL+"/api/v1/predict", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestScore(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Options{})
	resp, body := post(t, ts.URL+"/api/v1/score", `{"income": "50000", "debts": "10000", "paymentHistory": "good"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(688), body["score"])

	breakdown, ok := body["breakdown"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.2, breakdown["dti"], 1e-9)

	resp, _ = post(t, ts.URL+"/api/v1/score", `{"income": "abc", "debts": "0", "paymentHistory": "good"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPaymentHistory(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Options{})
	resp, err := http.Get(ts.URL + "/api/v1/payment-history")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Options []model.PaymentHistoryOption `json:"options"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Options, 4)
	assert.Equal(t, model.PaymentHistoryExcellent, body.Options[0].Value)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Options{AllowedOrigins: []string{"https://app.example.com"}})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/predict", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	body := `{"income": 50000, "debts": 10000, "paymentHistory": "good"}`

	for i := 0; i < 2; i++ {
		resp, _ := post(t, ts.URL+"/api/v1/score", body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, out := post(t, ts.URL+"/api/v1/score", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", out["error"])

	// Health is outside the limited group.
	h, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer h.Body.Close()
	assert.Equal(t, http.StatusOK, h.StatusCode)
}

func TestClientLimiters_PerClientAndCleanup(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cl := newClientLimiters(0.001, 1)
	defer cl.close()
	cl.now = func() time.Time { return now }

	assert.True(t, cl.allow("10.0.0.1"))
	assert.False(t, cl.allow("10.0.0.1"))
	assert.True(t, cl.allow("10.0.0.2"))

	now = now.Add(2 * limiterIdleTTL)
	cl.cleanup()
	cl.mu.Lock()
	assert.Empty(t, cl.clients)
	cl.mu.Unlock()
}

func TestClientKey(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientKey(r))

	r.RemoteAddr = "198.51.100.7"
	assert.Equal(t, "198.51.100.7", clientKey(r))
}

func scoreFrom(h http.Handler, peer, forwardedFor string) int {
	body := `{"income": 50000, "debts": 10000, "paymentHistory": "good"}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/score", strings.NewReader(body))
	r.RemoteAddr = peer
	r.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w.Code
}

func TestRateLimit_IgnoresForwardedHeadersByDefault(t *testing.T) {
	t.Parallel()

	s := New(Options{Service: &stubService{}, RateLimitRPS: 0.001, RateLimitBurst: 1})
	defer s.Close()

	allowed := 0
	for i := 0; i < 50; i++ {
		if scoreFrom(s.Handler(), "203.0.113.7:40000", fmt.Sprintf("10.9.%d.%d", i/250, i%250)) == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)

	s.limiters.mu.Lock()
	assert.Len(t, s.limiters.clients, 1)
	s.limiters.mu.Unlock()
}

func TestRateLimit_TrustedProxyHeaders(t *testing.T) {
	t.Parallel()

	s := New(Options{Service: &stubService{}, RateLimitRPS: 0.001, RateLimitBurst: 1, TrustProxyHeaders: true})
	defer s.Close()

	assert.Equal(t, http.StatusOK, scoreFrom(s.Handler(), "10.0.0.1:40000", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, scoreFrom(s.Handler(), "10.0.0.1:40000", "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, scoreFrom(s.Handler(), "10.0.0.1:40000", "198.51.100.1"))
}
