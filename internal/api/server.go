// Package api exposes prediction and scoring over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/credit-predictor/internal/model"
	"github.com/sells-group/credit-predictor/internal/resilience"
)

const maxBodyBytes = 64 << 10

// Service is the prediction flow behind the API.
type Service interface {
	Predict(ctx context.Context, raw model.RawProfile) (model.PredictionResult, error)
	Score(ctx context.Context, raw model.RawProfile) (model.ScoreResult, error)
}

// CircuitReporter reports the AI backend breaker position for /health.
type CircuitReporter interface {
	CircuitState() resilience.State
}

// Options configures the API.
type Options struct {
	Service        Service
	Circuit        CircuitReporter
	AllowedOrigins []string
	RateLimitRPS   float64 // <= 0 disables rate limiting
	RateLimitBurst int

	// TrustProxyHeaders takes the client IP from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// Server holds the router and the per-client limiters.
type Server struct {
	svc      Service
	circuit  CircuitReporter
	limiters *clientLimiters
	router   chi.Router
}

// New builds the router.
func New(opts Options) *Server {
	s := &Server{svc: opts.Service, circuit: opts.Circuit}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimitRPS > 0 {
			s.limiters = newClientLimiters(opts.RateLimitRPS, opts.RateLimitBurst)
			r.Use(s.limiters.middleware)
		}
		r.Post("/predict", s.predict)
		r.Post("/score", s.score)
		r.Get("/payment-history", s.paymentHistory)
	})

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Close stops background limiter cleanup.
func (s *Server) Close() {
	if s.limiters != nil {
		s.limiters.close()
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	state := resilience.Closed
	if s.circuit != nil {
		state = s.circuit.CircuitState()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"ai_circuit": state.String(),
	})
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeProfile(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Predict(r.Context(), raw)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("X-Request-Id", res.RequestID)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) score(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeProfile(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Score(r.Context(), raw)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) paymentHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"options": model.PaymentHistoryOptions()})
}

func decodeProfile(w http.ResponseWriter, r *http.Request) (model.RawProfile, bool) {
	var raw model.RawProfile
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return raw, false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return raw, false
	}
	return raw, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := model.AsValidationErrors(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": ve.Fields(),
		})
		return
	}
	zap.L().Error("api: request failed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
