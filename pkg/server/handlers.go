package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"mercator-hq/themis/pkg/admission/actionlog"
)

// RateLimiter is the scope-specific admission decision the API exposes.
type RateLimiter interface {
	Allow(ctx context.Context, action actionlog.Action, source string) (bool, error)
}

// MeteringGate is the billing decision the API exposes.
type MeteringGate interface {
	ShouldCharge(ctx context.Context, action actionlog.Action, source, actor string) (bool, error)
}

// Handler serves the admission API. The transport layer of the surrounding
// product calls these endpoints per mutating request; both limiter scopes
// must pass before an action proceeds, and metering is consulted
// independently afterwards.
type Handler struct {
	userLimiter    RateLimiter
	projectLimiter RateLimiter
	gate           MeteringGate
	logger         *slog.Logger
}

// NewHandler creates the admission API handler. A nil gate disables the
// metering endpoint (404).
func NewHandler(userLimiter, projectLimiter RateLimiter, gate MeteringGate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		userLimiter:    userLimiter,
		projectLimiter: projectLimiter,
		gate:           gate,
		logger:         logger.With("component", "server"),
	}
}

type checkRequest struct {
	Action string `json:"action"`
	Source string `json:"source"`
}

type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Action  string `json:"action,omitempty"`
}

type meterRequest struct {
	Action string `json:"action"`
	Source string `json:"source"`
	Actor  string `json:"actor"`
}

type meterResponse struct {
	Charge bool `json:"charge"`
}

// Routes returns the API mux.
func (h *Handler) Routes(metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/limits/check", h.withRequestID(h.checkLimit(h.userLimiter)))
	mux.HandleFunc("POST /v1/limits/check-project", h.withRequestID(h.checkLimit(h.projectLimiter)))
	if h.gate != nil {
		mux.HandleFunc("POST /v1/metering/check", h.withRequestID(h.checkMeter))
	}
	mux.HandleFunc("GET /healthz", h.health)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}

// withRequestID stamps each request with an id for log correlation.
func (h *Handler) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next(w, r.WithContext(withRequestID(r.Context(), id)))
	}
}

func (h *Handler) checkLimit(limiter RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, checkResponse{
				Allowed: false,
				Error:   "bad_request",
				Message: "invalid JSON body",
			})
			return
		}

		allowed, err := limiter.Allow(r.Context(), actionlog.Action(req.Action), req.Source)
		if err != nil {
			h.logger.Error("limit check failed",
				"request_id", requestID(r.Context()),
				"action", req.Action,
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, checkResponse{
				Allowed: false,
				Error:   "internal",
				Message: "limit check failed",
			})
			return
		}

		if !allowed {
			writeJSON(w, http.StatusTooManyRequests, checkResponse{
				Allowed: false,
				Error:   "rate_limited",
				Message: "you are sending too many requests, please try again later",
				Action:  req.Action,
			})
			return
		}
		writeJSON(w, http.StatusOK, checkResponse{Allowed: true})
	}
}

func (h *Handler) checkMeter(w http.ResponseWriter, r *http.Request) {
	var req meterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, checkResponse{
			Error:   "bad_request",
			Message: "invalid JSON body",
		})
		return
	}

	charge, err := h.gate.ShouldCharge(r.Context(), actionlog.Action(req.Action), req.Source, req.Actor)
	if err != nil {
		h.logger.Error("metering check failed",
			"request_id", requestID(r.Context()),
			"source", req.Source,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, checkResponse{
			Error:   "internal",
			Message: "metering check failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, meterResponse{Charge: charge})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
