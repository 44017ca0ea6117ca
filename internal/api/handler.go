package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quotaflow/metering/internal/policy"
	"github.com/quotaflow/metering/internal/usage"
	"github.com/quotaflow/metering/pkg/ratelimit"
)

// Meter is the engine surface the handlers need.
type Meter interface {
	Check(ctx context.Context, userID string) (*usage.Snapshot, error)
	Increment(ctx context.Context, userID string, metric usage.Metric, amount int64) (*usage.Snapshot, error)
	Limits(ctx context.Context, userID string) (policy.Tier, policy.Limits, error)
}

type Handler struct {
	meter   Meter
	limiter *ratelimit.Limiter
	tracer  trace.Tracer
}

func NewHandler(meter Meter, limiter *ratelimit.Limiter, tracer trace.Tracer) *Handler {
	return &Handler{
		meter:   meter,
		limiter: limiter,
		tracer:  tracer,
	}
}

func (h *Handler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing userId")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "metering.check")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	if !h.allow(ctx, w, userID) {
		return
	}

	snap, err := h.meter.Check(ctx, userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) HandlePostUsage(w http.ResponseWriter, r *http.Request) {
	var req incrementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	metric, amount, err := req.normalize()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "metering.increment")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("metric", string(metric)),
		attribute.Int64("amount", amount),
	)

	if !h.allow(ctx, w, req.UserID) {
		return
	}

	snap, err := h.meter.Increment(ctx, req.UserID, metric, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) HandleGetLimits(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing userId")
		return
	}

	tier, limits, err := h.meter.Limits(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":              userID,
		"tier":                tier,
		"tokensLimit":         limits.Tokens,
		"meetingSecondsLimit": limits.MeetingSeconds,
	})
}

// HandleMethodNotAllowed keeps unsupported methods on a structured error
// instead of chi's plain-text default.
func HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

// allow applies the per-user request rate limit. The limiter is advisory
// plumbing in front of the engine; quota ceilings are enforced separately by
// the snapshot's overLimit flag.
func (h *Handler) allow(ctx context.Context, w http.ResponseWriter, userID string) bool {
	if h.limiter == nil {
		return true
	}
	allowed, err := h.limiter.Allow(ctx, userID)
	if err != nil || !allowed {
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many metering requests")
		return false
	}
	return true
}

func writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, usage.ErrStorage) {
		writeError(w, http.StatusServiceUnavailable, "storage_error", "usage store unavailable, retry with backoff")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", err.Error())
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"kind":    kind,
			"message": message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
