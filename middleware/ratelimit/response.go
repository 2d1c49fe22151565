package ratelimit

import (
	"encoding/json"
	"net/http"
	"time"

	"execintel-gateway/middleware/ratelimit/domain"
)

const (
	msgRateLimitExceeded  = "Rate limit exceeded"
	msgLimiterUnavailable = "Rate limiter unavailable"
	msgTooManyInFlight    = "Service Unavailable"
)

// errorBody segue o envelope das rotas: {"success": false, "error": "..."}.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Success: false, Error: msg})
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", formatInt64(int64(retryAfter/time.Second)))
	writeJSONError(w, http.StatusTooManyRequests, msgRateLimitExceeded)
}

func setRateLimitHeaders(w http.ResponseWriter, res domain.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", formatInt(res.Limit))
	h.Set("X-RateLimit-Remaining", formatInt(res.Remaining))
	if !res.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", formatInt64(res.ResetAt.Unix()))
	}
}
