package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Status     string `json:"status"`
	Error      string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	logrus.Warn(msg)
	writeJSON(w, status, errorBody{StatusCode: status, Status: "error", Error: msg})
}

// errorResponse maps request errors to 400 and everything else (dial
// failures, wrong chain) to 502
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, errBadRequest) {
		status = http.StatusBadRequest
	}
	writeError(w, status, err.Error())
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// limit rejects requests over the configured rate. /health and /metrics are exempt.
func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimit != nil && r.URL.Path != "/health" && r.URL.Path != "/metrics" {
			if !s.rateLimit.Allow() {
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency per path
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.metrics.requestCounter.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
		s.metrics.requestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())

		logrus.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  rec.status,
			"latency": time.Since(start).String(),
		}).Debug("Request handled")
	})
}
