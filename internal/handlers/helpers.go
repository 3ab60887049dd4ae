package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-assignments/internal/assignment"
	"github.com/ukydev/fleet-assignments/internal/middleware"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetRequestID(r.Context()),
		}).WithError(err).Error("encode response failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeEngineError maps classified engine errors to 404/409/400 and anything
// else to 500 without leaking the cause.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	msg := err.Error()
	var engineErr *assignment.Error
	if errors.As(err, &engineErr) {
		msg = engineErr.Msg
	}
	switch assignment.KindOf(err) {
	case assignment.KindNotFound:
		writeError(w, r, http.StatusNotFound, msg)
		return
	case assignment.KindConflict:
		writeError(w, r, http.StatusConflict, msg)
		return
	case assignment.KindInvalidState:
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	log.WithFields(log.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": middleware.GetRequestID(r.Context()),
	}).WithError(err).Error("request failed")
	writeError(w, r, http.StatusInternalServerError, "internal error")
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return v, nil
}
