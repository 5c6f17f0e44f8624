package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"hookgate/internal"
	"hookgate/pkg/ingest"
	"hookgate/pkg/verify"
)

// Handler adapts one integration's pipeline to HTTP.
type Handler struct {
	orch    *ingest.Orchestrator
	maxBody int64
	logger  *log.Logger
}

// NewHandler wraps an orchestrator. maxBody caps the request body size;
// zero means no cap beyond the server's.
func NewHandler(orch *ingest.Orchestrator, maxBody int64, logger *log.Logger) *Handler {
	if logger == nil {
		logger = internal.NewLogger("webhook")
	}
	return &Handler{orch: orch, maxBody: maxBody, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	rawBody, err := io.ReadAll(body)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]string{"status": "error", "reason": "body read failed"})
		return
	}

	outcome, err := h.orch.Handle(r.Context(), verify.Request{
		Header:     r.Header,
		Body:       rawBody,
		ReceivedAt: time.Now(),
	})
	if err != nil {
		h.logger.Printf("handle failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	switch outcome.Status {
	case ingest.StatusRejected:
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"status": "rejected",
			"reason": outcome.Reason,
		})
	case ingest.StatusMalformed:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error",
			"reason": outcome.Reason,
		})
	case ingest.StatusSkipped:
		if outcome.Reason == "ping" {
			if challenge := pingChallenge(rawBody); challenge != "" {
				writeJSON(w, http.StatusOK, map[string]string{"challenge": challenge})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "skipped",
			"reason": outcome.Reason,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	}
}

// pingChallenge extracts the echo token some providers expect back from
// their verification handshake.
func pingChallenge(body []byte) string {
	var payload struct {
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Challenge
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
