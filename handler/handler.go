// Package handler exposes the chat relay over HTTP. All failures are caught
// here and converted to the JSON error shape; upstream detail stays in the
// server-side logs.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"portfolio-relay/internal/domain"
	"portfolio-relay/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// RelayUseCase is the single operation the handler depends on.
type RelayUseCase interface {
	Relay(ctx context.Context, messages []domain.ChatMessage) (io.ReadCloser, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	relay RelayUseCase
	log   *slog.Logger
}

func New(relay RelayUseCase, log *slog.Logger) (*Handler, error) {
	if relay == nil {
		return nil, errors.New("handler: relay use case must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{relay: relay, log: log}, nil
}

// Chat handles POST /chat: decode, relay, then stream the upstream body to
// the caller with a flush per read so bytes leave as they arrive.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	corrID := r.Header.Get(correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	w.Header().Set(correlationHeader, corrID)
	log := h.log.With("correlation_id", corrID)

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request body", "err", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stream, err := h.relay.Relay(r.Context(), req.Messages)
	if err != nil {
		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error("relay failed", "err", err)
		} else {
			log.Warn("relay rejected request", "status", status, "err", err)
		}
		writeError(w, status, msg)
		return
	}
	defer func() { _ = stream.Close() }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if err := copyStream(w, stream); err != nil {
		// Headers are committed; best effort is to stop. The consumer's
		// incremental parser tolerates a truncated stream.
		log.Warn("stream ended early", "err", err)
	}
}

// classify maps relay errors to the caller-facing status and message. The
// message is always generic; the wrapped error never reaches the caller.
func classify(err error) (int, string) {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		switch ucErr.Code {
		case usecase.ErrorInvalidInput:
			return http.StatusBadRequest, "messages must be a non-empty list of chat turns"
		case usecase.ErrorRateLimited:
			return http.StatusTooManyRequests, "rate limit exceeded, please try again shortly"
		case usecase.ErrorQuotaExhausted:
			return http.StatusPaymentRequired, "service temporarily unavailable"
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// copyStream relays bytes as they arrive. Backpressure is the loop itself:
// the next upstream read only happens after the previous write is accepted.
func copyStream(w http.ResponseWriter, stream io.Reader) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, rerr := stream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return rerr
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
