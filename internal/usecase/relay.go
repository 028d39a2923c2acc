package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"portfolio-relay/internal/domain"
)

// StreamingLLM is the upstream client seam: it opens a streaming completion
// and hands back the raw response body for pass-through.
type StreamingLLM interface {
	StreamChat(ctx context.Context, model string, messages []domain.ChatMessage) (io.ReadCloser, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type credentialReporter interface {
	MissingCredential() bool
}

// RelayService validates an inbound conversation, prepends the system
// persona and opens the upstream stream. It holds no per-request state, so a
// single instance serves any number of concurrent requests.
type RelayService struct {
	llm    StreamingLLM
	model  string
	system domain.ChatMessage
}

func NewRelayService(llm StreamingLLM, model string, persona Persona) (*RelayService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	return &RelayService{
		llm:    llm,
		model:  model,
		system: persona.SystemMessage(),
	}, nil
}

// Relay forwards the conversation upstream and returns the unread SSE body.
// The caller owns the returned stream and must close it. Every failure is
// terminal for the request; the relay never retries.
func (s *RelayService) Relay(ctx context.Context, messages []domain.ChatMessage) (io.ReadCloser, error) {
	if len(messages) == 0 {
		return nil, newError(ErrorInvalidInput, "empty_conversation", nil)
	}
	for _, m := range messages {
		if !domain.ValidRole(m.Role) {
			return nil, newError(ErrorInvalidInput, "unknown_role", fmt.Errorf("role %q", m.Role))
		}
	}

	// System persona first, caller turns after it, order untouched.
	payload := make([]domain.ChatMessage, 0, len(messages)+1)
	payload = append(payload, s.system)
	payload = append(payload, messages...)

	stream, err := s.llm.StreamChat(ctx, s.model, payload)
	if err != nil {
		if missingCredential(err) {
			return nil, newError(ErrorConfig, "missing_api_key", err)
		}
		if status, ok := upstreamStatusCode(err); ok {
			switch status {
			case http.StatusTooManyRequests:
				return nil, newError(ErrorRateLimited, "upstream_rate_limited", err)
			case http.StatusPaymentRequired:
				return nil, newError(ErrorQuotaExhausted, "upstream_quota_exhausted", err)
			default:
				return nil, newError(ErrorUpstream, fmt.Sprintf("upstream_status_%d", status), err)
			}
		}
		return nil, newError(ErrorUpstream, "upstream_transport_error", err)
	}
	return stream, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func missingCredential(err error) bool {
	var credErr credentialReporter
	return errors.As(err, &credErr) && credErr.MissingCredential()
}
