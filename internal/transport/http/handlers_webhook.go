package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agegate/internal/domain"
	"agegate/internal/webhook"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/httputil"
	"agegate/pkg/requestcontext"
)

// Ingestor applies a normalized provider event.
type Ingestor interface {
	Process(ctx context.Context, event domain.WebhookEvent) (webhook.Outcome, error)
}

// WebhookHandler receives raw provider callbacks and normalizes them. Both
// providers deliver at-least-once, so every path here must be replay safe.
type WebhookHandler struct {
	ingestor Ingestor
	logger   *slog.Logger
}

func NewWebhookHandler(ingestor Ingestor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor, logger: logger}
}

// Register mounts the provider callback endpoints. These are unauthenticated
// by design: providers sign nothing useful and the payloads carry only
// references we already hold.
func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/kyc", h.HandleKYC)
	r.Post("/webhooks/payment", h.HandlePayment)
}

type kycWebhookRequest struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

func (h *WebhookHandler) HandleKYC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[kycWebhookRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}

	var kind domain.WebhookEventKind
	switch req.Status {
	case "opened":
		kind = domain.WebhookSessionOpened
	case "approved":
		kind = domain.WebhookDecisionApproved
	case "declined":
		kind = domain.WebhookDecisionDeclined
	default:
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown kyc status %q", req.Status))
		return
	}

	h.deliver(w, r, domain.WebhookEvent{
		Kind:       kind,
		SessionID:  id.KYCSessionID(req.SessionID),
		ReceivedAt: requestcontext.Now(ctx),
	})
}

type paymentWebhookRequest struct {
	HoldID string `json:"hold_id"`
	Event  string `json:"event"`
}

func (h *WebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[paymentWebhookRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}
	if req.Event != "hold_authorized" {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown payment event %q", req.Event))
		return
	}

	h.deliver(w, r, domain.WebhookEvent{
		Kind:       domain.WebhookHoldAuthorized,
		HoldRef:    id.HoldRef(req.HoldID),
		ReceivedAt: requestcontext.Now(ctx),
	})
}

// deliver runs the event through the orchestrator and maps the outcome to an
// HTTP status the provider's retry machinery understands: 2xx stops retries,
// 202 acknowledges an event we cannot apply yet, 503 asks for redelivery.
func (h *WebhookHandler) deliver(w http.ResponseWriter, r *http.Request, event domain.WebhookEvent) {
	ctx := r.Context()

	outcome, err := h.ingestor.Process(ctx, event)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeDuplicate) {
		if outcome.ShouldRetry {
			h.logger.WarnContext(ctx, "webhook deferred for redelivery",
				"request_id", requestcontext.RequestID(ctx),
				"kind", event.Kind,
				"error_code", dErrors.CodeOf(err),
			)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"result":         string(outcome.Result),
				"should_retry":   true,
				"retry_after_ms": outcome.RetryAfter.Milliseconds(),
			})
			return
		}
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	body := map[string]any{
		"result": string(outcome.Result),
	}
	if outcome.Result == webhook.ResultDeferred {
		status = http.StatusAccepted
		body["should_retry"] = outcome.ShouldRetry
		body["retry_after_ms"] = outcome.RetryAfter.Milliseconds()
	}
	httputil.WriteJSON(w, status, body)
}
