package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"agegate/internal/domain"
	"agegate/internal/ledger"
	"agegate/internal/settlement"
	"agegate/internal/webhook"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/httputil"
	"agegate/pkg/requestcontext"
)

const (
	accessTokenTTL = 24 * time.Hour

	// maxResolutionWait caps the bounded webhook-complete wait so a slow
	// provider cannot pin a connection indefinitely.
	maxResolutionWait = 30 * time.Second
)

// AccountService is the buyer account surface the handlers use.
type AccountService interface {
	FindOrCreate(ctx context.Context, email string) (*domain.BuyerAccount, error)
	Get(ctx context.Context, buyerID id.BuyerID) (*domain.BuyerAccount, error)
	Erase(ctx context.Context, buyerID id.BuyerID) error
}

// StartService drives buyer verification attempts.
type StartService interface {
	Start(ctx context.Context, buyerID id.BuyerID, shipping domain.Address) (settlement.StartResult, error)
}

// ReconcileService is the webhook surface exposed to buyers.
type ReconcileService interface {
	Retry(ctx context.Context, buyerID id.BuyerID) (webhook.Outcome, error)
	WaitForResolution(ctx context.Context, buyerID id.BuyerID, maxWait time.Duration) (webhook.Resolution, error)
}

// TokenIssuer mints buyer access tokens.
type TokenIssuer interface {
	GenerateAccessToken(buyerID id.BuyerID, expiresIn time.Duration) (string, error)
}

// HistoryService reads the compliance ledger.
type HistoryService interface {
	Query(ctx context.Context, scope ledger.Scope, filter domain.LedgerFilter, page domain.Page) ([]domain.ComplianceEvent, error)
}

// BuyerHandler wires the buyer-facing endpoints.
type BuyerHandler struct {
	accounts    AccountService
	settlements StartService
	reconciler  ReconcileService
	history     HistoryService
	tokens      TokenIssuer
	logger      *slog.Logger
}

func NewBuyerHandler(accounts AccountService, settlements StartService, reconciler ReconcileService, history HistoryService, tokens TokenIssuer, logger *slog.Logger) *BuyerHandler {
	return &BuyerHandler{
		accounts:    accounts,
		settlements: settlements,
		reconciler:  reconciler,
		history:     history,
		tokens:      tokens,
		logger:      logger,
	}
}

// RegisterPublic mounts the endpoints reachable without a buyer token.
func (h *BuyerHandler) RegisterPublic(r chi.Router) {
	r.Post("/auth/token", h.HandleToken)
}

// Register mounts the authenticated buyer endpoints.
func (h *BuyerHandler) Register(r chi.Router) {
	r.Post("/verification/start", h.HandleStart)
	r.Post("/verification/webhook-complete", h.HandleWebhookComplete)
	r.Post("/verification/webhook-retry", h.HandleWebhookRetry)
	r.Get("/me", h.HandleMe)
	r.Get("/me/history", h.HandleHistory)
	r.Delete("/me", h.HandleErase)
}

type tokenRequest struct {
	Email string `json:"email"`
}

// HandleToken resolves (or creates) the buyer behind an email and mints an
// access token for it.
func (h *BuyerHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[tokenRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}

	buyer, err := h.accounts.FindOrCreate(ctx, req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	accessToken, err := h.tokens.GenerateAccessToken(buyer.ID, accessTokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "token mint failed", "buyer_id", buyer.ID, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "token mint failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   int(accessTokenTTL.Seconds()),
		"reference_id": buyer.ReferenceID,
	})
}

type addressPayload struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

func (a addressPayload) toDomain() domain.Address {
	return domain.Address{
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
	}
}

type startRequest struct {
	ShippingAddress addressPayload `json:"shipping_address"`
}

// HandleStart opens a verification attempt for the authenticated buyer.
func (h *BuyerHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buyerID := requestcontext.BuyerID(ctx)

	req, ok := httputil.Decode[startRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.settlements.Start(ctx, buyerID, req.ShippingAddress.toDomain())
	if err != nil {
		h.logger.ErrorContext(ctx, "verification start failed",
			"request_id", requestcontext.RequestID(ctx),
			"buyer_id", buyerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type webhookCompleteRequest struct {
	MaxWaitSeconds int `json:"max_wait_seconds"`
}

// HandleWebhookComplete waits, bounded, for the buyer's attempt to resolve.
func (h *BuyerHandler) HandleWebhookComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buyerID := requestcontext.BuyerID(ctx)

	req, ok := httputil.Decode[webhookCompleteRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}
	maxWait := time.Duration(req.MaxWaitSeconds) * time.Second
	if maxWait <= 0 || maxWait > maxResolutionWait {
		maxWait = maxResolutionWait
	}

	resolution, err := h.reconciler.WaitForResolution(ctx, buyerID, maxWait)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	message := "verification is still in progress"
	if resolution.Resolved {
		message = "verification resolved"
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"payment_status":      resolution.PaymentStatus,
		"verification_status": resolution.VerificationStatus,
		"message":             message,
	})
}

// HandleWebhookRetry re-drives the buyer's last known decision.
func (h *BuyerHandler) HandleWebhookRetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buyerID := requestcontext.BuyerID(ctx)

	outcome, err := h.reconciler.Retry(ctx, buyerID)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeDuplicate) {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"retry_result":   outcome.Result,
		"should_retry":   outcome.ShouldRetry,
		"retry_after_ms": outcome.RetryAfter.Milliseconds(),
	})
}

// HandleMe returns the buyer's own verification standing.
func (h *BuyerHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buyer, err := h.accounts.Get(ctx, requestcontext.BuyerID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"reference_id":            buyer.ReferenceID,
		"payment_status":          buyer.PaymentStatus,
		"verification_status":     buyer.VerificationStatus,
		"verification_expires_at": buyer.VerificationExpiresAt,
	})
}

// HandleHistory lists the buyer's own compliance events.
func (h *BuyerHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buyer, err := h.accounts.Get(ctx, requestcontext.BuyerID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filter, page, err := historyParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.history.Query(ctx, ledger.Scope{BuyerReferenceID: buyer.ReferenceID}, filter, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": eventSummaries(events),
	})
}

// HandleErase runs the CCPA-style erasure: account PII is nulled while the
// reference id and every ledger row survive.
func (h *BuyerHandler) HandleErase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buyerID := requestcontext.BuyerID(ctx)

	if err := h.accounts.Erase(ctx, buyerID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "buyer erasure completed",
		"request_id", requestcontext.RequestID(ctx),
		"buyer_id", buyerID,
	)
	w.WriteHeader(http.StatusNoContent)
}
