package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"agegate/internal/dealer"
	"agegate/internal/domain"
	"agegate/internal/ledger"
	"agegate/internal/settlement"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/httputil"
	"agegate/pkg/requestcontext"
)

// DealerAuthenticator resolves API keys to dealer accounts.
type DealerAuthenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*domain.DealerAccount, error)
}

// DealerAdmin is the provisioning surface behind the operator token.
type DealerAdmin interface {
	Provision(ctx context.Context, name string, credits int) (*dealer.ProvisionResult, error)
	AddCredits(ctx context.Context, dealerID id.DealerID, credits int) (*domain.DealerAccount, error)
}

// VerifyService answers dealer cross-party checks.
type VerifyService interface {
	Verify(ctx context.Context, dealerAcct *domain.DealerAccount, req settlement.VerifyRequest) (settlement.VerifyResult, error)
}

// DealerHandler wires the dealer-facing endpoints.
type DealerHandler struct {
	verifier VerifyService
	history  HistoryService
	admin    DealerAdmin
	logger   *slog.Logger
}

func NewDealerHandler(verifier VerifyService, history HistoryService, admin DealerAdmin, logger *slog.Logger) *DealerHandler {
	return &DealerHandler{
		verifier: verifier,
		history:  history,
		admin:    admin,
		logger:   logger,
	}
}

// Register mounts the API-key-protected dealer endpoints.
func (h *DealerHandler) Register(r chi.Router) {
	r.Post("/dealer/verify", h.HandleVerify)
	r.Get("/dealer/history", h.HandleHistory)
}

// RegisterAdmin mounts the operator-token-protected provisioning endpoints.
func (h *DealerHandler) RegisterAdmin(r chi.Router) {
	r.Post("/dealer/accounts", h.HandleProvision)
	r.Post("/dealer/accounts/{dealerID}/credits", h.HandleAddCredits)
}

type verifyRequest struct {
	BuyerEmail      string         `json:"buyer_email"`
	ShippingAddress addressPayload `json:"shipping_address"`
	ComplianceAck   bool           `json:"compliance_ack"`
}

// HandleVerify runs a quota-metered verification check. The response never
// carries buyer PII, on success or on any error path.
func (h *DealerHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	dealerAcct := dealerFrom(ctx)

	req, ok := httputil.Decode[verifyRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.verifier.Verify(ctx, dealerAcct, settlement.VerifyRequest{
		BuyerEmail:      req.BuyerEmail,
		ShippingAddress: req.ShippingAddress.toDomain(),
		ComplianceAck:   req.ComplianceAck,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "dealer verify rejected",
			"request_id", requestcontext.RequestID(ctx),
			"dealer_id", dealerAcct.ID,
			"error_code", dErrors.CodeOf(err),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "dealer verify answered",
		"request_id", requestcontext.RequestID(ctx),
		"dealer_id", dealerAcct.ID,
		"compliance_event_id", result.ComplianceEventID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleHistory lists the compliance events recorded for this dealer.
func (h *DealerHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dealerAcct := dealerFrom(ctx)

	filter, page, err := historyParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.history.Query(ctx, ledger.Scope{DealerReferenceID: dealerAcct.ReferenceID}, filter, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": eventSummaries(events),
	})
}

type provisionRequest struct {
	Name    string `json:"name"`
	Credits int    `json:"credits"`
}

// HandleProvision creates a dealer account. The plaintext API key appears in
// this response and nowhere else, ever.
func (h *DealerHandler) HandleProvision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[provisionRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}
	result, err := h.admin.Provision(ctx, req.Name, req.Credits)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"dealer_id":    result.Dealer.ID,
		"reference_id": result.Dealer.ReferenceID,
		"api_key":      result.APIKey,
		"credits":      result.Dealer.CreditsPurchased,
	})
}

type addCreditsRequest struct {
	Credits int `json:"credits"`
}

// HandleAddCredits tops up a dealer's prepaid balance.
func (h *DealerHandler) HandleAddCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dealerID, err := id.ParseDealerID(chi.URLParam(r, "dealerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[addCreditsRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}
	dealerAcct, err := h.admin.AddCredits(ctx, dealerID, req.Credits)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"dealer_id":         dealerAcct.ID,
		"credits_purchased": dealerAcct.CreditsPurchased,
		"credits_used":      dealerAcct.CreditsUsed,
	})
}
