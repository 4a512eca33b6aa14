package httptransport

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"agegate/internal/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/httputil"
	"agegate/pkg/requestcontext"
)

type dealerContextKey struct{}

// requestID assigns a correlation id to every request.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireDealer authenticates the X-API-Key header against the dealer
// credential hash and stores the dealer account in the context.
func requireDealer(dealers DealerAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing api key"))
				return
			}

			dealerAcct, err := dealers.Authenticate(ctx, apiKey)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "rejected dealer api key",
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			ctx = requestcontext.WithDealerID(ctx, dealerAcct.ID)
			ctx = context.WithValue(ctx, dealerContextKey{}, dealerAcct)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// dealerFrom returns the authenticated dealer placed by requireDealer.
func dealerFrom(ctx context.Context) *domain.DealerAccount {
	dealerAcct, _ := ctx.Value(dealerContextKey{}).(*domain.DealerAccount)
	return dealerAcct
}

// requireAdmin guards provisioning endpoints with the static operator token.
// An empty configured token disables the endpoints entirely.
func requireAdmin(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminToken == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "provisioning is disabled"))
				return
			}
			provided := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(adminToken)) != 1 {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
