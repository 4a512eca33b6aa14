// Package auth holds the bearer-token middleware guarding buyer endpoints.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/httputil"
	"agegate/pkg/requestcontext"
)

// TokenValidator resolves a bearer token to the buyer it names.
type TokenValidator interface {
	ValidateToken(tokenString string) (id.BuyerID, error)
}

// RequireBuyer rejects requests without a valid buyer token and stores the
// buyer id in the request context for handlers downstream.
func RequireBuyer(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			buyerID, err := validator.ValidateToken(token)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "rejected buyer token",
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithBuyerID(ctx, buyerID)))
		})
	}
}
