package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agegate/internal/platform/metrics"
	"agegate/pkg/platform/middleware/auth"
	"agegate/pkg/platform/middleware/requesttime"
)

// RouterConfig collects the handlers and guards the router mounts. All fields
// are required except AdminToken, which disables provisioning when empty.
type RouterConfig struct {
	Buyers     *BuyerHandler
	Dealers    *DealerHandler
	Webhooks   *WebhookHandler
	DealerAuth DealerAuthenticator
	Tokens     auth.TokenValidator
	AdminToken string
	Logger     *slog.Logger
	// HTTPMetrics is optional; nil disables request instrumentation.
	HTTPMetrics *metrics.HTTP
}

// NewRouter assembles the HTTP surface: unauthenticated token mint and
// provider callbacks, bearer-token buyer routes, API-key dealer routes, and
// operator-token provisioning.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestID)
	r.Use(requesttime.Middleware)
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	cfg.Buyers.RegisterPublic(r)
	cfg.Webhooks.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireBuyer(cfg.Tokens, cfg.Logger))
		cfg.Buyers.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireDealer(cfg.DealerAuth, cfg.Logger))
		cfg.Dealers.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin(cfg.AdminToken))
		cfg.Dealers.RegisterAdmin(r)
	})

	return r
}
