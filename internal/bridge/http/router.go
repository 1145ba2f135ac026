package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborline/avvance-bridge/internal/bridge/service"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/pkg/httpx"
	"github.com/harborline/avvance-bridge/pkg/polltoken"
	"github.com/harborline/avvance-bridge/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Financing   *service.FinancingService
	PreApproval *service.PreApprovalService
	Reconciler  *service.ReconcilerService
	PollTokens  *polltoken.Signer

	// Webhook deliveries authenticate with one credential pair, operator
	// endpoints with another.
	WebhookUsername  string
	WebhookPassword  string
	OperatorUsername string
	OperatorPassword string
}

func NewRouter(st store.Store, logger *slog.Logger, buildVersion string) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerWebhook()
	r.registerFinancing()
	r.registerPreApproval()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerWebhook() {
	h := &WebhookHandler{Reconciler: r.Reconciler, Logger: r.logger}

	r.Mux.Handle("POST /v1/webhooks/avvance",
		httpx.Chain(h,
			httpx.BasicAuth("avvance-bridge", r.WebhookUsername, r.WebhookPassword),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerFinancing() {
	create := &CreateFinancingHandler{Financing: r.Financing, PollTokens: r.PollTokens}
	status := &FinancingStatusHandler{Financing: r.Financing, PollTokens: r.PollTokens}

	r.Mux.Handle("POST /v1/financing",
		httpx.Chain(create, httpx.RateLimitByIP(httpx.ModerateLimit)),
	)

	// Status polls come from a redirect landing page that may refresh.
	r.Mux.Handle("GET /v1/financing/status",
		httpx.Chain(status, httpx.RateLimitByIP(httpx.LenientLimit)),
	)

	pricing := &PriceBreakdownHandler{Financing: r.Financing}
	r.Mux.Handle("GET /v1/financing/price-breakdown",
		httpx.Chain(pricing, httpx.RateLimitByIP(httpx.LenientLimit)),
	)
}

func (r *Router) registerPreApproval() {
	h := &PreApprovalHandler{PreApproval: r.PreApproval}

	r.Mux.Handle("POST /v1/preapproval",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.RateLimitByIP(httpx.ModerateLimit)),
	)
	r.Mux.Handle("GET /v1/preapproval/latest",
		httpx.Chain(http.HandlerFunc(h.HandleLatest),
			httpx.RateLimitByIP(httpx.LenientLimit)),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{Financing: r.Financing}

	auth := httpx.BasicAuth("avvance-bridge-admin", r.OperatorUsername, r.OperatorPassword)
	r.Mux.Handle("POST /v1/financing/{ref}/void",
		httpx.Chain(http.HandlerFunc(h.HandleVoid), auth, httpx.RateLimitByIP(httpx.StrictLimit)),
	)
	r.Mux.Handle("POST /v1/financing/{ref}/refund",
		httpx.Chain(http.HandlerFunc(h.HandleRefund), auth, httpx.RateLimitByIP(httpx.StrictLimit)),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.store))
	r.Mux.Handle("GET /metrics", promhttp.Handler())
}
