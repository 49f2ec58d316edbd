package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/confirming/marketplace/internal/api/handlers"
	"github.com/confirming/marketplace/internal/api/middleware"
	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/metrics"
	"github.com/confirming/marketplace/internal/service"
)

// Services groups everything the router dispatches to
type Services struct {
	Ledger      *service.LedgerService
	Ingestion   *service.IngestionService
	Registry    *service.RegistryService
	Auction     *service.AuctionService
	Marketplace *service.MarketplaceService
	Auth        *service.AuthService
}

// Options configures the ambient parts of the router
type Options struct {
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	ReadyChecks  map[string]handlers.Check
	ReadyTimeout time.Duration
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	readyTimeout := opts.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 2 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.CORS)

	// Health checks (no auth required)
	r.Get("/health", handlers.Health)
	r.Get("/ready", handlers.Ready(opts.ReadyChecks, readyTimeout))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	invoiceHandler := handlers.NewInvoiceHandler(svc.Ledger, svc.Ingestion)
	auctionHandler := handlers.NewAuctionHandler(svc.Auction, svc.Marketplace)
	fundHandler := handlers.NewFundHandler(svc.Registry)
	marketplaceHandler := handlers.NewMarketplaceHandler(svc.Marketplace)
	payerTermsHandler := handlers.NewPayerTermsHandler(svc.Registry, svc.Marketplace)
	docTypeHandler := handlers.NewDocumentTypeHandler(svc.Ingestion)
	authHandler := handlers.NewAuthHandler(svc.Auth)

	authMiddleware := middleware.NewAuthMiddleware(svc.Auth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/document-types", docTypeHandler.List)

		// Back office
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleBackOffice))

			r.Post("/tokens", authHandler.Token)
			r.Post("/invoices", invoiceHandler.Ingest)
			r.Get("/marketplace", marketplaceHandler.General)

			r.Route("/funds", func(r chi.Router) {
				r.Post("/", fundHandler.Create)
				r.Get("/", fundHandler.List)
				r.Post("/{fundID}/deactivate", fundHandler.Deactivate)
				r.Post("/{fundID}/financiers", fundHandler.RegisterInFund)
			})
		})

		r.With(middleware.RequireRole(domain.RoleProvider)).Get("/provider/invoices", invoiceHandler.ProviderInvoices)
		r.With(middleware.RequireRole(domain.RolePayer)).Get("/payer/invoices", invoiceHandler.PayerInvoices)

		r.Route("/invoices/{invoiceID}", func(r chi.Router) {
			r.Get("/", invoiceHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleProvider))
				r.Post("/request-confirmation", invoiceHandler.RequestConfirmation)
				r.Post("/request-financing", invoiceHandler.RequestFinancing)
				r.Post("/reject-due-date", invoiceHandler.RejectDueDate)
				r.Post("/adjudicate", auctionHandler.Adjudicate)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RolePayer))
				r.Post("/confirm", invoiceHandler.Confirm)
				r.Post("/reject", invoiceHandler.Reject)
				r.Patch("/due-date", invoiceHandler.EditDueDate)
				r.Post("/payment", invoiceHandler.RecordPayment)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleFinancier))
				r.Put("/offer", auctionHandler.SubmitOffer)
				r.Get("/offer", auctionHandler.MyOffer)
			})

			r.With(middleware.RequireRole(domain.RoleProvider, domain.RoleBackOffice)).Get("/offers", auctionHandler.Offers)
		})

		// Financier workspace
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleFinancier))

			r.Route("/marketplace", func(r chi.Router) {
				r.Get("/open", marketplaceHandler.Open)
				r.Get("/awarded/mine", marketplaceHandler.MyAwarded)
				r.Get("/awarded/others", marketplaceHandler.OthersAwarded)
				r.Get("/dashboard", marketplaceHandler.Dashboard)
			})

			r.Route("/funds/{fundID}", func(r chi.Router) {
				r.Post("/cost-of-funds", fundHandler.PublishCostOfFunds)
				r.Get("/financiers", fundHandler.ListFinanciers)
				r.Post("/financiers", fundHandler.RegisterFinancier)
				r.Post("/financiers/{financierID}/toggle-admin", fundHandler.ToggleAdmin)
			})

			r.Get("/financiers/me/admission", fundHandler.Admission)
			r.Get("/payer-terms", payerTermsHandler.List)
			r.Put("/payer-terms", payerTermsHandler.Set)
			r.Get("/payers/{rut}/kpis", payerTermsHandler.KPIs)
		})
	})

	return r
}
