package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/confirming/marketplace/internal/api/handlers"
	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/metrics"
	"github.com/confirming/marketplace/internal/repository/memory"
	"github.com/confirming/marketplace/internal/service"
	"github.com/confirming/marketplace/pkg/rut"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...domain.Event) error { return nil }

type RouterSuite struct {
	suite.Suite
	server *httptest.Server
	auth   *service.AuthService

	backOffice string
	provider   string
	payer      string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	store := memory.New()
	clock := &service.FixedClock{At: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	logger := zap.NewNop()
	events := nopPublisher{}

	registry := service.NewRegistryService(store, store.Funds(), store.PayerTerms(), events, clock, m, logger)
	s.auth = service.NewAuthService(store.Funds(), "router-secret", time.Hour, clock)

	svc := Services{
		Ledger:    service.NewLedgerService(store, store.Invoices(), events, clock, m, logger),
		Ingestion: service.NewIngestionService(store, store.Invoices(), store.Parties(), store.DocumentTypes(), clock, logger),
		Registry:  registry,
		Auction: service.NewAuctionService(store, store.Invoices(), store.Offers(), registry,
			service.NewLocalSubmissionLock(), events, clock, m, logger),
		Marketplace: service.NewMarketplaceService(store.Invoices(), store.Offers(), store.Funds(),
			store.PayerTerms(), store.Parties(), registry, clock, logger),
		Auth: s.auth,
	}

	s.server = httptest.NewServer(NewRouter(svc, Options{
		Logger:   logger,
		Metrics:  m,
		Gatherer: reg,
		ReadyChecks: map[string]handlers.Check{
			"store": func(context.Context) error { return nil },
		},
	}))

	s.backOffice = s.token(domain.Actor{Subject: "ops", Role: domain.RoleBackOffice})
	s.provider = s.token(domain.Actor{Subject: "proveedora", Role: domain.RoleProvider, Rut: rut.MustParse("76086428-5")})
	s.payer = s.token(domain.Actor{Subject: "retail", Role: domain.RolePayer, Rut: rut.MustParse("11111111-1")})
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

func (s *RouterSuite) token(actor domain.Actor) string {
	resp, err := s.auth.GenerateToken(actor)
	s.Require().NoError(err)
	return resp.AccessToken
}

// do sends a JSON request and decodes the response into out when it is not nil
func (s *RouterSuite) do(method, path, token string, body, out interface{}) int {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *RouterSuite) ingest(folio int64) domain.Invoice {
	var inv domain.Invoice
	status := s.do(http.MethodPost, "/api/v1/admin/invoices", s.backOffice, map[string]interface{}{
		"issuer_rut":    "76.086.428-5",
		"issuer_name":   "Proveedora Andes SpA",
		"receiver_rut":  "11.111.111-1",
		"receiver_name": "Retail Sur S.A.",
		"doc_type":      "33",
		"folio":         folio,
		"amount":        "1000000",
		"issue_date":    "2026-10-01",
		"due_date":      "2026-11-30",
	}, &inv)
	s.Require().Equal(http.StatusCreated, status)
	return inv
}

func (s *RouterSuite) TestAuctionFlow() {
	inv := s.ingest(100)
	path := "/api/v1/invoices/" + inv.ID.String()

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, path+"/request-confirmation", s.provider, nil, nil))
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, path+"/confirm", s.payer, nil, nil))

	var financing domain.Invoice
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, path+"/request-financing", s.provider, nil, &financing))
	s.Equal(domain.InvoiceStateConfirmingRequested, financing.State)

	var created domain.CreateFundResponse
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/v1/admin/funds", s.backOffice,
		domain.CreateFundRequest{Name: "Fondo Norte", AdminName: "Ana"}, &created))

	var issued domain.TokenResponse
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/admin/tokens", s.backOffice,
		domain.TokenRequest{Subject: "ana", Role: domain.RoleFinancier, FinancierID: &created.Admin.ID}, &issued))
	financier := issued.AccessToken

	offerBody := map[string]interface{}{
		"monthly_spread_rate": "2.0",
		"flat_fee":            "5000",
		"anticipation_days":   15,
	}

	s.Run("offers need today's cost of funds", func() {
		var body handlers.ErrorResponse
		status := s.do(http.MethodPut, path+"/offer", financier, offerBody, &body)
		s.Equal(http.StatusForbidden, status)
		s.Equal("not_admitted_today", body.Code)
		s.True(body.PublishRequired)
	})

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/funds/"+created.Fund.ID.String()+"/cost-of-funds",
		financier, map[string]string{"monthly_rate": "1.0"}, nil))

	var offer domain.Offer
	s.Require().Equal(http.StatusOK, s.do(http.MethodPut, path+"/offer", financier, offerBody, &offer))
	s.Equal("980000", offer.CessionPrice.String())
	s.Equal(domain.OfferStateSubmitted, offer.State)

	var open struct {
		Invoices []domain.OpenInvoice `json:"invoices"`
	}
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/marketplace/open", financier, nil, &open))
	s.Require().Len(open.Invoices, 1)
	s.Require().NotNil(open.Invoices[0].MyOffer)
	s.Equal(offer.ID, open.Invoices[0].MyOffer.ID)

	var result domain.AdjudicationResult
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, path+"/adjudicate", s.provider,
		domain.AdjudicateRequest{OfferID: offer.ID}, &result))
	s.Equal(domain.InvoiceStateAdjudicated, result.Invoice.State)
	s.Equal(domain.OfferStateAwarded, result.Winner.State)

	s.Run("second adjudication conflicts", func() {
		var body handlers.ErrorResponse
		status := s.do(http.MethodPost, path+"/adjudicate", s.provider, domain.AdjudicateRequest{OfferID: offer.ID}, &body)
		s.Equal(http.StatusConflict, status)
		s.Equal("already_adjudicated", body.Code)
	})

	s.Run("payment is recorded", func() {
		var paid domain.Invoice
		status := s.do(http.MethodPost, path+"/payment", s.payer, domain.RecordPaymentRequest{PaidOn: "2026-10-17"}, &paid)
		s.Equal(http.StatusOK, status)
		s.Require().NotNil(paid.RealPaymentDate)
	})
}

func (s *RouterSuite) TestAccessControl() {
	inv := s.ingest(200)
	path := "/api/v1/invoices/" + inv.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"no token", http.MethodGet, path, "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, path, "not-a-jwt", http.StatusUnauthorized},
		{"payer on provider command", http.MethodPost, path + "/request-confirmation", s.payer, http.StatusForbidden},
		{"provider on payer command", http.MethodPost, path + "/confirm", s.provider, http.StatusForbidden},
		{"provider on back office", http.MethodPost, "/api/v1/admin/funds", s.provider, http.StatusForbidden},
		{"provider on marketplace", http.MethodGet, "/api/v1/marketplace/open", s.provider, http.StatusForbidden},
		{"invalid invoice id", http.MethodGet, "/api/v1/invoices/not-a-uuid", s.provider, http.StatusBadRequest},
		{"unknown invoice", http.MethodGet, "/api/v1/invoices/" + uuid.NewString(), s.provider, http.StatusNotFound},
		{"illegal transition", http.MethodPost, path + "/request-financing", s.provider, http.StatusConflict},
		{"provider reads own offers", http.MethodGet, path + "/offers", s.provider, http.StatusOK},
		{"back office reads offers", http.MethodGet, path + "/offers", s.backOffice, http.StatusOK},
		{"payer on offers", http.MethodGet, path + "/offers", s.payer, http.StatusForbidden},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.status, s.do(tt.method, tt.path, tt.token, nil, nil))
		})
	}
}

func (s *RouterSuite) TestRequestValidation() {
	s.Run("missing fields", func() {
		var body handlers.ErrorResponse
		status := s.do(http.MethodPost, "/api/v1/admin/funds", s.backOffice, map[string]string{"name": "Fondo"}, &body)
		s.Equal(http.StatusUnprocessableEntity, status)
		s.Equal("validation_failed", body.Code)
	})

	s.Run("duplicate invoice", func() {
		s.ingest(300)
		var body handlers.ErrorResponse
		status := s.do(http.MethodPost, "/api/v1/admin/invoices", s.backOffice, map[string]interface{}{
			"issuer_rut":    "76086428-5",
			"issuer_name":   "Proveedora Andes SpA",
			"receiver_rut":  "11111111-1",
			"receiver_name": "Retail Sur S.A.",
			"doc_type":      "33",
			"folio":         300,
			"amount":        "1000000",
			"issue_date":    "2026-10-01",
			"due_date":      "2026-11-30",
		}, &body)
		s.Equal(http.StatusConflict, status)
		s.Equal("duplicate_invoice", body.Code)
	})

	s.Run("invalid payer rut", func() {
		var body handlers.ErrorResponse
		status := s.do(http.MethodPost, "/api/v1/admin/tokens", s.backOffice,
			domain.TokenRequest{Subject: "x", Role: domain.RolePayer, Rut: "11111111-2"}, &body)
		s.Equal(http.StatusUnprocessableEntity, status)
		s.Equal("invalid_rut", body.Code)
	})

	s.Run("due date format", func() {
		inv := s.ingest(301)
		status := s.do(http.MethodPatch, "/api/v1/invoices/"+inv.ID.String()+"/due-date", s.payer,
			map[string]string{"due_date": "30/11/2026"}, nil)
		s.Equal(http.StatusUnprocessableEntity, status)
	})
}

func (s *RouterSuite) TestOperationalEndpoints() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/health", "", nil, nil))

	var ready handlers.ReadyResponse
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/ready", "", nil, &ready))
	s.Equal("ready", ready.Status)

	var types domain.DocumentTypeListResponse
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/document-types", s.payer, nil, &types))
	s.Len(types.DocumentTypes, 3)

	resp, err := http.Get(s.server.URL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Contains(string(raw), "confirming_http_requests_total")
}

func TestReadyReportsFailedChecks(t *testing.T) {
	handler := handlers.Ready(map[string]handlers.Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, time.Second)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var body handlers.ReadyResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusServiceUnavailable || body.Failed["redis"] != "connection refused" || len(body.Failed) != 1 {
		t.Fatalf("unexpected readiness: %d %+v", rec.Code, body)
	}
}
