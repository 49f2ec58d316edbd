package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/metrics"
	"github.com/confirming/marketplace/internal/repository/memory"
	"github.com/confirming/marketplace/pkg/rut"
)

var (
	providerRut = rut.MustParse("76086428-5")
	payerRut    = rut.MustParse("11111111-1")

	provider = domain.Actor{Subject: "proveedora", Role: domain.RoleProvider, Rut: providerRut}
	payer    = domain.Actor{Subject: "retail", Role: domain.RolePayer, Rut: payerRut}
	stranger = domain.Actor{Subject: "otro", Role: domain.RoleProvider, Rut: rut.MustParse("12345678-5")}
)

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(t domain.EventType) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// env wires every service over one in-memory store
type env struct {
	store       *memory.Store
	clock       *FixedClock
	events      *recordingPublisher
	metrics     *metrics.Metrics
	ledger      *LedgerService
	registry    *RegistryService
	auction     *AuctionService
	marketplace *MarketplaceService
	ingestion   *IngestionService
}

func newEnv() *env {
	store := memory.New()
	clock := &FixedClock{At: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	events := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	logger := zap.NewNop()

	registry := NewRegistryService(store, store.Funds(), store.PayerTerms(), events, clock, m, logger)

	return &env{
		store:    store,
		clock:    clock,
		events:   events,
		metrics:  m,
		ledger:   NewLedgerService(store, store.Invoices(), events, clock, m, logger),
		registry: registry,
		auction: NewAuctionService(store, store.Invoices(), store.Offers(), registry,
			NewLocalSubmissionLock(), events, clock, m, logger),
		marketplace: NewMarketplaceService(store.Invoices(), store.Offers(), store.Funds(),
			store.PayerTerms(), store.Parties(), registry, clock, logger),
		ingestion: NewIngestionService(store, store.Invoices(), store.Parties(), store.DocumentTypes(), clock, logger),
	}
}

func ingestRequest(folio int64) *domain.IngestInvoiceRequest {
	return &domain.IngestInvoiceRequest{
		IssuerRut:    "76.086.428-5",
		IssuerName:   "Proveedora Andes SpA",
		ReceiverRut:  "11.111.111-1",
		ReceiverName: "Retail Sur S.A.",
		DocType:      "33",
		Folio:        folio,
		Amount:       decimal.NewFromInt(1_000_000),
		IssueDate:    "2026-10-01",
		DueDate:      "2026-11-30",
	}
}

func (e *env) loadedInvoice(t *testing.T, folio int64) *domain.Invoice {
	t.Helper()
	inv, err := e.ingestion.IngestInvoice(context.Background(), ingestRequest(folio))
	require.NoError(t, err)
	return inv
}

func (e *env) confirmedInvoice(t *testing.T, folio int64) *domain.Invoice {
	t.Helper()
	ctx := context.Background()
	inv := e.loadedInvoice(t, folio)
	_, err := e.ledger.RequestConfirmation(ctx, provider, inv.ID)
	require.NoError(t, err)
	inv, err = e.ledger.Confirm(ctx, payer, inv.ID)
	require.NoError(t, err)
	return inv
}

func (e *env) openInvoice(t *testing.T, folio int64) *domain.Invoice {
	t.Helper()
	inv := e.confirmedInvoice(t, folio)
	inv, err := e.ledger.RequestFinancing(context.Background(), provider, inv.ID)
	require.NoError(t, err)
	return inv
}

// admittedFund creates a fund whose admin published rate today and returns the admin
func (e *env) admittedFund(t *testing.T, name, rate string) *domain.Financier {
	t.Helper()
	ctx := context.Background()
	created, err := e.registry.CreateFund(ctx, &domain.CreateFundRequest{Name: name, AdminName: name + " admin"})
	require.NoError(t, err)
	_, err = e.registry.PublishDailyCost(ctx, created.Admin.ID, created.Fund.ID, decimal.RequireFromString(rate))
	require.NoError(t, err)
	return created.Admin
}

func spread(s string) domain.OfferTerms {
	return domain.OfferTerms{MonthlySpreadRate: decimal.RequireFromString(s), FlatFee: decimal.Zero}
}

func days(n int) *int { return &n }

func financierActor(f *domain.Financier) domain.Actor {
	id, fund := f.ID, f.FundID
	return domain.Actor{Subject: f.Name, Role: domain.RoleFinancier, FinancierID: &id, FundID: &fund}
}

func newID() uuid.UUID { return uuid.New() }
