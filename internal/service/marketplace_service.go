package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/pkg/rut"
)

// MarketplaceService builds the read-side views of the auction
type MarketplaceService struct {
	invoices  InvoiceStore
	offers    OfferStore
	funds     FundStore
	terms     PayerTermsStore
	parties   PartyStore
	admission AdmissionChecker
	clock     Clock
	logger    *zap.Logger
}

// NewMarketplaceService creates a new marketplace service
func NewMarketplaceService(
	invoices InvoiceStore,
	offers OfferStore,
	funds FundStore,
	terms PayerTermsStore,
	parties PartyStore,
	admission AdmissionChecker,
	clock Clock,
	logger *zap.Logger,
) *MarketplaceService {
	return &MarketplaceService{
		invoices:  invoices,
		offers:    offers,
		funds:     funds,
		terms:     terms,
		parties:   parties,
		admission: admission,
		clock:     clock,
		logger:    logger,
	}
}

// OpenInvoices lists the invoices still accepting offers, each with the viewer's own offer
func (s *MarketplaceService) OpenInvoices(ctx context.Context, financierID uuid.UUID) ([]domain.OpenInvoice, error) {
	f, err := s.admission.RequireAdmission(ctx, financierID)
	if err != nil {
		return nil, err
	}
	return s.openInvoices(ctx, f)
}

func (s *MarketplaceService) openInvoices(ctx context.Context, f *domain.Financier) ([]domain.OpenInvoice, error) {
	invoices, err := s.invoices.ListByState(ctx, domain.InvoiceStateConfirmingRequested)
	if err != nil {
		return nil, err
	}

	mine, err := s.offers.ListByFinancier(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	myOffers := make(map[uuid.UUID]*domain.Offer, len(mine))
	for _, o := range mine {
		myOffers[o.InvoiceID] = o
	}

	standing, err := s.terms.ListByFinancier(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	termsByPayer := make(map[rut.RUT]*domain.PayerTerms, len(standing))
	for _, t := range standing {
		termsByPayer[t.PayerRut] = t
	}

	today := s.clock.Today()
	open := make([]domain.OpenInvoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.AwardedFinancierID != nil {
			continue
		}
		row := domain.OpenInvoice{
			Invoice:              inv,
			LiveAnticipationDays: inv.AnticipationDays(today),
			MyOffer:              myOffers[inv.ID],
		}
		if t, ok := termsByPayer[inv.ReceiverRut]; ok {
			quote := indicativeQuote(inv, f, t, row.LiveAnticipationDays)
			row.IndicativeQuote = &quote
		}
		open = append(open, row)
	}
	return open, nil
}

// indicativeQuote prices an invoice with the financier's standing terms for its payer.
// Terms without anticipation days use the days left until the due date.
func indicativeQuote(inv *domain.Invoice, f *domain.Financier, t *domain.PayerTerms, liveDays int) domain.Quote {
	days := liveDays
	if t.AnticipationDays > 0 {
		days = t.AnticipationDays
	}
	return domain.Price(domain.PricingInput{
		Amount:             inv.Amount,
		MonthlySpreadRate:  t.MonthlySpreadRate,
		MonthlyCostOfFunds: f.MonthlyCostOfFunds,
		FlatFee:            t.FlatFee,
		AnticipationDays:   days,
	})
}

// MyAwarded lists the invoices the financier won, with the winning offer
func (s *MarketplaceService) MyAwarded(ctx context.Context, financierID uuid.UUID) ([]domain.AwardedInvoice, error) {
	f, err := s.admission.RequireAdmission(ctx, financierID)
	if err != nil {
		return nil, err
	}
	return s.myAwarded(ctx, f)
}

func (s *MarketplaceService) myAwarded(ctx context.Context, f *domain.Financier) ([]domain.AwardedInvoice, error) {
	invoices, err := s.invoices.ListAwardedTo(ctx, f.ID)
	if err != nil {
		return nil, err
	}

	mine, err := s.offers.ListByFinancier(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	won := make(map[uuid.UUID]*domain.Offer)
	for _, o := range mine {
		if o.State == domain.OfferStateAwarded {
			won[o.InvoiceID] = o
		}
	}

	awarded := make([]domain.AwardedInvoice, 0, len(invoices))
	for _, inv := range invoices {
		awarded = append(awarded, domain.AwardedInvoice{Invoice: inv, Offer: won[inv.ID]})
	}
	return awarded, nil
}

// OthersAwarded lists invoices won by other financiers, without any offer terms
func (s *MarketplaceService) OthersAwarded(ctx context.Context, financierID uuid.UUID) ([]domain.AwardedInvoiceSummary, error) {
	f, err := s.admission.RequireAdmission(ctx, financierID)
	if err != nil {
		return nil, err
	}
	return s.othersAwarded(ctx, f)
}

func (s *MarketplaceService) othersAwarded(ctx context.Context, f *domain.Financier) ([]domain.AwardedInvoiceSummary, error) {
	invoices, err := s.invoices.ListAwardedExcluding(ctx, f.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.AwardedInvoiceSummary, 0, len(invoices))
	for _, inv := range invoices {
		summaries = append(summaries, domain.SummarizeAward(inv))
	}
	return summaries, nil
}

// Dashboard fetches the three marketplace buckets concurrently
func (s *MarketplaceService) Dashboard(ctx context.Context, financierID uuid.UUID) (*domain.FinancierDashboard, error) {
	f, err := s.admission.RequireAdmission(ctx, financierID)
	if err != nil {
		return nil, err
	}

	dashboard := &domain.FinancierDashboard{
		Admission: *admissionOf(f, s.clock.Today()),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		open, err := s.openInvoices(ctx, f)
		dashboard.Open = open
		return err
	})
	g.Go(func() error {
		mine, err := s.myAwarded(ctx, f)
		dashboard.MyAwarded = mine
		return err
	})
	g.Go(func() error {
		others, err := s.othersAwarded(ctx, f)
		dashboard.OthersAwarded = others
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dashboard, nil
}

// OffersForInvoice lists every offer on the provider's invoice, cheapest spread first.
// The back office may read the offers of any invoice.
func (s *MarketplaceService) OffersForInvoice(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID) ([]domain.OfferView, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice %s", domain.ErrNotFound, invoiceID)
	}
	if actor.Role != domain.RoleBackOffice {
		if err := checkOwner(actor, inv, ownedByProvider); err != nil {
			return nil, err
		}
	}

	offers, err := s.offers.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	financiers := make(map[uuid.UUID]*domain.Financier)
	funds := make(map[uuid.UUID]*domain.Fund)
	views := make([]domain.OfferView, 0, len(offers))
	for _, o := range offers {
		view := domain.OfferView{Offer: *o}

		f, ok := financiers[o.FinancierID]
		if !ok {
			if f, err = s.funds.FindFinancier(ctx, o.FinancierID); err != nil {
				return nil, err
			}
			financiers[o.FinancierID] = f
		}
		if f != nil {
			view.FinancierName = f.Name
			fund, ok := funds[f.FundID]
			if !ok {
				if fund, err = s.funds.FindFund(ctx, f.FundID); err != nil {
					return nil, err
				}
				funds[f.FundID] = fund
			}
			if fund != nil {
				view.FundName = fund.Name
			}
		}

		views = append(views, view)
	}
	return views, nil
}

// PayerKPIs summarizes how a payer handles the invoices addressed to it
func (s *MarketplaceService) PayerKPIs(ctx context.Context, payer rut.RUT) (*domain.PayerKPIs, error) {
	invoices, err := s.invoices.ListByReceiver(ctx, payer)
	if err != nil {
		return nil, err
	}

	party, err := s.parties.Find(ctx, payer, domain.PartyKindPayer)
	if err != nil {
		return nil, err
	}
	if party == nil && len(invoices) == 0 {
		return nil, fmt.Errorf("%w: payer %s", domain.ErrNotFound, payer)
	}

	kpis := domain.ComputePayerKPIs(invoices)
	kpis.Payer = party
	return &kpis, nil
}

// GeneralMarketplace lists every invoice open to offers, for the back office
func (s *MarketplaceService) GeneralMarketplace(ctx context.Context) ([]*domain.Invoice, error) {
	return s.invoices.ListByState(ctx, domain.InvoiceStateConfirmingRequested)
}
