package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/pkg/rut"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) newInvoice(folio int64) *domain.Invoice {
	now := time.Now().UTC()
	return &domain.Invoice{
		ID:           uuid.New(),
		IssuerRut:    rut.MustParse("76086428-5"),
		IssuerName:   "Proveedora Andes SpA",
		ReceiverRut:  rut.MustParse("11111111-1"),
		ReceiverName: "Retail Sur S.A.",
		DocType:      "33",
		Folio:        folio,
		Amount:       decimal.NewFromInt(1_000_000),
		IssueDate:    time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		DueDate:      time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC),
		State:        domain.InvoiceStateConfirmingRequested,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *StoreSuite) newOffer(invoiceID uuid.UUID, spread string) *domain.Offer {
	return &domain.Offer{
		ID:                uuid.New(),
		InvoiceID:         invoiceID,
		FinancierID:       uuid.New(),
		MonthlySpreadRate: decimal.RequireFromString(spread),
		CessionPrice:      decimal.NewFromInt(980000),
		State:             domain.OfferStateSubmitted,
		CreatedAt:         time.Now().UTC(),
	}
}

func (s *StoreSuite) TestInvoices() {
	s.Run("rejects a repeated natural key", func() {
		s.Require().NoError(s.store.Invoices().Create(s.ctx, s.newInvoice(1)))
		err := s.store.Invoices().Create(s.ctx, s.newInvoice(1))
		s.Require().ErrorIs(err, domain.ErrDuplicateInvoice)
	})

	s.Run("stale update is a concurrent modification", func() {
		inv := s.newInvoice(2)
		s.Require().NoError(s.store.Invoices().Create(s.ctx, inv))

		first, _ := s.store.Invoices().FindByID(s.ctx, inv.ID)
		second, _ := s.store.Invoices().FindByID(s.ctx, inv.ID)

		s.Require().NoError(s.store.Invoices().Update(s.ctx, first))
		s.Equal(1, first.Version)
		s.Require().ErrorIs(s.store.Invoices().Update(s.ctx, second), domain.ErrConcurrentModification)
	})

	s.Run("returned invoices are copies", func() {
		inv := s.newInvoice(3)
		s.Require().NoError(s.store.Invoices().Create(s.ctx, inv))

		found, _ := s.store.Invoices().FindByID(s.ctx, inv.ID)
		found.State = domain.InvoiceStateAdjudicated

		again, _ := s.store.Invoices().FindByID(s.ctx, inv.ID)
		s.Equal(domain.InvoiceStateConfirmingRequested, again.State)
	})
}

func (s *StoreSuite) TestWithinTxRollsBack() {
	inv := s.newInvoice(10)
	boom := errors.New("boom")

	err := s.store.WithinTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.Invoices().Create(ctx, inv))
		return boom
	})
	s.Require().ErrorIs(err, boom)

	found, err := s.store.Invoices().FindByID(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *StoreSuite) TestWithinTxIsolatesUncommittedWrites() {
	inv := s.newInvoice(11)
	s.Require().NoError(s.store.Invoices().Create(s.ctx, inv))
	offer := s.newOffer(inv.ID, "1.5")
	s.Require().NoError(s.store.Offers().Create(s.ctx, offer))
	boom := errors.New("boom")

	err := s.store.WithinTx(s.ctx, func(ctx context.Context) error {
		inside, err := s.store.Offers().FindByID(ctx, offer.ID)
		s.Require().NoError(err)
		s.Require().NoError(inside.Award(time.Now()))
		s.Require().NoError(s.store.Offers().Update(ctx, inside))

		seen, err := s.store.Offers().FindByID(ctx, offer.ID)
		s.Require().NoError(err)
		s.Equal(domain.OfferStateAwarded, seen.State)

		outside := make(chan *domain.Offer)
		go func() {
			o, _ := s.store.Offers().FindByID(s.ctx, offer.ID)
			outside <- o
		}()
		o := <-outside
		s.Require().NotNil(o)
		s.Equal(domain.OfferStateSubmitted, o.State)

		listed, err := s.store.Offers().ListByInvoice(s.ctx, inv.ID)
		s.Require().NoError(err)
		s.Require().Len(listed, 1)
		s.Equal(domain.OfferStateSubmitted, listed[0].State)
		return boom
	})
	s.Require().ErrorIs(err, boom)

	after, err := s.store.Offers().FindByID(s.ctx, offer.ID)
	s.Require().NoError(err)
	s.Equal(domain.OfferStateSubmitted, after.State)
	s.Equal(offer.Version, after.Version)
}

func (s *StoreSuite) TestWithinTxPublishesOnCommit() {
	inv := s.newInvoice(12)

	err := s.store.WithinTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.Invoices().Create(ctx, inv))

		outside, err := s.store.Invoices().FindByID(s.ctx, inv.ID)
		s.Require().NoError(err)
		s.Nil(outside)
		return nil
	})
	s.Require().NoError(err)

	found, err := s.store.Invoices().FindByID(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(inv.Folio, found.Folio)
}

func (s *StoreSuite) TestOffers() {
	invoiceID := uuid.New()

	s.Run("one offer per financier", func() {
		o := s.newOffer(invoiceID, "2.0")
		s.Require().NoError(s.store.Offers().Create(s.ctx, o))

		dup := s.newOffer(invoiceID, "1.0")
		dup.FinancierID = o.FinancierID
		s.Require().ErrorIs(s.store.Offers().Create(s.ctx, dup), domain.ErrConcurrentModification)
	})

	s.Run("lists by spread ascending", func() {
		s.Require().NoError(s.store.Offers().Create(s.ctx, s.newOffer(invoiceID, "1.5")))
		s.Require().NoError(s.store.Offers().Create(s.ctx, s.newOffer(invoiceID, "0.9")))

		offers, err := s.store.Offers().ListByInvoice(s.ctx, invoiceID)
		s.Require().NoError(err)
		s.Require().Len(offers, 3)
		s.Equal("0.9", offers[0].MonthlySpreadRate.String())
		s.Equal("1.5", offers[1].MonthlySpreadRate.String())
		s.Equal("2", offers[2].MonthlySpreadRate.String())
	})

	s.Run("only one awarded offer per invoice", func() {
		offers, _ := s.store.Offers().ListByInvoice(s.ctx, invoiceID)
		winner, loser := offers[0], offers[1]

		s.Require().NoError(winner.Award(time.Now()))
		s.Require().NoError(s.store.Offers().Update(s.ctx, winner))

		s.Require().NoError(loser.Award(time.Now()))
		s.Require().ErrorIs(s.store.Offers().Update(s.ctx, loser), domain.ErrConcurrentModification)
	})

	s.Run("declines the rest", func() {
		offers, _ := s.store.Offers().ListByInvoice(s.ctx, invoiceID)
		declined, err := s.store.Offers().DeclineOthers(s.ctx, invoiceID, offers[0].ID, time.Now())
		s.Require().NoError(err)
		s.Equal(int64(2), declined)
	})
}

func (s *StoreSuite) TestPublishCostOfFunds() {
	fund := &domain.Fund{ID: uuid.New(), Name: "Fondo Austral", IsActive: true}
	s.Require().NoError(s.store.Funds().CreateFund(s.ctx, fund))
	for _, name := range []string{"Ana", "Bruno"} {
		s.Require().NoError(s.store.Funds().CreateFinancier(s.ctx, &domain.Financier{ID: uuid.New(), FundID: fund.ID, Name: name}))
	}

	today := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	n, err := s.store.Funds().PublishCostOfFunds(s.ctx, fund.ID, decimal.RequireFromString("1.1"), today)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	financiers, err := s.store.Funds().ListFinanciersByFund(s.ctx, fund.ID)
	s.Require().NoError(err)
	s.Require().Len(financiers, 2)
	s.Equal("Ana", financiers[0].Name)
	for _, f := range financiers {
		s.True(f.IsAdmitted(today))
	}
}

func (s *StoreSuite) TestPayerTermsUpsertKeepsIdentity() {
	financierID := uuid.New()
	first := &domain.PayerTerms{ID: uuid.New(), FinancierID: financierID, PayerRut: rut.MustParse("11111111-1"), PayerName: "Retail Sur", CreatedAt: time.Now()}
	s.Require().NoError(s.store.PayerTerms().Upsert(s.ctx, first))

	second := &domain.PayerTerms{ID: uuid.New(), FinancierID: financierID, PayerRut: rut.MustParse("11111111-1"), PayerName: "Retail Sur S.A."}
	s.Require().NoError(s.store.PayerTerms().Upsert(s.ctx, second))
	s.Equal(first.ID, second.ID)

	terms, err := s.store.PayerTerms().ListByFinancier(s.ctx, financierID)
	s.Require().NoError(err)
	s.Require().Len(terms, 1)
	s.Equal("Retail Sur S.A.", terms[0].PayerName)
}
