package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/pkg/rut"
)

// TxManager runs fn in a single all-or-nothing unit of work.
// Stores called with the ctx passed to fn join that unit of work.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Find methods on every store return (nil, nil) when the row does not exist.

// InvoiceStore persists invoices. Update fails with domain.ErrConcurrentModification
// when the stored version differs from inv.Version, and increments inv.Version on success.
type InvoiceStore interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	Update(ctx context.Context, inv *domain.Invoice) error
	ListByState(ctx context.Context, state domain.InvoiceState) ([]*domain.Invoice, error)
	ListAwardedTo(ctx context.Context, financierID uuid.UUID) ([]*domain.Invoice, error)
	ListAwardedExcluding(ctx context.Context, financierID uuid.UUID) ([]*domain.Invoice, error)
	ListByIssuer(ctx context.Context, issuer rut.RUT) ([]*domain.Invoice, error)
	ListByReceiver(ctx context.Context, receiver rut.RUT) ([]*domain.Invoice, error)
}

// OfferStore persists offers. Create fails with domain.ErrConcurrentModification
// when the financier already has an offer on the invoice.
type OfferStore interface {
	Create(ctx context.Context, offer *domain.Offer) error
	Update(ctx context.Context, offer *domain.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error)
	FindByInvoiceAndFinancier(ctx context.Context, invoiceID, financierID uuid.UUID) (*domain.Offer, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*domain.Offer, error)
	ListByFinancier(ctx context.Context, financierID uuid.UUID) ([]*domain.Offer, error)
	// DeclineOthers marks every submitted offer on the invoice except winnerID as not awarded
	DeclineOthers(ctx context.Context, invoiceID, winnerID uuid.UUID, now time.Time) (int64, error)
}

// FundStore persists funds and their financiers
type FundStore interface {
	CreateFund(ctx context.Context, fund *domain.Fund) error
	FindFund(ctx context.Context, id uuid.UUID) (*domain.Fund, error)
	UpdateFund(ctx context.Context, fund *domain.Fund) error
	ListActiveFunds(ctx context.Context) ([]*domain.Fund, error)

	CreateFinancier(ctx context.Context, financier *domain.Financier) error
	FindFinancier(ctx context.Context, id uuid.UUID) (*domain.Financier, error)
	UpdateFinancier(ctx context.Context, financier *domain.Financier) error
	ListFinanciersByFund(ctx context.Context, fundID uuid.UUID) ([]*domain.Financier, error)
	// PublishCostOfFunds writes rate and asOf on every financier of the fund
	PublishCostOfFunds(ctx context.Context, fundID uuid.UUID, rate decimal.Decimal, asOf time.Time) (int64, error)
}

// PayerTermsStore persists financier conditions per payer
type PayerTermsStore interface {
	Upsert(ctx context.Context, terms *domain.PayerTerms) error
	Find(ctx context.Context, financierID uuid.UUID, payer rut.RUT) (*domain.PayerTerms, error)
	ListByFinancier(ctx context.Context, financierID uuid.UUID) ([]*domain.PayerTerms, error)
}

// PartyStore persists the provider and payer directory
type PartyStore interface {
	Upsert(ctx context.Context, party *domain.Party) error
	Find(ctx context.Context, r rut.RUT, kind domain.PartyKind) (*domain.Party, error)
}

// DocumentTypeStore reads the financeable document type catalogue
type DocumentTypeStore interface {
	FindByCode(ctx context.Context, code string) (*domain.DocumentType, error)
	ListActive(ctx context.Context) ([]domain.DocumentType, error)
}

// EventPublisher delivers committed domain events
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event) error
}
