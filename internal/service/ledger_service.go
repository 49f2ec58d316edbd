package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/metrics"
)

// LedgerService drives the invoice lifecycle for providers and payers
type LedgerService struct {
	tx        TxManager
	invoices  InvoiceStore
	publisher EventPublisher
	clock     Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(tx TxManager, invoices InvoiceStore, publisher EventPublisher, clock Clock, m *metrics.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		tx:        tx,
		invoices:  invoices,
		publisher: publisher,
		clock:     clock,
		metrics:   m,
		logger:    logger,
	}
}

type ownership int

const (
	ownedByProvider ownership = iota
	ownedByPayer
)

func checkOwner(actor domain.Actor, inv *domain.Invoice, owner ownership) error {
	switch owner {
	case ownedByProvider:
		if actor.IsProviderOf(inv) {
			return nil
		}
	case ownedByPayer:
		if actor.IsPayerOf(inv) {
			return nil
		}
	}
	return fmt.Errorf("%w: invoice %s", domain.ErrForbidden, inv.ID)
}

// RequestConfirmation asks the payer to confirm a loaded invoice
func (s *LedgerService) RequestConfirmation(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID) (*domain.Invoice, error) {
	return s.mutate(ctx, "request_confirmation", actor, invoiceID, ownedByProvider, func(inv *domain.Invoice) error {
		return inv.RequestConfirmation()
	})
}

// Confirm records the payer's confirmation
func (s *LedgerService) Confirm(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID) (*domain.Invoice, error) {
	return s.mutate(ctx, "confirm", actor, invoiceID, ownedByPayer, func(inv *domain.Invoice) error {
		return inv.Confirm(s.clock.Today())
	})
}

// Reject records the payer's rejection
func (s *LedgerService) Reject(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID) (*domain.Invoice, error) {
	return s.mutate(ctx, "reject", actor, invoiceID, ownedByPayer, func(inv *domain.Invoice) error {
		return inv.Reject()
	})
}

// EditDueDate moves the due date before the payer confirms
func (s *LedgerService) EditDueDate(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID, newDate time.Time) (*domain.Invoice, error) {
	return s.mutate(ctx, "edit_due_date", actor, invoiceID, ownedByPayer, func(inv *domain.Invoice) error {
		return inv.EditDueDate(newDate, s.clock.Today())
	})
}

// RequestFinancing opens a confirmed invoice to financier offers
func (s *LedgerService) RequestFinancing(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID) (*domain.Invoice, error) {
	return s.mutate(ctx, "request_financing", actor, invoiceID, ownedByProvider, func(inv *domain.Invoice) error {
		return inv.RequestFinancing()
	})
}

// RejectDueDate closes an invoice whose new due date the provider refuses
func (s *LedgerService) RejectDueDate(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID) (*domain.Invoice, error) {
	return s.mutate(ctx, "reject_due_date", actor, invoiceID, ownedByProvider, func(inv *domain.Invoice) error {
		return inv.RejectDueDate()
	})
}

// RecordPayment stores the date the payer settled an adjudicated invoice
func (s *LedgerService) RecordPayment(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID, paidOn time.Time) (*domain.Invoice, error) {
	return s.mutate(ctx, "record_payment", actor, invoiceID, ownedByPayer, func(inv *domain.Invoice) error {
		return inv.RecordPayment(paidOn, s.clock.Today())
	})
}

func (s *LedgerService) mutate(ctx context.Context, command string, actor domain.Actor, invoiceID uuid.UUID, owner ownership, apply func(*domain.Invoice) error) (*domain.Invoice, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveCommand(command, time.Since(start)) }()

	var (
		updated *domain.Invoice
		from    domain.InvoiceState
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return fmt.Errorf("%w: invoice %s", domain.ErrNotFound, invoiceID)
		}
		if err := checkOwner(actor, inv, owner); err != nil {
			return err
		}

		from = inv.State
		if err := apply(inv); err != nil {
			return err
		}
		inv.UpdatedAt = s.clock.Now()

		if err := s.invoices.Update(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.State != from {
		s.metrics.IncTransition(string(updated.State))
		publishEvents(ctx, s.publisher, s.logger, domain.NewEvent(
			domain.EventInvoiceStateChanged,
			updated.ID.String(),
			updated.UpdatedAt,
			map[string]any{"from": from, "to": updated.State, "command": command},
		))
	}

	s.logger.Info("Invoice updated",
		zap.String("command", command),
		zap.String("invoice_id", updated.ID.String()),
		zap.String("state", string(updated.State)),
		zap.String("actor", actor.Subject),
	)

	return updated, nil
}

// Get returns an invoice if the actor may see it. Providers and payers see their own
// invoices, financiers see open invoices and the ones they won, the back office sees all.
func (s *LedgerService) Get(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice %s", domain.ErrNotFound, invoiceID)
	}

	switch {
	case actor.Role == domain.RoleBackOffice,
		actor.IsProviderOf(inv),
		actor.IsPayerOf(inv):
		return inv, nil
	case actor.Role == domain.RoleFinancier && actor.FinancierID != nil:
		if inv.State == domain.InvoiceStateConfirmingRequested {
			return inv, nil
		}
		if inv.AwardedFinancierID != nil && *inv.AwardedFinancierID == *actor.FinancierID {
			return inv, nil
		}
	}
	return nil, fmt.Errorf("%w: invoice %s", domain.ErrForbidden, invoiceID)
}

// ProviderInvoices lists every invoice the provider issued
func (s *LedgerService) ProviderInvoices(ctx context.Context, actor domain.Actor) ([]*domain.Invoice, error) {
	if actor.Role != domain.RoleProvider || actor.Rut.IsZero() {
		return nil, domain.ErrForbidden
	}
	return s.invoices.ListByIssuer(ctx, actor.Rut)
}

// PayerInvoices splits the invoices owed by the payer into pending and managed.
// Loaded invoices are not shown until the provider requests confirmation.
func (s *LedgerService) PayerInvoices(ctx context.Context, actor domain.Actor) (*domain.PayerInvoices, error) {
	if actor.Role != domain.RolePayer || actor.Rut.IsZero() {
		return nil, domain.ErrForbidden
	}

	invoices, err := s.invoices.ListByReceiver(ctx, actor.Rut)
	if err != nil {
		return nil, err
	}

	result := &domain.PayerInvoices{
		Pending: []*domain.Invoice{},
		Managed: []*domain.Invoice{},
	}
	for _, inv := range invoices {
		switch {
		case inv.State == domain.InvoiceStateConfirmationRequested:
			result.Pending = append(result.Pending, inv)
		case inv.State.IsManaged():
			result.Managed = append(result.Managed, inv)
		}
	}
	return result, nil
}
