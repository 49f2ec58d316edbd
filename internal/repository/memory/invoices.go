package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/pkg/rut"
)

// InvoiceStore keeps invoices in memory
type InvoiceStore struct {
	s *Store
}

func (r *InvoiceStore) Create(ctx context.Context, inv *domain.Invoice) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, exists := t.invoices[inv.ID]; exists {
			return fmt.Errorf("%w: invoice %s", domain.ErrDuplicateInvoice, inv.ID)
		}
		for _, other := range t.invoices {
			if other.IssuerRut == inv.IssuerRut && other.ReceiverRut == inv.ReceiverRut &&
				other.Folio == inv.Folio && other.DocType == inv.DocType {
				return fmt.Errorf("%w: folio %d from %s to %s", domain.ErrDuplicateInvoice, inv.Folio, inv.IssuerRut, inv.ReceiverRut)
			}
		}
		t.invoices[inv.ID] = *inv
		return nil
	})
}

func (r *InvoiceStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var found *domain.Invoice
	r.s.read(ctx, func(t *tables) {
		if inv, ok := t.invoices[id]; ok {
			found = &inv
		}
	})
	return found, nil
}

func (r *InvoiceStore) Update(ctx context.Context, inv *domain.Invoice) error {
	err := r.s.write(ctx, func(t *tables) error {
		stored, ok := t.invoices[inv.ID]
		if !ok || stored.Version != inv.Version {
			return fmt.Errorf("%w: invoice %s version %d", domain.ErrConcurrentModification, inv.ID, inv.Version)
		}
		next := *inv
		next.Version++
		t.invoices[inv.ID] = next
		return nil
	})
	if err != nil {
		return err
	}
	inv.Version++
	return nil
}

func (r *InvoiceStore) ListByState(ctx context.Context, state domain.InvoiceState) ([]*domain.Invoice, error) {
	invoices := r.filter(ctx, func(inv *domain.Invoice) bool { return inv.State == state })
	slices.SortFunc(invoices, func(a, b *domain.Invoice) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return invoices, nil
}

func (r *InvoiceStore) ListAwardedTo(ctx context.Context, financierID uuid.UUID) ([]*domain.Invoice, error) {
	invoices := r.filter(ctx, func(inv *domain.Invoice) bool {
		return inv.AwardedFinancierID != nil && *inv.AwardedFinancierID == financierID
	})
	sortRecentlyUpdated(invoices)
	return invoices, nil
}

func (r *InvoiceStore) ListAwardedExcluding(ctx context.Context, financierID uuid.UUID) ([]*domain.Invoice, error) {
	invoices := r.filter(ctx, func(inv *domain.Invoice) bool {
		return inv.State == domain.InvoiceStateAdjudicated &&
			inv.AwardedFinancierID != nil && *inv.AwardedFinancierID != financierID
	})
	sortRecentlyUpdated(invoices)
	return invoices, nil
}

func (r *InvoiceStore) ListByIssuer(ctx context.Context, issuer rut.RUT) ([]*domain.Invoice, error) {
	invoices := r.filter(ctx, func(inv *domain.Invoice) bool { return inv.IssuerRut == issuer })
	sortNewestFirst(invoices)
	return invoices, nil
}

func (r *InvoiceStore) ListByReceiver(ctx context.Context, receiver rut.RUT) ([]*domain.Invoice, error) {
	invoices := r.filter(ctx, func(inv *domain.Invoice) bool { return inv.ReceiverRut == receiver })
	sortNewestFirst(invoices)
	return invoices, nil
}

func (r *InvoiceStore) filter(ctx context.Context, keep func(*domain.Invoice) bool) []*domain.Invoice {
	var out []*domain.Invoice
	r.s.read(ctx, func(t *tables) {
		for _, inv := range t.invoices {
			if keep(&inv) {
				out = append(out, &inv)
			}
		}
	})
	return out
}

func sortRecentlyUpdated(invoices []*domain.Invoice) {
	slices.SortFunc(invoices, func(a, b *domain.Invoice) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}

func sortNewestFirst(invoices []*domain.Invoice) {
	slices.SortFunc(invoices, func(a, b *domain.Invoice) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
