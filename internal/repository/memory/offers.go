package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/confirming/marketplace/internal/domain"
)

// OfferStore keeps offers in memory with one offer per financier and invoice
type OfferStore struct {
	s *Store
}

func (r *OfferStore) Create(ctx context.Context, o *domain.Offer) error {
	return r.s.write(ctx, func(t *tables) error {
		for _, other := range t.offers {
			if other.InvoiceID == o.InvoiceID && other.FinancierID == o.FinancierID {
				return fmt.Errorf("%w: financier %s already has an offer on invoice %s", domain.ErrConcurrentModification, o.FinancierID, o.InvoiceID)
			}
		}
		t.offers[o.ID] = *o
		return nil
	})
}

func (r *OfferStore) Update(ctx context.Context, o *domain.Offer) error {
	err := r.s.write(ctx, func(t *tables) error {
		stored, ok := t.offers[o.ID]
		if !ok || stored.Version != o.Version {
			return fmt.Errorf("%w: offer %s version %d", domain.ErrConcurrentModification, o.ID, o.Version)
		}
		if o.State == domain.OfferStateAwarded {
			for _, other := range t.offers {
				if other.ID != o.ID && other.InvoiceID == o.InvoiceID && other.State == domain.OfferStateAwarded {
					return fmt.Errorf("%w: invoice %s already has an awarded offer", domain.ErrConcurrentModification, o.InvoiceID)
				}
			}
		}
		next := *o
		next.Version++
		t.offers[o.ID] = next
		return nil
	})
	if err != nil {
		return err
	}
	o.Version++
	return nil
}

func (r *OfferStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	var found *domain.Offer
	r.s.read(ctx, func(t *tables) {
		if o, ok := t.offers[id]; ok {
			found = &o
		}
	})
	return found, nil
}

func (r *OfferStore) FindByInvoiceAndFinancier(ctx context.Context, invoiceID, financierID uuid.UUID) (*domain.Offer, error) {
	var found *domain.Offer
	r.s.read(ctx, func(t *tables) {
		for _, o := range t.offers {
			if o.InvoiceID == invoiceID && o.FinancierID == financierID {
				found = &o
				return
			}
		}
	})
	return found, nil
}

func (r *OfferStore) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*domain.Offer, error) {
	offers := r.filter(ctx, func(o *domain.Offer) bool { return o.InvoiceID == invoiceID })
	slices.SortFunc(offers, func(a, b *domain.Offer) int {
		if c := a.MonthlySpreadRate.Cmp(b.MonthlySpreadRate); c != 0 {
			return c
		}
		if c := b.CessionPrice.Cmp(a.CessionPrice); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return offers, nil
}

func (r *OfferStore) ListByFinancier(ctx context.Context, financierID uuid.UUID) ([]*domain.Offer, error) {
	offers := r.filter(ctx, func(o *domain.Offer) bool { return o.FinancierID == financierID })
	slices.SortFunc(offers, func(a, b *domain.Offer) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return offers, nil
}

func (r *OfferStore) DeclineOthers(ctx context.Context, invoiceID, winnerID uuid.UUID, now time.Time) (int64, error) {
	var declined int64
	err := r.s.write(ctx, func(t *tables) error {
		for id, o := range t.offers {
			if o.InvoiceID != invoiceID || id == winnerID || o.State != domain.OfferStateSubmitted {
				continue
			}
			o.State = domain.OfferStateNotAwarded
			o.UpdatedAt = now
			o.Version++
			t.offers[id] = o
			declined++
		}
		return nil
	})
	return declined, err
}

func (r *OfferStore) filter(ctx context.Context, keep func(*domain.Offer) bool) []*domain.Offer {
	var out []*domain.Offer
	r.s.read(ctx, func(t *tables) {
		for _, o := range t.offers {
			if keep(&o) {
				out = append(out, &o)
			}
		}
	})
	return out
}
