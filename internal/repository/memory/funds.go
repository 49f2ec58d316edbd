package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/confirming/marketplace/internal/domain"
)

// FundStore keeps funds and financiers in memory
type FundStore struct {
	s *Store
}

func (r *FundStore) CreateFund(ctx context.Context, f *domain.Fund) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, exists := t.funds[f.ID]; exists {
			return fmt.Errorf("fund %s already exists", f.ID)
		}
		t.funds[f.ID] = *f
		return nil
	})
}

func (r *FundStore) FindFund(ctx context.Context, id uuid.UUID) (*domain.Fund, error) {
	var found *domain.Fund
	r.s.read(ctx, func(t *tables) {
		if f, ok := t.funds[id]; ok {
			found = &f
		}
	})
	return found, nil
}

func (r *FundStore) UpdateFund(ctx context.Context, f *domain.Fund) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.funds[f.ID]; !ok {
			return domain.ErrNotFound
		}
		t.funds[f.ID] = *f
		return nil
	})
}

func (r *FundStore) ListActiveFunds(ctx context.Context) ([]*domain.Fund, error) {
	var funds []*domain.Fund
	r.s.read(ctx, func(t *tables) {
		for _, f := range t.funds {
			if f.IsActive {
				funds = append(funds, &f)
			}
		}
	})
	slices.SortFunc(funds, func(a, b *domain.Fund) int { return strings.Compare(a.Name, b.Name) })
	return funds, nil
}

func (r *FundStore) CreateFinancier(ctx context.Context, f *domain.Financier) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.funds[f.FundID]; !ok {
			return fmt.Errorf("%w: fund %s", domain.ErrNotFound, f.FundID)
		}
		t.financiers[f.ID] = *f
		return nil
	})
}

func (r *FundStore) FindFinancier(ctx context.Context, id uuid.UUID) (*domain.Financier, error) {
	var found *domain.Financier
	r.s.read(ctx, func(t *tables) {
		if f, ok := t.financiers[id]; ok {
			found = &f
		}
	})
	return found, nil
}

// UpdateFinancier writes the name and admin flag. The cost of funds is only
// changed through PublishCostOfFunds.
func (r *FundStore) UpdateFinancier(ctx context.Context, f *domain.Financier) error {
	return r.s.write(ctx, func(t *tables) error {
		stored, ok := t.financiers[f.ID]
		if !ok {
			return domain.ErrNotFound
		}
		stored.Name = f.Name
		stored.IsFundAdmin = f.IsFundAdmin
		stored.UpdatedAt = f.UpdatedAt
		t.financiers[f.ID] = stored
		return nil
	})
}

func (r *FundStore) ListFinanciersByFund(ctx context.Context, fundID uuid.UUID) ([]*domain.Financier, error) {
	var financiers []*domain.Financier
	r.s.read(ctx, func(t *tables) {
		for _, f := range t.financiers {
			if f.FundID == fundID {
				financiers = append(financiers, &f)
			}
		}
	})
	slices.SortFunc(financiers, func(a, b *domain.Financier) int { return strings.Compare(a.Name, b.Name) })
	return financiers, nil
}

func (r *FundStore) PublishCostOfFunds(ctx context.Context, fundID uuid.UUID, rate decimal.Decimal, asOf time.Time) (int64, error) {
	var updated int64
	day := domain.DateOf(asOf)
	err := r.s.write(ctx, func(t *tables) error {
		for id, f := range t.financiers {
			if f.FundID != fundID {
				continue
			}
			f.MonthlyCostOfFunds = rate
			f.CostOfFundsAsOf = &day
			f.UpdatedAt = time.Now().UTC()
			t.financiers[id] = f
			updated++
		}
		return nil
	})
	return updated, err
}
