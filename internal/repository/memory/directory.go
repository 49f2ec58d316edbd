package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/pkg/rut"
)

// PartyStore keeps the provider and payer directory in memory
type PartyStore struct {
	s *Store
}

func (r *PartyStore) Upsert(ctx context.Context, p *domain.Party) error {
	return r.s.write(ctx, func(t *tables) error {
		key := partyKey{rut: p.Rut.String(), kind: p.Kind}
		if stored, ok := t.parties[key]; ok {
			stored.Name = p.Name
			stored.UpdatedAt = p.UpdatedAt
			t.parties[key] = stored
			return nil
		}
		t.parties[key] = *p
		return nil
	})
}

func (r *PartyStore) Find(ctx context.Context, partyRut rut.RUT, kind domain.PartyKind) (*domain.Party, error) {
	var found *domain.Party
	r.s.read(ctx, func(t *tables) {
		if p, ok := t.parties[partyKey{rut: partyRut.String(), kind: kind}]; ok {
			found = &p
		}
	})
	return found, nil
}

// PayerTermsStore keeps financier conditions per payer in memory
type PayerTermsStore struct {
	s *Store
}

// Upsert keeps the id and creation time of an existing entry and copies them back to terms
func (r *PayerTermsStore) Upsert(ctx context.Context, terms *domain.PayerTerms) error {
	return r.s.write(ctx, func(t *tables) error {
		key := termsKey{financierID: terms.FinancierID, payer: terms.PayerRut.String()}
		if stored, ok := t.payerTerms[key]; ok {
			terms.ID = stored.ID
			terms.CreatedAt = stored.CreatedAt
		}
		t.payerTerms[key] = *terms
		return nil
	})
}

func (r *PayerTermsStore) Find(ctx context.Context, financierID uuid.UUID, payer rut.RUT) (*domain.PayerTerms, error) {
	var found *domain.PayerTerms
	r.s.read(ctx, func(t *tables) {
		if terms, ok := t.payerTerms[termsKey{financierID: financierID, payer: payer.String()}]; ok {
			found = &terms
		}
	})
	return found, nil
}

func (r *PayerTermsStore) ListByFinancier(ctx context.Context, financierID uuid.UUID) ([]*domain.PayerTerms, error) {
	var out []*domain.PayerTerms
	r.s.read(ctx, func(t *tables) {
		for _, terms := range t.payerTerms {
			if terms.FinancierID == financierID {
				out = append(out, &terms)
			}
		}
	})
	slices.SortFunc(out, func(a, b *domain.PayerTerms) int { return strings.Compare(a.PayerName, b.PayerName) })
	return out, nil
}

// DocumentTypeStore serves the document type catalogue from memory
type DocumentTypeStore struct {
	s *Store
}

func (r *DocumentTypeStore) FindByCode(ctx context.Context, code string) (*domain.DocumentType, error) {
	var found *domain.DocumentType
	r.s.read(ctx, func(t *tables) {
		if dt, ok := t.documentTypes[code]; ok {
			found = &dt
		}
	})
	return found, nil
}

func (r *DocumentTypeStore) ListActive(ctx context.Context) ([]domain.DocumentType, error) {
	var out []domain.DocumentType
	r.s.read(ctx, func(t *tables) {
		for _, dt := range t.documentTypes {
			if dt.IsActive {
				out = append(out, dt)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.DocumentType) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}
