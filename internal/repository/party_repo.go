package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/pkg/rut"
)

// PartyRepository handles the provider and payer directory
type PartyRepository struct {
	db *sql.DB
}

// NewPartyRepository creates a new party repository with a shared database connection
func NewPartyRepository(db *sql.DB) *PartyRepository {
	return &PartyRepository{db: db}
}

// Find finds a party by RUT and kind
func (r *PartyRepository) Find(ctx context.Context, partyRut rut.RUT, kind domain.PartyKind) (*domain.Party, error) {
	query := `
		SELECT rut, name, kind, created_at, updated_at
		FROM parties
		WHERE rut = $1 AND kind = $2
	`

	var p domain.Party
	err := conn(ctx, r.db).QueryRowContext(ctx, query, partyRut, kind).Scan(
		&p.Rut,
		&p.Name,
		&p.Kind,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find party: %w", mapError(err))
	}

	return &p, nil
}

// Upsert creates the party or refreshes its name
func (r *PartyRepository) Upsert(ctx context.Context, p *domain.Party) error {
	query := `
		INSERT INTO parties (rut, name, kind, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (rut, kind) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = EXCLUDED.updated_at
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		p.Rut,
		p.Name,
		p.Kind,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert party: %w", mapError(err))
	}

	return nil
}
