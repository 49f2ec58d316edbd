package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/pkg/rut"
)

const payerTermsColumns = `
	id, financier_id, payer_rut, payer_name, monthly_spread_rate, anticipation_days, flat_fee,
	created_at, updated_at`

// PayerTermsRepository handles financier conditions per payer
type PayerTermsRepository struct {
	db *sql.DB
}

// NewPayerTermsRepository creates a new payer terms repository with a shared database connection
func NewPayerTermsRepository(db *sql.DB) *PayerTermsRepository {
	return &PayerTermsRepository{db: db}
}

func scanPayerTerms(row rowScanner) (*domain.PayerTerms, error) {
	var t domain.PayerTerms
	err := row.Scan(
		&t.ID,
		&t.FinancierID,
		&t.PayerRut,
		&t.PayerName,
		&t.MonthlySpreadRate,
		&t.AnticipationDays,
		&t.FlatFee,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Upsert creates or replaces the financier's terms for a payer.
// On conflict the stored row keeps its id and creation time, which are copied back to t.
func (r *PayerTermsRepository) Upsert(ctx context.Context, t *domain.PayerTerms) error {
	query := `
		INSERT INTO payer_terms (` + payerTermsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (financier_id, payer_rut) DO UPDATE SET
			payer_name = EXCLUDED.payer_name,
			monthly_spread_rate = EXCLUDED.monthly_spread_rate,
			anticipation_days = EXCLUDED.anticipation_days,
			flat_fee = EXCLUDED.flat_fee,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		t.ID,
		t.FinancierID,
		t.PayerRut,
		t.PayerName,
		t.MonthlySpreadRate,
		t.AnticipationDays,
		t.FlatFee,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert payer terms: %w", mapError(err))
	}

	return nil
}

// Find finds a financier's terms for a payer
func (r *PayerTermsRepository) Find(ctx context.Context, financierID uuid.UUID, payer rut.RUT) (*domain.PayerTerms, error) {
	query := `SELECT ` + payerTermsColumns + ` FROM payer_terms WHERE financier_id = $1 AND payer_rut = $2`

	t, err := scanPayerTerms(conn(ctx, r.db).QueryRowContext(ctx, query, financierID, payer))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payer terms: %w", mapError(err))
	}

	return t, nil
}

// ListByFinancier lists a financier's terms ordered by payer name
func (r *PayerTermsRepository) ListByFinancier(ctx context.Context, financierID uuid.UUID) ([]*domain.PayerTerms, error) {
	query := `SELECT ` + payerTermsColumns + ` FROM payer_terms WHERE financier_id = $1 ORDER BY payer_name`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, financierID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payer terms: %w", mapError(err))
	}
	defer rows.Close()

	var terms []*domain.PayerTerms
	for rows.Next() {
		t, err := scanPayerTerms(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payer terms: %w", err)
		}
		terms = append(terms, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payer terms: %w", err)
	}

	return terms, nil
}
