package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/confirming/marketplace/internal/domain"
)

const offerColumns = `
	id, invoice_id, financier_id, monthly_spread_rate, monthly_cost_of_funds, flat_fee,
	anticipation_days, cession_price, state, version, created_at, updated_at`

// OfferRepository handles offer persistence
type OfferRepository struct {
	db *sql.DB
}

// NewOfferRepository creates a new offer repository with a shared database connection
func NewOfferRepository(db *sql.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

func scanOffer(row rowScanner) (*domain.Offer, error) {
	var o domain.Offer
	err := row.Scan(
		&o.ID,
		&o.InvoiceID,
		&o.FinancierID,
		&o.MonthlySpreadRate,
		&o.MonthlyCostOfFunds,
		&o.FlatFee,
		&o.AnticipationDays,
		&o.CessionPrice,
		&o.State,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// FindByID finds an offer by ID
func (r *OfferRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindByInvoiceAndFinancier finds the single offer a financier holds on an invoice
func (r *OfferRepository) FindByInvoiceAndFinancier(ctx context.Context, invoiceID, financierID uuid.UUID) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE invoice_id = $1 AND financier_id = $2`
	return r.findOne(ctx, query, invoiceID, financierID)
}

func (r *OfferRepository) findOne(ctx context.Context, query string, args ...any) (*domain.Offer, error) {
	o, err := scanOffer(conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find offer: %w", mapError(err))
	}
	return o, nil
}

// Create creates a new offer. The (invoice_id, financier_id) unique index turns a
// racing duplicate submission into domain.ErrConcurrentModification.
func (r *OfferRepository) Create(ctx context.Context, o *domain.Offer) error {
	query := `
		INSERT INTO offers (` + offerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		o.ID,
		o.InvoiceID,
		o.FinancierID,
		o.MonthlySpreadRate,
		o.MonthlyCostOfFunds,
		o.FlatFee,
		o.AnticipationDays,
		o.CessionPrice,
		o.State,
		o.Version,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: financier %s already has an offer on invoice %s", domain.ErrConcurrentModification, o.FinancierID, o.InvoiceID)
	}
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", mapError(err))
	}

	return nil
}

// Update writes the offer terms and state if the stored version still matches
func (r *OfferRepository) Update(ctx context.Context, o *domain.Offer) error {
	query := `
		UPDATE offers SET
			monthly_spread_rate = $3,
			monthly_cost_of_funds = $4,
			flat_fee = $5,
			anticipation_days = $6,
			cession_price = $7,
			state = $8,
			updated_at = $9,
			version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		o.ID,
		o.Version,
		o.MonthlySpreadRate,
		o.MonthlyCostOfFunds,
		o.FlatFee,
		o.AnticipationDays,
		o.CessionPrice,
		o.State,
		o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: invoice %s already has an awarded offer", domain.ErrConcurrentModification, o.InvoiceID)
	}
	if err != nil {
		return fmt.Errorf("failed to update offer: %w", mapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: offer %s version %d", domain.ErrConcurrentModification, o.ID, o.Version)
	}

	o.Version++
	return nil
}

// DeclineOthers marks every other submitted offer on the invoice as not awarded
func (r *OfferRepository) DeclineOthers(ctx context.Context, invoiceID, winnerID uuid.UUID, now time.Time) (int64, error) {
	query := `
		UPDATE offers SET state = $3, updated_at = $4, version = version + 1
		WHERE invoice_id = $1 AND id <> $2 AND state = $5
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		invoiceID,
		winnerID,
		domain.OfferStateNotAwarded,
		now,
		domain.OfferStateSubmitted,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to decline offers: %w", mapError(err))
	}

	return result.RowsAffected()
}

// ListByInvoice lists every offer on an invoice, cheapest spread first
func (r *OfferRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*domain.Offer, error) {
	query := `
		SELECT ` + offerColumns + ` FROM offers
		WHERE invoice_id = $1
		ORDER BY monthly_spread_rate ASC, cession_price DESC, created_at ASC
	`
	return r.list(ctx, query, invoiceID)
}

// ListByFinancier lists every offer a financier holds
func (r *OfferRepository) ListByFinancier(ctx context.Context, financierID uuid.UUID) ([]*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE financier_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, financierID)
}

func (r *OfferRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Offer, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", mapError(err))
	}
	defer rows.Close()

	var offers []*domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offers: %w", err)
	}

	return offers, nil
}
