package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/confirming/marketplace/internal/domain"
)

// FundRepository handles fund and financier persistence
type FundRepository struct {
	db *sql.DB
}

// NewFundRepository creates a new fund repository with a shared database connection
func NewFundRepository(db *sql.DB) *FundRepository {
	return &FundRepository{db: db}
}

// CreateFund creates a new fund
func (r *FundRepository) CreateFund(ctx context.Context, f *domain.Fund) error {
	query := `
		INSERT INTO funds (id, name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		f.ID,
		f.Name,
		f.Description,
		f.IsActive,
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create fund: %w", mapError(err))
	}

	return nil
}

// FindFund finds a fund by ID
func (r *FundRepository) FindFund(ctx context.Context, id uuid.UUID) (*domain.Fund, error) {
	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM funds
		WHERE id = $1
	`

	var f domain.Fund
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&f.ID,
		&f.Name,
		&f.Description,
		&f.IsActive,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find fund: %w", mapError(err))
	}

	return &f, nil
}

// UpdateFund updates a fund's name, description and active flag
func (r *FundRepository) UpdateFund(ctx context.Context, f *domain.Fund) error {
	query := `
		UPDATE funds SET name = $2, description = $3, is_active = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, f.ID, f.Name, f.Description, f.IsActive, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update fund: %w", mapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// ListActiveFunds lists active funds by name
func (r *FundRepository) ListActiveFunds(ctx context.Context) ([]*domain.Fund, error) {
	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM funds
		WHERE is_active = true
		ORDER BY name
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", mapError(err))
	}
	defer rows.Close()

	var funds []*domain.Fund
	for rows.Next() {
		var f domain.Fund
		if err := rows.Scan(&f.ID, &f.Name, &f.Description, &f.IsActive, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		funds = append(funds, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funds: %w", err)
	}

	return funds, nil
}

const financierColumns = `id, fund_id, name, is_fund_admin, monthly_cost_of_funds, cost_of_funds_as_of, created_at, updated_at`

func scanFinancier(row rowScanner) (*domain.Financier, error) {
	var (
		f    domain.Financier
		asOf sql.NullTime
	)
	err := row.Scan(
		&f.ID,
		&f.FundID,
		&f.Name,
		&f.IsFundAdmin,
		&f.MonthlyCostOfFunds,
		&asOf,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.CostOfFundsAsOf = datePtr(asOf)
	return &f, nil
}

// CreateFinancier creates a new financier
func (r *FundRepository) CreateFinancier(ctx context.Context, f *domain.Financier) error {
	query := `
		INSERT INTO financiers (` + financierColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		f.ID,
		f.FundID,
		f.Name,
		f.IsFundAdmin,
		f.MonthlyCostOfFunds,
		f.CostOfFundsAsOf,
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create financier: %w", mapError(err))
	}

	return nil
}

// FindFinancier finds a financier by ID
func (r *FundRepository) FindFinancier(ctx context.Context, id uuid.UUID) (*domain.Financier, error) {
	query := `SELECT ` + financierColumns + ` FROM financiers WHERE id = $1`

	f, err := scanFinancier(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find financier: %w", mapError(err))
	}

	return f, nil
}

// UpdateFinancier updates a financier's name and admin flag
func (r *FundRepository) UpdateFinancier(ctx context.Context, f *domain.Financier) error {
	query := `UPDATE financiers SET name = $2, is_fund_admin = $3, updated_at = $4 WHERE id = $1`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, f.ID, f.Name, f.IsFundAdmin, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update financier: %w", mapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// ListFinanciersByFund lists the financiers of a fund
func (r *FundRepository) ListFinanciersByFund(ctx context.Context, fundID uuid.UUID) ([]*domain.Financier, error) {
	query := `SELECT ` + financierColumns + ` FROM financiers WHERE fund_id = $1 ORDER BY name`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, fundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list financiers: %w", mapError(err))
	}
	defer rows.Close()

	var financiers []*domain.Financier
	for rows.Next() {
		f, err := scanFinancier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan financier: %w", err)
		}
		financiers = append(financiers, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating financiers: %w", err)
	}

	return financiers, nil
}

// PublishCostOfFunds sets the daily rate on every financier of the fund
func (r *FundRepository) PublishCostOfFunds(ctx context.Context, fundID uuid.UUID, rate decimal.Decimal, asOf time.Time) (int64, error) {
	query := `
		UPDATE financiers
		SET monthly_cost_of_funds = $2, cost_of_funds_as_of = $3, updated_at = NOW()
		WHERE fund_id = $1
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, fundID, rate, domain.DateOf(asOf))
	if err != nil {
		return 0, fmt.Errorf("failed to publish cost of funds: %w", mapError(err))
	}

	return result.RowsAffected()
}
