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

const invoiceColumns = `
	id, issuer_rut, issuer_name, receiver_rut, receiver_name, doc_type, folio, amount,
	issue_date, due_date, original_due_date, state, confirmation_origin, confirming_requested,
	confirmation_date, real_payment_date, awarded_financier_id, due_date_accepted_by_provider,
	version, created_at, updated_at`

// InvoiceRepository handles invoice persistence
type InvoiceRepository struct {
	db *sql.DB
}

// NewInvoiceRepository creates a new invoice repository with a shared database connection
func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var (
		inv                              domain.Invoice
		origin                           string
		originalDue, confirmedOn, paidOn sql.NullTime
		awarded                          uuid.NullUUID
		dueDateAccepted                  sql.NullBool
	)

	err := row.Scan(
		&inv.ID,
		&inv.IssuerRut,
		&inv.IssuerName,
		&inv.ReceiverRut,
		&inv.ReceiverName,
		&inv.DocType,
		&inv.Folio,
		&inv.Amount,
		&inv.IssueDate,
		&inv.DueDate,
		&originalDue,
		&inv.State,
		&origin,
		&inv.ConfirmingRequested,
		&confirmedOn,
		&paidOn,
		&awarded,
		&dueDateAccepted,
		&inv.Version,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.IssueDate = domain.DateOf(inv.IssueDate)
	inv.DueDate = domain.DateOf(inv.DueDate)
	inv.OriginalDueDate = datePtr(originalDue)
	inv.ConfirmationOrigin = domain.ConfirmationOrigin(origin)
	inv.ConfirmationDate = datePtr(confirmedOn)
	inv.RealPaymentDate = datePtr(paidOn)
	if awarded.Valid {
		id := awarded.UUID
		inv.AwardedFinancierID = &id
	}
	if dueDateAccepted.Valid {
		accepted := dueDateAccepted.Bool
		inv.DueDateAcceptedByProvider = &accepted
	}

	return &inv, nil
}

// FindByID finds an invoice by ID
func (r *InvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invoice: %w", mapError(err))
	}

	return inv, nil
}

// Create creates a new invoice. A repeated issuer, receiver, folio and document type
// fails with domain.ErrDuplicateInvoice.
func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		inv.ID,
		inv.IssuerRut,
		inv.IssuerName,
		inv.ReceiverRut,
		inv.ReceiverName,
		inv.DocType,
		inv.Folio,
		inv.Amount,
		inv.IssueDate,
		inv.DueDate,
		inv.OriginalDueDate,
		inv.State,
		string(inv.ConfirmationOrigin),
		inv.ConfirmingRequested,
		inv.ConfirmationDate,
		inv.RealPaymentDate,
		inv.AwardedFinancierID,
		inv.DueDateAcceptedByProvider,
		inv.Version,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: folio %d from %s to %s", domain.ErrDuplicateInvoice, inv.Folio, inv.IssuerRut, inv.ReceiverRut)
	}
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", mapError(err))
	}

	return nil
}

// Update writes the mutable invoice fields if the stored version still matches
func (r *InvoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	query := `
		UPDATE invoices SET
			due_date = $3,
			original_due_date = $4,
			state = $5,
			confirmation_origin = $6,
			confirming_requested = $7,
			confirmation_date = $8,
			real_payment_date = $9,
			awarded_financier_id = $10,
			due_date_accepted_by_provider = $11,
			updated_at = $12,
			version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		inv.ID,
		inv.Version,
		inv.DueDate,
		inv.OriginalDueDate,
		inv.State,
		string(inv.ConfirmationOrigin),
		inv.ConfirmingRequested,
		inv.ConfirmationDate,
		inv.RealPaymentDate,
		inv.AwardedFinancierID,
		inv.DueDateAcceptedByProvider,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", mapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: invoice %s version %d", domain.ErrConcurrentModification, inv.ID, inv.Version)
	}

	inv.Version++
	return nil
}

// ListByState lists invoices in a state, oldest first
func (r *InvoiceRepository) ListByState(ctx context.Context, state domain.InvoiceState) ([]*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE state = $1 ORDER BY created_at, id`
	return r.list(ctx, query, state)
}

// ListAwardedTo lists invoices won by a financier
func (r *InvoiceRepository) ListAwardedTo(ctx context.Context, financierID uuid.UUID) ([]*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE awarded_financier_id = $1 ORDER BY updated_at DESC, id`
	return r.list(ctx, query, financierID)
}

// ListAwardedExcluding lists adjudicated invoices won by anyone but the financier
func (r *InvoiceRepository) ListAwardedExcluding(ctx context.Context, financierID uuid.UUID) ([]*domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + ` FROM invoices
		WHERE state = 'adjudicated' AND awarded_financier_id <> $1
		ORDER BY updated_at DESC, id
	`
	return r.list(ctx, query, financierID)
}

// ListByIssuer lists invoices issued by a provider
func (r *InvoiceRepository) ListByIssuer(ctx context.Context, issuer rut.RUT) ([]*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE issuer_rut = $1 ORDER BY created_at DESC, id`
	return r.list(ctx, query, issuer)
}

// ListByReceiver lists invoices owed by a payer
func (r *InvoiceRepository) ListByReceiver(ctx context.Context, receiver rut.RUT) ([]*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE receiver_rut = $1 ORDER BY created_at DESC, id`
	return r.list(ctx, query, receiver)
}

func (r *InvoiceRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Invoice, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", mapError(err))
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	return invoices, nil
}
