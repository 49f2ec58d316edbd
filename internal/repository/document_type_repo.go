package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/confirming/marketplace/internal/domain"
)

// DocumentTypeRepository reads the financeable document type catalogue
type DocumentTypeRepository struct {
	db *sql.DB
}

// NewDocumentTypeRepository creates a new document type repository with a shared database connection
func NewDocumentTypeRepository(db *sql.DB) *DocumentTypeRepository {
	return &DocumentTypeRepository{db: db}
}

func scanDocumentType(row rowScanner) (domain.DocumentType, error) {
	var dt domain.DocumentType
	err := row.Scan(&dt.Code, &dt.Name, &dt.Description, &dt.IsActive, &dt.CreatedAt)
	return dt, err
}

// FindByCode finds a document type by its tax code
func (r *DocumentTypeRepository) FindByCode(ctx context.Context, code string) (*domain.DocumentType, error) {
	query := `SELECT code, name, description, is_active, created_at FROM document_types WHERE code = $1`

	dt, err := scanDocumentType(conn(ctx, r.db).QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document type: %w", mapError(err))
	}

	return &dt, nil
}

// ListActive lists document types that can be ingested
func (r *DocumentTypeRepository) ListActive(ctx context.Context) ([]domain.DocumentType, error) {
	query := `
		SELECT code, name, description, is_active, created_at
		FROM document_types
		WHERE is_active = true
		ORDER BY code
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list document types: %w", mapError(err))
	}
	defer rows.Close()

	var docTypes []domain.DocumentType
	for rows.Next() {
		dt, err := scanDocumentType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document type: %w", err)
		}
		docTypes = append(docTypes, dt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document types: %w", err)
	}

	return docTypes, nil
}
