package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/pkg/rut"
)

// IngestionService loads invoices delivered by the tax-document collaborator
type IngestionService struct {
	tx       TxManager
	invoices InvoiceStore
	parties  PartyStore
	docTypes DocumentTypeStore
	clock    Clock
	logger   *zap.Logger
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(tx TxManager, invoices InvoiceStore, parties PartyStore, docTypes DocumentTypeStore, clock Clock, logger *zap.Logger) *IngestionService {
	return &IngestionService{
		tx:       tx,
		invoices: invoices,
		parties:  parties,
		docTypes: docTypes,
		clock:    clock,
		logger:   logger,
	}
}

// IngestInvoice validates and stores a new invoice in the Loaded state and records
// its issuer and receiver in the party directory.
func (s *IngestionService) IngestInvoice(ctx context.Context, req *domain.IngestInvoiceRequest) (*domain.Invoice, error) {
	inv, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.invoices.Create(ctx, inv); err != nil {
			return err
		}
		if err := s.parties.Upsert(ctx, &domain.Party{
			Rut: inv.IssuerRut, Name: inv.IssuerName, Kind: domain.PartyKindProvider,
			CreatedAt: inv.CreatedAt, UpdatedAt: inv.CreatedAt,
		}); err != nil {
			return err
		}
		return s.parties.Upsert(ctx, &domain.Party{
			Rut: inv.ReceiverRut, Name: inv.ReceiverName, Kind: domain.PartyKindPayer,
			CreatedAt: inv.CreatedAt, UpdatedAt: inv.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Invoice ingested",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("issuer", inv.IssuerRut.String()),
		zap.String("receiver", inv.ReceiverRut.String()),
		zap.Int64("folio", inv.Folio),
	)

	return inv, nil
}

func (s *IngestionService) build(ctx context.Context, req *domain.IngestInvoiceRequest) (*domain.Invoice, error) {
	issuer, err := rut.Parse(req.IssuerRut)
	if err != nil {
		return nil, fmt.Errorf("%w: issuer: %w", domain.ErrInvalidInvoice, err)
	}
	receiver, err := rut.Parse(req.ReceiverRut)
	if err != nil {
		return nil, fmt.Errorf("%w: receiver: %w", domain.ErrInvalidInvoice, err)
	}
	if issuer == receiver {
		return nil, fmt.Errorf("%w: issuer and receiver are the same company", domain.ErrInvalidInvoice)
	}
	if req.Folio <= 0 {
		return nil, fmt.Errorf("%w: folio must be positive", domain.ErrInvalidInvoice)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInvoice)
	}

	issueDate, err := domain.ParseDate(req.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: issue date: %w", domain.ErrInvalidInvoice, err)
	}
	dueDate, err := domain.ParseDate(req.DueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: due date: %w", domain.ErrInvalidInvoice, err)
	}
	if dueDate.Before(issueDate) {
		return nil, fmt.Errorf("%w: due date precedes issue date", domain.ErrInvalidDueDate)
	}

	docType := strings.TrimSpace(req.DocType)
	if docType == "" {
		docType = domain.DefaultDocumentType
	}
	dt, err := s.docTypes.FindByCode(ctx, docType)
	if err != nil {
		return nil, err
	}
	if dt == nil || !dt.IsActive {
		return nil, fmt.Errorf("%w: document type %s is not accepted", domain.ErrInvalidInvoice, docType)
	}

	now := s.clock.Now()
	return &domain.Invoice{
		ID:           uuid.New(),
		IssuerRut:    issuer,
		IssuerName:   strings.TrimSpace(req.IssuerName),
		ReceiverRut:  receiver,
		ReceiverName: strings.TrimSpace(req.ReceiverName),
		DocType:      docType,
		Folio:        req.Folio,
		Amount:       req.Amount,
		IssueDate:    issueDate,
		DueDate:      dueDate,
		State:        domain.InvoiceStateLoaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ListDocumentTypes lists the accepted document types
func (s *IngestionService) ListDocumentTypes(ctx context.Context) ([]domain.DocumentType, error) {
	return s.docTypes.ListActive(ctx)
}
