package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/service"
)

// InvoiceHandler handles invoice lifecycle HTTP requests
type InvoiceHandler struct {
	ledger    *service.LedgerService
	ingestion *service.IngestionService
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(ledger *service.LedgerService, ingestion *service.IngestionService) *InvoiceHandler {
	return &InvoiceHandler{
		ledger:    ledger,
		ingestion: ingestion,
	}
}

// Ingest handles POST /api/v1/admin/invoices
func (h *InvoiceHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req domain.IngestInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, err := h.ingestion.IngestInvoice(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, inv)
}

// Get handles GET /api/v1/invoices/{invoiceID}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceID")
	if !ok {
		return
	}

	inv, err := h.ledger.Get(r.Context(), actorFrom(r), invoiceID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, inv)
}

// ProviderInvoices handles GET /api/v1/provider/invoices
func (h *InvoiceHandler) ProviderInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.ledger.ProviderInvoices(r.Context(), actorFrom(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"invoices": invoices})
}

// PayerInvoices handles GET /api/v1/payer/invoices
func (h *InvoiceHandler) PayerInvoices(w http.ResponseWriter, r *http.Request) {
	split, err := h.ledger.PayerInvoices(r.Context(), actorFrom(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, split)
}

type ledgerCommand func(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID) (*domain.Invoice, error)

// command adapts a ledger command without a body to a handler
func (h *InvoiceHandler) command(cmd ledgerCommand) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invoiceID, ok := pathUUID(w, r, "invoiceID")
		if !ok {
			return
		}

		inv, err := cmd(r.Context(), actorFrom(r), invoiceID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		respondJSON(w, http.StatusOK, inv)
	}
}

// RequestConfirmation handles POST /api/v1/invoices/{invoiceID}/request-confirmation
func (h *InvoiceHandler) RequestConfirmation(w http.ResponseWriter, r *http.Request) {
	h.command(h.ledger.RequestConfirmation)(w, r)
}

// Confirm handles POST /api/v1/invoices/{invoiceID}/confirm
func (h *InvoiceHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.command(h.ledger.Confirm)(w, r)
}

// Reject handles POST /api/v1/invoices/{invoiceID}/reject
func (h *InvoiceHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.command(h.ledger.Reject)(w, r)
}

// RequestFinancing handles POST /api/v1/invoices/{invoiceID}/request-financing
func (h *InvoiceHandler) RequestFinancing(w http.ResponseWriter, r *http.Request) {
	h.command(h.ledger.RequestFinancing)(w, r)
}

// RejectDueDate handles POST /api/v1/invoices/{invoiceID}/reject-due-date
func (h *InvoiceHandler) RejectDueDate(w http.ResponseWriter, r *http.Request) {
	h.command(h.ledger.RejectDueDate)(w, r)
}

// EditDueDate handles PATCH /api/v1/invoices/{invoiceID}/due-date
func (h *InvoiceHandler) EditDueDate(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceID")
	if !ok {
		return
	}

	var req domain.EditDueDateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dueDate, err := domain.ParseDate(req.DueDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}

	inv, err := h.ledger.EditDueDate(r.Context(), actorFrom(r), invoiceID, dueDate)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, inv)
}

// RecordPayment handles POST /api/v1/invoices/{invoiceID}/payment
func (h *InvoiceHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceID")
	if !ok {
		return
	}

	var req domain.RecordPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	paidOn, err := domain.ParseDate(req.PaidOn)
	if err != nil {
		respondError(w, http.StatusBadRequest, "paid_on must be YYYY-MM-DD")
		return
	}

	inv, err := h.ledger.RecordPayment(r.Context(), actorFrom(r), invoiceID, paidOn)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, inv)
}
