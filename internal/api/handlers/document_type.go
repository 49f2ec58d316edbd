package handlers

import (
	"net/http"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/service"
)

// DocumentTypeHandler handles document type-related HTTP requests
type DocumentTypeHandler struct {
	ingestion *service.IngestionService
}

// NewDocumentTypeHandler creates a new document type handler
func NewDocumentTypeHandler(ingestion *service.IngestionService) *DocumentTypeHandler {
	return &DocumentTypeHandler{
		ingestion: ingestion,
	}
}

// List handles GET /api/v1/document-types
func (h *DocumentTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	docTypes, err := h.ingestion.ListDocumentTypes(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, domain.DocumentTypeListResponse{DocumentTypes: docTypes})
}
