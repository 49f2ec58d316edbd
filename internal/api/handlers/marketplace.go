package handlers

import (
	"net/http"

	"github.com/confirming/marketplace/internal/service"
)

// MarketplaceHandler serves the financier and back-office marketplace views
type MarketplaceHandler struct {
	marketplace *service.MarketplaceService
}

// NewMarketplaceHandler creates a new marketplace handler
func NewMarketplaceHandler(marketplace *service.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{
		marketplace: marketplace,
	}
}

// Open handles GET /api/v1/marketplace/open
func (h *MarketplaceHandler) Open(w http.ResponseWriter, r *http.Request) {
	financierID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	open, err := h.marketplace.OpenInvoices(r.Context(), financierID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"invoices": open})
}

// MyAwarded handles GET /api/v1/marketplace/awarded/mine
func (h *MarketplaceHandler) MyAwarded(w http.ResponseWriter, r *http.Request) {
	financierID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	awarded, err := h.marketplace.MyAwarded(r.Context(), financierID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"invoices": awarded})
}

// OthersAwarded handles GET /api/v1/marketplace/awarded/others
func (h *MarketplaceHandler) OthersAwarded(w http.ResponseWriter, r *http.Request) {
	financierID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	awarded, err := h.marketplace.OthersAwarded(r.Context(), financierID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"invoices": awarded})
}

// Dashboard handles GET /api/v1/marketplace/dashboard
func (h *MarketplaceHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	financierID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	dashboard, err := h.marketplace.Dashboard(r.Context(), financierID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, dashboard)
}

// General handles GET /api/v1/admin/marketplace
func (h *MarketplaceHandler) General(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.marketplace.GeneralMarketplace(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"invoices": invoices})
}
