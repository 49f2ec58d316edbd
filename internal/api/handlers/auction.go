package handlers

import (
	"net/http"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/service"
)

// AuctionHandler handles offer and adjudication HTTP requests
type AuctionHandler struct {
	auction     *service.AuctionService
	marketplace *service.MarketplaceService
}

// NewAuctionHandler creates a new auction handler
func NewAuctionHandler(auction *service.AuctionService, marketplace *service.MarketplaceService) *AuctionHandler {
	return &AuctionHandler{
		auction:     auction,
		marketplace: marketplace,
	}
}

// SubmitOffer handles PUT /api/v1/invoices/{invoiceID}/offer
func (h *AuctionHandler) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceID")
	if !ok {
		return
	}
	financierID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	var terms domain.OfferTerms
	if !decodeJSON(w, r, &terms) {
		return
	}

	offer, err := h.auction.SubmitOrUpdateOffer(r.Context(), financierID, invoiceID, terms)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, offer)
}

// MyOffer handles GET /api/v1/invoices/{invoiceID}/offer
func (h *AuctionHandler) MyOffer(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceID")
	if !ok {
		return
	}
	financierID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	offer, err := h.auction.MyOffer(r.Context(), financierID, invoiceID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, offer)
}

// Offers handles GET /api/v1/invoices/{invoiceID}/offers
func (h *AuctionHandler) Offers(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceID")
	if !ok {
		return
	}

	offers, err := h.marketplace.OffersForInvoice(r.Context(), actorFrom(r), invoiceID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"offers": offers})
}

// Adjudicate handles POST /api/v1/invoices/{invoiceID}/adjudicate
func (h *AuctionHandler) Adjudicate(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathUUID(w, r, "invoiceID")
	if !ok {
		return
	}

	var req domain.AdjudicateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auction.Adjudicate(r.Context(), actorFrom(r), invoiceID, req.OfferID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
