package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confirming/marketplace/internal/api/middleware"
	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/service"
	"github.com/confirming/marketplace/pkg/rut"
)

var validate = validator.New()

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error           string `json:"error"`
	Code            string `json:"code,omitempty"`
	PublishRequired bool   `json:"publish_required,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// errorKinds maps domain errors to a status and a stable code, first match wins
var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrNotAdmittedToday, http.StatusForbidden, "not_admitted_today"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrAlreadyAdjudicated, http.StatusConflict, "already_adjudicated"},
	{domain.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domain.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{domain.ErrDuplicateInvoice, http.StatusConflict, "duplicate_invoice"},
	{domain.ErrExpiredDueDate, http.StatusUnprocessableEntity, "expired_due_date"},
	{domain.ErrInvalidDueDate, http.StatusUnprocessableEntity, "invalid_due_date"},
	{domain.ErrInvalidPaymentDate, http.StatusUnprocessableEntity, "invalid_payment_date"},
	{domain.ErrInvalidCostOfFunds, http.StatusUnprocessableEntity, "invalid_cost_of_funds"},
	{domain.ErrInvalidOffer, http.StatusUnprocessableEntity, "invalid_offer"},
	{domain.ErrInvalidInvoice, http.StatusUnprocessableEntity, "invalid_invoice"},
	{domain.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input"},
	{rut.ErrInvalid, http.StatusUnprocessableEntity, "invalid_rut"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
}

// respondServiceError translates a service error into a response. Unknown errors are logged and hidden.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, kind := range errorKinds {
		if !errors.Is(err, kind.err) {
			continue
		}
		body := ErrorResponse{Error: err.Error(), Code: kind.code}
		var admission *domain.AdmissionError
		if errors.As(err, &admission) {
			body.PublishRequired = admission.PublishRequired
		}
		respondJSON(w, kind.status, body)
		return
	}

	middleware.GetLogger(r.Context()).Error("Request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "Internal server error")
}

// decodeJSON reads the body into v and runs its validation tags
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "validation_failed"})
		return false
	}
	return true
}

// pathUUID parses a UUID route parameter
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// actorFrom returns the authenticated actor. Routes are mounted behind Authenticate.
func actorFrom(r *http.Request) domain.Actor {
	if actor := middleware.GetActor(r.Context()); actor != nil {
		return *actor
	}
	return domain.Actor{}
}

// financierFrom returns the financier id of the actor
func financierFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor := middleware.GetActor(r.Context())
	if actor == nil || actor.FinancierID == nil {
		respondError(w, http.StatusForbidden, "Financier identification required")
		return uuid.Nil, false
	}
	return *actor.FinancierID, true
}
