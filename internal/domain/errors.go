package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidStateTransition is returned when a command is not legal in the invoice or offer's current state
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrExpiredDueDate is returned when confirming an invoice whose due date is in the past
	ErrExpiredDueDate = errors.New("due date has expired")

	// ErrInvalidDueDate is returned when a new due date precedes today or the issue date
	ErrInvalidDueDate = errors.New("invalid due date")

	// ErrInvalidPaymentDate is returned when a payment date is in the future or before issue
	ErrInvalidPaymentDate = errors.New("invalid payment date")

	// ErrAlreadyAdjudicated is returned when the invoice already has a winning offer
	ErrAlreadyAdjudicated = errors.New("invoice already adjudicated")

	// ErrNotAdmittedToday is returned when a financier's fund has not published today's cost of funds
	ErrNotAdmittedToday = errors.New("cost of funds not published today")

	// ErrInvalidCostOfFunds is returned when a published cost of funds is not positive or too precise
	ErrInvalidCostOfFunds = errors.New("invalid cost of funds")

	// ErrInvalidOffer is returned when offer terms are negative or price the invoice at zero or less
	ErrInvalidOffer = errors.New("invalid offer terms")

	// ErrInvalidInvoice is returned when ingested invoice data fails validation
	ErrInvalidInvoice = errors.New("invalid invoice")

	// ErrInvalidInput is returned when a back-office request is missing required data
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden is returned when the actor may not perform the operation
	ErrForbidden = errors.New("access forbidden")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateInvoice is returned when the issuer, receiver, folio and document type already exist
	ErrDuplicateInvoice = errors.New("duplicate invoice")

	// ErrConcurrentModification is returned when a concurrent writer won a race on the same rows
	ErrConcurrentModification = errors.New("concurrent modification")
)

// AdmissionError reports a financier that cannot operate until the daily cost of funds is published.
// It matches ErrNotAdmittedToday with errors.Is.
type AdmissionError struct {
	FinancierID uuid.UUID
	// PublishRequired is set when the financier is a fund admin and can publish the rate itself
	PublishRequired bool
}

func (e *AdmissionError) Error() string {
	if e.PublishRequired {
		return fmt.Sprintf("%s: financier %s must publish the daily cost of funds", ErrNotAdmittedToday, e.FinancierID)
	}
	return fmt.Sprintf("%s: financier %s", ErrNotAdmittedToday, e.FinancierID)
}

func (e *AdmissionError) Unwrap() error {
	return ErrNotAdmittedToday
}
