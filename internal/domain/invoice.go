package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/confirming/marketplace/pkg/rut"
)

// InvoiceState is the lifecycle state of an invoice
type InvoiceState string

const (
	InvoiceStateLoaded                InvoiceState = "loaded"
	InvoiceStateConfirmationRequested InvoiceState = "confirmation_requested"
	InvoiceStateConfirmed             InvoiceState = "confirmed"
	InvoiceStateRejected              InvoiceState = "rejected"
	InvoiceStateConfirmingRequested   InvoiceState = "confirming_requested"
	InvoiceStateAdjudicated           InvoiceState = "adjudicated"
	InvoiceStateDueDateRejected       InvoiceState = "due_date_rejected"
)

// invoiceTransitions lists the legal next states for every state
var invoiceTransitions = map[InvoiceState][]InvoiceState{
	InvoiceStateLoaded:                {InvoiceStateConfirmationRequested},
	InvoiceStateConfirmationRequested: {InvoiceStateConfirmed, InvoiceStateRejected},
	InvoiceStateConfirmed:             {InvoiceStateConfirmingRequested, InvoiceStateDueDateRejected},
	InvoiceStateConfirmingRequested:   {InvoiceStateAdjudicated},
	InvoiceStateRejected:              {},
	InvoiceStateAdjudicated:           {},
	InvoiceStateDueDateRejected:       {},
}

// AllInvoiceStates returns every invoice state
func AllInvoiceStates() []InvoiceState {
	return []InvoiceState{
		InvoiceStateLoaded,
		InvoiceStateConfirmationRequested,
		InvoiceStateConfirmed,
		InvoiceStateRejected,
		InvoiceStateConfirmingRequested,
		InvoiceStateAdjudicated,
		InvoiceStateDueDateRejected,
	}
}

// IsValid checks if the state is a known invoice state
func (s InvoiceState) IsValid() bool {
	_, ok := invoiceTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s
func (s InvoiceState) IsTerminal() bool {
	next, ok := invoiceTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s InvoiceState) CanTransitionTo(next InvoiceState) bool {
	for _, candidate := range invoiceTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// DueDateLocked reports whether the due date can no longer be edited
func (s InvoiceState) DueDateLocked() bool {
	switch s {
	case InvoiceStateLoaded, InvoiceStateConfirmationRequested:
		return false
	default:
		return true
	}
}

// IsManaged reports whether the payer has already acted on the invoice
func (s InvoiceState) IsManaged() bool {
	switch s {
	case InvoiceStateLoaded, InvoiceStateConfirmationRequested:
		return false
	default:
		return true
	}
}

// ConfirmationOrigin records who asked the payer to confirm
type ConfirmationOrigin string

const (
	ConfirmationOriginNone     ConfirmationOrigin = ""
	ConfirmationOriginProvider ConfirmationOrigin = "provider"
)

// Invoice is a receivable issued by a provider to a payer
type Invoice struct {
	ID                        uuid.UUID          `json:"id"`
	IssuerRut                 rut.RUT            `json:"issuer_rut"`
	IssuerName                string             `json:"issuer_name"`
	ReceiverRut               rut.RUT            `json:"receiver_rut"`
	ReceiverName              string             `json:"receiver_name"`
	DocType                   string             `json:"doc_type"`
	Folio                     int64              `json:"folio"`
	Amount                    decimal.Decimal    `json:"amount"`
	IssueDate                 time.Time          `json:"issue_date"`
	DueDate                   time.Time          `json:"due_date"`
	OriginalDueDate           *time.Time         `json:"original_due_date,omitempty"`
	State                     InvoiceState       `json:"state"`
	ConfirmationOrigin        ConfirmationOrigin `json:"confirmation_origin,omitempty"`
	ConfirmingRequested       bool               `json:"confirming_requested"`
	ConfirmationDate          *time.Time         `json:"confirmation_date,omitempty"`
	RealPaymentDate           *time.Time         `json:"real_payment_date,omitempty"`
	AwardedFinancierID        *uuid.UUID         `json:"awarded_financier_id,omitempty"`
	DueDateAcceptedByProvider *bool              `json:"due_date_accepted_by_provider,omitempty"`
	Version                   int                `json:"version"`
	CreatedAt                 time.Time          `json:"created_at"`
	UpdatedAt                 time.Time          `json:"updated_at"`
}

// transition moves the invoice to next when the table allows it
func (i *Invoice) transition(next InvoiceState) error {
	if !i.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, i.State, next)
	}
	i.State = next
	return nil
}

// DueDateModified reports whether the payer changed the due date
func (i *Invoice) DueDateModified() bool {
	return i.OriginalDueDate != nil && !i.OriginalDueDate.Equal(i.DueDate)
}

// AnticipationDays returns the whole days from today until the due date, floored at zero
func (i *Invoice) AnticipationDays(today time.Time) int {
	days := DaysBetween(today, i.DueDate)
	if days < 0 {
		return 0
	}
	return days
}

// RequestConfirmation asks the payer to confirm the invoice
func (i *Invoice) RequestConfirmation() error {
	if err := i.transition(InvoiceStateConfirmationRequested); err != nil {
		return err
	}
	i.ConfirmationOrigin = ConfirmationOriginProvider
	i.ConfirmingRequested = true
	return nil
}

// Confirm records the payer's confirmation
func (i *Invoice) Confirm(today time.Time) error {
	if i.State != InvoiceStateConfirmationRequested {
		return fmt.Errorf("%w: cannot confirm from %s", ErrInvalidStateTransition, i.State)
	}
	today = DateOf(today)
	if i.DueDate.Before(today) {
		return fmt.Errorf("%w: due %s", ErrExpiredDueDate, i.DueDate.Format(DateLayout))
	}
	if err := i.transition(InvoiceStateConfirmed); err != nil {
		return err
	}
	i.ConfirmationDate = &today
	if i.OriginalDueDate == nil {
		due := i.DueDate
		i.OriginalDueDate = &due
	}
	return nil
}

// Reject records the payer's rejection
func (i *Invoice) Reject() error {
	if i.State != InvoiceStateConfirmationRequested {
		return fmt.Errorf("%w: cannot reject from %s", ErrInvalidStateTransition, i.State)
	}
	return i.transition(InvoiceStateRejected)
}

// EditDueDate lets the payer move the due date before confirming
func (i *Invoice) EditDueDate(newDate, today time.Time) error {
	if i.State.DueDateLocked() {
		return fmt.Errorf("%w: due date is locked in %s", ErrInvalidStateTransition, i.State)
	}
	newDate = DateOf(newDate)
	if newDate.Before(DateOf(today)) {
		return fmt.Errorf("%w: %s is before today", ErrInvalidDueDate, newDate.Format(DateLayout))
	}
	if newDate.Before(i.IssueDate) {
		return fmt.Errorf("%w: %s is before the issue date", ErrInvalidDueDate, newDate.Format(DateLayout))
	}
	if i.OriginalDueDate == nil {
		previous := i.DueDate
		i.OriginalDueDate = &previous
	}
	i.DueDate = newDate
	return nil
}

// RequestFinancing opens the invoice to financier offers
func (i *Invoice) RequestFinancing() error {
	if err := i.transition(InvoiceStateConfirmingRequested); err != nil {
		return err
	}
	if i.DueDateModified() {
		accepted := true
		i.DueDateAcceptedByProvider = &accepted
	}
	return nil
}

// RejectDueDate closes the invoice when the provider refuses the payer's new due date
func (i *Invoice) RejectDueDate() error {
	if i.State != InvoiceStateConfirmed || !i.DueDateModified() {
		return fmt.Errorf("%w: due date was not modified by the payer", ErrInvalidStateTransition)
	}
	if err := i.transition(InvoiceStateDueDateRejected); err != nil {
		return err
	}
	accepted := false
	i.DueDateAcceptedByProvider = &accepted
	return nil
}

// Adjudicate awards the invoice to a financier
func (i *Invoice) Adjudicate(financierID uuid.UUID) error {
	if i.State == InvoiceStateAdjudicated || i.AwardedFinancierID != nil {
		return ErrAlreadyAdjudicated
	}
	if err := i.transition(InvoiceStateAdjudicated); err != nil {
		return err
	}
	i.AwardedFinancierID = &financierID
	return nil
}

// RecordPayment stores the date the payer actually paid
func (i *Invoice) RecordPayment(paidOn, today time.Time) error {
	if i.State != InvoiceStateAdjudicated {
		return fmt.Errorf("%w: payment can only be recorded on adjudicated invoices", ErrInvalidStateTransition)
	}
	if i.RealPaymentDate != nil {
		return fmt.Errorf("%w: payment already recorded", ErrInvalidStateTransition)
	}
	paidOn = DateOf(paidOn)
	if paidOn.Before(i.IssueDate) || paidOn.After(DateOf(today)) {
		return fmt.Errorf("%w: %s", ErrInvalidPaymentDate, paidOn.Format(DateLayout))
	}
	i.RealPaymentDate = &paidOn
	return nil
}

// IngestInvoiceRequest is the contract offered to the invoice ingestion collaborator
type IngestInvoiceRequest struct {
	IssuerRut    string          `json:"issuer_rut" validate:"required"`
	IssuerName   string          `json:"issuer_name" validate:"required,max=200"`
	ReceiverRut  string          `json:"receiver_rut" validate:"required"`
	ReceiverName string          `json:"receiver_name" validate:"required,max=200"`
	DocType      string          `json:"doc_type" validate:"required"`
	Folio        int64           `json:"folio" validate:"required,gt=0"`
	Amount       decimal.Decimal `json:"amount"`
	IssueDate    string          `json:"issue_date" validate:"required,datetime=2006-01-02"`
	DueDate      string          `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// EditDueDateRequest represents a payer's due date change
type EditDueDateRequest struct {
	DueDate string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// RecordPaymentRequest represents a payer's payment notice
type RecordPaymentRequest struct {
	PaidOn string `json:"paid_on" validate:"required,datetime=2006-01-02"`
}

// PayerInvoices splits a payer's invoices into those awaiting action and those already managed
type PayerInvoices struct {
	Pending []*Invoice `json:"pending"`
	Managed []*Invoice `json:"managed"`
}
