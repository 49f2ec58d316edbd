package confirming

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error represents an API error
type Error struct {
	StatusCode      int    `json:"-"`
	Message         string `json:"error"`
	Code            string `json:"code,omitempty"`
	PublishRequired bool   `json:"publish_required,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Error codes returned by the API
const (
	CodeNotFound               = "not_found"
	CodeForbidden              = "forbidden"
	CodeNotAdmittedToday       = "not_admitted_today"
	CodeAlreadyAdjudicated     = "already_adjudicated"
	CodeInvalidStateTransition = "invalid_state_transition"
	CodeConcurrentModification = "concurrent_modification"
	CodeInvalidOffer           = "invalid_offer"
)

// Invoice is a tax document as seen by the marketplace
type Invoice struct {
	ID                        uuid.UUID       `json:"id"`
	IssuerRut                 string          `json:"issuer_rut"`
	IssuerName                string          `json:"issuer_name"`
	ReceiverRut               string          `json:"receiver_rut"`
	ReceiverName              string          `json:"receiver_name"`
	DocType                   string          `json:"doc_type"`
	Folio                     int64           `json:"folio"`
	Amount                    decimal.Decimal `json:"amount"`
	IssueDate                 time.Time       `json:"issue_date"`
	DueDate                   time.Time       `json:"due_date"`
	OriginalDueDate           *time.Time      `json:"original_due_date,omitempty"`
	State                     string          `json:"state"`
	ConfirmationDate          *time.Time      `json:"confirmation_date,omitempty"`
	RealPaymentDate           *time.Time      `json:"real_payment_date,omitempty"`
	AwardedFinancierID        *uuid.UUID      `json:"awarded_financier_id,omitempty"`
	DueDateAcceptedByProvider *bool           `json:"due_date_accepted_by_provider,omitempty"`
	Version                   int             `json:"version"`
}

// OfferTerms are the financier-supplied parts of an offer
type OfferTerms struct {
	MonthlySpreadRate decimal.Decimal `json:"monthly_spread_rate"`
	FlatFee           decimal.Decimal `json:"flat_fee"`
	AnticipationDays  *int            `json:"anticipation_days,omitempty"`
}

// Offer is a financier's priced bid on an invoice
type Offer struct {
	ID                 uuid.UUID       `json:"id"`
	InvoiceID          uuid.UUID       `json:"invoice_id"`
	FinancierID        uuid.UUID       `json:"financier_id"`
	MonthlySpreadRate  decimal.Decimal `json:"monthly_spread_rate"`
	MonthlyCostOfFunds decimal.Decimal `json:"monthly_cost_of_funds"`
	FlatFee            decimal.Decimal `json:"flat_fee"`
	AnticipationDays   int             `json:"anticipation_days"`
	CessionPrice       decimal.Decimal `json:"cession_price"`
	State              string          `json:"state"`
	FinancierName      string          `json:"financier_name,omitempty"`
	FundName           string          `json:"fund_name,omitempty"`
}

// Quote is a price computed from a financier's standing payer terms
type Quote struct {
	TotalMonthlyRate decimal.Decimal `json:"total_monthly_rate"`
	DailyRate        decimal.Decimal `json:"daily_rate"`
	AnticipationDays int             `json:"anticipation_days"`
	Discount         decimal.Decimal `json:"discount"`
	FlatFee          decimal.Decimal `json:"flat_fee"`
	CessionPrice     decimal.Decimal `json:"cession_price"`
}

// OpenInvoice is an invoice open for offers
type OpenInvoice struct {
	Invoice              *Invoice `json:"invoice"`
	LiveAnticipationDays int      `json:"live_anticipation_days"`
	MyOffer              *Offer   `json:"my_offer,omitempty"`
	IndicativeQuote      *Quote   `json:"indicative_quote,omitempty"`
}

// AdjudicationResult reports the winning offer
type AdjudicationResult struct {
	Invoice  *Invoice `json:"invoice"`
	Winner   *Offer   `json:"winner"`
	Declined int64    `json:"declined"`
}

// AdmissionStatus tells whether a financier may operate today
type AdmissionStatus struct {
	FinancierID        uuid.UUID       `json:"financier_id"`
	Admitted           bool            `json:"admitted"`
	PublishRequired    bool            `json:"publish_required"`
	MonthlyCostOfFunds decimal.Decimal `json:"monthly_cost_of_funds"`
	CostOfFundsAsOf    *time.Time      `json:"cost_of_funds_as_of,omitempty"`
}

// PublishResult reports a cost-of-funds publication
type PublishResult struct {
	FundID             uuid.UUID       `json:"fund_id"`
	MonthlyCostOfFunds decimal.Decimal `json:"monthly_cost_of_funds"`
	AsOf               time.Time       `json:"as_of"`
	FinanciersUpdated  int64           `json:"financiers_updated"`
}
