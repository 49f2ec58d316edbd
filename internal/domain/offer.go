package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfferState is the state of a financier's bid
type OfferState string

const (
	OfferStateSubmitted  OfferState = "submitted"
	OfferStateAwarded    OfferState = "awarded"
	OfferStateNotAwarded OfferState = "not_awarded"
)

// IsValid checks if the state is a known offer state
func (s OfferState) IsValid() bool {
	switch s {
	case OfferStateSubmitted, OfferStateAwarded, OfferStateNotAwarded:
		return true
	default:
		return false
	}
}

// Offer is a financier's bid to buy an invoice
type Offer struct {
	ID                 uuid.UUID       `json:"id"`
	InvoiceID          uuid.UUID       `json:"invoice_id"`
	FinancierID        uuid.UUID       `json:"financier_id"`
	MonthlySpreadRate  decimal.Decimal `json:"monthly_spread_rate"`
	MonthlyCostOfFunds decimal.Decimal `json:"monthly_cost_of_funds"`
	FlatFee            decimal.Decimal `json:"flat_fee"`
	AnticipationDays   int             `json:"anticipation_days"`
	CessionPrice       decimal.Decimal `json:"cession_price"`
	State              OfferState      `json:"state"`
	Version            int             `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// OfferTerms are the terms a financier bids with
type OfferTerms struct {
	MonthlySpreadRate decimal.Decimal `json:"monthly_spread_rate"`
	FlatFee           decimal.Decimal `json:"flat_fee"`
	// AnticipationDays defaults to the days left until the due date when omitted
	AnticipationDays *int `json:"anticipation_days,omitempty"`
}

// Validate checks that no term is negative
func (t OfferTerms) Validate() error {
	if t.MonthlySpreadRate.IsNegative() {
		return fmt.Errorf("%w: spread rate cannot be negative", ErrInvalidOffer)
	}
	if !FitsRateScale(t.MonthlySpreadRate) {
		return fmt.Errorf("%w: spread rate %s has more than %d decimal places", ErrInvalidOffer, t.MonthlySpreadRate, RateScale)
	}
	if t.FlatFee.IsNegative() {
		return fmt.Errorf("%w: flat fee cannot be negative", ErrInvalidOffer)
	}
	if !FitsMoneyScale(t.FlatFee) {
		return fmt.Errorf("%w: flat fee %s has more than %d decimal places", ErrInvalidOffer, t.FlatFee, MoneyScale)
	}
	if t.AnticipationDays != nil && *t.AnticipationDays < 0 {
		return fmt.Errorf("%w: anticipation days cannot be negative", ErrInvalidOffer)
	}
	return nil
}

// NewOffer builds a submitted offer priced with quote
func NewOffer(invoiceID, financierID uuid.UUID, terms OfferTerms, costOfFunds decimal.Decimal, quote Quote, now time.Time) *Offer {
	return &Offer{
		ID:                 uuid.New(),
		InvoiceID:          invoiceID,
		FinancierID:        financierID,
		MonthlySpreadRate:  terms.MonthlySpreadRate,
		MonthlyCostOfFunds: costOfFunds,
		FlatFee:            terms.FlatFee,
		AnticipationDays:   quote.AnticipationDays,
		CessionPrice:       quote.CessionPrice,
		State:              OfferStateSubmitted,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Revise replaces the terms of a pending offer in place
func (o *Offer) Revise(terms OfferTerms, costOfFunds decimal.Decimal, quote Quote, now time.Time) error {
	if o.State != OfferStateSubmitted {
		return fmt.Errorf("%w: offer is %s", ErrInvalidStateTransition, o.State)
	}
	o.MonthlySpreadRate = terms.MonthlySpreadRate
	o.MonthlyCostOfFunds = costOfFunds
	o.FlatFee = terms.FlatFee
	o.AnticipationDays = quote.AnticipationDays
	o.CessionPrice = quote.CessionPrice
	o.UpdatedAt = now
	return nil
}

// Award marks the offer as the winner
func (o *Offer) Award(now time.Time) error {
	if o.State != OfferStateSubmitted {
		return fmt.Errorf("%w: offer is %s", ErrInvalidStateTransition, o.State)
	}
	o.State = OfferStateAwarded
	o.UpdatedAt = now
	return nil
}

// TotalMonthlyRate returns spread plus the cost of funds snapshot
func (o *Offer) TotalMonthlyRate() decimal.Decimal {
	return o.MonthlySpreadRate.Add(o.MonthlyCostOfFunds)
}

// OfferView is an offer as shown to the invoice's provider
type OfferView struct {
	Offer
	FinancierName string `json:"financier_name"`
	FundName      string `json:"fund_name"`
}

// AdjudicateRequest selects the winning offer
type AdjudicateRequest struct {
	OfferID uuid.UUID `json:"offer_id" validate:"required"`
}

// AdjudicationResult is the outcome of a successful adjudication
type AdjudicationResult struct {
	Invoice  *Invoice `json:"invoice"`
	Winner   *Offer   `json:"winner"`
	Declined int64    `json:"declined"`
}
