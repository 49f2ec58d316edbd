package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/confirming/marketplace/pkg/rut"
)

// PayerTerms are a financier's standing conditions for invoices owed by one payer
type PayerTerms struct {
	ID                uuid.UUID       `json:"id"`
	FinancierID       uuid.UUID       `json:"financier_id"`
	PayerRut          rut.RUT         `json:"payer_rut"`
	PayerName         string          `json:"payer_name"`
	MonthlySpreadRate decimal.Decimal `json:"monthly_spread_rate"`
	AnticipationDays  int             `json:"anticipation_days"`
	FlatFee           decimal.Decimal `json:"flat_fee"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// SetPayerTermsRequest represents a financier's conditions for a payer
type SetPayerTermsRequest struct {
	PayerRut          string          `json:"payer_rut" validate:"required"`
	PayerName         string          `json:"payer_name" validate:"required,max=200"`
	MonthlySpreadRate decimal.Decimal `json:"monthly_spread_rate"`
	AnticipationDays  int             `json:"anticipation_days" validate:"gte=0"`
	FlatFee           decimal.Decimal `json:"flat_fee"`
}

// Validate checks the numeric terms
func (r SetPayerTermsRequest) Validate() error {
	if r.MonthlySpreadRate.IsNegative() || r.FlatFee.IsNegative() || r.AnticipationDays < 0 {
		return fmt.Errorf("%w: terms cannot be negative", ErrInvalidOffer)
	}
	if !FitsRateScale(r.MonthlySpreadRate) || !FitsMoneyScale(r.FlatFee) {
		return fmt.Errorf("%w: spread rate allows %d decimal places and flat fee %d", ErrInvalidOffer, RateScale, MoneyScale)
	}
	return nil
}
