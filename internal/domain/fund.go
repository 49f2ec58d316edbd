package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fund is a financing institution grouping one or more financiers
type Fund struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Financier is a user of a fund who bids on invoices
type Financier struct {
	ID                 uuid.UUID       `json:"id"`
	FundID             uuid.UUID       `json:"fund_id"`
	Name               string          `json:"name"`
	IsFundAdmin        bool            `json:"is_fund_admin"`
	MonthlyCostOfFunds decimal.Decimal `json:"monthly_cost_of_funds"`
	CostOfFundsAsOf    *time.Time      `json:"cost_of_funds_as_of,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsAdmitted reports whether the financier's cost of funds was published today and is usable
func (f *Financier) IsAdmitted(today time.Time) bool {
	if f.CostOfFundsAsOf == nil {
		return false
	}
	return DateOf(*f.CostOfFundsAsOf).Equal(DateOf(today)) && f.MonthlyCostOfFunds.IsPositive()
}

// Administers reports whether the financier is an admin of fundID
func (f *Financier) Administers(fundID uuid.UUID) bool {
	return f.IsFundAdmin && f.FundID == fundID
}

// AdmissionStatus describes whether a financier may operate today
type AdmissionStatus struct {
	FinancierID        uuid.UUID       `json:"financier_id"`
	Admitted           bool            `json:"admitted"`
	PublishRequired    bool            `json:"publish_required"`
	MonthlyCostOfFunds decimal.Decimal `json:"monthly_cost_of_funds"`
	CostOfFundsAsOf    *time.Time      `json:"cost_of_funds_as_of,omitempty"`
}

// CreateFundRequest represents a back-office request to create a fund with its first admin
type CreateFundRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
	AdminName   string `json:"admin_name" validate:"required,max=200"`
}

// CreateFundResponse returns the new fund and its admin
type CreateFundResponse struct {
	Fund  *Fund      `json:"fund"`
	Admin *Financier `json:"admin"`
}

// RegisterFinancierRequest represents a request to add a financier to a fund
type RegisterFinancierRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	IsAdmin bool   `json:"is_admin"`
}

// PublishCostOfFundsRequest represents a fund admin's daily rate publication
type PublishCostOfFundsRequest struct {
	MonthlyRate decimal.Decimal `json:"monthly_rate"`
}

// PublishCostOfFundsResponse reports the publication result
type PublishCostOfFundsResponse struct {
	FundID             uuid.UUID       `json:"fund_id"`
	MonthlyCostOfFunds decimal.Decimal `json:"monthly_cost_of_funds"`
	AsOf               time.Time       `json:"as_of"`
	FinanciersUpdated  int64           `json:"financiers_updated"`
}
