package domain

import "github.com/shopspring/decimal"

var (
	hundred    = decimal.NewFromInt(100)
	monthDays  = decimal.NewFromInt(30)
	rateToDays = decimal.NewFromInt(3000)
)

// PricingInput holds the terms needed to price a cession
type PricingInput struct {
	Amount             decimal.Decimal
	MonthlySpreadRate  decimal.Decimal
	MonthlyCostOfFunds decimal.Decimal
	FlatFee            decimal.Decimal
	AnticipationDays   int
}

// Quote is the outcome of pricing an invoice
type Quote struct {
	TotalMonthlyRate decimal.Decimal `json:"total_monthly_rate"`
	DailyRate        decimal.Decimal `json:"daily_rate"`
	AnticipationDays int             `json:"anticipation_days"`
	Discount         decimal.Decimal `json:"discount"`
	FlatFee          decimal.Decimal `json:"flat_fee"`
	CessionPrice     decimal.Decimal `json:"cession_price"`
}

// Stored precision of monthly rates and money amounts. Monetary results are
// rounded to MoneyScale.
const (
	RateScale  = 4
	MoneyScale = 2
)

// FitsRateScale reports whether a monthly rate can be stored without rounding
func FitsRateScale(rate decimal.Decimal) bool {
	return rate.Equal(rate.Truncate(RateScale))
}

// FitsMoneyScale reports whether an amount can be stored without rounding
func FitsMoneyScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(MoneyScale))
}

// Price computes the cession price of an invoice.
//
//	totalMonthlyRate = spread + costOfFunds            (percent per 30 days)
//	dailyRate        = totalMonthlyRate / 100 / 30
//	discount         = amount * dailyRate * days
//	cessionPrice     = amount - discount - flatFee
//
// The discount is evaluated as amount*total*days/3000 so exact inputs give exact results.
// Money is rounded half-even to two places.
func Price(in PricingInput) Quote {
	total := in.MonthlySpreadRate.Add(in.MonthlyCostOfFunds)
	days := decimal.NewFromInt(int64(in.AnticipationDays))

	discount := in.Amount.Mul(total).Mul(days).Div(rateToDays).RoundBank(MoneyScale)
	price := in.Amount.Sub(discount).Sub(in.FlatFee).RoundBank(MoneyScale)

	return Quote{
		TotalMonthlyRate: total,
		DailyRate:        total.Div(hundred).Div(monthDays),
		AnticipationDays: in.AnticipationDays,
		Discount:         discount,
		FlatFee:          in.FlatFee,
		CessionPrice:     price,
	}
}
