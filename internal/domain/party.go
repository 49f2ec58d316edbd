package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/confirming/marketplace/pkg/rut"
)

// PartyKind represents the role a company plays on an invoice
type PartyKind string

const (
	PartyKindProvider PartyKind = "provider"
	PartyKindPayer    PartyKind = "payer"
)

// Party is a company known to the marketplace, keyed by RUT and kind
type Party struct {
	Rut       rut.RUT   `json:"rut"`
	Name      string    `json:"name"`
	Kind      PartyKind `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PayerKPIs summarizes how a payer handles invoices addressed to it.
// Pending is every invoice that is neither confirmed nor rejected.
type PayerKPIs struct {
	Payer                   *Party                    `json:"payer,omitempty"`
	Total                   int                       `json:"total"`
	Confirmed               int                       `json:"confirmed"`
	Rejected                int                       `json:"rejected"`
	Pending                 int                       `json:"pending"`
	AdjudicatedCount        int                       `json:"adjudicated"`
	DueDateRejectedCount    int                       `json:"due_date_rejected"`
	MeanDaysToConfirmation  *float64                  `json:"mean_days_to_confirmation,omitempty"`
	MeanDaysToPayment       *float64                  `json:"mean_days_to_payment,omitempty"`
	ConfirmationRatePercent *float64                  `json:"confirmation_rate_percent,omitempty"`
	AmountByMonth           []MonthlyAmount           `json:"amount_by_month"`
	ConfirmationTimeByMonth []MonthlyConfirmationTime `json:"confirmation_time_by_month"`
}

// MonthlyAmount is the confirmed amount of the invoices issued in a month
type MonthlyAmount struct {
	Period string          `json:"period"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthlyConfirmationTime is the mean days from issue to confirmation of the
// invoices confirmed in a month
type MonthlyConfirmationTime struct {
	Period   string  `json:"period"`
	MeanDays float64 `json:"mean_days"`
}

// countsAsConfirmed reports whether the payer accepted the invoice
func countsAsConfirmed(state InvoiceState) bool {
	switch state {
	case InvoiceStateConfirmed, InvoiceStateConfirmingRequested, InvoiceStateAdjudicated:
		return true
	}
	return false
}

func period(t time.Time) string {
	return t.Format("2006-01")
}

// ComputePayerKPIs derives the KPIs from a payer's invoices.
// Timings and monthly series only consider confirmed invoices, except the
// payment time which uses every paid invoice.
func ComputePayerKPIs(invoices []*Invoice) PayerKPIs {
	kpis := PayerKPIs{
		AmountByMonth:           []MonthlyAmount{},
		ConfirmationTimeByMonth: []MonthlyConfirmationTime{},
	}
	var confirmDays, payDays []int
	amounts := make(map[string]decimal.Decimal)
	daysByMonth := make(map[string][]int)

	for _, inv := range invoices {
		kpis.Total++
		switch inv.State {
		case InvoiceStateRejected:
			kpis.Rejected++
		case InvoiceStateDueDateRejected:
			kpis.DueDateRejectedCount++
		case InvoiceStateAdjudicated:
			kpis.AdjudicatedCount++
		}

		if inv.RealPaymentDate != nil {
			payDays = append(payDays, DaysBetween(inv.IssueDate, *inv.RealPaymentDate))
		}

		if !countsAsConfirmed(inv.State) {
			continue
		}
		kpis.Confirmed++
		issued := period(inv.IssueDate)
		amounts[issued] = amounts[issued].Add(inv.Amount)
		if inv.ConfirmationDate != nil {
			d := DaysBetween(inv.IssueDate, *inv.ConfirmationDate)
			confirmDays = append(confirmDays, d)
			confirmed := period(*inv.ConfirmationDate)
			daysByMonth[confirmed] = append(daysByMonth[confirmed], d)
		}
	}

	kpis.Pending = max(kpis.Total-kpis.Confirmed-kpis.Rejected, 0)
	kpis.MeanDaysToConfirmation = mean(confirmDays)
	kpis.MeanDaysToPayment = mean(payDays)

	if kpis.Total > 0 {
		rate := float64(kpis.Confirmed) * 100 / float64(kpis.Total)
		kpis.ConfirmationRatePercent = &rate
	}

	for _, p := range slices.Sorted(maps.Keys(amounts)) {
		kpis.AmountByMonth = append(kpis.AmountByMonth, MonthlyAmount{Period: p, Amount: amounts[p]})
	}
	for _, p := range slices.Sorted(maps.Keys(daysByMonth)) {
		kpis.ConfirmationTimeByMonth = append(kpis.ConfirmationTimeByMonth, MonthlyConfirmationTime{
			Period:   p,
			MeanDays: *mean(daysByMonth[p]),
		})
	}

	return kpis
}

func mean(values []int) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	m := float64(sum) / float64(len(values))
	return &m
}
