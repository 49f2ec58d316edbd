package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/confirming/marketplace/pkg/rut"
)

// OpenInvoice is an invoice awaiting offers, as seen by one financier.
// LiveAnticipationDays is informational; persisted offer terms drive the price.
type OpenInvoice struct {
	Invoice              *Invoice `json:"invoice"`
	LiveAnticipationDays int      `json:"live_anticipation_days"`
	MyOffer              *Offer   `json:"my_offer,omitempty"`
	IndicativeQuote      *Quote   `json:"indicative_quote,omitempty"`
}

// AwardedInvoice is an invoice won by the viewing financier, with the winning offer
type AwardedInvoice struct {
	Invoice *Invoice `json:"invoice"`
	Offer   *Offer   `json:"offer,omitempty"`
}

// AwardedInvoiceSummary is an invoice won by another financier. Offer terms are never exposed.
type AwardedInvoiceSummary struct {
	InvoiceID    uuid.UUID       `json:"invoice_id"`
	IssuerRut    rut.RUT         `json:"issuer_rut"`
	IssuerName   string          `json:"issuer_name"`
	ReceiverRut  rut.RUT         `json:"receiver_rut"`
	ReceiverName string          `json:"receiver_name"`
	Folio        int64           `json:"folio"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
}

// SummarizeAward projects an invoice without award detail
func SummarizeAward(inv *Invoice) AwardedInvoiceSummary {
	return AwardedInvoiceSummary{
		InvoiceID:    inv.ID,
		IssuerRut:    inv.IssuerRut,
		IssuerName:   inv.IssuerName,
		ReceiverRut:  inv.ReceiverRut,
		ReceiverName: inv.ReceiverName,
		Folio:        inv.Folio,
		Amount:       inv.Amount,
		DueDate:      inv.DueDate,
	}
}

// FinancierDashboard groups the three marketplace buckets shown to a financier
type FinancierDashboard struct {
	Admission     AdmissionStatus         `json:"admission"`
	Open          []OpenInvoice           `json:"open"`
	MyAwarded     []AwardedInvoice        `json:"my_awarded"`
	OthersAwarded []AwardedInvoiceSummary `json:"others_awarded"`
}
