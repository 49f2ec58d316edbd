package confirming

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitOffer(t *testing.T) {
	invoiceID := uuid.New()
	days := 15

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/invoices/"+invoiceID.String()+"/offer", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var terms OfferTerms
		require.NoError(t, json.NewDecoder(r.Body).Decode(&terms))
		assert.True(t, terms.MonthlySpreadRate.Equal(decimal.RequireFromString("2.0")))
		require.NotNil(t, terms.AnticipationDays)
		assert.Equal(t, 15, *terms.AnticipationDays)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            uuid.NewString(),
			"invoice_id":    invoiceID,
			"cession_price": "980000",
			"state":         "submitted",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	offer, err := client.SubmitOffer(context.Background(), invoiceID, OfferTerms{
		MonthlySpreadRate: decimal.RequireFromString("2.0"),
		FlatFee:           decimal.NewFromInt(5000),
		AnticipationDays:  &days,
	})
	require.NoError(t, err)
	assert.Equal(t, "980000", offer.CessionPrice.String())
	assert.Equal(t, "submitted", offer.State)
}

func TestAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/marketplace/open":
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"cost of funds not published today","code":"not_admitted_today","publish_required":true}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")

	_, err := client.OpenInvoices(context.Background())
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeNotAdmittedToday))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.True(t, apiErr.PublishRequired)

	_, err = client.Admission(context.Background())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.False(t, IsCode(err, CodeNotAdmittedToday))
}

func TestAdjudicate(t *testing.T) {
	invoiceID, offerID := uuid.New(), uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, offerID.String(), body["offer_id"])
		w.Write([]byte(`{"invoice":{"state":"adjudicated"},"winner":{"state":"awarded"},"declined":2}`))
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL, "tok").Adjudicate(context.Background(), invoiceID, offerID)
	require.NoError(t, err)
	assert.Equal(t, "adjudicated", result.Invoice.State)
	assert.Equal(t, "awarded", result.Winner.State)
	assert.EqualValues(t, 2, result.Declined)
}
