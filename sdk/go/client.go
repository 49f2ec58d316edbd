// Package confirming provides a Go client for the confirming marketplace API
package confirming

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client is the marketplace API client. Every call carries the bearer token it was built with.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new marketplace client
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// IsCode reports whether err is an API error with the given code
func IsCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Invoice fetches an invoice visible to the caller
func (c *Client) Invoice(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	var inv Invoice
	if err := c.do(ctx, http.MethodGet, invoicePath(invoiceID, ""), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// RequestConfirmation asks the payer to confirm an invoice (provider)
func (c *Client) RequestConfirmation(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	return c.invoiceCommand(ctx, invoiceID, "/request-confirmation")
}

// Confirm confirms an invoice (payer)
func (c *Client) Confirm(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	return c.invoiceCommand(ctx, invoiceID, "/confirm")
}

// RequestFinancing opens a confirmed invoice to offers (provider)
func (c *Client) RequestFinancing(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	return c.invoiceCommand(ctx, invoiceID, "/request-financing")
}

func (c *Client) invoiceCommand(ctx context.Context, invoiceID uuid.UUID, suffix string) (*Invoice, error) {
	var inv Invoice
	if err := c.do(ctx, http.MethodPost, invoicePath(invoiceID, suffix), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// SubmitOffer creates or revises the caller's offer on an invoice (financier)
func (c *Client) SubmitOffer(ctx context.Context, invoiceID uuid.UUID, terms OfferTerms) (*Offer, error) {
	var offer Offer
	if err := c.do(ctx, http.MethodPut, invoicePath(invoiceID, "/offer"), terms, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// MyOffer returns the caller's offer on an invoice (financier)
func (c *Client) MyOffer(ctx context.Context, invoiceID uuid.UUID) (*Offer, error) {
	var offer Offer
	if err := c.do(ctx, http.MethodGet, invoicePath(invoiceID, "/offer"), nil, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// Offers lists the offers on one of the caller's invoices, best price first (provider)
func (c *Client) Offers(ctx context.Context, invoiceID uuid.UUID) ([]Offer, error) {
	var resp struct {
		Offers []Offer `json:"offers"`
	}
	if err := c.do(ctx, http.MethodGet, invoicePath(invoiceID, "/offers"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Offers, nil
}

// Adjudicate awards the invoice to one offer (provider)
func (c *Client) Adjudicate(ctx context.Context, invoiceID, offerID uuid.UUID) (*AdjudicationResult, error) {
	var result AdjudicationResult
	body := map[string]uuid.UUID{"offer_id": offerID}
	if err := c.do(ctx, http.MethodPost, invoicePath(invoiceID, "/adjudicate"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// OpenInvoices lists invoices accepting offers (financier)
func (c *Client) OpenInvoices(ctx context.Context) ([]OpenInvoice, error) {
	var resp struct {
		Invoices []OpenInvoice `json:"invoices"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/marketplace/open", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Invoices, nil
}

// Admission reports whether the caller may operate today (financier)
func (c *Client) Admission(ctx context.Context) (*AdmissionStatus, error) {
	var status AdmissionStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/financiers/me/admission", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// PublishCostOfFunds publishes today's monthly cost of funds for the caller's fund (fund admin)
func (c *Client) PublishCostOfFunds(ctx context.Context, fundID uuid.UUID, monthlyRate decimal.Decimal) (*PublishResult, error) {
	var result PublishResult
	body := map[string]decimal.Decimal{"monthly_rate": monthlyRate}
	if err := c.do(ctx, http.MethodPost, "/api/v1/funds/"+fundID.String()+"/cost-of-funds", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func invoicePath(invoiceID uuid.UUID, suffix string) string {
	return "/api/v1/invoices/" + invoiceID.String() + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(raw)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
