// Package memory holds in-process stores used by tests and by the server when
// no database URL is configured. Transactions are serialized and work on a
// private copy of the tables that is swapped in on commit.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/confirming/marketplace/internal/domain"
)

type txKey struct{}

type partyKey struct {
	rut  string
	kind domain.PartyKind
}

type termsKey struct {
	financierID uuid.UUID
	payer       string
}

type tables struct {
	invoices      map[uuid.UUID]domain.Invoice
	offers        map[uuid.UUID]domain.Offer
	funds         map[uuid.UUID]domain.Fund
	financiers    map[uuid.UUID]domain.Financier
	parties       map[partyKey]domain.Party
	payerTerms    map[termsKey]domain.PayerTerms
	documentTypes map[string]domain.DocumentType
}

func (t *tables) clone() *tables {
	return &tables{
		invoices:      maps.Clone(t.invoices),
		offers:        maps.Clone(t.offers),
		funds:         maps.Clone(t.funds),
		financiers:    maps.Clone(t.financiers),
		parties:       maps.Clone(t.parties),
		payerTerms:    maps.Clone(t.payerTerms),
		documentTypes: maps.Clone(t.documentTypes),
	}
}

// Store is an in-memory database. Use its accessors to obtain the per-entity stores.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *tables
}

// New creates an empty store with the default document type catalogue
func New() *Store {
	now := time.Now().UTC()
	return &Store{
		data: &tables{
			invoices:   make(map[uuid.UUID]domain.Invoice),
			offers:     make(map[uuid.UUID]domain.Offer),
			funds:      make(map[uuid.UUID]domain.Fund),
			financiers: make(map[uuid.UUID]domain.Financier),
			parties:    make(map[partyKey]domain.Party),
			payerTerms: make(map[termsKey]domain.PayerTerms),
			documentTypes: map[string]domain.DocumentType{
				"33": {Code: "33", Name: "Factura electrónica", IsActive: true, CreatedAt: now},
				"34": {Code: "34", Name: "Factura exenta electrónica", IsActive: true, CreatedAt: now},
				"46": {Code: "46", Name: "Factura de compra electrónica", IsActive: true, CreatedAt: now},
			},
		},
	}
}

// WithinTx runs fn against a private copy of every table. The copy replaces
// the committed tables only when fn succeeds, so readers outside the
// transaction never observe its writes. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txTables(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, working)); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = working
	s.mu.Unlock()
	return nil
}

func txTables(ctx context.Context) *tables {
	t, _ := ctx.Value(txKey{}).(*tables)
	return t
}

// write applies fn to the transaction's tables, or to the committed tables
// under the write lock once any running transaction has finished.
func (s *Store) write(ctx context.Context, fn func(t *tables) error) error {
	if t := txTables(ctx); t != nil {
		return fn(t)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) read(ctx context.Context, fn func(t *tables)) {
	if t := txTables(ctx); t != nil {
		fn(t)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// Invoices returns the invoice store
func (s *Store) Invoices() *InvoiceStore { return &InvoiceStore{s: s} }

// Offers returns the offer store
func (s *Store) Offers() *OfferStore { return &OfferStore{s: s} }

// Funds returns the fund and financier store
func (s *Store) Funds() *FundStore { return &FundStore{s: s} }

// PayerTerms returns the payer terms store
func (s *Store) PayerTerms() *PayerTermsStore { return &PayerTermsStore{s: s} }

// Parties returns the party directory
func (s *Store) Parties() *PartyStore { return &PartyStore{s: s} }

// DocumentTypes returns the document type catalogue
func (s *Store) DocumentTypes() *DocumentTypeStore { return &DocumentTypeStore{s: s} }
