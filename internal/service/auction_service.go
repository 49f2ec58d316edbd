package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/metrics"
)

const tracerName = "github.com/confirming/marketplace/internal/service"

// AdmissionChecker resolves a financier that may operate today
type AdmissionChecker interface {
	RequireAdmission(ctx context.Context, financierID uuid.UUID) (*domain.Financier, error)
}

// AuctionService takes financier offers and awards invoices to a single winner
type AuctionService struct {
	tx        TxManager
	invoices  InvoiceStore
	offers    OfferStore
	admission AdmissionChecker
	lock      SubmissionLock
	publisher EventPublisher
	clock     Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuctionService creates a new auction service
func NewAuctionService(
	tx TxManager,
	invoices InvoiceStore,
	offers OfferStore,
	admission AdmissionChecker,
	lock SubmissionLock,
	publisher EventPublisher,
	clock Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AuctionService {
	return &AuctionService{
		tx:        tx,
		invoices:  invoices,
		offers:    offers,
		admission: admission,
		lock:      lock,
		publisher: publisher,
		clock:     clock,
		metrics:   m,
		logger:    logger,
		tracer:    otel.GetTracerProvider().Tracer(tracerName),
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SubmitOrUpdateOffer places the financier's offer on an open invoice, or revises
// the pending one in place. The offer is priced with the financier's cost of funds
// at submission time and that snapshot is stored with it.
func (s *AuctionService) SubmitOrUpdateOffer(ctx context.Context, financierID, invoiceID uuid.UUID, terms domain.OfferTerms) (*domain.Offer, error) {
	ctx, span := s.tracer.Start(ctx, "auction.submit_offer", trace.WithAttributes(
		attribute.String("invoice.id", invoiceID.String()),
		attribute.String("financier.id", financierID.String()),
	))
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.ObserveCommand("submit_offer", time.Since(start)) }()

	offer, created, err := s.submit(ctx, financierID, invoiceID, terms)
	if err != nil {
		recordSpanError(span, err)
		s.metrics.IncOffer("rejected")
		return nil, err
	}

	outcome := "revised"
	if created {
		outcome = "created"
	}
	s.metrics.IncOffer(outcome)
	span.SetAttributes(attribute.String("offer.id", offer.ID.String()), attribute.String("offer.outcome", outcome))

	publishEvents(ctx, s.publisher, s.logger, domain.NewEvent(
		domain.EventOfferSubmitted,
		invoiceID.String(),
		offer.UpdatedAt,
		map[string]any{
			"offer_id":          offer.ID,
			"financier_id":      financierID,
			"outcome":           outcome,
			"anticipation_days": offer.AnticipationDays,
			"cession_price":     offer.CessionPrice,
		},
	))

	s.logger.Info("Offer submitted",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("financier_id", financierID.String()),
		zap.String("offer_id", offer.ID.String()),
		zap.String("outcome", outcome),
		zap.String("cession_price", offer.CessionPrice.String()),
	)

	return offer, nil
}

func (s *AuctionService) submit(ctx context.Context, financierID, invoiceID uuid.UUID, terms domain.OfferTerms) (*domain.Offer, bool, error) {
	financier, err := s.admission.RequireAdmission(ctx, financierID)
	if err != nil {
		return nil, false, err
	}
	if err := terms.Validate(); err != nil {
		return nil, false, err
	}

	release, err := s.lock.Acquire(ctx, submissionLockKey(invoiceID, financierID))
	if err != nil {
		return nil, false, err
	}
	defer release()

	var (
		offer   *domain.Offer
		created bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.openInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}

		days := inv.AnticipationDays(s.clock.Today())
		if terms.AnticipationDays != nil {
			days = *terms.AnticipationDays
		}
		quote := domain.Price(domain.PricingInput{
			Amount:             inv.Amount,
			MonthlySpreadRate:  terms.MonthlySpreadRate,
			MonthlyCostOfFunds: financier.MonthlyCostOfFunds,
			FlatFee:            terms.FlatFee,
			AnticipationDays:   days,
		})
		if !quote.CessionPrice.IsPositive() {
			return fmt.Errorf("%w: cession price %s is not positive", domain.ErrInvalidOffer, quote.CessionPrice)
		}

		now := s.clock.Now()
		existing, err := s.offers.FindByInvoiceAndFinancier(ctx, invoiceID, financierID)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := existing.Revise(terms, financier.MonthlyCostOfFunds, quote, now); err != nil {
				return err
			}
			if err := s.offers.Update(ctx, existing); err != nil {
				return err
			}
			offer = existing
			return nil
		}

		offer = domain.NewOffer(invoiceID, financierID, terms, financier.MonthlyCostOfFunds, quote, now)
		created = true
		return s.offers.Create(ctx, offer)
	})
	if err != nil {
		return nil, false, err
	}
	return offer, created, nil
}

// openInvoice loads an invoice that still accepts offers
func (s *AuctionService) openInvoice(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice %s", domain.ErrNotFound, invoiceID)
	}
	if inv.State == domain.InvoiceStateAdjudicated || inv.AwardedFinancierID != nil {
		return nil, fmt.Errorf("%w: invoice %s", domain.ErrAlreadyAdjudicated, invoiceID)
	}
	if inv.State != domain.InvoiceStateConfirmingRequested {
		return nil, fmt.Errorf("%w: invoice %s is %s", domain.ErrInvalidStateTransition, invoiceID, inv.State)
	}
	return inv, nil
}

// Adjudicate awards the invoice to one offer and declines every other offer, all in
// one transaction. A concurrent modification is retried once.
func (s *AuctionService) Adjudicate(ctx context.Context, actor domain.Actor, invoiceID, offerID uuid.UUID) (*domain.AdjudicationResult, error) {
	ctx, span := s.tracer.Start(ctx, "auction.adjudicate", trace.WithAttributes(
		attribute.String("invoice.id", invoiceID.String()),
		attribute.String("offer.id", offerID.String()),
	))
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.ObserveCommand("adjudicate", time.Since(start)) }()

	result, err := s.adjudicate(ctx, actor, invoiceID, offerID)
	if errors.Is(err, domain.ErrConcurrentModification) {
		s.metrics.IncAdjudicationRetry()
		span.AddEvent("retry")
		s.logger.Warn("Adjudication conflicted, retrying",
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err),
		)
		result, err = s.adjudicate(ctx, actor, invoiceID, offerID)
	}
	if err != nil {
		recordSpanError(span, err)
		s.metrics.IncAdjudication(adjudicationOutcome(err))
		return nil, err
	}

	s.metrics.IncAdjudication("awarded")
	s.metrics.IncTransition(string(domain.InvoiceStateAdjudicated))

	publishEvents(ctx, s.publisher, s.logger, domain.NewEvent(
		domain.EventInvoiceAdjudicated,
		invoiceID.String(),
		result.Invoice.UpdatedAt,
		map[string]any{
			"offer_id":      result.Winner.ID,
			"financier_id":  result.Winner.FinancierID,
			"cession_price": result.Winner.CessionPrice,
			"declined":      result.Declined,
		},
	))

	s.logger.Info("Invoice adjudicated",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("offer_id", offerID.String()),
		zap.String("financier_id", result.Winner.FinancierID.String()),
		zap.Int64("declined", result.Declined),
	)

	return result, nil
}

func adjudicationOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyAdjudicated):
		return "already_adjudicated"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "conflict"
	default:
		return "rejected"
	}
}

func (s *AuctionService) adjudicate(ctx context.Context, actor domain.Actor, invoiceID, offerID uuid.UUID) (*domain.AdjudicationResult, error) {
	var result *domain.AdjudicationResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return fmt.Errorf("%w: invoice %s", domain.ErrNotFound, invoiceID)
		}
		if err := checkOwner(actor, inv, ownedByProvider); err != nil {
			return err
		}
		if inv.State == domain.InvoiceStateAdjudicated {
			return fmt.Errorf("%w: invoice %s", domain.ErrAlreadyAdjudicated, invoiceID)
		}
		if inv.State != domain.InvoiceStateConfirmingRequested {
			return fmt.Errorf("%w: invoice %s is %s", domain.ErrInvalidStateTransition, invoiceID, inv.State)
		}

		offer, err := s.offers.FindByID(ctx, offerID)
		if err != nil {
			return err
		}
		if offer == nil || offer.InvoiceID != invoiceID {
			return fmt.Errorf("%w: offer %s on invoice %s", domain.ErrNotFound, offerID, invoiceID)
		}

		now := s.clock.Now()
		if err := offer.Award(now); err != nil {
			return err
		}
		if err := s.offers.Update(ctx, offer); err != nil {
			return err
		}

		declined, err := s.offers.DeclineOthers(ctx, invoiceID, offer.ID, now)
		if err != nil {
			return err
		}

		if err := inv.Adjudicate(offer.FinancierID); err != nil {
			return err
		}
		inv.UpdatedAt = now
		if err := s.invoices.Update(ctx, inv); err != nil {
			return err
		}

		result = &domain.AdjudicationResult{Invoice: inv, Winner: offer, Declined: declined}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MyOffer returns the financier's own offer on an invoice
func (s *AuctionService) MyOffer(ctx context.Context, financierID, invoiceID uuid.UUID) (*domain.Offer, error) {
	offer, err := s.offers.FindByInvoiceAndFinancier(ctx, invoiceID, financierID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, fmt.Errorf("%w: no offer from financier %s on invoice %s", domain.ErrNotFound, financierID, invoiceID)
	}
	return offer, nil
}
