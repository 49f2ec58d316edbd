package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/metrics"
	"github.com/confirming/marketplace/pkg/rut"
)

// RegistryService manages funds, their financiers and the daily cost of funds
type RegistryService struct {
	tx        TxManager
	funds     FundStore
	terms     PayerTermsStore
	publisher EventPublisher
	clock     Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewRegistryService creates a new registry service
func NewRegistryService(tx TxManager, funds FundStore, terms PayerTermsStore, publisher EventPublisher, clock Clock, m *metrics.Metrics, logger *zap.Logger) *RegistryService {
	return &RegistryService{
		tx:        tx,
		funds:     funds,
		terms:     terms,
		publisher: publisher,
		clock:     clock,
		metrics:   m,
		logger:    logger,
	}
}

// CreateFund creates a fund together with its first admin
func (s *RegistryService) CreateFund(ctx context.Context, req *domain.CreateFundRequest) (*domain.CreateFundResponse, error) {
	name := strings.TrimSpace(req.Name)
	adminName := strings.TrimSpace(req.AdminName)
	if name == "" || adminName == "" {
		return nil, fmt.Errorf("%w: fund and admin names are required", domain.ErrInvalidInput)
	}

	now := s.clock.Now()
	fund := &domain.Fund{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	admin := &domain.Financier{
		ID:                 uuid.New(),
		FundID:             fund.ID,
		Name:               adminName,
		IsFundAdmin:        true,
		MonthlyCostOfFunds: decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.funds.CreateFund(ctx, fund); err != nil {
			return err
		}
		return s.funds.CreateFinancier(ctx, admin)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Fund created",
		zap.String("fund_id", fund.ID.String()),
		zap.String("name", fund.Name),
		zap.String("admin_id", admin.ID.String()),
	)

	return &domain.CreateFundResponse{Fund: fund, Admin: admin}, nil
}

// DeactivateFund hides a fund from new registrations. Existing financiers are kept.
func (s *RegistryService) DeactivateFund(ctx context.Context, fundID uuid.UUID) (*domain.Fund, error) {
	var fund *domain.Fund
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.findFund(ctx, fundID)
		if err != nil {
			return err
		}
		f.IsActive = false
		f.UpdatedAt = s.clock.Now()
		if err := s.funds.UpdateFund(ctx, f); err != nil {
			return err
		}
		fund = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Fund deactivated", zap.String("fund_id", fundID.String()))
	return fund, nil
}

// ListActiveFunds lists the funds open for registration
func (s *RegistryService) ListActiveFunds(ctx context.Context) ([]*domain.Fund, error) {
	return s.funds.ListActiveFunds(ctx)
}

// RegisterFinancier adds a financier to the admin's own fund
func (s *RegistryService) RegisterFinancier(ctx context.Context, adminID, fundID uuid.UUID, req *domain.RegisterFinancierRequest) (*domain.Financier, error) {
	var financier *domain.Financier
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.authorizeAdmin(ctx, adminID, fundID); err != nil {
			return err
		}
		f, err := s.register(ctx, fundID, req)
		financier = f
		return err
	})
	if err != nil {
		return nil, err
	}
	return financier, nil
}

// RegisterFinancierInFund adds a financier to any active fund (back-office path)
func (s *RegistryService) RegisterFinancierInFund(ctx context.Context, fundID uuid.UUID, req *domain.RegisterFinancierRequest) (*domain.Financier, error) {
	var financier *domain.Financier
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.register(ctx, fundID, req)
		financier = f
		return err
	})
	if err != nil {
		return nil, err
	}
	return financier, nil
}

// register creates the financier with the fund's latest published cost of funds
func (s *RegistryService) register(ctx context.Context, fundID uuid.UUID, req *domain.RegisterFinancierRequest) (*domain.Financier, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: financier name is required", domain.ErrInvalidInput)
	}

	fund, err := s.findFund(ctx, fundID)
	if err != nil {
		return nil, err
	}
	if !fund.IsActive {
		return nil, fmt.Errorf("%w: fund %s is not active", domain.ErrForbidden, fundID)
	}

	members, err := s.funds.ListFinanciersByFund(ctx, fundID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	financier := &domain.Financier{
		ID:                 uuid.New(),
		FundID:             fundID,
		Name:               name,
		IsFundAdmin:        req.IsAdmin,
		MonthlyCostOfFunds: decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if latest := latestPublication(members); latest != nil {
		financier.MonthlyCostOfFunds = latest.MonthlyCostOfFunds
		asOf := *latest.CostOfFundsAsOf
		financier.CostOfFundsAsOf = &asOf
	}

	if err := s.funds.CreateFinancier(ctx, financier); err != nil {
		return nil, err
	}

	s.logger.Info("Financier registered",
		zap.String("fund_id", fundID.String()),
		zap.String("financier_id", financier.ID.String()),
		zap.Bool("admin", financier.IsFundAdmin),
	)
	return financier, nil
}

func latestPublication(members []*domain.Financier) *domain.Financier {
	var latest *domain.Financier
	for _, m := range members {
		if m.CostOfFundsAsOf == nil {
			continue
		}
		if latest == nil || m.CostOfFundsAsOf.After(*latest.CostOfFundsAsOf) {
			latest = m
		}
	}
	return latest
}

// ToggleAdmin flips the admin flag of another financier in the admin's fund
func (s *RegistryService) ToggleAdmin(ctx context.Context, adminID, fundID, targetID uuid.UUID) (*domain.Financier, error) {
	if adminID == targetID {
		return nil, fmt.Errorf("%w: cannot change your own admin flag", domain.ErrForbidden)
	}

	var target *domain.Financier
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.authorizeAdmin(ctx, adminID, fundID); err != nil {
			return err
		}

		f, err := s.funds.FindFinancier(ctx, targetID)
		if err != nil {
			return err
		}
		if f == nil {
			return fmt.Errorf("%w: financier %s", domain.ErrNotFound, targetID)
		}
		if f.FundID != fundID {
			return fmt.Errorf("%w: financier %s belongs to another fund", domain.ErrForbidden, targetID)
		}

		f.IsFundAdmin = !f.IsFundAdmin
		f.UpdatedAt = s.clock.Now()
		if err := s.funds.UpdateFinancier(ctx, f); err != nil {
			return err
		}
		target = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Financier admin flag changed",
		zap.String("fund_id", fundID.String()),
		zap.String("financier_id", targetID.String()),
		zap.Bool("admin", target.IsFundAdmin),
	)
	return target, nil
}

// ListFinanciers lists the financiers of the admin's fund
func (s *RegistryService) ListFinanciers(ctx context.Context, adminID, fundID uuid.UUID) ([]*domain.Financier, error) {
	if _, err := s.authorizeAdmin(ctx, adminID, fundID); err != nil {
		return nil, err
	}
	return s.funds.ListFinanciersByFund(ctx, fundID)
}

// PublishDailyCost sets today's monthly cost of funds on every financier of the fund
func (s *RegistryService) PublishDailyCost(ctx context.Context, adminID, fundID uuid.UUID, monthlyRate decimal.Decimal) (*domain.PublishCostOfFundsResponse, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveCommand("publish_daily_cost", time.Since(start)) }()

	today := s.clock.Today()
	var updated int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.authorizeAdmin(ctx, adminID, fundID); err != nil {
			return err
		}
		if !monthlyRate.IsPositive() {
			return fmt.Errorf("%w: got %s", domain.ErrInvalidCostOfFunds, monthlyRate)
		}
		if !domain.FitsRateScale(monthlyRate) {
			return fmt.Errorf("%w: %s has more than %d decimal places", domain.ErrInvalidCostOfFunds, monthlyRate, domain.RateScale)
		}

		n, err := s.funds.PublishCostOfFunds(ctx, fundID, monthlyRate, today)
		updated = n
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCostOfFundsPublished()
	publishEvents(ctx, s.publisher, s.logger, domain.NewEvent(
		domain.EventCostOfFundsPublished,
		fundID.String(),
		s.clock.Now(),
		map[string]any{
			"fund_id":               fundID,
			"published_by":          adminID,
			"monthly_cost_of_funds": monthlyRate,
			"as_of":                 today.Format(domain.DateLayout),
		},
	))

	s.logger.Info("Cost of funds published",
		zap.String("fund_id", fundID.String()),
		zap.String("rate", monthlyRate.String()),
		zap.Int64("financiers", updated),
	)

	return &domain.PublishCostOfFundsResponse{
		FundID:             fundID,
		MonthlyCostOfFunds: monthlyRate,
		AsOf:               today,
		FinanciersUpdated:  updated,
	}, nil
}

// IsAdmitted reports whether the financier may operate on the marketplace today
func (s *RegistryService) IsAdmitted(ctx context.Context, financierID uuid.UUID) (bool, error) {
	f, err := s.findFinancier(ctx, financierID)
	if err != nil {
		return false, err
	}
	return f.IsAdmitted(s.clock.Today()), nil
}

// AdmissionStatus describes the financier's admission for today
func (s *RegistryService) AdmissionStatus(ctx context.Context, financierID uuid.UUID) (*domain.AdmissionStatus, error) {
	f, err := s.findFinancier(ctx, financierID)
	if err != nil {
		return nil, err
	}
	return admissionOf(f, s.clock.Today()), nil
}

func admissionOf(f *domain.Financier, today time.Time) *domain.AdmissionStatus {
	admitted := f.IsAdmitted(today)
	return &domain.AdmissionStatus{
		FinancierID:        f.ID,
		Admitted:           admitted,
		PublishRequired:    !admitted && f.IsFundAdmin,
		MonthlyCostOfFunds: f.MonthlyCostOfFunds,
		CostOfFundsAsOf:    f.CostOfFundsAsOf,
	}
}

// RequireAdmission returns the financier when admitted today, or a *domain.AdmissionError
func (s *RegistryService) RequireAdmission(ctx context.Context, financierID uuid.UUID) (*domain.Financier, error) {
	f, err := s.findFinancier(ctx, financierID)
	if err != nil {
		return nil, err
	}
	if !f.IsAdmitted(s.clock.Today()) {
		return nil, &domain.AdmissionError{FinancierID: f.ID, PublishRequired: f.IsFundAdmin}
	}
	return f, nil
}

// SetPayerTerms stores the financier's standing conditions for a payer
func (s *RegistryService) SetPayerTerms(ctx context.Context, financierID uuid.UUID, req *domain.SetPayerTermsRequest) (*domain.PayerTerms, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payer, err := rut.Parse(req.PayerRut)
	if err != nil {
		return nil, fmt.Errorf("%w: payer %q", err, req.PayerRut)
	}
	if _, err := s.findFinancier(ctx, financierID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	terms := &domain.PayerTerms{
		ID:                uuid.New(),
		FinancierID:       financierID,
		PayerRut:          payer,
		PayerName:         strings.TrimSpace(req.PayerName),
		MonthlySpreadRate: req.MonthlySpreadRate,
		AnticipationDays:  req.AnticipationDays,
		FlatFee:           req.FlatFee,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.terms.Upsert(ctx, terms); err != nil {
		return nil, err
	}
	return terms, nil
}

// ListPayerTerms lists the financier's conditions by payer name
func (s *RegistryService) ListPayerTerms(ctx context.Context, financierID uuid.UUID) ([]*domain.PayerTerms, error) {
	return s.terms.ListByFinancier(ctx, financierID)
}

// authorizeAdmin checks that adminID is an admin of fundID
func (s *RegistryService) authorizeAdmin(ctx context.Context, adminID, fundID uuid.UUID) (*domain.Financier, error) {
	admin, err := s.funds.FindFinancier(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin == nil || !admin.Administers(fundID) {
		return nil, fmt.Errorf("%w: financier %s does not administer fund %s", domain.ErrForbidden, adminID, fundID)
	}
	return admin, nil
}

func (s *RegistryService) findFund(ctx context.Context, id uuid.UUID) (*domain.Fund, error) {
	f, err := s.funds.FindFund(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: fund %s", domain.ErrNotFound, id)
	}
	return f, nil
}

func (s *RegistryService) findFinancier(ctx context.Context, id uuid.UUID) (*domain.Financier, error) {
	f, err := s.funds.FindFinancier(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: financier %s", domain.ErrNotFound, id)
	}
	return f, nil
}
