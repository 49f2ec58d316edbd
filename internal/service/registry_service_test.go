package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/confirming/marketplace/internal/domain"
)

type RegistryServiceSuite struct {
	suite.Suite
	env *env
	ctx context.Context
}

func (s *RegistryServiceSuite) SetupTest() {
	s.env = newEnv()
	s.ctx = context.Background()
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) TestCreateFund() {
	created, err := s.env.registry.CreateFund(s.ctx, &domain.CreateFundRequest{Name: " Fondo Norte ", AdminName: "Ana"})
	s.Require().NoError(err)
	s.Equal("Fondo Norte", created.Fund.Name)
	s.True(created.Fund.IsActive)
	s.True(created.Admin.IsFundAdmin)
	s.Equal(created.Fund.ID, created.Admin.FundID)

	s.Run("a fresh admin is not admitted", func() {
		admitted, err := s.env.registry.IsAdmitted(s.ctx, created.Admin.ID)
		s.Require().NoError(err)
		s.False(admitted)
	})

	s.Run("names are required", func() {
		_, err := s.env.registry.CreateFund(s.ctx, &domain.CreateFundRequest{Name: " ", AdminName: "Ana"})
		s.Require().ErrorIs(err, domain.ErrInvalidInput)
	})
}

func (s *RegistryServiceSuite) TestPublishDailyCostAdmitsTheWholeFund() {
	created, err := s.env.registry.CreateFund(s.ctx, &domain.CreateFundRequest{Name: "Fondo Norte", AdminName: "Ana"})
	s.Require().NoError(err)
	member, err := s.env.registry.RegisterFinancier(s.ctx, created.Admin.ID, created.Fund.ID, &domain.RegisterFinancierRequest{Name: "Beto"})
	s.Require().NoError(err)

	res, err := s.env.registry.PublishDailyCost(s.ctx, created.Admin.ID, created.Fund.ID, decimal.RequireFromString("1.2"))
	s.Require().NoError(err)
	s.EqualValues(2, res.FinanciersUpdated)
	s.Equal(s.env.clock.Today(), res.AsOf)

	admitted, err := s.env.registry.IsAdmitted(s.ctx, created.Admin.ID)
	s.Require().NoError(err)
	s.True(admitted)

	status, err := s.env.registry.AdmissionStatus(s.ctx, member.ID)
	s.Require().NoError(err)
	s.True(status.Admitted)
	s.True(status.MonthlyCostOfFunds.Equal(decimal.RequireFromString("1.2")))

	s.Len(s.env.events.ofType(domain.EventCostOfFundsPublished), 1)
}

func (s *RegistryServiceSuite) TestAdmissionExpiresOvernight() {
	admin := s.env.admittedFund(s.T(), "Fondo Sur", "1.0")

	_, err := s.env.registry.RequireAdmission(s.ctx, admin.ID)
	s.Require().NoError(err)

	s.env.clock.At = s.env.clock.At.Add(24 * time.Hour)

	_, err = s.env.registry.RequireAdmission(s.ctx, admin.ID)
	s.Require().ErrorIs(err, domain.ErrNotAdmittedToday)

	var admission *domain.AdmissionError
	s.Require().True(errors.As(err, &admission))
	s.True(admission.PublishRequired)

	status, err := s.env.registry.AdmissionStatus(s.ctx, admin.ID)
	s.Require().NoError(err)
	s.False(status.Admitted)
	s.True(status.PublishRequired)
}

func (s *RegistryServiceSuite) TestNonAdminIsNotAskedToPublish() {
	created, err := s.env.registry.CreateFund(s.ctx, &domain.CreateFundRequest{Name: "Fondo Norte", AdminName: "Ana"})
	s.Require().NoError(err)
	member, err := s.env.registry.RegisterFinancier(s.ctx, created.Admin.ID, created.Fund.ID, &domain.RegisterFinancierRequest{Name: "Beto"})
	s.Require().NoError(err)

	_, err = s.env.registry.RequireAdmission(s.ctx, member.ID)
	var admission *domain.AdmissionError
	s.Require().True(errors.As(err, &admission))
	s.False(admission.PublishRequired)
}

func (s *RegistryServiceSuite) TestPublishDailyCostRejectsInvalidRates() {
	admin := s.env.admittedFund(s.T(), "Fondo Sur", "1.0")

	for _, rate := range []string{"0", "-0.5", "1.00005"} {
		_, err := s.env.registry.PublishDailyCost(s.ctx, admin.ID, admin.FundID, decimal.RequireFromString(rate))
		s.Require().ErrorIs(err, domain.ErrInvalidCostOfFunds, rate)
	}

	status, err := s.env.registry.AdmissionStatus(s.ctx, admin.ID)
	s.Require().NoError(err)
	s.True(status.MonthlyCostOfFunds.Equal(decimal.RequireFromString("1.0")))
}

func (s *RegistryServiceSuite) TestAdminAuthorization() {
	north := s.env.admittedFund(s.T(), "Fondo Norte", "1.0")
	south := s.env.admittedFund(s.T(), "Fondo Sur", "1.1")

	s.Run("cannot publish for another fund", func() {
		_, err := s.env.registry.PublishDailyCost(s.ctx, north.ID, south.FundID, decimal.RequireFromString("1.5"))
		s.Require().ErrorIs(err, domain.ErrForbidden)
	})

	s.Run("cannot register into another fund", func() {
		_, err := s.env.registry.RegisterFinancier(s.ctx, north.ID, south.FundID, &domain.RegisterFinancierRequest{Name: "Intruso"})
		s.Require().ErrorIs(err, domain.ErrForbidden)
	})

	s.Run("cannot toggle itself", func() {
		_, err := s.env.registry.ToggleAdmin(s.ctx, north.ID, north.FundID, north.ID)
		s.Require().ErrorIs(err, domain.ErrForbidden)
	})

	s.Run("cannot toggle a member of another fund", func() {
		_, err := s.env.registry.ToggleAdmin(s.ctx, north.ID, north.FundID, south.ID)
		s.Require().ErrorIs(err, domain.ErrForbidden)
	})

	s.Run("non admins cannot list members", func() {
		member, err := s.env.registry.RegisterFinancier(s.ctx, north.ID, north.FundID, &domain.RegisterFinancierRequest{Name: "Beto"})
		s.Require().NoError(err)
		_, err = s.env.registry.ListFinanciers(s.ctx, member.ID, north.FundID)
		s.Require().ErrorIs(err, domain.ErrForbidden)
	})
}

func (s *RegistryServiceSuite) TestToggleAdmin() {
	admin := s.env.admittedFund(s.T(), "Fondo Norte", "1.0")
	member, err := s.env.registry.RegisterFinancier(s.ctx, admin.ID, admin.FundID, &domain.RegisterFinancierRequest{Name: "Beto"})
	s.Require().NoError(err)
	s.False(member.IsFundAdmin)

	promoted, err := s.env.registry.ToggleAdmin(s.ctx, admin.ID, admin.FundID, member.ID)
	s.Require().NoError(err)
	s.True(promoted.IsFundAdmin)

	demoted, err := s.env.registry.ToggleAdmin(s.ctx, member.ID, admin.FundID, admin.ID)
	s.Require().NoError(err)
	s.False(demoted.IsFundAdmin)

	members, err := s.env.registry.ListFinanciers(s.ctx, member.ID, admin.FundID)
	s.Require().NoError(err)
	s.Len(members, 2)
}

func (s *RegistryServiceSuite) TestNewFinancierInheritsPublishedRate() {
	admin := s.env.admittedFund(s.T(), "Fondo Norte", "1.3")

	member, err := s.env.registry.RegisterFinancier(s.ctx, admin.ID, admin.FundID, &domain.RegisterFinancierRequest{Name: "Beto"})
	s.Require().NoError(err)
	s.True(member.MonthlyCostOfFunds.Equal(decimal.RequireFromString("1.3")))
	s.Require().NotNil(member.CostOfFundsAsOf)
	s.Equal(s.env.clock.Today(), *member.CostOfFundsAsOf)

	admitted, err := s.env.registry.IsAdmitted(s.ctx, member.ID)
	s.Require().NoError(err)
	s.True(admitted)
}

func (s *RegistryServiceSuite) TestDeactivatedFundRejectsRegistrations() {
	admin := s.env.admittedFund(s.T(), "Fondo Norte", "1.0")

	fund, err := s.env.registry.DeactivateFund(s.ctx, admin.FundID)
	s.Require().NoError(err)
	s.False(fund.IsActive)

	_, err = s.env.registry.RegisterFinancierInFund(s.ctx, admin.FundID, &domain.RegisterFinancierRequest{Name: "Beto"})
	s.Require().ErrorIs(err, domain.ErrForbidden)

	active, err := s.env.registry.ListActiveFunds(s.ctx)
	s.Require().NoError(err)
	s.Empty(active)

	_, err = s.env.registry.DeactivateFund(s.ctx, newID())
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

func (s *RegistryServiceSuite) TestPayerTerms() {
	admin := s.env.admittedFund(s.T(), "Fondo Norte", "1.0")

	terms, err := s.env.registry.SetPayerTerms(s.ctx, admin.ID, &domain.SetPayerTermsRequest{
		PayerRut:          "11.111.111-1",
		PayerName:         "Retail Sur S.A.",
		MonthlySpreadRate: decimal.RequireFromString("1.5"),
		AnticipationDays:  30,
		FlatFee:           decimal.NewFromInt(2000),
	})
	s.Require().NoError(err)
	s.Equal(payerRut, terms.PayerRut)

	s.Run("upsert keeps one row per payer", func() {
		_, err := s.env.registry.SetPayerTerms(s.ctx, admin.ID, &domain.SetPayerTermsRequest{
			PayerRut:          "11111111-1",
			PayerName:         "Retail Sur S.A.",
			MonthlySpreadRate: decimal.RequireFromString("1.8"),
			FlatFee:           decimal.Zero,
		})
		s.Require().NoError(err)

		list, err := s.env.registry.ListPayerTerms(s.ctx, admin.ID)
		s.Require().NoError(err)
		s.Require().Len(list, 1)
		s.Equal(terms.ID, list[0].ID)
		s.True(list[0].MonthlySpreadRate.Equal(decimal.RequireFromString("1.8")))
	})

	s.Run("negative terms are rejected", func() {
		_, err := s.env.registry.SetPayerTerms(s.ctx, admin.ID, &domain.SetPayerTermsRequest{
			PayerRut:          "11111111-1",
			PayerName:         "Retail Sur S.A.",
			MonthlySpreadRate: decimal.RequireFromString("-1"),
		})
		s.Require().ErrorIs(err, domain.ErrInvalidOffer)
	})

	s.Run("rates beyond four decimal places are rejected", func() {
		_, err := s.env.registry.SetPayerTerms(s.ctx, admin.ID, &domain.SetPayerTermsRequest{
			PayerRut:          "11111111-1",
			PayerName:         "Retail Sur S.A.",
			MonthlySpreadRate: decimal.RequireFromString("1.23456"),
		})
		s.Require().ErrorIs(err, domain.ErrInvalidOffer)

		list, err := s.env.registry.ListPayerTerms(s.ctx, admin.ID)
		s.Require().NoError(err)
		for _, terms := range list {
			s.False(terms.MonthlySpreadRate.Equal(decimal.RequireFromString("1.23456")))
		}
	})

	s.Run("payer RUT must be valid", func() {
		_, err := s.env.registry.SetPayerTerms(s.ctx, admin.ID, &domain.SetPayerTermsRequest{
			PayerRut:  "11111111-2",
			PayerName: "Retail Sur S.A.",
		})
		s.Require().Error(err)
	})
}
