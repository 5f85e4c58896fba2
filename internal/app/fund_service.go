/**
 * @description
 * FundService holds the fund discovery and investment use cases. Every mutating
 * operation returns a domain.Result so the wizard layer can tell an expected
 * rejection (below minimum, insufficient balance) apart from a crash.
 *
 * @dependencies
 * - github.com/google/uuid, github.com/shopspring/decimal
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For publishing investment events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/store"
	"github.com/transfa/fund-service/pkg/rabbitmq"
)

// InvestInput is the request to subscribe into a fund.
type InvestInput struct {
	UserID uuid.UUID
	FundID uuid.UUID
	Amount decimal.Decimal
}

// FundService provides fund discovery and investment.
type FundService struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	now           func() time.Time
}

// NewFundService creates a new fund service instance.
func NewFundService(repo store.Repository, producer rabbitmq.Publisher) *FundService {
	if producer == nil {
		producer = &rabbitmq.DroppingPublisher{}
	}
	return &FundService{
		repo:          repo,
		eventProducer: producer,
		now:           time.Now,
	}
}

// ListFunds returns the funds open for investment.
func (s *FundService) ListFunds(ctx context.Context) ([]domain.Fund, error) {
	funds, err := s.repo.ListFunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list funds: %w", err)
	}
	active := make([]domain.Fund, 0, len(funds))
	for _, f := range funds {
		if f.Active {
			active = append(active, f)
		}
	}
	return active, nil
}

// GetFund returns the fund or nil when it does not exist.
func (s *FundService) GetFund(ctx context.Context, fundID uuid.UUID) (*domain.Fund, error) {
	fund, err := s.repo.FindFundByID(ctx, fundID)
	if err != nil {
		if errors.Is(err, store.ErrFundNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find fund: %w", err)
	}
	return fund, nil
}

// ListInvestments returns the user's investments, oldest first.
func (s *FundService) ListInvestments(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error) {
	investments, err := s.repo.ListInvestmentsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	return investments, nil
}

// Invest debits the quote asset and records the investment at the fund's current NAV.
func (s *FundService) Invest(ctx context.Context, in InvestInput) domain.Result[domain.Investment] {
	if !in.Amount.IsPositive() {
		return domain.Err[domain.Investment](store.ErrInvalidAmount)
	}

	fund, err := s.repo.FindFundByID(ctx, in.FundID)
	if err != nil {
		if !errors.Is(err, store.ErrFundNotFound) {
			log.Printf("level=error component=fund_service msg=\"fund lookup failed\" fund_id=%s err=%v", in.FundID, err)
		}
		return domain.Err[domain.Investment](fmt.Errorf("find fund: %w", err))
	}
	if !fund.Active {
		return domain.Err[domain.Investment](ErrFundInactive)
	}
	if in.Amount.LessThan(fund.MinimumInvestment) {
		return domain.Err[domain.Investment](fmt.Errorf("%w: minimum investment is %s %s", ErrAmountBelowMinimum, fund.MinimumInvestment.StringFixed(2), domain.QuoteAsset))
	}

	quote := fund.QuoteInvestment(in.Amount)

	// 1. Debit the wallet first so the balance can never be spent twice.
	if err := s.repo.DebitBalance(ctx, in.UserID, domain.QuoteAsset, in.Amount); err != nil {
		if !errors.Is(err, store.ErrInsufficientFunds) && !errors.Is(err, store.ErrBalanceNotFound) {
			log.Printf("level=error component=fund_service msg=\"debit failed\" user_id=%s err=%v", in.UserID, err)
		}
		return domain.Err[domain.Investment](fmt.Errorf("debit %s: %w", domain.QuoteAsset, err))
	}

	now := s.now().UTC()
	investment := domain.Investment{
		ID:        uuid.New(),
		UserID:    in.UserID,
		FundID:    fund.ID,
		Amount:    quote.Amount,
		EntryFee:  quote.EntryFee,
		NetAmount: quote.NetAmount,
		Units:     quote.Units,
		NAV:       quote.NAV,
		Status:    domain.TransactionStatusCompleted,
		CreatedAt: now,
	}

	// 2. Record the investment, refunding the debit if that fails.
	if err := s.repo.CreateInvestment(ctx, &investment); err != nil {
		log.Printf("level=error component=fund_service msg=\"create investment failed, refunding\" user_id=%s err=%v", in.UserID, err)
		if refundErr := s.repo.CreditBalance(ctx, in.UserID, domain.QuoteAsset, in.Amount); refundErr != nil {
			log.Printf("level=critical component=fund_service msg=\"refund after failed investment failed\" user_id=%s amount=%s err=%v", in.UserID, in.Amount, refundErr)
		}
		return domain.Err[domain.Investment](fmt.Errorf("create investment: %w", err))
	}

	// 3. Ledger entry. The investment already exists, so a failure here is logged only.
	investmentID := investment.ID
	ledger := domain.Transaction{
		ID:           uuid.New(),
		UserID:       in.UserID,
		Type:         domain.TransactionTypeInvestment,
		Asset:        domain.QuoteAsset,
		Amount:       quote.Amount,
		Fee:          quote.EntryFee,
		Status:       domain.TransactionStatusCompleted,
		InvestmentID: &investmentID,
		CreatedAt:    now,
	}
	if err := s.repo.CreateTransaction(ctx, &ledger); err != nil {
		log.Printf("level=warn component=fund_service msg=\"ledger entry failed\" investment_id=%s err=%v", investment.ID, err)
	}

	// 4. Publish.
	event := domain.InvestmentCreatedPayload{
		InvestmentID: investment.ID,
		UserID:       investment.UserID,
		FundID:       investment.FundID,
		Amount:       investment.Amount,
		Units:        investment.Units,
	}
	if err := s.eventProducer.Publish(ctx, domain.EventsExchange, domain.RoutingKeyInvestmentCreated, event); err != nil {
		log.Printf("level=warn component=fund_service msg=\"publish failed\" routing_key=%s investment_id=%s err=%v", domain.RoutingKeyInvestmentCreated, investment.ID, err)
	}

	return domain.Ok(investment, fmt.Sprintf("Invested %s %s in %s", quote.Amount.StringFixed(2), domain.QuoteAsset, fund.Name))
}

// ApplyNAV records a new net asset value for a fund.
func (s *FundService) ApplyNAV(ctx context.Context, fundID uuid.UUID, nav decimal.Decimal, asOf time.Time) error {
	if !nav.IsPositive() {
		return fmt.Errorf("%w: nav must be positive", store.ErrInvalidAmount)
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	if err := s.repo.UpdateFundNAV(ctx, fundID, nav, asOf.UTC()); err != nil {
		return fmt.Errorf("update nav: %w", err)
	}
	return nil
}
