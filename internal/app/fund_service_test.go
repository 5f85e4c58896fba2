package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/store"
)

func TestInvest_RecordsInvestmentAndDebitsBalance(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	res := env.container.Funds.Invest(ctx, InvestInput{UserID: env.investor.ID, FundID: env.fund.ID, Amount: decimal.NewFromInt(1000)})
	if !res.Success() {
		t.Fatalf("expected success, got %q", res.Error())
	}
	inv := res.Data()
	if !inv.EntryFee.Equal(decimal.NewFromInt(15)) || !inv.NetAmount.Equal(decimal.NewFromInt(985)) {
		t.Fatalf("unexpected fee split %s / %s", inv.EntryFee, inv.NetAmount)
	}
	if !inv.Units.Equal(decimal.RequireFromString("9.85")) {
		t.Fatalf("expected 9.85 units, got %s", inv.Units)
	}

	balance, err := env.container.Wallet.GetBalance(ctx, env.investor.ID, domain.QuoteAsset)
	if err != nil || balance == nil {
		t.Fatalf("get balance: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("expected 9000 USDT left, got %s", balance.Available)
	}

	investments, _ := env.container.Funds.ListInvestments(ctx, env.investor.ID)
	if len(investments) != 1 || investments[0].ID != inv.ID {
		t.Fatalf("expected the investment to be stored, got %+v", investments)
	}
	txs, _ := env.container.Wallet.ListTransactions(ctx, env.investor.ID)
	if len(txs) != 1 || txs[0].Type != domain.TransactionTypeInvestment || txs[0].InvestmentID == nil || *txs[0].InvestmentID != inv.ID {
		t.Fatalf("expected an investment ledger entry, got %+v", txs)
	}
	if env.publisher.count(domain.RoutingKeyInvestmentCreated) != 1 {
		t.Fatal("expected investment.created to be published once")
	}
}

func TestInvest_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		fund   func(env *testEnv) uuid.UUID
		want   error
	}{
		{name: "at minimum", amount: "250", fund: func(env *testEnv) uuid.UUID { return env.fund.ID }},
		{name: "below minimum", amount: "249.99", fund: func(env *testEnv) uuid.UUID { return env.fund.ID }, want: ErrAmountBelowMinimum},
		{name: "insufficient balance", amount: "10000.01", fund: func(env *testEnv) uuid.UUID { return env.fund.ID }, want: store.ErrInsufficientFunds},
		{name: "zero", amount: "0", fund: func(env *testEnv) uuid.UUID { return env.fund.ID }, want: store.ErrInvalidAmount},
		{name: "unknown fund", amount: "1000", fund: func(env *testEnv) uuid.UUID { return uuid.New() }, want: store.ErrFundNotFound},
		{name: "inactive fund", amount: "1000", fund: func(env *testEnv) uuid.UUID { return env.seed.Funds[3].ID }, want: ErrFundInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testConfig())
			ctx := context.Background()

			res := env.container.Funds.Invest(ctx, InvestInput{UserID: env.investor.ID, FundID: tt.fund(env), Amount: decimal.RequireFromString(tt.amount)})
			_, err := res.Unwrap()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if res.Success() || res.Error() == "" {
				t.Fatal("expected a failed envelope with an error message")
			}
			investments, _ := env.container.Funds.ListInvestments(ctx, env.investor.ID)
			if len(investments) != 0 {
				t.Fatalf("expected no investment, got %d", len(investments))
			}
		})
	}
}

type failingInvestmentRepo struct {
	store.Repository
}

func (r *failingInvestmentRepo) CreateInvestment(ctx context.Context, investment *domain.Investment) error {
	return errors.New("disk full")
}

func TestInvest_RefundsWhenInvestmentCannotBeRecorded(t *testing.T) {
	repo := &failingInvestmentRepo{Repository: store.NewMemoryRepository()}
	env := newTestEnvWithRepo(t, testConfig(), repo)
	ctx := context.Background()

	res := env.container.Funds.Invest(ctx, InvestInput{UserID: env.investor.ID, FundID: env.fund.ID, Amount: decimal.NewFromInt(1000)})
	if res.Success() {
		t.Fatal("expected failure")
	}
	balance, _ := env.container.Wallet.GetBalance(ctx, env.investor.ID, domain.QuoteAsset)
	if !balance.Available.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("expected the debit to be refunded, got %s", balance.Available)
	}
	if env.publisher.count(domain.RoutingKeyInvestmentCreated) != 0 {
		t.Fatal("expected no event for a failed investment")
	}
}

func TestListFunds_OnlyActive(t *testing.T) {
	env := newTestEnv(t, testConfig())

	funds, err := env.container.Funds.ListFunds(context.Background())
	if err != nil {
		t.Fatalf("list funds: %v", err)
	}
	if len(funds) != 3 {
		t.Fatalf("expected 3 active funds, got %d", len(funds))
	}
	for _, f := range funds {
		if !f.Active {
			t.Fatalf("inactive fund %s listed", f.Name)
		}
	}
}

func TestGetFund_MissingReturnsNil(t *testing.T) {
	env := newTestEnv(t, testConfig())

	fund, err := env.container.Funds.GetFund(context.Background(), uuid.New())
	if err != nil || fund != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", fund, err)
	}
}

func TestApplyNAV(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	if err := env.container.Funds.ApplyNAV(ctx, env.fund.ID, decimal.NewFromInt(125), time.Now()); err != nil {
		t.Fatalf("apply nav: %v", err)
	}
	fund, _ := env.container.Funds.GetFund(ctx, env.fund.ID)
	if !fund.CurrentNAV.Equal(decimal.NewFromInt(125)) {
		t.Fatalf("expected nav 125, got %s", fund.CurrentNAV)
	}

	if err := env.container.Funds.ApplyNAV(ctx, env.fund.ID, decimal.Zero, time.Now()); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := env.container.Funds.ApplyNAV(ctx, uuid.New(), decimal.NewFromInt(1), time.Now()); !errors.Is(err, store.ErrFundNotFound) {
		t.Fatalf("expected ErrFundNotFound, got %v", err)
	}
}
