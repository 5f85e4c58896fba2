package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/store"
)

// Demo accounts created by SeedDemo.
const (
	DemoInvestorEmail = "investor@demo.fund"
	DemoAdminEmail    = "admin@demo.fund"
)

// SeedResult lists what SeedDemo created.
type SeedResult struct {
	Funds    []domain.Fund
	Networks []domain.Network
	Users    []domain.User
}

func demoFunds() []domain.Fund {
	d := decimal.RequireFromString
	return []domain.Fund{
		{Name: "Bitcoin Momentum", Symbol: "BTCM", Strategy: "Trend following on BTC perpetuals", RiskLevel: "high",
			CurrentNAV: d("100"), MinimumInvestment: d("250"), EntryFeePercent: d("1.5"), ExitFeePercent: d("0.5"), AUM: d("1250000"), Active: true},
		{Name: "Stable Yield", Symbol: "STBY", Strategy: "Delta neutral stablecoin lending", RiskLevel: "low",
			CurrentNAV: d("10.42"), MinimumInvestment: d("100"), EntryFeePercent: d("0.5"), ExitFeePercent: d("0"), AUM: d("830000"), Active: true},
		{Name: "DeFi Blue Chips", Symbol: "DEFI", Strategy: "Basket of large cap DeFi governance tokens", RiskLevel: "medium",
			CurrentNAV: d("57.3"), MinimumInvestment: d("500"), EntryFeePercent: d("1"), ExitFeePercent: d("1"), AUM: d("412000"), Active: true},
		{Name: "Legacy Arbitrage", Symbol: "LARB", Strategy: "Closed to new subscriptions", RiskLevel: "medium",
			CurrentNAV: d("12.1"), MinimumInvestment: d("1000"), EntryFeePercent: d("2"), ExitFeePercent: d("1"), AUM: d("95000"), Active: false},
	}
}

func demoNetworks() []domain.Network {
	d := decimal.RequireFromString
	return []domain.Network{
		{ID: "trc20", Asset: "USDT", Name: "Tron (TRC20)", Fee: d("1"), MinWithdrawal: d("10"), Confirmations: 19, AddressPrefix: "T"},
		{ID: "erc20", Asset: "USDT", Name: "Ethereum (ERC20)", Fee: d("5"), MinWithdrawal: d("20"), Confirmations: 12, AddressPrefix: "0x"},
		{ID: "bitcoin", Asset: "BTC", Name: "Bitcoin", Fee: d("0.0002"), MinWithdrawal: d("0.001"), Confirmations: 2, AddressPrefix: "bc1"},
		{ID: "erc20", Asset: "ETH", Name: "Ethereum", Fee: d("0.002"), MinWithdrawal: d("0.01"), Confirmations: 12, AddressPrefix: "0x"},
	}
}

// SeedDemo loads the demo catalogue, a demo investor with starting balances and
// a demo admin. Seeding twice is rejected with store.ErrUserExists.
func SeedDemo(ctx context.Context, c *Container, password string) (SeedResult, error) {
	var result SeedResult

	if _, err := c.Repo.FindUserByEmail(ctx, DemoInvestorEmail); err == nil {
		return result, fmt.Errorf("seed demo: %w", store.ErrUserExists)
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return result, fmt.Errorf("seed demo: %w", err)
	}

	for _, fund := range demoFunds() {
		f := fund
		if err := c.Repo.CreateFund(ctx, &f); err != nil {
			return result, fmt.Errorf("seed fund %s: %w", f.Symbol, err)
		}
		result.Funds = append(result.Funds, f)
	}
	for _, network := range demoNetworks() {
		n := network
		if err := c.Repo.CreateNetwork(ctx, &n); err != nil {
			return result, fmt.Errorf("seed network %s/%s: %w", n.Asset, n.ID, err)
		}
		result.Networks = append(result.Networks, n)
	}

	investor, err := c.Auth.Register(ctx, DemoInvestorEmail, "Demo Investor", password, domain.RoleInvestor).Unwrap()
	if err != nil {
		return result, fmt.Errorf("seed investor: %w", err)
	}
	admin, err := c.Auth.Register(ctx, DemoAdminEmail, "Demo Admin", password, domain.RoleAdmin).Unwrap()
	if err != nil {
		return result, fmt.Errorf("seed admin: %w", err)
	}
	result.Users = append(result.Users, investor, admin)

	starting := map[string]decimal.Decimal{
		"USDT": decimal.RequireFromString("10000"),
		"BTC":  decimal.RequireFromString("0.25"),
		"ETH":  decimal.RequireFromString("3"),
	}
	for _, asset := range []string{"USDT", "BTC", "ETH"} {
		if err := c.Repo.CreditBalance(ctx, investor.ID, asset, starting[asset]); err != nil {
			return result, fmt.Errorf("seed %s balance: %w", asset, err)
		}
	}

	log.Printf("level=info component=seed msg=\"demo data loaded\" funds=%d networks=%d investor=%s", len(result.Funds), len(result.Networks), investor.Email)
	return result, nil
}
