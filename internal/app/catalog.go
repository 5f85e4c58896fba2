package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
)

// userCatalog is the read-only view of funds and one user's wallet handed to
// the wizard steps.
type userCatalog struct {
	userID uuid.UUID
	funds  *FundService
	wallet *WalletService
}

func (c userCatalog) ActiveFunds(ctx context.Context) ([]domain.Fund, error) {
	return c.funds.ListFunds(ctx)
}

func (c userCatalog) Fund(ctx context.Context, fundID uuid.UUID) (*domain.Fund, error) {
	return c.funds.GetFund(ctx, fundID)
}

func (c userCatalog) Balances(ctx context.Context) ([]domain.Balance, error) {
	return c.wallet.ListBalances(ctx, c.userID)
}

func (c userCatalog) Available(ctx context.Context, asset string) (decimal.Decimal, error) {
	balance, err := c.wallet.GetBalance(ctx, c.userID, asset)
	if err != nil {
		return decimal.Zero, err
	}
	if balance == nil {
		return decimal.Zero, nil
	}
	return balance.Available, nil
}

func (c userCatalog) SupportedAssets(ctx context.Context) ([]string, error) {
	return c.wallet.SupportedAssets(ctx)
}

func (c userCatalog) Networks(ctx context.Context, asset string) ([]domain.Network, error) {
	return c.wallet.ListNetworks(ctx, asset)
}

func (c userCatalog) Network(ctx context.Context, asset, networkID string) (*domain.Network, error) {
	return c.wallet.GetNetwork(ctx, asset, networkID)
}

func (c userCatalog) DepositAddress(asset string, network domain.Network) string {
	return c.wallet.DepositAddress(c.userID, asset, network)
}
