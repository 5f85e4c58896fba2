/**
 * @description
 * This file defines the `Repository` interface, the contract for every data access
 * operation the fund-service needs. Business logic depends on the interface only,
 * so the in-memory store used for demos and the PostgreSQL store are interchangeable.
 *
 * @dependencies
 * - github.com/google/uuid, github.com/shopspring/decimal
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
)

var (
	ErrFundNotFound      = errors.New("fund not found")
	ErrBalanceNotFound   = errors.New("balance not found")
	ErrNetworkNotFound   = errors.New("network not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Repository defines the set of methods for interacting with storage.
type Repository interface {
	// Fund methods
	CreateFund(ctx context.Context, fund *domain.Fund) error
	ListFunds(ctx context.Context) ([]domain.Fund, error)
	FindFundByID(ctx context.Context, fundID uuid.UUID) (*domain.Fund, error)
	UpdateFundNAV(ctx context.Context, fundID uuid.UUID, nav decimal.Decimal, at time.Time) error

	// Wallet methods
	ListBalances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error)
	FindBalance(ctx context.Context, userID uuid.UUID, asset string) (*domain.Balance, error)
	DebitBalance(ctx context.Context, userID uuid.UUID, asset string, amount decimal.Decimal) error
	CreditBalance(ctx context.Context, userID uuid.UUID, asset string, amount decimal.Decimal) error
	CreateNetwork(ctx context.Context, network *domain.Network) error
	ListNetworks(ctx context.Context, asset string) ([]domain.Network, error)
	FindNetwork(ctx context.Context, asset string, networkID string) (*domain.Network, error)

	// Ledger methods
	CreateInvestment(ctx context.Context, investment *domain.Investment) error
	ListInvestmentsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error)
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	ListTransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)

	// User methods
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}
