/**
 * @description
 * WalletService exposes balances, supported networks and the ledger, and performs
 * the two wallet movements a user can start from a wizard: withdrawals and deposits.
 *
 * @notes
 * - There is no chain integration. Deposits are credited immediately and
 *   withdrawals are recorded as pending with the fee already debited.
 * - Deposit addresses are derived deterministically from the user, asset and network.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/store"
	"github.com/transfa/fund-service/pkg/rabbitmq"
)

// depositAddressNamespace scopes the derived deposit addresses.
var depositAddressNamespace = uuid.MustParse("6f1d3c52-8a4e-4f0b-9c1d-2e7a5b9f0c41")

// WithdrawInput is the request to send an asset to an external address.
type WithdrawInput struct {
	UserID  uuid.UUID
	Asset   string
	Network string
	Address string
	Amount  decimal.Decimal
}

// DepositInput is the request to credit an asset received on a network.
type DepositInput struct {
	UserID  uuid.UUID
	Asset   string
	Network string
	Amount  decimal.Decimal
}

// WalletService provides wallet reads and movements.
type WalletService struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	now           func() time.Time
}

// NewWalletService creates a new wallet service instance.
func NewWalletService(repo store.Repository, producer rabbitmq.Publisher) *WalletService {
	if producer == nil {
		producer = &rabbitmq.DroppingPublisher{}
	}
	return &WalletService{
		repo:          repo,
		eventProducer: producer,
		now:           time.Now,
	}
}

// ListBalances returns all balances held by the user.
func (s *WalletService) ListBalances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	balances, err := s.repo.ListBalances(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return balances, nil
}

// GetBalance returns the user's balance of asset or nil when none is held.
func (s *WalletService) GetBalance(ctx context.Context, userID uuid.UUID, asset string) (*domain.Balance, error) {
	balance, err := s.repo.FindBalance(ctx, userID, asset)
	if err != nil {
		if errors.Is(err, store.ErrBalanceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find balance: %w", err)
	}
	return balance, nil
}

// ListNetworks returns the networks an asset can move on; all networks when asset is empty.
func (s *WalletService) ListNetworks(ctx context.Context, asset string) ([]domain.Network, error) {
	networks, err := s.repo.ListNetworks(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}
	return networks, nil
}

// GetNetwork returns the network or nil when the asset cannot move on it.
func (s *WalletService) GetNetwork(ctx context.Context, asset, networkID string) (*domain.Network, error) {
	network, err := s.repo.FindNetwork(ctx, asset, networkID)
	if err != nil {
		if errors.Is(err, store.ErrNetworkNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find network: %w", err)
	}
	return network, nil
}

// SupportedAssets lists every asset with at least one network, in network order.
func (s *WalletService) SupportedAssets(ctx context.Context) ([]string, error) {
	networks, err := s.ListNetworks(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	assets := make([]string, 0, len(networks))
	for _, n := range networks {
		if !seen[n.Asset] {
			seen[n.Asset] = true
			assets = append(assets, n.Asset)
		}
	}
	return assets, nil
}

// ListTransactions returns the user's ledger, oldest first.
func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	txs, err := s.repo.ListTransactionsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// DepositAddress returns the address the user deposits asset to on network.
func (s *WalletService) DepositAddress(userID uuid.UUID, asset string, network domain.Network) string {
	seed := fmt.Sprintf("%s|%s|%s", userID, strings.ToUpper(asset), network.ID)
	a := strings.ReplaceAll(uuid.NewSHA1(depositAddressNamespace, []byte(seed)).String(), "-", "")
	b := strings.ReplaceAll(uuid.NewSHA1(depositAddressNamespace, []byte(a)).String(), "-", "")
	prefix := network.AddressPrefix
	if prefix == "" {
		prefix = "0x"
	}
	return prefix + (a + b)[:40]
}

// Withdraw debits amount plus the network fee and records a pending withdrawal.
func (s *WalletService) Withdraw(ctx context.Context, in WithdrawInput) domain.Result[domain.Transaction] {
	if !in.Amount.IsPositive() {
		return domain.Err[domain.Transaction](store.ErrInvalidAmount)
	}

	network, err := s.repo.FindNetwork(ctx, in.Asset, in.Network)
	if err != nil {
		return domain.Err[domain.Transaction](fmt.Errorf("find network: %w", err))
	}
	if err := network.ValidateAddress(in.Address); err != nil {
		return domain.Err[domain.Transaction](err)
	}
	if in.Amount.LessThan(network.MinWithdrawal) {
		return domain.Err[domain.Transaction](fmt.Errorf("%w: minimum withdrawal on %s is %s %s", ErrAmountBelowMinimum, network.Name, network.MinWithdrawal, network.Asset))
	}

	total := in.Amount.Add(network.Fee)
	if err := s.repo.DebitBalance(ctx, in.UserID, network.Asset, total); err != nil {
		if !errors.Is(err, store.ErrInsufficientFunds) && !errors.Is(err, store.ErrBalanceNotFound) {
			log.Printf("level=error component=wallet_service msg=\"debit failed\" user_id=%s asset=%s err=%v", in.UserID, network.Asset, err)
		}
		return domain.Err[domain.Transaction](fmt.Errorf("debit %s: %w", network.Asset, err))
	}

	tx := domain.Transaction{
		ID:        uuid.New(),
		UserID:    in.UserID,
		Type:      domain.TransactionTypeWithdrawal,
		Asset:     network.Asset,
		Network:   network.ID,
		Address:   in.Address,
		Amount:    in.Amount,
		Fee:       network.Fee,
		Status:    domain.TransactionStatusPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateTransaction(ctx, &tx); err != nil {
		log.Printf("level=error component=wallet_service msg=\"create withdrawal failed, refunding\" user_id=%s err=%v", in.UserID, err)
		if refundErr := s.repo.CreditBalance(ctx, in.UserID, network.Asset, total); refundErr != nil {
			log.Printf("level=critical component=wallet_service msg=\"refund after failed withdrawal failed\" user_id=%s amount=%s err=%v", in.UserID, total, refundErr)
		}
		return domain.Err[domain.Transaction](fmt.Errorf("create transaction: %w", err))
	}

	s.publishMovement(ctx, domain.RoutingKeyWithdrawalRequested, tx)
	return domain.Ok(tx, fmt.Sprintf("Withdrawal of %s %s requested", tx.Amount, tx.Asset))
}

// Deposit credits amount and records a completed deposit.
func (s *WalletService) Deposit(ctx context.Context, in DepositInput) domain.Result[domain.Transaction] {
	if !in.Amount.IsPositive() {
		return domain.Err[domain.Transaction](store.ErrInvalidAmount)
	}

	network, err := s.repo.FindNetwork(ctx, in.Asset, in.Network)
	if err != nil {
		return domain.Err[domain.Transaction](fmt.Errorf("find network: %w", err))
	}

	if err := s.repo.CreditBalance(ctx, in.UserID, network.Asset, in.Amount); err != nil {
		log.Printf("level=error component=wallet_service msg=\"credit failed\" user_id=%s asset=%s err=%v", in.UserID, network.Asset, err)
		return domain.Err[domain.Transaction](fmt.Errorf("credit %s: %w", network.Asset, err))
	}

	tx := domain.Transaction{
		ID:        uuid.New(),
		UserID:    in.UserID,
		Type:      domain.TransactionTypeDeposit,
		Asset:     network.Asset,
		Network:   network.ID,
		Address:   s.DepositAddress(in.UserID, network.Asset, *network),
		Amount:    in.Amount,
		Fee:       decimal.Zero,
		Status:    domain.TransactionStatusCompleted,
		TxHash:    "0x" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateTransaction(ctx, &tx); err != nil {
		log.Printf("level=warn component=wallet_service msg=\"ledger entry failed\" user_id=%s err=%v", in.UserID, err)
	}

	s.publishMovement(ctx, domain.RoutingKeyDepositCredited, tx)
	return domain.Ok(tx, fmt.Sprintf("Deposited %s %s", tx.Amount, tx.Asset))
}

func (s *WalletService) publishMovement(ctx context.Context, routingKey string, tx domain.Transaction) {
	event := domain.WalletMovementPayload{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Asset:         tx.Asset,
		Network:       tx.Network,
		Amount:        tx.Amount,
		Fee:           tx.Fee,
	}
	if err := s.eventProducer.Publish(ctx, domain.EventsExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=wallet_service msg=\"publish failed\" routing_key=%s transaction_id=%s err=%v", routingKey, tx.ID, err)
	}
}
