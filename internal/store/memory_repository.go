package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
)

type balanceKey struct {
	userID uuid.UUID
	asset  string
}

// MemoryRepository keeps every collection in process memory. Slices preserve
// insertion order; the mutex only protects memory safety, there are no
// transactions across calls.
type MemoryRepository struct {
	mu sync.RWMutex

	funds        []domain.Fund
	balances     map[balanceKey]*domain.Balance
	balanceOrder []balanceKey
	networks     []domain.Network
	investments  []domain.Investment
	transactions []domain.Transaction
	users        map[uuid.UUID]*domain.User
	usersByEmail map[string]uuid.UUID

	now func() time.Time
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		balances:     make(map[balanceKey]*domain.Balance),
		users:        make(map[uuid.UUID]*domain.User),
		usersByEmail: make(map[string]uuid.UUID),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *MemoryRepository) CreateFund(ctx context.Context, fund *domain.Fund) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fund.ID == uuid.Nil {
		fund.ID = uuid.New()
	}
	now := r.now()
	if fund.CreatedAt.IsZero() {
		fund.CreatedAt = now
	}
	fund.UpdatedAt = now
	r.funds = append(r.funds, *fund)
	return nil
}

func (r *MemoryRepository) ListFunds(ctx context.Context) ([]domain.Fund, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Fund, len(r.funds))
	copy(out, r.funds)
	return out, nil
}

func (r *MemoryRepository) FindFundByID(ctx context.Context, fundID uuid.UUID) (*domain.Fund, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.funds {
		if r.funds[i].ID == fundID {
			fund := r.funds[i]
			return &fund, nil
		}
	}
	return nil, ErrFundNotFound
}

func (r *MemoryRepository) UpdateFundNAV(ctx context.Context, fundID uuid.UUID, nav decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.funds {
		if r.funds[i].ID == fundID {
			r.funds[i].CurrentNAV = nav
			r.funds[i].UpdatedAt = at
			return nil
		}
	}
	return ErrFundNotFound
}

func (r *MemoryRepository) ListBalances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Balance
	for _, key := range r.balanceOrder {
		if key.userID == userID {
			out = append(out, *r.balances[key])
		}
	}
	return out, nil
}

func (r *MemoryRepository) FindBalance(ctx context.Context, userID uuid.UUID, asset string) (*domain.Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bal, ok := r.balances[balanceKey{userID: userID, asset: normalizeAsset(asset)}]
	if !ok {
		return nil, ErrBalanceNotFound
	}
	out := *bal
	return &out, nil
}

func (r *MemoryRepository) DebitBalance(ctx context.Context, userID uuid.UUID, asset string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	bal, ok := r.balances[balanceKey{userID: userID, asset: normalizeAsset(asset)}]
	if !ok {
		return ErrInsufficientFunds
	}
	if bal.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	bal.Available = bal.Available.Sub(amount)
	bal.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) CreditBalance(ctx context.Context, userID uuid.UUID, asset string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := balanceKey{userID: userID, asset: normalizeAsset(asset)}
	bal, ok := r.balances[key]
	if !ok {
		bal = &domain.Balance{UserID: userID, Asset: key.asset}
		r.balances[key] = bal
		r.balanceOrder = append(r.balanceOrder, key)
	}
	bal.Available = bal.Available.Add(amount)
	bal.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) CreateNetwork(ctx context.Context, network *domain.Network) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	network.Asset = normalizeAsset(network.Asset)
	for _, n := range r.networks {
		if n.Asset == network.Asset && n.ID == network.ID {
			return fmt.Errorf("network %s/%s already exists", network.Asset, network.ID)
		}
	}
	r.networks = append(r.networks, *network)
	return nil
}

func (r *MemoryRepository) ListNetworks(ctx context.Context, asset string) ([]domain.Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset = normalizeAsset(asset)
	var out []domain.Network
	for _, n := range r.networks {
		if asset == "" || n.Asset == asset {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *MemoryRepository) FindNetwork(ctx context.Context, asset string, networkID string) (*domain.Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset = normalizeAsset(asset)
	for _, n := range r.networks {
		if n.Asset == asset && n.ID == networkID {
			out := n
			return &out, nil
		}
	}
	return nil, ErrNetworkNotFound
}

func (r *MemoryRepository) CreateInvestment(ctx context.Context, investment *domain.Investment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if investment.ID == uuid.Nil {
		investment.ID = uuid.New()
	}
	if investment.CreatedAt.IsZero() {
		investment.CreatedAt = r.now()
	}
	r.investments = append(r.investments, *investment)
	return nil
}

func (r *MemoryRepository) ListInvestmentsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Investment
	for _, inv := range r.investments {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *MemoryRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = r.now()
	}
	tx.Asset = normalizeAsset(tx.Asset)
	r.transactions = append(r.transactions, *tx)
	return nil
}

func (r *MemoryRepository) ListTransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Transaction
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *MemoryRepository) CreateUser(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, exists := r.usersByEmail[email]; exists {
		return ErrUserExists
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := r.now()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	r.users[user.ID] = &stored
	r.usersByEmail[email] = user.ID
	return nil
}

func (r *MemoryRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *MemoryRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usersByEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *r.users[id]
	return &out, nil
}

func (r *MemoryRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	existing.Name = user.Name
	existing.UpdatedAt = r.now()
	user.UpdatedAt = existing.UpdatedAt
	return nil
}
