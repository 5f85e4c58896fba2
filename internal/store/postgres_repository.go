/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It is selected at startup when DATABASE_URL is configured; otherwise the
 * in-memory repository is used.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: numeric columns are scanned through its sql.Scanner.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS funds (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	symbol TEXT NOT NULL,
	strategy TEXT NOT NULL DEFAULT '',
	risk_level TEXT NOT NULL DEFAULT 'medium',
	current_nav NUMERIC(30, 8) NOT NULL,
	minimum_investment NUMERIC(30, 2) NOT NULL,
	entry_fee_percent NUMERIC(8, 4) NOT NULL DEFAULT 0,
	exit_fee_percent NUMERIC(8, 4) NOT NULL DEFAULT 0,
	aum NUMERIC(30, 2) NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'investor',
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS wallet_balances (
	user_id UUID NOT NULL,
	asset TEXT NOT NULL,
	available NUMERIC(30, 8) NOT NULL DEFAULT 0,
	locked NUMERIC(30, 8) NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, asset)
);
CREATE TABLE IF NOT EXISTS wallet_networks (
	asset TEXT NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	fee NUMERIC(30, 8) NOT NULL DEFAULT 0,
	min_withdrawal NUMERIC(30, 8) NOT NULL DEFAULT 0,
	confirmations INT NOT NULL DEFAULT 1,
	address_prefix TEXT NOT NULL DEFAULT '',
	position SERIAL,
	PRIMARY KEY (asset, id)
);
CREATE TABLE IF NOT EXISTS investments (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	fund_id UUID NOT NULL,
	amount NUMERIC(30, 2) NOT NULL,
	entry_fee NUMERIC(30, 2) NOT NULL,
	net_amount NUMERIC(30, 2) NOT NULL,
	units NUMERIC(30, 8) NOT NULL,
	nav NUMERIC(30, 8) NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS wallet_transactions (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	type TEXT NOT NULL,
	asset TEXT NOT NULL,
	network TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	amount NUMERIC(30, 8) NOT NULL,
	fee NUMERIC(30, 8) NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	tx_hash TEXT NOT NULL DEFAULT '',
	investment_id UUID,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the tables used by the repository when they are missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const fundColumns = `id, name, symbol, strategy, risk_level, current_nav, minimum_investment,
	entry_fee_percent, exit_fee_percent, aum, active, created_at, updated_at`

func scanFund(row pgx.Row) (*domain.Fund, error) {
	var f domain.Fund
	err := row.Scan(&f.ID, &f.Name, &f.Symbol, &f.Strategy, &f.RiskLevel, &f.CurrentNAV, &f.MinimumInvestment,
		&f.EntryFeePercent, &f.ExitFeePercent, &f.AUM, &f.Active, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PostgresRepository) CreateFund(ctx context.Context, fund *domain.Fund) error {
	if fund.ID == uuid.Nil {
		fund.ID = uuid.New()
	}
	query := `INSERT INTO funds (id, name, symbol, strategy, risk_level, current_nav, minimum_investment,
		entry_fee_percent, exit_fee_percent, aum, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query, fund.ID, fund.Name, fund.Symbol, fund.Strategy, fund.RiskLevel,
		fund.CurrentNAV, fund.MinimumInvestment, fund.EntryFeePercent, fund.ExitFeePercent, fund.AUM, fund.Active,
	).Scan(&fund.CreatedAt, &fund.UpdatedAt)
}

func (r *PostgresRepository) ListFunds(ctx context.Context) ([]domain.Fund, error) {
	rows, err := r.db.Query(ctx, "SELECT "+fundColumns+" FROM funds ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var funds []domain.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, err
		}
		funds = append(funds, *f)
	}
	return funds, rows.Err()
}

func (r *PostgresRepository) FindFundByID(ctx context.Context, fundID uuid.UUID) (*domain.Fund, error) {
	f, err := scanFund(r.db.QueryRow(ctx, "SELECT "+fundColumns+" FROM funds WHERE id = $1", fundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFundNotFound
		}
		return nil, err
	}
	return f, nil
}

func (r *PostgresRepository) UpdateFundNAV(ctx context.Context, fundID uuid.UUID, nav decimal.Decimal, at time.Time) error {
	tag, err := r.db.Exec(ctx, "UPDATE funds SET current_nav = $2, updated_at = $3 WHERE id = $1", fundID, nav, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFundNotFound
	}
	return nil
}

func (r *PostgresRepository) ListBalances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	rows, err := r.db.Query(ctx,
		"SELECT user_id, asset, available, locked, updated_at FROM wallet_balances WHERE user_id = $1 ORDER BY asset", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []domain.Balance
	for rows.Next() {
		var b domain.Balance
		if err := rows.Scan(&b.UserID, &b.Asset, &b.Available, &b.Locked, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *PostgresRepository) FindBalance(ctx context.Context, userID uuid.UUID, asset string) (*domain.Balance, error) {
	var b domain.Balance
	err := r.db.QueryRow(ctx,
		"SELECT user_id, asset, available, locked, updated_at FROM wallet_balances WHERE user_id = $1 AND asset = $2",
		userID, normalizeAsset(asset),
	).Scan(&b.UserID, &b.Asset, &b.Available, &b.Locked, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &b, nil
}

// DebitBalance decrements the balance only when enough is available, in a single statement.
func (r *PostgresRepository) DebitBalance(ctx context.Context, userID uuid.UUID, asset string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE wallet_balances SET available = available - $3, updated_at = NOW()
		 WHERE user_id = $1 AND asset = $2 AND available >= $3`,
		userID, normalizeAsset(asset), amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (r *PostgresRepository) CreditBalance(ctx context.Context, userID uuid.UUID, asset string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO wallet_balances (user_id, asset, available) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, asset) DO UPDATE SET available = wallet_balances.available + EXCLUDED.available, updated_at = NOW()`,
		userID, normalizeAsset(asset), amount)
	return err
}

func (r *PostgresRepository) CreateNetwork(ctx context.Context, network *domain.Network) error {
	network.Asset = normalizeAsset(network.Asset)
	_, err := r.db.Exec(ctx,
		`INSERT INTO wallet_networks (asset, id, name, fee, min_withdrawal, confirmations, address_prefix)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		network.Asset, network.ID, network.Name, network.Fee, network.MinWithdrawal, network.Confirmations, network.AddressPrefix)
	return err
}

const networkColumns = "id, asset, name, fee, min_withdrawal, confirmations, address_prefix"

func scanNetwork(row pgx.Row) (*domain.Network, error) {
	var n domain.Network
	if err := row.Scan(&n.ID, &n.Asset, &n.Name, &n.Fee, &n.MinWithdrawal, &n.Confirmations, &n.AddressPrefix); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *PostgresRepository) ListNetworks(ctx context.Context, asset string) ([]domain.Network, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+networkColumns+" FROM wallet_networks WHERE $1 = '' OR asset = $1 ORDER BY position",
		normalizeAsset(asset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var networks []domain.Network
	for rows.Next() {
		n, err := scanNetwork(rows)
		if err != nil {
			return nil, err
		}
		networks = append(networks, *n)
	}
	return networks, rows.Err()
}

func (r *PostgresRepository) FindNetwork(ctx context.Context, asset string, networkID string) (*domain.Network, error) {
	n, err := scanNetwork(r.db.QueryRow(ctx,
		"SELECT "+networkColumns+" FROM wallet_networks WHERE asset = $1 AND id = $2",
		normalizeAsset(asset), networkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNetworkNotFound
		}
		return nil, err
	}
	return n, nil
}

func (r *PostgresRepository) CreateInvestment(ctx context.Context, inv *domain.Investment) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO investments (id, user_id, fund_id, amount, entry_fee, net_amount, units, nav, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`,
		inv.ID, inv.UserID, inv.FundID, inv.Amount, inv.EntryFee, inv.NetAmount, inv.Units, inv.NAV, inv.Status,
	).Scan(&inv.CreatedAt)
}

func (r *PostgresRepository) ListInvestmentsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, fund_id, amount, entry_fee, net_amount, units, nav, status, created_at
		 FROM investments WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Investment
	for rows.Next() {
		var inv domain.Investment
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.FundID, &inv.Amount, &inv.EntryFee, &inv.NetAmount,
			&inv.Units, &inv.NAV, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.Asset = normalizeAsset(tx.Asset)
	return r.db.QueryRow(ctx,
		`INSERT INTO wallet_transactions (id, user_id, type, asset, network, address, amount, fee, status, tx_hash, investment_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING created_at`,
		tx.ID, tx.UserID, tx.Type, tx.Asset, tx.Network, tx.Address, tx.Amount, tx.Fee, tx.Status, tx.TxHash, tx.InvestmentID,
	).Scan(&tx.CreatedAt)
}

func (r *PostgresRepository) ListTransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, type, asset, network, address, amount, fee, status, tx_hash, investment_id, created_at
		 FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Asset, &tx.Network, &tx.Address, &tx.Amount, &tx.Fee,
			&tx.Status, &tx.TxHash, &tx.InvestmentID, &tx.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = normalizeEmail(user.Email)
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, email, name, role, password_hash) VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		user.ID, user.Email, user.Name, user.Role, user.PasswordHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUserExists
		}
		return err
	}
	return nil
}

const userColumns = "id, email, name, role, password_hash, created_at, updated_at"

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", userID))
}

func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", normalizeEmail(email)))
}

func (r *PostgresRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	err := r.db.QueryRow(ctx,
		"UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at",
		user.ID, user.Name,
	).Scan(&user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}
