package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeInvestment = "investment"
)

// Transaction statuses.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Balance is a user's holding of one asset.
type Balance struct {
	UserID    uuid.UUID       `json:"user_id"`
	Asset     string          `json:"asset"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Network is a chain an asset can be moved on.
type Network struct {
	ID            string          `json:"id"` // e.g. "trc20"
	Asset         string          `json:"asset"`
	Name          string          `json:"name"`
	Fee           decimal.Decimal `json:"fee"`
	MinWithdrawal decimal.Decimal `json:"min_withdrawal"`
	Confirmations int             `json:"confirmations"`
	AddressPrefix string          `json:"address_prefix,omitempty"`
}

// Transaction is the ledger record of any wallet movement.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"`
	Asset        string          `json:"asset"`
	Network      string          `json:"network,omitempty"`
	Address      string          `json:"address,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Fee          decimal.Decimal `json:"fee"`
	Status       string          `json:"status"`
	TxHash       string          `json:"tx_hash,omitempty"`
	InvestmentID *uuid.UUID      `json:"investment_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ErrInvalidAddress is returned for a destination address the network rejects.
var ErrInvalidAddress = errors.New("invalid destination address")

// ValidateAddress performs the format checks a client can do offline.
func (n Network) ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidAddress)
	}
	if strings.TrimSpace(address) != address || strings.ContainsAny(address, " \t\r\n") {
		return fmt.Errorf("%w: address must not contain whitespace", ErrInvalidAddress)
	}
	if len(address) < 26 || len(address) > 90 {
		return fmt.Errorf("%w: address length must be between 26 and 90 characters", ErrInvalidAddress)
	}
	if n.AddressPrefix != "" && !strings.HasPrefix(address, n.AddressPrefix) {
		return fmt.Errorf("%w: %s addresses start with %q", ErrInvalidAddress, n.Name, n.AddressPrefix)
	}
	return nil
}
