package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventsExchange is the topic exchange all fund events are published to.
const EventsExchange = "fund.events"

// Routing keys.
const (
	RoutingKeyInvestmentCreated   = "investment.created"
	RoutingKeyWithdrawalRequested = "withdrawal.requested"
	RoutingKeyDepositCredited     = "deposit.credited"
	RoutingKeyWizardCompleted     = "wizard.completed"
	RoutingKeyNAVUpdated          = "fund.nav.updated"
)

// InvestmentCreatedPayload is published after a successful investment.
type InvestmentCreatedPayload struct {
	InvestmentID uuid.UUID       `json:"investment_id"`
	UserID       uuid.UUID       `json:"user_id"`
	FundID       uuid.UUID       `json:"fund_id"`
	Amount       decimal.Decimal `json:"amount"`
	Units        decimal.Decimal `json:"units"`
}

// WalletMovementPayload is published for deposits and withdrawals.
type WalletMovementPayload struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	UserID        uuid.UUID       `json:"user_id"`
	Asset         string          `json:"asset"`
	Network       string          `json:"network"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
}

// WizardCompletedPayload is published when a wizard reaches its success step.
type WizardCompletedPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	Flow      string    `json:"flow"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

// NAVUpdatedEvent is consumed from the admin console's NAV feed.
type NAVUpdatedEvent struct {
	FundID uuid.UUID       `json:"fund_id"`
	NAV    decimal.Decimal `json:"nav"`
	AsOf   time.Time       `json:"as_of"`
}
