/**
 * @description
 * Fund and investment records. These are plain values; services copy them in and
 * out of the stores so callers never hold a pointer into shared state.
 *
 * @notes
 * - Money and NAV use shopspring/decimal. Fees are rounded to cents and units
 *   to 8 decimal places.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteAsset is the wallet asset investments are paid from.
const QuoteAsset = "USDT"

// Fund is an investable product listed in fund discovery.
type Fund struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Symbol            string          `json:"symbol"`
	Strategy          string          `json:"strategy"`
	RiskLevel         string          `json:"risk_level"` // low, medium, high
	CurrentNAV        decimal.Decimal `json:"current_nav"`
	MinimumInvestment decimal.Decimal `json:"minimum_investment"`
	EntryFeePercent   decimal.Decimal `json:"entry_fee_percent"`
	ExitFeePercent    decimal.Decimal `json:"exit_fee_percent"`
	AUM               decimal.Decimal `json:"aum"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Investment is a subscription into a fund.
type Investment struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	FundID    uuid.UUID       `json:"fund_id"`
	Amount    decimal.Decimal `json:"amount"`
	EntryFee  decimal.Decimal `json:"entry_fee"`
	NetAmount decimal.Decimal `json:"net_investment_amount"`
	Units     decimal.Decimal `json:"units"`
	NAV       decimal.Decimal `json:"nav"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// InvestmentQuote holds the values derived from an amount before it is submitted.
type InvestmentQuote struct {
	Amount    decimal.Decimal `json:"amount"`
	EntryFee  decimal.Decimal `json:"entry_fee"`
	NetAmount decimal.Decimal `json:"net_investment_amount"`
	Units     decimal.Decimal `json:"units"`
	NAV       decimal.Decimal `json:"nav"`
}

var hundred = decimal.NewFromInt(100)

// QuoteInvestment derives the entry fee, the net amount and the number of units
// bought for amount at the fund's current NAV.
func (f Fund) QuoteInvestment(amount decimal.Decimal) InvestmentQuote {
	fee := amount.Mul(f.EntryFeePercent).Div(hundred).Round(2)
	net := amount.Sub(fee)
	units := decimal.Zero
	if f.CurrentNAV.IsPositive() {
		units = net.DivRound(f.CurrentNAV, 8)
	}
	return InvestmentQuote{
		Amount:    amount,
		EntryFee:  fee,
		NetAmount: net,
		Units:     units,
		NAV:       f.CurrentNAV,
	}
}
