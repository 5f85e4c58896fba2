/**
 * @description
 * Step definitions for the three wizards of the app: investing into a fund,
 * withdrawing an asset to an external address and depositing an asset.
 *
 * @notes
 * - Steps never mutate anything. They read what they need to render through a
 *   Catalog scoped to the signed-in user and return their part of the payload.
 * - Every bound a step validates against is copied into the view's facts when
 *   the step is mounted.
 */

package flows

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/wizard"
)

// Kind names a wizard.
type Kind string

const (
	KindInvestment Kind = "investment"
	KindWithdrawal Kind = "withdrawal"
	KindDeposit    Kind = "deposit"
)

// Kinds lists every wizard in display order.
var Kinds = []Kind{KindInvestment, KindWithdrawal, KindDeposit}

// ErrUnknownKind is returned by ParseKind.
var ErrUnknownKind = errors.New("unknown wizard kind")

// ParseKind resolves a wizard name.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

// Payload keys.
const (
	FieldFund      = "fund_id"
	FieldAmount    = "amount"
	FieldAsset     = "asset"
	FieldNetwork   = "network"
	FieldAddress   = "address"
	FieldConfirmed = "confirmed"
)

// Step ids.
const (
	StepSelectFund    wizard.StepID = "select_fund"
	StepEnterAmount   wizard.StepID = "enter_amount"
	StepSelectAsset   wizard.StepID = "select_asset"
	StepSelectNetwork wizard.StepID = "select_network"
	StepEnterDetails  wizard.StepID = "enter_details"
	StepConfirm       wizard.StepID = "confirm"
)

// ErrUnavailable is returned by Mount when an earlier selection no longer exists.
var ErrUnavailable = errors.New("selection is no longer available")

// Catalog is the read-only view of the user's funds and wallet the steps render from.
type Catalog interface {
	ActiveFunds(ctx context.Context) ([]domain.Fund, error)
	Fund(ctx context.Context, fundID uuid.UUID) (*domain.Fund, error)
	Balances(ctx context.Context) ([]domain.Balance, error)
	Available(ctx context.Context, asset string) (decimal.Decimal, error)
	SupportedAssets(ctx context.Context) ([]string, error)
	Networks(ctx context.Context, asset string) ([]domain.Network, error)
	Network(ctx context.Context, asset, networkID string) (*domain.Network, error)
	DepositAddress(asset string, network domain.Network) string
}

// Steps returns the steps of a wizard.
func Steps(kind Kind, catalog Catalog) ([]wizard.Step, error) {
	switch kind {
	case KindInvestment:
		return InvestmentSteps(catalog), nil
	case KindWithdrawal:
		return WithdrawalSteps(catalog), nil
	case KindDeposit:
		return DepositSteps(catalog), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// amountPattern accepts plain decimal notation only. Exponent forms are
// rejected before parsing since comparing them rescales to 10^exp.
var amountPattern = regexp.MustCompile(`^[0-9]{0,20}(\.[0-9]{1,18})?$`)

// ParseAmount reads a user supplied amount with at most places decimals.
func ParseAmount(field, raw string, places int32) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return decimal.Zero, wizard.Invalid(field, "amount is required")
	}
	if strings.HasPrefix(raw, "-") {
		return decimal.Zero, wizard.Invalid(field, "amount must be greater than zero")
	}
	if len(raw) > 40 || !amountPattern.MatchString(raw) {
		return decimal.Zero, wizard.Invalid(field, "%q is not a plain decimal amount", truncateInput(raw))
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, wizard.Invalid(field, "%q is not a number", raw)
	}
	if !amount.IsPositive() {
		return decimal.Zero, wizard.Invalid(field, "amount must be greater than zero")
	}
	if !amount.Equal(amount.Truncate(places)) {
		return decimal.Zero, wizard.Invalid(field, "amount supports at most %d decimal places", places)
	}
	return amount, nil
}

func truncateInput(raw string) string {
	if len(raw) > 24 {
		return raw[:24] + "..."
	}
	return raw
}

// factDecimal reads back a decimal a step stored in its view.
func factDecimal(view wizard.View, key string) (decimal.Decimal, error) {
	raw := view.Fact(key)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("view %s has no %s", view.Step, key)
	}
	return decimal.NewFromString(raw)
}

type confirmStep struct {
	title string
	facts func(ctx context.Context, payload wizard.Payload) (map[string]string, error)
}

func (s confirmStep) ID() wizard.StepID { return StepConfirm }

func (s confirmStep) Fields() []string { return []string{FieldConfirmed} }

func (s confirmStep) Mount(ctx context.Context, payload wizard.Payload) (wizard.View, error) {
	facts, err := s.facts(ctx, payload)
	if err != nil {
		return wizard.View{}, err
	}
	return wizard.View{Step: StepConfirm, Title: s.title, Facts: facts}, nil
}

// Proceed on the confirm step is the confirmation itself.
func (s confirmStep) Proceed(view wizard.View, payload wizard.Payload, input wizard.Input) (wizard.Payload, error) {
	if v, ok := input[FieldConfirmed]; ok && v != "true" {
		return nil, wizard.Invalid(FieldConfirmed, "confirm the summary to continue")
	}
	return wizard.Payload{FieldConfirmed: "true"}, nil
}
