package flows

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/wizard"
)

// Investment amounts are entered in cents.
const investmentAmountPlaces = 2

// InvestmentSteps builds select_fund, enter_amount and confirm.
func InvestmentSteps(catalog Catalog) []wizard.Step {
	return []wizard.Step{
		selectFundStep{catalog: catalog},
		enterInvestmentAmountStep{catalog: catalog},
		confirmStep{
			title: "Confirm investment",
			facts: func(ctx context.Context, payload wizard.Payload) (map[string]string, error) {
				return investmentSummary(ctx, catalog, payload)
			},
		},
	}
}

type selectFundStep struct {
	catalog Catalog
}

func (s selectFundStep) ID() wizard.StepID { return StepSelectFund }

func (s selectFundStep) Fields() []string { return []string{FieldFund} }

func (s selectFundStep) Mount(ctx context.Context, payload wizard.Payload) (wizard.View, error) {
	funds, err := s.catalog.ActiveFunds(ctx)
	if err != nil {
		return wizard.View{}, fmt.Errorf("list funds: %w", err)
	}
	choices := make([]wizard.Choice, 0, len(funds))
	for _, f := range funds {
		choices = append(choices, wizard.Choice{
			Value: f.ID.String(),
			Label: f.Name,
			Details: map[string]string{
				"symbol":             f.Symbol,
				"strategy":           f.Strategy,
				"risk_level":         f.RiskLevel,
				"nav":                f.CurrentNAV.String(),
				"minimum_investment": f.MinimumInvestment.StringFixed(2),
				"entry_fee_percent":  f.EntryFeePercent.String(),
			},
		})
	}
	return wizard.View{Step: StepSelectFund, Title: "Choose a fund", Choices: choices}, nil
}

func (s selectFundStep) Proceed(view wizard.View, payload wizard.Payload, input wizard.Input) (wizard.Payload, error) {
	fundID := input[FieldFund]
	if fundID == "" {
		return nil, wizard.Invalid(FieldFund, "select a fund")
	}
	if !view.HasChoice(fundID) {
		return nil, wizard.Invalid(FieldFund, "fund is not available")
	}
	return wizard.Payload{FieldFund: fundID}, nil
}

type enterInvestmentAmountStep struct {
	catalog Catalog
}

func (s enterInvestmentAmountStep) ID() wizard.StepID { return StepEnterAmount }

func (s enterInvestmentAmountStep) Fields() []string { return []string{FieldAmount} }

func (s enterInvestmentAmountStep) Mount(ctx context.Context, payload wizard.Payload) (wizard.View, error) {
	fund, err := selectedFund(ctx, s.catalog, payload)
	if err != nil {
		return wizard.View{}, err
	}
	available, err := s.catalog.Available(ctx, domain.QuoteAsset)
	if err != nil {
		return wizard.View{}, fmt.Errorf("read %s balance: %w", domain.QuoteAsset, err)
	}
	return wizard.View{
		Step:  StepEnterAmount,
		Title: fmt.Sprintf("How much do you want to invest in %s?", fund.Name),
		Facts: map[string]string{
			"fund_name":          fund.Name,
			"currency":           domain.QuoteAsset,
			"minimum_investment": fund.MinimumInvestment.StringFixed(2),
			"available_balance":  available.StringFixed(2),
			"entry_fee_percent":  fund.EntryFeePercent.String(),
			"nav":                fund.CurrentNAV.String(),
		},
	}, nil
}

func (s enterInvestmentAmountStep) Proceed(view wizard.View, payload wizard.Payload, input wizard.Input) (wizard.Payload, error) {
	amount, err := ParseAmount(FieldAmount, input[FieldAmount], investmentAmountPlaces)
	if err != nil {
		return nil, err
	}
	minimum, err := factDecimal(view, "minimum_investment")
	if err != nil {
		return nil, err
	}
	available, err := factDecimal(view, "available_balance")
	if err != nil {
		return nil, err
	}
	if amount.LessThan(minimum) {
		return nil, wizard.Invalid(FieldAmount, "minimum investment is %s %s", minimum.StringFixed(2), domain.QuoteAsset)
	}
	if amount.GreaterThan(available) {
		return nil, wizard.Invalid(FieldAmount, "insufficient balance, %s %s available", available.StringFixed(2), domain.QuoteAsset)
	}
	return wizard.Payload{FieldAmount: amount.StringFixed(investmentAmountPlaces)}, nil
}

func investmentSummary(ctx context.Context, catalog Catalog, payload wizard.Payload) (map[string]string, error) {
	fund, err := selectedFund(ctx, catalog, payload)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(FieldAmount, payload[FieldAmount], investmentAmountPlaces)
	if err != nil {
		return nil, err
	}
	quote := fund.QuoteInvestment(amount)
	return map[string]string{
		"fund_name":             fund.Name,
		"currency":              domain.QuoteAsset,
		"amount":                quote.Amount.StringFixed(2),
		"entry_fee_percent":     fund.EntryFeePercent.String(),
		"entry_fee":             quote.EntryFee.StringFixed(2),
		"net_investment_amount": quote.NetAmount.StringFixed(2),
		"nav":                   quote.NAV.String(),
		"units":                 quote.Units.String(),
	}, nil
}

func selectedFund(ctx context.Context, catalog Catalog, payload wizard.Payload) (*domain.Fund, error) {
	fundID, err := uuid.Parse(payload[FieldFund])
	if err != nil {
		return nil, fmt.Errorf("%w: fund %q", ErrUnavailable, payload[FieldFund])
	}
	fund, err := catalog.Fund(ctx, fundID)
	if err != nil {
		return nil, fmt.Errorf("find fund: %w", err)
	}
	if fund == nil || !fund.Active {
		return nil, fmt.Errorf("%w: fund %s", ErrUnavailable, fundID)
	}
	return fund, nil
}
