package flows

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/wizard"
)

// Crypto amounts are entered with up to 8 decimals.
const cryptoAmountPlaces = 8

// WithdrawalSteps builds select_asset, select_network, enter_details and confirm.
func WithdrawalSteps(catalog Catalog) []wizard.Step {
	return []wizard.Step{
		selectAssetStep{catalog: catalog, heldOnly: true, title: "Which asset do you want to withdraw?"},
		selectNetworkStep{catalog: catalog, title: "Withdraw on which network?"},
		enterWithdrawalDetailsStep{catalog: catalog},
		confirmStep{
			title: "Confirm withdrawal",
			facts: func(ctx context.Context, payload wizard.Payload) (map[string]string, error) {
				return withdrawalSummary(ctx, catalog, payload)
			},
		},
	}
}

// DepositSteps builds select_asset, select_network, enter_amount and confirm.
func DepositSteps(catalog Catalog) []wizard.Step {
	return []wizard.Step{
		selectAssetStep{catalog: catalog, title: "Which asset do you want to deposit?"},
		selectNetworkStep{catalog: catalog, title: "Deposit on which network?"},
		enterDepositAmountStep{catalog: catalog},
		confirmStep{
			title: "Confirm deposit",
			facts: func(ctx context.Context, payload wizard.Payload) (map[string]string, error) {
				return depositSummary(ctx, catalog, payload)
			},
		},
	}
}

// selectAssetStep lists the supported assets. With heldOnly, assets the user
// holds no balance of are shown disabled.
type selectAssetStep struct {
	catalog  Catalog
	heldOnly bool
	title    string
}

func (s selectAssetStep) ID() wizard.StepID { return StepSelectAsset }

func (s selectAssetStep) Fields() []string { return []string{FieldAsset} }

func (s selectAssetStep) Mount(ctx context.Context, payload wizard.Payload) (wizard.View, error) {
	assets, err := s.catalog.SupportedAssets(ctx)
	if err != nil {
		return wizard.View{}, fmt.Errorf("list assets: %w", err)
	}
	held := make(map[string]decimal.Decimal)
	if s.heldOnly {
		balances, err := s.catalog.Balances(ctx)
		if err != nil {
			return wizard.View{}, fmt.Errorf("list balances: %w", err)
		}
		for _, b := range balances {
			held[b.Asset] = b.Available
		}
	}

	choices := make([]wizard.Choice, 0, len(assets))
	for _, asset := range assets {
		choice := wizard.Choice{Value: asset, Label: asset}
		if s.heldOnly {
			available := held[asset]
			choice.Details = map[string]string{"available": available.String()}
			choice.Disabled = !available.IsPositive()
		}
		choices = append(choices, choice)
	}
	return wizard.View{Step: StepSelectAsset, Title: s.title, Choices: choices}, nil
}

func (s selectAssetStep) Proceed(view wizard.View, payload wizard.Payload, input wizard.Input) (wizard.Payload, error) {
	asset := strings.ToUpper(strings.TrimSpace(input[FieldAsset]))
	if asset == "" {
		return nil, wizard.Invalid(FieldAsset, "select an asset")
	}
	if !view.HasChoice(asset) {
		return nil, wizard.Invalid(FieldAsset, "%s is not available", asset)
	}
	return wizard.Payload{FieldAsset: asset}, nil
}

type selectNetworkStep struct {
	catalog Catalog
	title   string
}

func (s selectNetworkStep) ID() wizard.StepID { return StepSelectNetwork }

func (s selectNetworkStep) Fields() []string { return []string{FieldNetwork} }

func (s selectNetworkStep) Mount(ctx context.Context, payload wizard.Payload) (wizard.View, error) {
	asset := payload[FieldAsset]
	networks, err := s.catalog.Networks(ctx, asset)
	if err != nil {
		return wizard.View{}, fmt.Errorf("list networks: %w", err)
	}
	if len(networks) == 0 {
		return wizard.View{}, fmt.Errorf("%w: no networks for %s", ErrUnavailable, asset)
	}
	choices := make([]wizard.Choice, 0, len(networks))
	for _, n := range networks {
		choices = append(choices, wizard.Choice{
			Value: n.ID,
			Label: n.Name,
			Details: map[string]string{
				"fee":            n.Fee.String(),
				"min_withdrawal": n.MinWithdrawal.String(),
				"confirmations":  strconv.Itoa(n.Confirmations),
			},
		})
	}
	return wizard.View{Step: StepSelectNetwork, Title: s.title, Choices: choices, Facts: map[string]string{"asset": asset}}, nil
}

func (s selectNetworkStep) Proceed(view wizard.View, payload wizard.Payload, input wizard.Input) (wizard.Payload, error) {
	network := strings.ToLower(strings.TrimSpace(input[FieldNetwork]))
	if network == "" {
		return nil, wizard.Invalid(FieldNetwork, "select a network")
	}
	if !view.HasChoice(network) {
		return nil, wizard.Invalid(FieldNetwork, "network is not available")
	}
	return wizard.Payload{FieldNetwork: network}, nil
}

type enterWithdrawalDetailsStep struct {
	catalog Catalog
}

func (s enterWithdrawalDetailsStep) ID() wizard.StepID { return StepEnterDetails }

func (s enterWithdrawalDetailsStep) Fields() []string { return []string{FieldAddress, FieldAmount} }

func (s enterWithdrawalDetailsStep) Mount(ctx context.Context, payload wizard.Payload) (wizard.View, error) {
	network, err := selectedNetwork(ctx, s.catalog, payload)
	if err != nil {
		return wizard.View{}, err
	}
	available, err := s.catalog.Available(ctx, network.Asset)
	if err != nil {
		return wizard.View{}, fmt.Errorf("read %s balance: %w", network.Asset, err)
	}
	maximum := available.Sub(network.Fee)
	if maximum.IsNegative() {
		maximum = decimal.Zero
	}
	return wizard.View{
		Step:  StepEnterDetails,
		Title: fmt.Sprintf("Send %s on %s", network.Asset, network.Name),
		Facts: map[string]string{
			"asset":             network.Asset,
			"network_name":      network.Name,
			"address_prefix":    network.AddressPrefix,
			"available_balance": available.String(),
			"fee":               network.Fee.String(),
			"min_withdrawal":    network.MinWithdrawal.String(),
			"max_withdrawal":    maximum.String(),
		},
	}, nil
}

func (s enterWithdrawalDetailsStep) Proceed(view wizard.View, payload wizard.Payload, input wizard.Input) (wizard.Payload, error) {
	address := strings.TrimSpace(input[FieldAddress])
	rules := domain.Network{Name: view.Fact("network_name"), AddressPrefix: view.Fact("address_prefix")}
	if err := rules.ValidateAddress(address); err != nil {
		return nil, wizard.Invalid(FieldAddress, "%s", strings.TrimPrefix(err.Error(), domain.ErrInvalidAddress.Error()+": "))
	}

	amount, err := ParseAmount(FieldAmount, input[FieldAmount], cryptoAmountPlaces)
	if err != nil {
		return nil, err
	}
	minimum, err := factDecimal(view, "min_withdrawal")
	if err != nil {
		return nil, err
	}
	maximum, err := factDecimal(view, "max_withdrawal")
	if err != nil {
		return nil, err
	}
	asset := view.Fact("asset")
	if amount.LessThan(minimum) {
		return nil, wizard.Invalid(FieldAmount, "minimum withdrawal is %s %s", minimum, asset)
	}
	if amount.GreaterThan(maximum) {
		return nil, wizard.Invalid(FieldAmount, "insufficient balance, at most %s %s after fees", maximum, asset)
	}
	return wizard.Payload{FieldAddress: address, FieldAmount: amount.String()}, nil
}

type enterDepositAmountStep struct {
	catalog Catalog
}

func (s enterDepositAmountStep) ID() wizard.StepID { return StepEnterAmount }

func (s enterDepositAmountStep) Fields() []string { return []string{FieldAmount} }

func (s enterDepositAmountStep) Mount(ctx context.Context, payload wizard.Payload) (wizard.View, error) {
	network, err := selectedNetwork(ctx, s.catalog, payload)
	if err != nil {
		return wizard.View{}, err
	}
	return wizard.View{
		Step:  StepEnterAmount,
		Title: fmt.Sprintf("Deposit %s on %s", network.Asset, network.Name),
		Facts: map[string]string{
			"asset":           network.Asset,
			"network_name":    network.Name,
			"deposit_address": s.catalog.DepositAddress(network.Asset, *network),
			"confirmations":   strconv.Itoa(network.Confirmations),
		},
	}, nil
}

func (s enterDepositAmountStep) Proceed(view wizard.View, payload wizard.Payload, input wizard.Input) (wizard.Payload, error) {
	amount, err := ParseAmount(FieldAmount, input[FieldAmount], cryptoAmountPlaces)
	if err != nil {
		return nil, err
	}
	return wizard.Payload{FieldAmount: amount.String()}, nil
}

func withdrawalSummary(ctx context.Context, catalog Catalog, payload wizard.Payload) (map[string]string, error) {
	network, err := selectedNetwork(ctx, catalog, payload)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(payload[FieldAmount])
	if err != nil {
		return nil, fmt.Errorf("stored amount %q: %w", payload[FieldAmount], err)
	}
	return map[string]string{
		"asset":          network.Asset,
		"network_name":   network.Name,
		"address":        payload[FieldAddress],
		"amount":         amount.String(),
		"fee":            network.Fee.String(),
		"total_debit":    amount.Add(network.Fee).String(),
		"receive_amount": amount.String(),
	}, nil
}

func depositSummary(ctx context.Context, catalog Catalog, payload wizard.Payload) (map[string]string, error) {
	network, err := selectedNetwork(ctx, catalog, payload)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(payload[FieldAmount])
	if err != nil {
		return nil, fmt.Errorf("stored amount %q: %w", payload[FieldAmount], err)
	}
	return map[string]string{
		"asset":           network.Asset,
		"network_name":    network.Name,
		"amount":          amount.String(),
		"deposit_address": catalog.DepositAddress(network.Asset, *network),
		"confirmations":   strconv.Itoa(network.Confirmations),
	}, nil
}

func selectedNetwork(ctx context.Context, catalog Catalog, payload wizard.Payload) (*domain.Network, error) {
	network, err := catalog.Network(ctx, payload[FieldAsset], payload[FieldNetwork])
	if err != nil {
		return nil, fmt.Errorf("find network: %w", err)
	}
	if network == nil {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnavailable, payload[FieldAsset], payload[FieldNetwork])
	}
	return network, nil
}
