package commands

import (
	"github.com/spf13/cobra"
	"github.com/transfa/fund-service/internal/flows"
	"github.com/transfa/fund-service/internal/wizard"
)

// invest <fund> <amount>: run the investment wizard end to end.
func investCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invest <fund-symbol|fund-id> <amount>",
		Short: "Invest USDT into a fund",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fund, err := findFund(cmd, args[0])
			if err != nil {
				return err
			}
			_, err = runWizard(cmd.Context(), cmd.OutOrStdout(), flows.KindInvestment,
				wizard.Input{flows.FieldFund: fund.ID.String()},
				wizard.Input{flows.FieldAmount: args[1]},
				wizard.Input{flows.FieldConfirmed: "true"},
			)
			return err
		},
	}
}

// withdraw <asset> <network> <address> <amount>: run the withdrawal wizard.
func withdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <asset> <network> <address> <amount>",
		Short: "Withdraw an asset to an external address",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runWizard(cmd.Context(), cmd.OutOrStdout(), flows.KindWithdrawal,
				wizard.Input{flows.FieldAsset: args[0]},
				wizard.Input{flows.FieldNetwork: args[1]},
				wizard.Input{flows.FieldAddress: args[2], flows.FieldAmount: args[3]},
				wizard.Input{flows.FieldConfirmed: "true"},
			)
			return err
		},
	}
}

// deposit <asset> <network> <amount>: run the deposit wizard.
func depositCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <asset> <network> <amount>",
		Short: "Deposit an asset",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runWizard(cmd.Context(), cmd.OutOrStdout(), flows.KindDeposit,
				wizard.Input{flows.FieldAsset: args[0]},
				wizard.Input{flows.FieldNetwork: args[1]},
				wizard.Input{flows.FieldAmount: args[2]},
				wizard.Input{flows.FieldConfirmed: "true"},
			)
			return err
		},
	}
}
