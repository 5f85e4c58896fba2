package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/transfa/fund-service/internal/domain"
)

// funds: list the funds open for investment.
func fundsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "funds",
		Short: "List active funds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			funds, err := appCtx.Funds.ListFunds(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, f := range funds {
				fmt.Fprintf(w, "%-6s %-20s nav=%s min=%s fee=%s%%\n",
					f.Symbol, f.Name, f.CurrentNAV.String(), f.MinimumInvestment.StringFixed(2), f.EntryFeePercent.String())
			}
			return nil
		},
	}
}

// balances: list the demo investor's balances.
func balancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "List wallet balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			balances, err := appCtx.Wallet.ListBalances(cmd.Context(), investor)
			if err != nil {
				return err
			}
			for _, b := range balances {
				fmt.Fprintf(cmd.OutOrStdout(), "%-5s %s\n", b.Asset, b.Available.String())
			}
			return nil
		},
	}
}

// findFund resolves a fund by symbol or id.
func findFund(cmd *cobra.Command, ref string) (*domain.Fund, error) {
	funds, err := appCtx.Funds.ListFunds(cmd.Context())
	if err != nil {
		return nil, err
	}
	for i := range funds {
		if strings.EqualFold(funds[i].Symbol, ref) || funds[i].ID.String() == ref {
			return &funds[i], nil
		}
	}
	return nil, fmt.Errorf("no active fund %q", ref)
}
