package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuoteInvestment(t *testing.T) {
	fund := Fund{
		CurrentNAV:        decimal.NewFromInt(100),
		MinimumInvestment: decimal.NewFromInt(250),
		EntryFeePercent:   decimal.RequireFromString("1.5"),
	}

	quote := fund.QuoteInvestment(decimal.NewFromInt(1000))

	if !quote.EntryFee.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected entry fee 15, got %s", quote.EntryFee)
	}
	if !quote.NetAmount.Equal(decimal.NewFromInt(985)) {
		t.Fatalf("expected net 985, got %s", quote.NetAmount)
	}
	if !quote.Units.Equal(decimal.RequireFromString("9.85")) {
		t.Fatalf("expected units 9.85, got %s", quote.Units)
	}
}

func TestQuoteInvestmentZeroNAV(t *testing.T) {
	fund := Fund{EntryFeePercent: decimal.NewFromInt(1)}
	quote := fund.QuoteInvestment(decimal.NewFromInt(100))
	if !quote.Units.IsZero() {
		t.Fatalf("expected zero units without a NAV, got %s", quote.Units)
	}
}

func TestNetworkValidateAddress(t *testing.T) {
	tron := Network{Name: "Tron (TRC20)", AddressPrefix: "T"}
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "valid", address: "TQn9Y2khEsLJW1ChVWFMSMeRDow5KcbLSE"},
		{name: "empty", address: "", wantErr: true},
		{name: "too short", address: "T123", wantErr: true},
		{name: "wrong prefix", address: "0x71C7656EC7ab88b098defB751B7401B5f6d8976F", wantErr: true},
		{name: "whitespace", address: " TQn9Y2khEsLJW1ChVWFMSMeRDow5KcbLSE", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tron.ValidateAddress(tt.address)
			if tt.wantErr && !errors.Is(err, ErrInvalidAddress) {
				t.Fatalf("expected ErrInvalidAddress, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
