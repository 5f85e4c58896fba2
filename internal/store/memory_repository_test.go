package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
)

func TestMemoryRepositoryDebitRequiresAvailableBalance(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	userID := uuid.New()

	if err := repo.CreditBalance(ctx, userID, "usdt", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("CreditBalance returned error: %v", err)
	}

	tests := []struct {
		name    string
		amount  decimal.Decimal
		wantErr error
	}{
		{name: "more than available", amount: decimal.RequireFromString("100.01"), wantErr: ErrInsufficientFunds},
		{name: "zero", amount: decimal.Zero, wantErr: ErrInvalidAmount},
		{name: "exact balance", amount: decimal.NewFromInt(100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.DebitBalance(ctx, userID, "USDT", tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	bal, err := repo.FindBalance(ctx, userID, "USDT")
	if err != nil {
		t.Fatalf("FindBalance returned error: %v", err)
	}
	if !bal.Available.IsZero() {
		t.Fatalf("expected empty balance, got %s", bal.Available)
	}
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	fund := &domain.Fund{Name: "Alpha", CurrentNAV: decimal.NewFromInt(10)}
	if err := repo.CreateFund(ctx, fund); err != nil {
		t.Fatalf("CreateFund returned error: %v", err)
	}

	got, err := repo.FindFundByID(ctx, fund.ID)
	if err != nil {
		t.Fatalf("FindFundByID returned error: %v", err)
	}
	got.Name = "mutated"

	again, _ := repo.FindFundByID(ctx, fund.ID)
	if again.Name != "Alpha" {
		t.Fatalf("expected stored fund to be unaffected, got %q", again.Name)
	}
}

func TestMemoryRepositoryListsInInsertionOrder(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	for _, name := range []string{"c", "a", "b"} {
		repo.CreateFund(ctx, &domain.Fund{Name: name})
	}
	funds, _ := repo.ListFunds(ctx)
	if len(funds) != 3 || funds[0].Name != "c" || funds[1].Name != "a" || funds[2].Name != "b" {
		t.Fatalf("expected insertion order c,a,b, got %+v", funds)
	}
}

func TestMemoryRepositoryUserEmailIsUnique(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	if err := repo.CreateUser(ctx, &domain.User{Email: "Ada@Example.com"}); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if err := repo.CreateUser(ctx, &domain.User{Email: "ada@example.com "}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := repo.FindUserByEmail(ctx, "ADA@example.com"); err != nil {
		t.Fatalf("expected case-insensitive lookup, got %v", err)
	}
}

func TestMemorySessionMirrorRoundTrip(t *testing.T) {
	mirror := NewMemorySessionMirror()
	ctx := context.Background()
	user := domain.User{ID: uuid.New(), Email: "ada@example.com", Name: "Ada", PasswordHash: "secret"}

	if err := mirror.Save(ctx, user); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	got, err := mirror.Load(ctx, user.ID)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.Name != "Ada" {
		t.Fatalf("expected name Ada, got %q", got.Name)
	}
	if got.PasswordHash != "" {
		t.Fatal("password hash must not be mirrored")
	}

	mirror.Delete(ctx, user.ID)
	if _, err := mirror.Load(ctx, user.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
