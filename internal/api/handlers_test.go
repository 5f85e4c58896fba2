package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/transfa/fund-service/internal/app"
	"github.com/transfa/fund-service/internal/config"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/store"
	"github.com/transfa/fund-service/internal/wizard"
)

const testPassword = "demo-password-1"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Field   string          `json:"field"`
	Message string          `json:"message"`
}

type apiEnv struct {
	container *app.Container
	seed      app.SeedResult
	handler   http.Handler
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	cfg := config.Config{
		JWTSecret:                "test-secret-0123456789",
		JWTIssuer:                "fund-service-test",
		JWTTTLMinutes:            60,
		WizardIdleTTLMinutes:     30,
		SubmitRateLimitPerMinute: 10,
		BcryptCost:               4,
	}
	c := app.NewContainer(cfg, app.Deps{
		Repo:   store.NewMemoryRepository(),
		Mirror: store.NewMemorySessionMirror(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	seed, err := app.SeedDemo(context.Background(), c, testPassword)
	if err != nil {
		t.Fatalf("seed demo: %v", err)
	}
	return &apiEnv{
		container: c,
		seed:      seed,
		handler:   Routes(NewHandlers(c), c.Auth, []string{"*"}),
	}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func (e *apiEnv) login(t *testing.T) string {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    app.DemoInvestorEmail,
		"password": testPassword,
	})
	if status != http.StatusOK || !env.Success {
		t.Fatalf("expected login to succeed, got %d %q", status, env.Error)
	}
	var session domain.Session
	if err := json.Unmarshal(env.Data, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Token == "" {
		t.Fatalf("expected a token")
	}
	return session.Token
}

func TestHealth(t *testing.T) {
	e := newAPIEnv(t)
	for _, path := range []string{"/health", "/api/health"} {
		rec := httptest.NewRecorder()
		e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "healthy" {
			t.Fatalf("%s: expected 200 healthy, got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newAPIEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Token abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/funds", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			var env envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Success || env.Error == "" {
				t.Fatalf("expected failure envelope, got %+v", env)
			}
		})
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	e := newAPIEnv(t)
	status, env := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    app.DemoInvestorEmail,
		"password": "wrong-password",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if env.Success {
		t.Fatalf("expected failure envelope")
	}
}

func TestFundsEndpoints(t *testing.T) {
	e := newAPIEnv(t)
	token := e.login(t)

	status, env := e.do(t, http.MethodGet, "/api/funds", token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var funds []domain.Fund
	if err := json.Unmarshal(env.Data, &funds); err != nil {
		t.Fatalf("decode funds: %v", err)
	}
	if len(funds) != len(e.seed.Funds)-1 {
		t.Fatalf("expected only active funds, got %d", len(funds))
	}

	status, _ = e.do(t, http.MethodGet, "/api/funds/"+e.seed.Funds[0].ID.String(), token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for known fund, got %d", status)
	}
	status, _ = e.do(t, http.MethodGet, "/api/funds/not-a-uuid", token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", status)
	}
	status, _ = e.do(t, http.MethodGet, "/api/funds/"+uuid.NewString(), token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown fund, got %d", status)
	}
}

func TestInvestmentWizardOverHTTP(t *testing.T) {
	e := newAPIEnv(t)
	token := e.login(t)
	fund := e.seed.Funds[0]
	base := "/api/wizards/investment"

	status, env := e.do(t, http.MethodPost, base+"/open", token, nil)
	if status != http.StatusOK {
		t.Fatalf("open: expected 200, got %d %q", status, env.Error)
	}

	status, env = e.do(t, http.MethodPost, base+"/back", token, nil)
	if status != http.StatusConflict {
		t.Fatalf("back on first step: expected 409, got %d", status)
	}

	status, env = e.do(t, http.MethodPost, base+"/proceed", token, map[string]interface{}{
		"input": map[string]string{"fund_id": fund.ID.String()},
	})
	if status != http.StatusOK {
		t.Fatalf("select fund: expected 200, got %d %q", status, env.Error)
	}

	for _, amount := range []string{"249.99", "1e20000000"} {
		status, env = e.do(t, http.MethodPost, base+"/proceed", token, map[string]interface{}{
			"input": map[string]string{"amount": amount},
		})
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("amount %s: expected 422, got %d", amount, status)
		}
		if env.Success || env.Field != "amount" || env.Error == "" {
			t.Fatalf("amount %s: expected a field failure on amount, got %+v", amount, env)
		}
		var rejected wizard.State
		if err := json.Unmarshal(env.Data, &rejected); err != nil {
			t.Fatalf("decode rejected state: %v", err)
		}
		if rejected.Current != "enter_amount" || rejected.View == nil || rejected.View.Fact("minimum_investment") == "" {
			t.Fatalf("amount %s: expected the amount step with its view, got %+v", amount, rejected)
		}
	}

	status, env = e.do(t, http.MethodPost, base+"/proceed", token, map[string]interface{}{
		"input": map[string]string{"amount": "1000"},
	})
	if status != http.StatusOK {
		t.Fatalf("enter amount: expected 200, got %d %q", status, env.Error)
	}
	var state wizard.State
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Current != "confirm" {
		t.Fatalf("expected confirm step, got %s", state.Current)
	}

	status, env = e.do(t, http.MethodPost, base+"/proceed", token, map[string]interface{}{
		"input": map[string]string{"confirmed": "true"},
	})
	if status != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d %q", status, env.Error)
	}
	state = wizard.State{}
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Current != wizard.StepSuccess || state.Outcome == nil || state.Outcome.Reference == "" {
		t.Fatalf("expected success with a reference, got %+v", state)
	}

	status, env = e.do(t, http.MethodGet, "/api/investments", token, nil)
	if status != http.StatusOK {
		t.Fatalf("investments: expected 200, got %d", status)
	}
	var investments []domain.Investment
	if err := json.Unmarshal(env.Data, &investments); err != nil {
		t.Fatalf("decode investments: %v", err)
	}
	if len(investments) != 1 {
		t.Fatalf("expected 1 investment, got %d", len(investments))
	}

	status, _ = e.do(t, http.MethodDelete, base, token, nil)
	if status != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", status)
	}
	status, _ = e.do(t, http.MethodPost, base+"/proceed", token, map[string]interface{}{"input": map[string]string{}})
	if status != http.StatusConflict {
		t.Fatalf("proceed on closed wizard: expected 409, got %d", status)
	}
}

func TestUnknownWizardKind(t *testing.T) {
	e := newAPIEnv(t)
	token := e.login(t)
	status, env := e.do(t, http.MethodPost, "/api/wizards/staking/open", token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %q", status, env.Error)
	}
}

func TestListWizards(t *testing.T) {
	e := newAPIEnv(t)
	token := e.login(t)
	status, env := e.do(t, http.MethodGet, "/api/wizards", token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var states map[string]wizard.State
	if err := json.Unmarshal(env.Data, &states); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(states) != 3 {
		t.Fatalf("expected 3 wizards, got %d", len(states))
	}
	for kind, s := range states {
		if s.Open || s.Current != wizard.StepClosed {
			t.Fatalf("expected %s to start closed, got %+v", kind, s)
		}
	}
}

func TestProfileEndpoints(t *testing.T) {
	e := newAPIEnv(t)
	token := e.login(t)

	status, env := e.do(t, http.MethodPut, "/api/me", token, map[string]string{"name": "  Ada Investor "})
	if status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d %q", status, env.Error)
	}
	status, env = e.do(t, http.MethodGet, "/api/me", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", status)
	}
	var user domain.User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.Name != "Ada Investor" {
		t.Fatalf("expected trimmed name, got %q", user.Name)
	}

	status, _ = e.do(t, http.MethodPut, "/api/me", token, map[string]string{"name": "   "})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("blank name: expected 422, got %d", status)
	}
}

func TestWalletEndpoints(t *testing.T) {
	e := newAPIEnv(t)
	token := e.login(t)

	status, env := e.do(t, http.MethodGet, "/api/wallet/balances", token, nil)
	if status != http.StatusOK {
		t.Fatalf("balances: expected 200, got %d", status)
	}
	var balances []domain.Balance
	if err := json.Unmarshal(env.Data, &balances); err != nil {
		t.Fatalf("decode balances: %v", err)
	}
	if len(balances) != 3 {
		t.Fatalf("expected 3 balances, got %d", len(balances))
	}

	status, env = e.do(t, http.MethodGet, "/api/wallet/networks?asset=USDT", token, nil)
	if status != http.StatusOK {
		t.Fatalf("networks: expected 200, got %d", status)
	}
	var networks []domain.Network
	if err := json.Unmarshal(env.Data, &networks); err != nil {
		t.Fatalf("decode networks: %v", err)
	}
	if len(networks) != 2 {
		t.Fatalf("expected 2 USDT networks, got %d", len(networks))
	}

	status, env = e.do(t, http.MethodGet, "/api/wallet/transactions", token, nil)
	if status != http.StatusOK {
		t.Fatalf("transactions: expected 200, got %d", status)
	}
	if string(env.Data) != "[]" {
		t.Fatalf("expected empty ledger, got %s", env.Data)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "field error", err: wizard.Invalid("amount", "too small"), want: http.StatusUnprocessableEntity},
		{name: "rate limited", err: fmt.Errorf("proceed: %w", app.ErrRateLimited), want: http.StatusTooManyRequests},
		{name: "submit refusal", err: &wizard.SubmitError{Err: store.ErrInsufficientFunds}, want: http.StatusConflict},
		{name: "submit infra failure", err: &wizard.SubmitError{Err: errors.New("db down")}, want: http.StatusInternalServerError},
		{name: "not open", err: wizard.ErrNotOpen, want: http.StatusConflict},
		{name: "unknown flow", err: app.ErrUnknownFlow, want: http.StatusNotFound},
		{name: "bad credentials", err: app.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "unexpected", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
