/**
 * @description
 * This file contains the HTTP handlers for the fund-service's API endpoints.
 * Handlers parse the request, call the services or the wizard orchestrator and
 * write the `{success, data?, error?, message?}` envelope back to the client.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store, internal/wizard.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/transfa/fund-service/internal/app"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/flows"
	"github.com/transfa/fund-service/internal/store"
	"github.com/transfa/fund-service/internal/wizard"
)

const maxRequestBodyBytes = 1 << 16

// Handlers holds the services the handlers use.
type Handlers struct {
	funds        *app.FundService
	wallet       *app.WalletService
	users        *app.UserService
	auth         *app.AuthService
	orchestrator *app.Orchestrator
}

// NewHandlers creates a new instance of Handlers from the service container.
func NewHandlers(c *app.Container) *Handlers {
	return &Handlers{
		funds:        c.Funds,
		wallet:       c.Wallet,
		users:        c.Users,
		auth:         c.Auth,
		orchestrator: c.Orchestrator,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type proceedRequest struct {
	Input map[string]string `json:"input"`
}

// LoginHandler exchanges credentials for a session token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res := h.auth.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if !res.Success() {
		_, err := res.Unwrap()
		h.writeFailure(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LogoutHandler drops the mirrored session.
func (h *Handlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.auth.Logout(r.Context(), userID); err != nil {
		h.writeFailure(w, "logout", err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Ok(struct{}{}, "Signed out"))
}

// GetProfileHandler returns the signed-in user.
func (h *Handlers) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, "get_profile", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, domain.Ok(*user, ""))
}

// UpdateProfileHandler edits the signed-in user's profile.
func (h *Handlers) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var update domain.ProfileUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	res := h.users.UpdateProfile(r.Context(), userID, update)
	if !res.Success() {
		_, err := res.Unwrap()
		h.writeFailure(w, "update_profile", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListFundsHandler lists the funds open for investment.
func (h *Handlers) ListFundsHandler(w http.ResponseWriter, r *http.Request) {
	funds, err := h.funds.ListFunds(r.Context())
	if err != nil {
		h.writeFailure(w, "list_funds", err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Ok(funds, ""))
}

// GetFundHandler returns one fund.
func (h *Handlers) GetFundHandler(w http.ResponseWriter, r *http.Request) {
	fundID, err := uuid.Parse(chi.URLParam(r, "fundID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fund ID format")
		return
	}
	fund, err := h.funds.GetFund(r.Context(), fundID)
	if err != nil {
		h.writeFailure(w, "get_fund", err)
		return
	}
	if fund == nil {
		writeError(w, http.StatusNotFound, store.ErrFundNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, domain.Ok(*fund, ""))
}

// ListInvestmentsHandler lists the signed-in user's investments.
func (h *Handlers) ListInvestmentsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	investments, err := h.funds.ListInvestments(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, "list_investments", err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Ok(nonNil(investments), ""))
}

// ListBalancesHandler lists the signed-in user's balances.
func (h *Handlers) ListBalancesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	balances, err := h.wallet.ListBalances(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, "list_balances", err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Ok(nonNil(balances), ""))
}

// ListNetworksHandler lists networks, optionally filtered by ?asset=.
func (h *Handlers) ListNetworksHandler(w http.ResponseWriter, r *http.Request) {
	networks, err := h.wallet.ListNetworks(r.Context(), strings.TrimSpace(r.URL.Query().Get("asset")))
	if err != nil {
		h.writeFailure(w, "list_networks", err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Ok(nonNil(networks), ""))
}

// ListTransactionsHandler lists the signed-in user's ledger.
func (h *Handlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	txs, err := h.wallet.ListTransactions(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, "list_transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Ok(nonNil(txs), ""))
}

// ListWizardsHandler returns every wizard of the signed-in user.
func (h *Handlers) ListWizardsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	states, err := h.orchestrator.States(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, "list_wizards", err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Ok(states, ""))
}

// GetWizardHandler returns one wizard.
func (h *Handlers) GetWizardHandler(w http.ResponseWriter, r *http.Request) {
	h.wizardAction(w, r, "get_wizard", func(userID uuid.UUID, kind string) (wizard.State, error) {
		return h.orchestrator.State(r.Context(), userID, kind)
	})
}

// OpenWizardHandler starts a wizard over from its first step.
func (h *Handlers) OpenWizardHandler(w http.ResponseWriter, r *http.Request) {
	h.wizardAction(w, r, "open_wizard", func(userID uuid.UUID, kind string) (wizard.State, error) {
		return h.orchestrator.Open(r.Context(), userID, kind)
	})
}

// ProceedWizardHandler submits the active step.
func (h *Handlers) ProceedWizardHandler(w http.ResponseWriter, r *http.Request) {
	var req proceedRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	h.wizardAction(w, r, "proceed_wizard", func(userID uuid.UUID, kind string) (wizard.State, error) {
		return h.orchestrator.Proceed(r.Context(), userID, kind, wizard.Input(req.Input))
	})
}

// BackWizardHandler returns to the previous step.
func (h *Handlers) BackWizardHandler(w http.ResponseWriter, r *http.Request) {
	h.wizardAction(w, r, "back_wizard", func(userID uuid.UUID, kind string) (wizard.State, error) {
		return h.orchestrator.Back(r.Context(), userID, kind)
	})
}

// CancelWizardHandler closes a wizard.
func (h *Handlers) CancelWizardHandler(w http.ResponseWriter, r *http.Request) {
	h.wizardAction(w, r, "cancel_wizard", func(userID uuid.UUID, kind string) (wizard.State, error) {
		return h.orchestrator.Cancel(r.Context(), userID, kind)
	})
}

func (h *Handlers) wizardAction(w http.ResponseWriter, r *http.Request, endpoint string, action func(userID uuid.UUID, kind string) (wizard.State, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	state, err := action(userID, chi.URLParam(r, "kind"))
	var fieldErr *wizard.FieldError
	if errors.As(err, &fieldErr) {
		writeJSON(w, http.StatusUnprocessableEntity, fieldFailure{
			Error: fieldErr.Error(),
			Field: fieldErr.Field,
			Data:  state,
		})
		return
	}
	if err != nil {
		h.writeFailure(w, endpoint, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Ok(state, ""))
}

// fieldFailure is the failure envelope for an input the active step rejected.
// It carries the offending field and the unchanged wizard so the client can
// render the message inline.
type fieldFailure struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Field   string       `json:"field"`
	Data    wizard.State `json:"data"`
}

// writeFailure maps an error to its status code and writes the failure envelope.
func (h *Handlers) writeFailure(w http.ResponseWriter, endpoint string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("level=error component=api endpoint=%s msg=\"request failed\" err=%v", endpoint, err)
		writeError(w, status, "Internal server error")
		return
	}
	log.Printf("level=info component=api endpoint=%s outcome=reject status=%d err=%v", endpoint, status, err)
	writeJSON(w, status, domain.Err[struct{}](err))
}

func statusFor(err error) int {
	var fieldErr *wizard.FieldError
	var submitErr *wizard.SubmitError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &fieldErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &submitErr):
		if statusFor(submitErr.Err) >= http.StatusInternalServerError {
			return http.StatusInternalServerError
		}
		return http.StatusConflict
	case errors.Is(err, app.ErrUnknownFlow):
		return http.StatusNotFound
	case errors.Is(err, app.ErrInvalidCredentials), errors.Is(err, app.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrInvalidProfile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, wizard.ErrNotOpen),
		errors.Is(err, wizard.ErrNoPreviousStep),
		errors.Is(err, wizard.ErrFlowCompleted),
		errors.Is(err, wizard.ErrSubmissionInFlight),
		errors.Is(err, wizard.ErrFlowReset),
		errors.Is(err, flows.ErrUnavailable):
		return http.StatusConflict
	case errors.Is(err, app.ErrAmountBelowMinimum),
		errors.Is(err, app.ErrFundInactive),
		errors.Is(err, app.ErrInvalidAddress),
		errors.Is(err, store.ErrInsufficientFunds),
		errors.Is(err, store.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrFundNotFound),
		errors.Is(err, store.ErrNetworkNotFound),
		errors.Is(err, store.ErrBalanceNotFound),
		errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUserExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	return userID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing failure envelopes with a fixed message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, domain.Err[struct{}](errors.New(message)))
}
