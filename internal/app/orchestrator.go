/**
 * @description
 * The Orchestrator is the page-level coordinator of the wizards. Each user gets
 * a Page holding one state machine per wizard kind, so an investment and a
 * withdrawal can be in progress at the same time without touching each other.
 *
 * Key features:
 * - It is the only component that calls the domain services on behalf of a wizard.
 * - Logs every failed transition with the flow, step and user.
 * - Applies the per-user submission rate limit to submissions that reach a service.
 * - Publishes `wizard.completed` once a flow reaches its success step.
 * - SweepIdle closes wizards that were left open, driven by the scheduler.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/flows"
	"github.com/transfa/fund-service/internal/wizard"
	"github.com/transfa/fund-service/pkg/rabbitmq"
)

const submitRateLimitScope = "wizard_submit"

// OrchestratorConfig holds the submission limit.
type OrchestratorConfig struct {
	SubmitLimit  int
	SubmitWindow time.Duration
}

// Page is the set of wizards of one user.
type Page struct {
	UserID   uuid.UUID
	machines map[flows.Kind]*wizard.Machine

	// Guarded by Orchestrator.mu.
	active   int
	lastUsed time.Time
}

// Machine returns the machine driving kind.
func (p *Page) Machine(kind flows.Kind) (*wizard.Machine, bool) {
	m, ok := p.machines[kind]
	return m, ok
}

// States returns a snapshot of every wizard on the page.
func (p *Page) States() map[flows.Kind]wizard.State {
	out := make(map[flows.Kind]wizard.State, len(p.machines))
	for kind, m := range p.machines {
		out[kind] = m.State()
	}
	return out
}

// Orchestrator owns the pages and performs the terminal mutation of each wizard.
type Orchestrator struct {
	funds         *FundService
	wallet        *WalletService
	limiter       SubmitRateLimiter
	eventProducer rabbitmq.Publisher
	logger        *slog.Logger
	config        OrchestratorConfig
	now           func() time.Time

	mu    sync.Mutex
	pages map[uuid.UUID]*Page
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(funds *FundService, wallet *WalletService, limiter SubmitRateLimiter, producer rabbitmq.Publisher, logger *slog.Logger, cfg OrchestratorConfig) *Orchestrator {
	if producer == nil {
		producer = &rabbitmq.DroppingPublisher{}
	}
	if limiter == nil {
		limiter = NewMemorySubmitRateLimiter()
	}
	return &Orchestrator{
		funds:         funds,
		wallet:        wallet,
		limiter:       limiter,
		eventProducer: producer,
		logger:        logger,
		config:        cfg,
		now:           time.Now,
		pages:         make(map[uuid.UUID]*Page),
	}
}

// Page returns the user's page, creating it on first use.
func (o *Orchestrator) Page(userID uuid.UUID) (*Page, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	page, err := o.pageLocked(userID)
	if err != nil {
		return nil, err
	}
	page.lastUsed = o.now()
	return page, nil
}

// acquire pins the user's page until release is called so SweepIdle cannot
// drop it while a caller still holds one of its machines.
func (o *Orchestrator) acquire(userID uuid.UUID) (*Page, func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	page, err := o.pageLocked(userID)
	if err != nil {
		return nil, nil, err
	}
	page.active++
	page.lastUsed = o.now()
	release := func() {
		o.mu.Lock()
		page.active--
		page.lastUsed = o.now()
		o.mu.Unlock()
	}
	return page, release, nil
}

func (o *Orchestrator) pageLocked(userID uuid.UUID) (*Page, error) {
	if page, ok := o.pages[userID]; ok {
		return page, nil
	}

	catalog := userCatalog{userID: userID, funds: o.funds, wallet: o.wallet}
	page := &Page{UserID: userID, machines: make(map[flows.Kind]*wizard.Machine, len(flows.Kinds))}
	for _, kind := range flows.Kinds {
		steps, err := flows.Steps(kind, catalog)
		if err != nil {
			return nil, err
		}
		m, err := wizard.NewMachine(wizard.Flow{
			Kind:   string(kind),
			Steps:  steps,
			Submit: o.limitSubmit(userID, o.submitFunc(kind, userID)),
		}, wizard.WithClock(o.now))
		if err != nil {
			return nil, fmt.Errorf("build %s wizard: %w", kind, err)
		}
		page.machines[kind] = m
	}
	o.pages[userID] = page
	return page, nil
}

// States returns every wizard of the user.
func (o *Orchestrator) States(ctx context.Context, userID uuid.UUID) (map[flows.Kind]wizard.State, error) {
	page, release, err := o.acquire(userID)
	if err != nil {
		return nil, err
	}
	defer release()
	return page.States(), nil
}

// State returns one wizard of the user.
func (o *Orchestrator) State(ctx context.Context, userID uuid.UUID, kind string) (wizard.State, error) {
	m, _, release, err := o.machine(userID, kind)
	if err != nil {
		return wizard.State{}, err
	}
	defer release()
	return m.State(), nil
}

// Open starts a wizard over from its first step.
func (o *Orchestrator) Open(ctx context.Context, userID uuid.UUID, kind string) (wizard.State, error) {
	m, k, release, err := o.machine(userID, kind)
	if err != nil {
		return wizard.State{}, err
	}
	defer release()
	state, err := m.Open(ctx)
	if err != nil {
		o.logFailure(userID, k, "open", state, err)
		return state, err
	}
	o.logger.Debug("wizard opened", "user_id", userID, "flow", k)
	return state, nil
}

// Proceed submits input to the active step.
func (o *Orchestrator) Proceed(ctx context.Context, userID uuid.UUID, kind string, input wizard.Input) (wizard.State, error) {
	m, k, release, err := o.machine(userID, kind)
	if err != nil {
		return wizard.State{}, err
	}
	defer release()

	state, err := m.Proceed(ctx, input)
	if err != nil {
		o.logFailure(userID, k, "proceed", state, err)
		return state, err
	}

	if state.Current == wizard.StepSuccess {
		reference := ""
		if state.Outcome != nil {
			reference = state.Outcome.Reference
		}
		o.logger.Info("wizard completed", "user_id", userID, "flow", k, "reference", reference)
		event := domain.WizardCompletedPayload{UserID: userID, Flow: string(k), Reference: reference, At: o.now().UTC()}
		if err := o.eventProducer.Publish(ctx, domain.EventsExchange, domain.RoutingKeyWizardCompleted, event); err != nil {
			o.logger.Warn("failed to publish wizard completion", "user_id", userID, "flow", k, "error", err)
		}
	}
	return state, nil
}

// Back returns to the previous step.
func (o *Orchestrator) Back(ctx context.Context, userID uuid.UUID, kind string) (wizard.State, error) {
	m, k, release, err := o.machine(userID, kind)
	if err != nil {
		return wizard.State{}, err
	}
	defer release()
	state, err := m.Back(ctx)
	if err != nil {
		o.logFailure(userID, k, "back", state, err)
		return state, err
	}
	return state, nil
}

// Cancel closes a wizard and discards its payload.
func (o *Orchestrator) Cancel(ctx context.Context, userID uuid.UUID, kind string) (wizard.State, error) {
	m, _, release, err := o.machine(userID, kind)
	if err != nil {
		return wizard.State{}, err
	}
	defer release()
	return m.Cancel(), nil
}

// SweepIdle closes every wizard left untouched for longer than olderThan and
// drops pages with no recent activity that no caller is holding. It returns the number of wizards closed.
func (o *Orchestrator) SweepIdle(ctx context.Context, olderThan time.Duration) int {
	cutoff := o.now().Add(-olderThan)

	o.mu.Lock()
	defer o.mu.Unlock()

	closed := 0
	for userID, page := range o.pages {
		recent := 0
		for kind, m := range page.machines {
			updatedAt, open := m.IdleSince()
			if !updatedAt.Before(cutoff) {
				recent++
				continue
			}
			if open {
				m.Cancel()
				closed++
				o.logger.Info("closed idle wizard", "user_id", userID, "flow", kind, "idle_since", updatedAt)
			}
		}
		if recent == 0 && page.active == 0 && page.lastUsed.Before(cutoff) {
			delete(o.pages, userID)
		}
	}
	return closed
}

// machine resolves one wizard of the user. The caller must invoke release once
// it is done with the machine.
func (o *Orchestrator) machine(userID uuid.UUID, raw string) (*wizard.Machine, flows.Kind, func(), error) {
	kind, err := flows.ParseKind(raw)
	if err != nil {
		return nil, "", nil, err
	}
	page, release, err := o.acquire(userID)
	if err != nil {
		return nil, kind, nil, err
	}
	m, ok := page.Machine(kind)
	if !ok {
		release()
		return nil, kind, nil, fmt.Errorf("%w: %s", ErrUnknownFlow, kind)
	}
	return m, kind, release, nil
}

// limitSubmit counts a submission against the user's window only once the
// machine has validated the confirm step and handed the payload over.
func (o *Orchestrator) limitSubmit(userID uuid.UUID, submit wizard.SubmitFunc) wizard.SubmitFunc {
	if submit == nil {
		return nil
	}
	return func(ctx context.Context, payload wizard.Payload) (wizard.Outcome, error) {
		if err := o.checkSubmitLimit(ctx, userID); err != nil {
			return wizard.Outcome{}, err
		}
		return submit(ctx, payload)
	}
}

func (o *Orchestrator) checkSubmitLimit(ctx context.Context, userID uuid.UUID) error {
	if o.config.SubmitLimit <= 0 {
		return nil
	}
	count, retryAfter, err := o.limiter.ConsumeRateLimit(ctx, submitRateLimitScope, userID.String(), o.config.SubmitLimit, o.config.SubmitWindow)
	if err != nil {
		o.logger.Warn("submit rate limiter unavailable, allowing", "user_id", userID, "error", err)
		return nil
	}
	if count > o.config.SubmitLimit {
		return fmt.Errorf("%w: retry in %ds", ErrRateLimited, retryAfter)
	}
	return nil
}

func (o *Orchestrator) logFailure(userID uuid.UUID, kind flows.Kind, action string, state wizard.State, err error) {
	attrs := []any{"user_id", userID, "flow", kind, "action", action, "step", state.Current, "error", err}

	var fieldErr *wizard.FieldError
	var submitErr *wizard.SubmitError
	switch {
	case errors.As(err, &fieldErr):
		o.logger.Debug("wizard input rejected", attrs...)
	case errors.Is(err, ErrRateLimited):
		o.logger.Info("wizard submission rate limited", attrs...)
	case errors.As(err, &submitErr):
		o.logger.Warn("wizard submission rejected", attrs...)
	case errors.Is(err, wizard.ErrNotOpen),
		errors.Is(err, wizard.ErrNoPreviousStep),
		errors.Is(err, wizard.ErrFlowCompleted),
		errors.Is(err, wizard.ErrSubmissionInFlight),
		errors.Is(err, wizard.ErrFlowReset):
		o.logger.Info("wizard transition refused", attrs...)
	default:
		o.logger.Error("wizard transition failed", attrs...)
	}
}

func (o *Orchestrator) submitFunc(kind flows.Kind, userID uuid.UUID) wizard.SubmitFunc {
	switch kind {
	case flows.KindInvestment:
		return o.submitInvestment(userID)
	case flows.KindWithdrawal:
		return o.submitWithdrawal(userID)
	case flows.KindDeposit:
		return o.submitDeposit(userID)
	}
	return nil
}

func (o *Orchestrator) submitInvestment(userID uuid.UUID) wizard.SubmitFunc {
	return func(ctx context.Context, payload wizard.Payload) (wizard.Outcome, error) {
		fundID, err := uuid.Parse(payload[flows.FieldFund])
		if err != nil {
			return wizard.Outcome{}, fmt.Errorf("parse fund id: %w", err)
		}
		amount, err := decimal.NewFromString(payload[flows.FieldAmount])
		if err != nil {
			return wizard.Outcome{}, fmt.Errorf("parse amount: %w", err)
		}

		investment, err := o.funds.Invest(ctx, InvestInput{UserID: userID, FundID: fundID, Amount: amount}).Unwrap()
		if err != nil {
			return wizard.Outcome{}, err
		}
		return wizard.Outcome{
			Reference: investment.ID.String(),
			Facts: map[string]string{
				"amount":                investment.Amount.StringFixed(2),
				"entry_fee":             investment.EntryFee.StringFixed(2),
				"net_investment_amount": investment.NetAmount.StringFixed(2),
				"units":                 investment.Units.String(),
				"nav":                   investment.NAV.String(),
			},
		}, nil
	}
}

func (o *Orchestrator) submitWithdrawal(userID uuid.UUID) wizard.SubmitFunc {
	return func(ctx context.Context, payload wizard.Payload) (wizard.Outcome, error) {
		amount, err := decimal.NewFromString(payload[flows.FieldAmount])
		if err != nil {
			return wizard.Outcome{}, fmt.Errorf("parse amount: %w", err)
		}

		tx, err := o.wallet.Withdraw(ctx, WithdrawInput{
			UserID:  userID,
			Asset:   payload[flows.FieldAsset],
			Network: payload[flows.FieldNetwork],
			Address: payload[flows.FieldAddress],
			Amount:  amount,
		}).Unwrap()
		if err != nil {
			return wizard.Outcome{}, err
		}
		return transactionOutcome(tx), nil
	}
}

func (o *Orchestrator) submitDeposit(userID uuid.UUID) wizard.SubmitFunc {
	return func(ctx context.Context, payload wizard.Payload) (wizard.Outcome, error) {
		amount, err := decimal.NewFromString(payload[flows.FieldAmount])
		if err != nil {
			return wizard.Outcome{}, fmt.Errorf("parse amount: %w", err)
		}

		tx, err := o.wallet.Deposit(ctx, DepositInput{
			UserID:  userID,
			Asset:   payload[flows.FieldAsset],
			Network: payload[flows.FieldNetwork],
			Amount:  amount,
		}).Unwrap()
		if err != nil {
			return wizard.Outcome{}, err
		}
		return transactionOutcome(tx), nil
	}
}

func transactionOutcome(tx domain.Transaction) wizard.Outcome {
	facts := map[string]string{
		"asset":   tx.Asset,
		"network": tx.Network,
		"amount":  tx.Amount.String(),
		"fee":     tx.Fee.String(),
		"status":  tx.Status,
	}
	if tx.Address != "" {
		facts["address"] = tx.Address
	}
	if tx.TxHash != "" {
		facts["tx_hash"] = tx.TxHash
	}
	return wizard.Outcome{Reference: tx.ID.String(), Facts: facts}
}
