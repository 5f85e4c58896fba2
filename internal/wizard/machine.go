package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrNotOpen            = errors.New("wizard is not open")
	ErrNoPreviousStep     = errors.New("wizard is on its first step")
	ErrFlowCompleted      = errors.New("wizard has already completed")
	ErrSubmissionInFlight = errors.New("wizard submission already in progress")
	ErrFlowReset          = errors.New("wizard was reset while the submission was in flight")
	ErrFieldNotOwned      = errors.New("step wrote a payload field it does not own")
	ErrInvalidFlow        = errors.New("invalid flow definition")
)

// SubmitError wraps a failure returned by the flow's submit function.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string { return fmt.Sprintf("submit failed: %v", e.Err) }
func (e *SubmitError) Unwrap() error { return e.Err }

// Outcome is what the success step renders.
type Outcome struct {
	Reference string            `json:"reference"`
	Facts     map[string]string `json:"facts,omitempty"`
}

// SubmitFunc performs the flow's terminal mutation.
type SubmitFunc func(ctx context.Context, payload Payload) (Outcome, error)

// Flow is the static definition of a wizard.
type Flow struct {
	Kind   string
	Steps  []Step
	Submit SubmitFunc
}

// State is a snapshot of a machine.
type State struct {
	Flow      string    `json:"flow"`
	Current   StepID    `json:"current_step"`
	StepIndex int       `json:"step_index"`
	StepCount int       `json:"step_count"`
	Open      bool      `json:"open"`
	Payload   Payload   `json:"payload"`
	View      *View     `json:"view,omitempty"`
	Outcome   *Outcome  `json:"outcome,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// Machine drives one flow through closed, its steps, success and back to closed.
// index is -1 while closed and len(steps) on success.
type Machine struct {
	mu sync.Mutex

	flow       Flow
	owned      [][]string // owned[i] = fields of steps[0..i-1]
	index      int
	payload    Payload
	view       *View
	outcome    *Outcome
	generation uint64
	submitting bool
	updatedAt  time.Time
	now        func() time.Time
}

// NewMachine validates flow and returns a closed machine.
func NewMachine(flow Flow, opts ...MachineOption) (*Machine, error) {
	if flow.Kind == "" {
		return nil, fmt.Errorf("%w: missing kind", ErrInvalidFlow)
	}
	if len(flow.Steps) == 0 {
		return nil, fmt.Errorf("%w: %s has no steps", ErrInvalidFlow, flow.Kind)
	}
	if flow.Submit == nil {
		return nil, fmt.Errorf("%w: %s has no submit function", ErrInvalidFlow, flow.Kind)
	}

	seenSteps := make(map[StepID]bool, len(flow.Steps))
	fieldOwner := make(map[string]StepID)
	owned := make([][]string, len(flow.Steps)+1)
	owned[0] = nil
	for i, step := range flow.Steps {
		id := step.ID()
		if id == StepClosed || id == StepSuccess || id == "" {
			return nil, fmt.Errorf("%w: %s uses reserved step id %q", ErrInvalidFlow, flow.Kind, id)
		}
		if seenSteps[id] {
			return nil, fmt.Errorf("%w: %s repeats step %q", ErrInvalidFlow, flow.Kind, id)
		}
		seenSteps[id] = true
		for _, f := range step.Fields() {
			if prev, ok := fieldOwner[f]; ok {
				return nil, fmt.Errorf("%w: field %q owned by %q and %q", ErrInvalidFlow, f, prev, id)
			}
			fieldOwner[f] = id
		}
		owned[i+1] = append(append([]string(nil), owned[i]...), step.Fields()...)
	}

	m := &Machine{
		flow:    flow,
		owned:   owned,
		index:   -1,
		payload: Payload{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.updatedAt = m.now()
	return m, nil
}

// Kind returns the flow kind.
func (m *Machine) Kind() string { return m.flow.Kind }

// Open moves to the first step with an empty payload. Opening an open wizard
// starts it over; a submission still in flight is discarded when it returns.
func (m *Machine) Open(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	view, err := m.flow.Steps[0].Mount(ctx, Payload{})
	if err != nil {
		return m.snapshotLocked(), fmt.Errorf("mount %s: %w", m.flow.Steps[0].ID(), err)
	}

	m.generation++
	m.submitting = false
	m.index = 0
	m.payload = Payload{}
	m.view = &view
	m.outcome = nil
	m.touchLocked()
	return m.snapshotLocked(), nil
}

// Proceed validates input on the active step and advances. On the last step it
// runs the flow's submit function; the machine only reaches success when that
// call returns without error.
func (m *Machine) Proceed(ctx context.Context, input Input) (State, error) {
	m.mu.Lock()

	if err := m.interactiveLocked(); err != nil {
		defer m.mu.Unlock()
		return m.snapshotLocked(), err
	}

	step := m.flow.Steps[m.index]
	contribution, err := step.Proceed(*m.view, m.payload.Only(m.owned[m.index]), input)
	if err != nil {
		defer m.mu.Unlock()
		return m.snapshotLocked(), err
	}

	merged, err := m.mergeLocked(step, contribution)
	if err != nil {
		defer m.mu.Unlock()
		return m.snapshotLocked(), err
	}

	if m.index < len(m.flow.Steps)-1 {
		defer m.mu.Unlock()
		next := m.flow.Steps[m.index+1]
		view, err := next.Mount(ctx, merged.Only(m.owned[m.index+1]))
		if err != nil {
			return m.snapshotLocked(), fmt.Errorf("mount %s: %w", next.ID(), err)
		}
		m.payload = merged
		m.index++
		m.view = &view
		m.touchLocked()
		return m.snapshotLocked(), nil
	}

	m.payload = merged
	m.submitting = true
	generation := m.generation
	submitted := merged.Clone()
	m.touchLocked()
	m.mu.Unlock()

	outcome, submitErr := m.flow.Submit(ctx, submitted)

	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return m.snapshotLocked(), ErrFlowReset
	}
	m.submitting = false
	m.touchLocked()
	if submitErr != nil {
		return m.snapshotLocked(), &SubmitError{Err: submitErr}
	}
	m.index = len(m.flow.Steps)
	m.view = nil
	m.outcome = &outcome
	return m.snapshotLocked(), nil
}

// Back returns to the previous step. The payload is kept as is.
func (m *Machine) Back(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.interactiveLocked(); err != nil {
		return m.snapshotLocked(), err
	}
	if m.index == 0 {
		return m.snapshotLocked(), ErrNoPreviousStep
	}

	prev := m.flow.Steps[m.index-1]
	view, err := prev.Mount(ctx, m.payload.Only(m.owned[m.index-1]))
	if err != nil {
		return m.snapshotLocked(), fmt.Errorf("mount %s: %w", prev.ID(), err)
	}
	m.index--
	m.view = &view
	m.touchLocked()
	return m.snapshotLocked(), nil
}

// Cancel closes the wizard from any state and discards the payload.
func (m *Machine) Cancel() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	m.submitting = false
	m.index = -1
	m.payload = Payload{}
	m.view = nil
	m.outcome = nil
	m.touchLocked()
	return m.snapshotLocked()
}

// State returns a snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// IdleSince reports when the machine last changed and whether it is open.
func (m *Machine) IdleSince() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatedAt, m.index >= 0
}

func (m *Machine) interactiveLocked() error {
	switch {
	case m.index < 0:
		return ErrNotOpen
	case m.index >= len(m.flow.Steps):
		return ErrFlowCompleted
	case m.submitting:
		return ErrSubmissionInFlight
	}
	return nil
}

func (m *Machine) mergeLocked(step Step, contribution Payload) (Payload, error) {
	allowed := make(map[string]bool, len(step.Fields()))
	for _, f := range step.Fields() {
		allowed[f] = true
	}
	merged := m.payload.Clone()
	for k, v := range contribution {
		if !allowed[k] {
			return nil, fmt.Errorf("%w: %s wrote %q", ErrFieldNotOwned, step.ID(), k)
		}
		merged[k] = v
	}
	return merged, nil
}

func (m *Machine) touchLocked() {
	m.updatedAt = m.now()
}

func (m *Machine) snapshotLocked() State {
	state := State{
		Flow:      m.flow.Kind,
		StepIndex: m.index,
		StepCount: len(m.flow.Steps),
		Open:      m.index >= 0,
		Payload:   m.payload.Clone(),
		UpdatedAt: m.updatedAt,
	}
	switch {
	case m.index < 0:
		state.Current = StepClosed
	case m.index >= len(m.flow.Steps):
		state.Current = StepSuccess
	default:
		state.Current = m.flow.Steps[m.index].ID()
	}
	if m.view != nil {
		v := *m.view
		state.View = &v
	}
	if m.outcome != nil {
		o := *m.outcome
		state.Outcome = &o
	}
	return state
}
