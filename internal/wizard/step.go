/**
 * @description
 * Building blocks of a wizard: the payload accumulated across steps, the view a
 * step renders when it is mounted, and the Step contract every flow implements.
 *
 * @notes
 * - A step owns a fixed set of payload keys. It may only write those keys and it
 *   is only ever shown the keys owned by the steps before it.
 * - View carries every bound a step validates against. The bounds are captured
 *   when the step is mounted and are not refreshed while the step is active.
 */

package wizard

import (
	"context"
	"fmt"
	"sort"
)

// StepID names a state of a wizard.
type StepID string

// Reserved states shared by every flow.
const (
	StepClosed  StepID = "closed"
	StepSuccess StepID = "success"
)

// Payload is the selection accumulated across steps.
type Payload map[string]string

// Clone returns an independent copy.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Only returns a copy restricted to keys.
func (p Payload) Only(keys []string) Payload {
	out := make(Payload, len(keys))
	for _, k := range keys {
		if v, ok := p[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Keys returns the payload keys in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Input is what the user submitted on the active step.
type Input map[string]string

// Choice is one selectable option rendered by a step.
type Choice struct {
	Value    string            `json:"value"`
	Label    string            `json:"label"`
	Disabled bool              `json:"disabled,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// View is what the active step renders.
type View struct {
	Step    StepID            `json:"step"`
	Title   string            `json:"title"`
	Choices []Choice          `json:"choices,omitempty"`
	Facts   map[string]string `json:"facts,omitempty"`
}

// Fact returns a mounted fact, or "" when absent.
func (v View) Fact(key string) string {
	if v.Facts == nil {
		return ""
	}
	return v.Facts[key]
}

// HasChoice reports whether value is an enabled choice of the view.
func (v View) HasChoice(value string) bool {
	for _, c := range v.Choices {
		if c.Value == value && !c.Disabled {
			return true
		}
	}
	return false
}

// Step is one screen of a wizard.
type Step interface {
	ID() StepID
	// Fields lists the payload keys this step writes.
	Fields() []string
	// Mount builds the view from the payload collected so far.
	Mount(ctx context.Context, payload Payload) (View, error)
	// Proceed validates input against the mounted view and returns the
	// step's contribution to the payload.
	Proceed(view View, payload Payload, input Input) (Payload, error)
}

// FieldError is a validation failure rendered next to the offending field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a FieldError.
func Invalid(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}
