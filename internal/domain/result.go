/**
 * @description
 * Result is the envelope returned by the domain services for operations whose
 * failure is an expected outcome (validation, insufficient balance, unknown fund).
 * Callers inspect the envelope instead of handling a thrown error.
 *
 * @notes
 * - The JSON form is `{success, data?, error?, message?}` so that HTTP clients
 *   receive the same shape the mobile/web client already understands.
 * - A successful result never carries an error; a failed result always does.
 */

package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnspecified is used when Err is called with an empty message.
var ErrUnspecified = errors.New("unspecified error")

// Result is a tagged union of a successful value or an error message.
type Result[T any] struct {
	ok      bool
	data    T
	err     string
	cause   error
	message string
}

// Ok builds a successful result.
func Ok[T any](data T, message string) Result[T] {
	return Result[T]{ok: true, data: data, message: message}
}

// Err builds a failed result from an error. The error is kept so callers can
// still match sentinels with errors.Is.
func Err[T any](cause error) Result[T] {
	if cause == nil {
		cause = ErrUnspecified
	}
	msg := strings.TrimSpace(cause.Error())
	if msg == "" {
		msg = ErrUnspecified.Error()
	}
	return Result[T]{err: msg, cause: cause}
}

// Success reports whether the operation succeeded.
func (r Result[T]) Success() bool { return r.ok }

// Data returns the value of a successful result, or the zero value.
func (r Result[T]) Data() T { return r.data }

// Error returns the failure message; empty on success.
func (r Result[T]) Error() string { return r.err }

// Message returns the optional human readable message.
func (r Result[T]) Message() string { return r.message }

// Unwrap converts the envelope back into Go's (value, error) form.
func (r Result[T]) Unwrap() (T, error) {
	if r.ok {
		return r.data, nil
	}
	var zero T
	return zero, r.cause
}

type resultJSON[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON renders the envelope shape.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	out := resultJSON[T]{Success: r.ok, Error: r.err, Message: r.message}
	if r.ok {
		data := r.data
		out.Data = &data
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the envelope shape. A payload claiming failure without an
// error message is normalized to ErrUnspecified.
func (r *Result[T]) UnmarshalJSON(b []byte) error {
	var in resultJSON[T]
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in.Success {
		var data T
		if in.Data != nil {
			data = *in.Data
		}
		*r = Ok(data, in.Message)
		return nil
	}
	if in.Error == "" {
		*r = Err[T](ErrUnspecified)
	} else {
		*r = Err[T](errors.New(in.Error))
	}
	r.message = in.Message
	return nil
}
