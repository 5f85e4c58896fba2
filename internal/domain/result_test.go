package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestResultOkCarriesDataWithoutError(t *testing.T) {
	res := Ok(42, "done")

	if !res.Success() {
		t.Fatal("expected success")
	}
	if res.Error() != "" {
		t.Fatalf("expected empty error, got %q", res.Error())
	}
	got, err := res.Unwrap()
	if err != nil || got != 42 {
		t.Fatalf("expected (42, nil), got (%d, %v)", got, err)
	}
}

func TestResultErrKeepsSentinel(t *testing.T) {
	sentinel := errors.New("insufficient funds")
	res := Err[int](sentinel)

	if res.Success() {
		t.Fatal("expected failure")
	}
	if res.Error() != "insufficient funds" {
		t.Fatalf("expected error message, got %q", res.Error())
	}
	if _, err := res.Unwrap(); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel through Unwrap, got %v", err)
	}
}

func TestResultErrNilCauseIsUnspecified(t *testing.T) {
	res := Err[string](nil)
	if res.Error() == "" {
		t.Fatal("failed result must always carry an error")
	}
}

func TestResultJSONShape(t *testing.T) {
	tests := []struct {
		name string
		in   Result[string]
		want string
	}{
		{name: "success", in: Ok("abc", "created"), want: `{"success":true,"data":"abc","message":"created"}`},
		{name: "failure", in: Err[string](errors.New("fund not found")), want: `{"success":false,"error":"fund not found"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, b)
			}
		})
	}
}

func TestResultUnmarshalFailureWithoutErrorIsNormalized(t *testing.T) {
	var res Result[string]
	if err := json.Unmarshal([]byte(`{"success":false}`), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Success() || res.Error() == "" {
		t.Fatalf("expected failed result with error, got success=%t error=%q", res.Success(), res.Error())
	}
}
