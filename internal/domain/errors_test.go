package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"connection", &ConnectionError{Op: "ping", Err: cause}, ErrConnection},
		{"query", &QueryError{Op: "aggregate", Err: cause}, ErrQuery},
		{"malformed date", &MalformedDateError{Index: 3, Value: "not-a-date", Err: cause}, ErrMalformedDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("Render: fetching: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", wrapped, tt.sentinel)
			}
			if !errors.Is(wrapped, cause) {
				t.Errorf("expected cause to be reachable from %v", wrapped)
			}
		})
	}
}

func TestMalformedDateError_WithoutCause(t *testing.T) {
	err := &MalformedDateError{Index: 0, Value: ""}
	if !errors.Is(err, ErrMalformedDate) {
		t.Error("expected ErrMalformedDate")
	}
	var target *MalformedDateError
	if !errors.As(fmt.Errorf("wrap: %w", err), &target) || target.Index != 0 {
		t.Errorf("errors.As failed, got %+v", target)
	}
}

func TestSelectionState(t *testing.T) {
	tests := []struct {
		sel  Selection
		want State
	}{
		{Selection{}, StateInitial},
		{Selection{Year: 2023, Course: "X"}, StateInitial},
		{Selection{Client: "A"}, StateClientChosen},
		{Selection{Client: "A", Year: 2023}, StateClientAndYear},
		{Selection{Client: "A", Year: 2023, Course: "X"}, StateFullDrilldown},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			if got := tt.sel.State(); got != tt.want {
				t.Errorf("State() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ConnectionError{Op: "ping", Err: errors.New("refused")}, CodeConnection},
		{fmt.Errorf("Render: %w", &QueryError{Op: "aggregate", Err: errors.New("bad")}), CodeQuery},
		{&MalformedDateError{Index: 0, Value: "x"}, CodeMalformedDate},
		{errors.New("other"), CodeInternal},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
