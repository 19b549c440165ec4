package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamFailure, "upstream failed").
		WithCause(root).
		WithRetryable(true).
		WithEndpoint("fast-1")

	if GetErrorCode(err) != ErrUpstreamFailure {
		t.Fatalf("expected code %s, got %s", ErrUpstreamFailure, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := map[ErrorCode]int{
		ErrValidation:        400,
		ErrNoHealthyEndpoint: 503,
		ErrAttemptTimeout:    504,
		ErrUpstreamFailure:   502,
		ErrStreamInterrupted: 502,
	}
	for code, want := range cases {
		if got := StatusFor(code); got != want {
			t.Fatalf("StatusFor(%s) = %d, want %d", code, got, want)
		}
	}
}
