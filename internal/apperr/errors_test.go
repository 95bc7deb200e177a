package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfThroughWrapping(t *testing.T) {
	base := New(KindCapacityExceeded, "this date is fully booked")
	wrapped := fmt.Errorf("handling request: %w", base)

	if got := KindOf(wrapped); got != KindCapacityExceeded {
		t.Fatalf("KindOf(wrapped) = %v, want KindCapacityExceeded", got)
	}
	if !IsKind(wrapped, KindCapacityExceeded) {
		t.Fatalf("IsKind must see through fmt.Errorf wrapping")
	}
}

func TestKindOfForeignError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("foreign error kind = %v, want KindInternal", got)
	}
	if got := KindOf(nil); got != KindInternal {
		t.Fatalf("nil error kind = %v, want KindInternal", got)
	}
}

func TestWrapExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindInternal, "loading capacity failed", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("wrapped cause not reachable via errors.Is")
	}
	if msg := err.Error(); msg != "internal_error: loading capacity failed: connection refused" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestKindStrings(t *testing.T) {
	cases := map[Kind]string{
		KindValidation:       "validation_error",
		KindCapacityExceeded: "capacity_exceeded",
		KindAuthentication:   "authentication_error",
		KindAuthorization:    "authorization_error",
		KindConflict:         "conflict_error",
		KindTransferExpired:  "transfer_expired",
		KindRateLimited:      "rate_limit_exceeded",
		KindInternal:         "internal_error",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
