package errkind

import (
	"errors"
	"io/fs"
	"testing"
)

func TestWrapTagsSentinel(t *testing.T) {
	err := Wrap(ErrIntegrity, "reconcile", "resolve associations", "no progress", nil)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("sentinel lost: %v", err)
	}
	want := "integrity error: reconcile: resolve associations: no progress"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fs.ErrNotExist
	err := Wrap(ErrTransient, "lifecycle", "stage", "move failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	if !errors.Is(err, ErrTransient) {
		t.Fatal("sentinel lost")
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	if !errors.Is(Wrap(nil, "", "", "", nil), ErrTransient) {
		t.Fatal("nil kind should default to transient")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Wrap(ErrPersistence, "reconcile", "persist", "all replicas failed", nil)) {
		t.Fatal("persistence errors are retryable")
	}
	if Retryable(Wrap(ErrExhausted, "lifecycle", "quarantine", "variant budget", nil)) {
		t.Fatal("exhaustion is not retryable")
	}
}
