package id

import (
	"strings"
	"testing"
)

func TestNewPrefixAndUniqueness(t *testing.T) {
	a := New("run")
	b := New("run")
	if !strings.HasPrefix(a, "run_") {
		t.Fatalf("expected run_ prefix, got %q", a)
	}
	if len(a) != len("run_")+32 {
		t.Fatalf("unexpected length %d for %q", len(a), a)
	}
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if got := New(""); strings.Contains(got, "_") {
		t.Fatalf("bare id should not carry a separator: %q", got)
	}
}
