package services

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_SaltedRoundTrip(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	first, err := h.Hash("p")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := h.Hash("p")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if first == second {
		t.Fatal("expected different digests for the same plaintext")
	}
	if len(first) != len(second) {
		t.Fatalf("expected fixed-length digests, got %d and %d", len(first), len(second))
	}
	if !h.Verify("p", first) || !h.Verify("p", second) {
		t.Fatal("expected both digests to verify")
	}
	if h.Verify("q", first) {
		t.Fatal("wrong password must not verify")
	}
}

func TestPasswordHasher_MalformedDigest(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	for _, digest := range []string{"", "plain-text", "$2a$04$short", strings.Repeat("$", 80)} {
		if h.Verify("p", digest) {
			t.Errorf("malformed digest %q must not verify", digest)
		}
	}
}

func TestNewPasswordHasher_ClampsCost(t *testing.T) {
	if got := NewPasswordHasher(1).cost; got != bcrypt.DefaultCost {
		t.Errorf("expected default cost for too-low input, got %d", got)
	}
	if got := NewPasswordHasher(99).cost; got != bcrypt.DefaultCost {
		t.Errorf("expected default cost for too-high input, got %d", got)
	}
	if got := NewPasswordHasher(bcrypt.MinCost).cost; got != bcrypt.MinCost {
		t.Errorf("expected MinCost to be kept, got %d", got)
	}
}
