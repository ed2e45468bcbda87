package store

import (
	"fmt"
	"strings"
	"testing"
)

func TestGenerateCaseID(t *testing.T) {
	id, err := GenerateCaseID(nil)
	if err != nil {
		t.Fatalf("generate id: %v", err)
	}
	if !strings.HasPrefix(id, "cs-") {
		t.Fatalf("expected cs- prefix, got %q", id)
	}
	if len(id) != len("cs-")+idHashLength {
		t.Fatalf("unexpected id length: %q", id)
	}
}

func TestGenerateIDRetriesOnCollision(t *testing.T) {
	calls := 0
	exists := func(id string) (bool, error) {
		calls++
		return calls <= 3, nil
	}
	id, err := GenerateID("cs", exists)
	if err != nil {
		t.Fatalf("generate id: %v", err)
	}
	if id == "" {
		t.Fatal("expected an id")
	}
	if calls != 4 {
		t.Fatalf("expected 4 exists calls, got %d", calls)
	}
}

func TestGenerateIDExhaustsAttempts(t *testing.T) {
	exists := func(id string) (bool, error) { return true, nil }
	if _, err := GenerateID("cs", exists); err == nil {
		t.Fatal("expected error when all attempts collide")
	}
}

func TestGenerateIDPropagatesExistsError(t *testing.T) {
	exists := func(id string) (bool, error) { return false, fmt.Errorf("db down") }
	if _, err := GenerateID("cs", exists); err == nil {
		t.Fatal("expected error from exists func")
	}
}

func TestGenerateIDRequiresPrefix(t *testing.T) {
	if _, err := GenerateID("", nil); err == nil {
		t.Fatal("expected error for empty prefix")
	}
}
