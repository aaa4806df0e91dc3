// Package uuid includes tests for the UUID generator wrapper.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures run IDs are unique, valid, and time-ordered v7.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	parsed, err := goUUID.Parse(id1)
	if err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("NewID() version = %d, want 7", parsed.Version())
	}
	if _, err := goUUID.Parse(id2); err != nil {
		t.Fatalf("id2 not valid UUID: %v", err)
	}
}

// TestGeneratorNewV4ID ensures page-name IDs are unique, valid v4 UUIDs.
func TestGeneratorNewV4ID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewV4ID()
	if err != nil {
		t.Fatalf("NewV4ID() error = %v", err)
	}
	id2, err := gen.NewV4ID()
	if err != nil {
		t.Fatalf("NewV4ID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	parsed, err := goUUID.Parse(id1)
	if err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if parsed.Version() != 4 {
		t.Fatalf("NewV4ID() version = %d, want 4", parsed.Version())
	}
}
