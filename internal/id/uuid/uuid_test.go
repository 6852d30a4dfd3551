package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

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
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
}

func TestBytes(t *testing.T) {
	t.Parallel()

	id := "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"
	got := Bytes(id)
	if goUUID.UUID(got).String() != id {
		t.Fatalf("Bytes(%q) = %s", id, goUUID.UUID(got))
	}
	if Bytes("nightly") != Bytes("nightly") {
		t.Fatal("expected stable bytes for named runs")
	}
	if Bytes("nightly") == [16]byte{} {
		t.Fatal("expected non-zero bytes for named runs")
	}
}
