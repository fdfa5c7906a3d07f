package uuid

import "testing"

func TestNewIDIsUnique(t *testing.T) {
	t.Parallel()

	gen := NewGenerator()
	first := gen.NewID()
	second := gen.NewID()
	if first == second {
		t.Fatal("NewID() returned duplicate IDs")
	}
	if len(first) != 36 {
		t.Fatalf("NewID() length = %d, want 36", len(first))
	}
}
