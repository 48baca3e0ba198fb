package wake

import (
	"math/rand"
	"testing"
)

func TestResponsePickerDeterministicWithSeed(t *testing.T) {
	pool := []string{"yes?", "I'm listening", "go ahead"}

	a := NewResponsePicker(rand.NewSource(42))
	b := NewResponsePicker(rand.NewSource(42))

	for i := 0; i < 20; i++ {
		if got, want := a.Pick(pool), b.Pick(pool); got != want {
			t.Fatalf("pick %d diverged: %q vs %q", i, got, want)
		}
	}
}

func TestResponsePickerStaysInPool(t *testing.T) {
	pool := []string{"yes?", "I'm listening"}
	members := map[string]bool{"yes?": true, "I'm listening": true}

	p := NewResponsePicker(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		if got := p.Pick(pool); !members[got] {
			t.Fatalf("picked %q, not in pool", got)
		}
	}
}

func TestResponsePickerEmptyPool(t *testing.T) {
	p := NewResponsePicker(rand.NewSource(1))
	if got := p.Pick(nil); got != "" {
		t.Fatalf("Pick(nil) = %q, want empty", got)
	}
}
