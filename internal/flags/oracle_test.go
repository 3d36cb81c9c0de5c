// ABOUTME: Tests for the hash-splitting assignment oracle
// ABOUTME: Covers determinism, rollout bounds, pinning, and rough balance

package flags

import (
	"context"
	"fmt"
	"testing"

	"github.com/growthtools/abtrack/internal/store"
)

func TestSplitter_Deterministic(t *testing.T) {
	s := NewSplitter(nil)
	ctx := context.Background()

	first, err := s.Assign(ctx, "exp", "token-abc")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := s.Assign(ctx, "exp", "token-abc")
		if err != nil {
			t.Fatalf("Assign failed: %v", err)
		}
		if again != first {
			t.Fatalf("assignment changed between calls: %q then %q", first, again)
		}
	}
}

func TestSplitter_EmptyScopeIsControl(t *testing.T) {
	s := NewSplitter(nil)

	variant, err := s.Assign(context.Background(), "exp", "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if variant != store.VariantControl {
		t.Errorf("empty scope assigned %q, want control", variant)
	}
}

func TestSplitter_RolloutBounds(t *testing.T) {
	s := NewSplitter(map[string]Rollout{
		"all-control": {Percent: 0},
		"all-test":    {Percent: 100},
	})
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("token-%d", i)

		variant, err := s.Assign(ctx, "all-control", key)
		if err != nil {
			t.Fatalf("Assign failed: %v", err)
		}
		if variant != store.VariantControl {
			t.Fatalf("0%% rollout assigned %q for %s", variant, key)
		}

		variant, err = s.Assign(ctx, "all-test", key)
		if err != nil {
			t.Fatalf("Assign failed: %v", err)
		}
		if variant != store.VariantTest {
			t.Fatalf("100%% rollout assigned %q for %s", variant, key)
		}
	}
}

func TestSplitter_PinnedVariant(t *testing.T) {
	s := NewSplitter(map[string]Rollout{
		"pinned": {Percent: 50, Variant: "control"},
	})

	for i := 0; i < 50; i++ {
		variant, err := s.Assign(context.Background(), "pinned", fmt.Sprintf("token-%d", i))
		if err != nil {
			t.Fatalf("Assign failed: %v", err)
		}
		if variant != "control" {
			t.Fatalf("pinned experiment assigned %q", variant)
		}
	}
}

func TestSplitter_RoughlyBalanced(t *testing.T) {
	s := NewSplitter(nil)
	ctx := context.Background()

	var test int
	const n = 2000
	for i := 0; i < n; i++ {
		variant, err := s.Assign(ctx, "balance", fmt.Sprintf("token-%d", i))
		if err != nil {
			t.Fatalf("Assign failed: %v", err)
		}
		if variant == store.VariantTest {
			test++
		}
	}

	// Default split is 50/50; allow generous slack since the hash is fixed
	if test < n*40/100 || test > n*60/100 {
		t.Errorf("test arm got %d of %d assignments, expected near half", test, n)
	}
}

func TestSplitter_DifferentExperimentsSplitIndependently(t *testing.T) {
	s := NewSplitter(nil)
	ctx := context.Background()

	same := 0
	const n = 200
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("token-%d", i)
		a, _ := s.Assign(ctx, "exp-a", key)
		b, _ := s.Assign(ctx, "exp-b", key)
		if a == b {
			same++
		}
	}

	// If the experiment name were ignored, every pair would match
	if same == n {
		t.Error("assignments identical across experiments, hash ignores experiment name")
	}
}
