// ABOUTME: Tests for the SQLite counter store
// ABOUTME: Covers increments, normalization, listing, and visitor tokens

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/growthtools/abtrack/internal/scope"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return s
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestIncrementViews_CreatesRow(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	row, err := s.IncrementViews(ctx, "checkout-button", "test")
	if err != nil {
		t.Fatalf("IncrementViews failed: %v", err)
	}

	// The returned row is the pre-increment state
	if row.TotalViews != 0 {
		t.Errorf("expected pre-increment views 0, got %d", row.TotalViews)
	}

	rows, err := s.ListVariants(ctx, "checkout-button")
	if err != nil {
		t.Fatalf("ListVariants failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].TotalViews != 1 {
		t.Errorf("expected 1 view after increment, got %d", rows[0].TotalViews)
	}
	if rows[0].Variant != "test" {
		t.Errorf("expected variant test, got %q", rows[0].Variant)
	}
}

func TestIncrementViews_NormalizesVariant(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	if _, err := s.IncrementViews(ctx, "exp", "TRUE"); err != nil {
		t.Fatalf("IncrementViews failed: %v", err)
	}
	if _, err := s.IncrementViews(ctx, "exp", "false"); err != nil {
		t.Fatalf("IncrementViews failed: %v", err)
	}

	rows, err := s.ListVariants(ctx, "exp")
	if err != nil {
		t.Fatalf("ListVariants failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	// ListVariants orders by variant name
	if rows[0].Variant != VariantControl || rows[1].Variant != VariantTest {
		t.Errorf("expected control/test rows, got %q/%q", rows[0].Variant, rows[1].Variant)
	}
}

func TestIncrementViews_Accumulates(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.IncrementViews(ctx, "exp", "control"); err != nil {
			t.Fatalf("IncrementViews failed: %v", err)
		}
	}

	rows, err := s.ListVariants(ctx, "exp")
	if err != nil {
		t.Fatalf("ListVariants failed: %v", err)
	}
	if rows[0].TotalViews != 5 {
		t.Errorf("expected 5 views, got %d", rows[0].TotalViews)
	}
}

func TestIncrementViews_ConcurrentFirstWriters(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	const workers = 20

	// All goroutines race to create and increment the same fresh row
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.IncrementViews(ctx, "fresh", "test"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("IncrementViews failed: %v", err)
	}

	rows, err := s.ListVariants(ctx, "fresh")
	if err != nil {
		t.Fatalf("ListVariants failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].TotalViews != workers {
		t.Errorf("expected %d views, got %d", workers, rows[0].TotalViews)
	}
}

func TestIncrementConversions(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	if _, err := s.IncrementConversions(ctx, "exp", "test", ConversionPrimary); err != nil {
		t.Fatalf("IncrementConversions failed: %v", err)
	}
	if _, err := s.IncrementConversions(ctx, "exp", "test", ConversionSecondary); err != nil {
		t.Fatalf("IncrementConversions failed: %v", err)
	}
	if _, err := s.IncrementConversions(ctx, "exp", "test", ConversionSecondary); err != nil {
		t.Fatalf("IncrementConversions failed: %v", err)
	}

	rows, err := s.ListVariants(ctx, "exp")
	if err != nil {
		t.Fatalf("ListVariants failed: %v", err)
	}
	if rows[0].Conversions != 1 {
		t.Errorf("expected 1 conversion, got %d", rows[0].Conversions)
	}
	if rows[0].SecondaryConversions != 2 {
		t.Errorf("expected 2 secondary conversions, got %d", rows[0].SecondaryConversions)
	}
	if rows[0].TotalViews != 0 {
		t.Errorf("conversions must not bump views, got %d", rows[0].TotalViews)
	}
}

func TestIncrementConversions_EmptyVariant(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	row, err := s.IncrementConversions(context.Background(), "exp", "", ConversionPrimary)
	if !errors.Is(err, ErrEmptyVariant) {
		t.Errorf("expected ErrEmptyVariant, got %v", err)
	}
	if row != nil {
		t.Errorf("expected nil row, got %+v", row)
	}
}

func TestListVariants_Empty(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	rows, err := s.ListVariants(context.Background(), "nope")
	if err != nil {
		t.Fatalf("ListVariants failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestListExperiments_Grouping(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	for _, pair := range [][2]string{
		{"alpha", "control"},
		{"alpha", "test"},
		{"beta", "control"},
	} {
		if _, err := s.IncrementViews(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("IncrementViews failed: %v", err)
		}
	}

	groups, err := s.ListExperiments(ctx)
	if err != nil {
		t.Fatalf("ListExperiments failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	found := map[string]int{}
	for _, g := range groups {
		found[g.Name] = len(g.Variants)
	}
	if found["alpha"] != 2 {
		t.Errorf("expected 2 variants for alpha, got %d", found["alpha"])
	}
	if found["beta"] != 1 {
		t.Errorf("expected 1 variant for beta, got %d", found["beta"])
	}
}

func TestNormalizeVariant(t *testing.T) {
	cases := map[string]string{
		"true":    "test",
		"TRUE":    "test",
		"false":   "control",
		"False":   "control",
		"test":    "test",
		"control": "control",
		"purple":  "purple",
		"":        "",
	}
	for in, want := range cases {
		if got := NormalizeVariant(in); got != want {
			t.Errorf("NormalizeVariant(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVisitorTokens(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()

	// Missing token
	if _, err := s.VisitorToken(ctx, "user-1"); !errors.Is(err, scope.ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}

	// Store and read back
	if err := s.SetVisitorToken(ctx, "user-1", "ab_abc123"); err != nil {
		t.Fatalf("SetVisitorToken failed: %v", err)
	}
	token, err := s.VisitorToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("VisitorToken failed: %v", err)
	}
	if token != "ab_abc123" {
		t.Errorf("expected ab_abc123, got %q", token)
	}

	// Upsert replaces
	if err := s.SetVisitorToken(ctx, "user-1", "ab_def456"); err != nil {
		t.Fatalf("SetVisitorToken failed: %v", err)
	}
	token, err = s.VisitorToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("VisitorToken failed: %v", err)
	}
	if token != "ab_def456" {
		t.Errorf("expected ab_def456, got %q", token)
	}
}
