// ABOUTME: Store interface and data types for experiment counter persistence
// ABOUTME: Defines VariantCounter, variant normalization, and the CounterStore interface

package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrEmptyVariant is returned when a conversion is recorded with an empty
// variant label after normalization
var ErrEmptyVariant = errors.New("empty variant")

// Canonical variant labels. Arbitrary labels are stored verbatim but only the
// canonical pair participates in dedup and significance.
const (
	VariantControl = "control"
	VariantTest    = "test"
)

// ConversionKind selects which conversion counter an event increments.
type ConversionKind string

const (
	ConversionPrimary   ConversionKind = "primary"
	ConversionSecondary ConversionKind = "secondary"
)

// Valid reports whether the kind is one of the two supported goals.
func (k ConversionKind) Valid() bool {
	return k == ConversionPrimary || k == ConversionSecondary
}

// VariantCounter is one row of aggregate counters, uniquely keyed on
// (experiment_name, variant). Counters only ever grow.
type VariantCounter struct {
	ExperimentName       string
	Variant              string
	TotalViews           int64
	Conversions          int64
	SecondaryConversions int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ExperimentGroup is all counter rows for one experiment, newest experiment
// first when listed.
type ExperimentGroup struct {
	Name     string
	Variants []*VariantCounter
}

// NormalizeVariant maps boolean-ish labels onto the canonical pair: "true"
// becomes "test" and "false" becomes "control" (case-insensitive). Anything
// else passes through verbatim.
func NormalizeVariant(variant string) string {
	switch strings.ToLower(variant) {
	case "true":
		return VariantTest
	case "false":
		return VariantControl
	default:
		return variant
	}
}

// NormalizeBool maps a boolean flag value onto the canonical pair.
func NormalizeBool(v bool) string {
	if v {
		return VariantTest
	}
	return VariantControl
}

// IsCanonical reports whether the variant is one of "test"/"control".
func IsCanonical(variant string) bool {
	return variant == VariantControl || variant == VariantTest
}

// CounterStore defines the interface for experiment counter persistence.
// Increments are atomic per row: concurrent callers never lose counts and
// never create duplicate rows for the same (experiment, variant).
type CounterStore interface {
	// IncrementViews bumps total_views for the normalized variant,
	// creating the row with zero defaults on first sight. The returned row
	// is the state before the increment; re-read for fresh counts.
	IncrementViews(ctx context.Context, experiment, variant string) (*VariantCounter, error)

	// IncrementConversions bumps the primary or secondary conversion
	// counter. Returns ErrEmptyVariant when the variant normalizes to "".
	IncrementConversions(ctx context.Context, experiment, variant string, kind ConversionKind) (*VariantCounter, error)

	// ListVariants returns all counter rows for one experiment.
	ListVariants(ctx context.Context, experiment string) ([]*VariantCounter, error)

	// ListExperiments returns all rows grouped by experiment, most
	// recently created experiment first.
	ListExperiments(ctx context.Context) ([]ExperimentGroup, error)

	// Close releases any resources held by the store
	Close() error
}
