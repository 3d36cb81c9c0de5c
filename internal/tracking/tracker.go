// ABOUTME: Event-counting tracker with TTL dedup and a swallow-all error boundary
// ABOUTME: Wires scope resolution, variant assignment, cache gating, and counters

package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/growthtools/abtrack/internal/cache"
	"github.com/growthtools/abtrack/internal/flags"
	"github.com/growthtools/abtrack/internal/scope"
	"github.com/growthtools/abtrack/internal/store"
)

// DefaultCacheTTL is how long a counted event suppresses repeats for the same
// scope. After expiry the same visitor counts again.
const DefaultCacheTTL = 90 * 24 * time.Hour

// Event kinds as they appear in cache keys and metric labels.
const (
	kindView                = "view"
	kindConversion          = "conversion"
	kindSecondaryConversion = "secondary_conversion"
)

// Config carries the tracker's behavioral knobs.
type Config struct {
	// CacheTTL bounds dedup entries; zero means DefaultCacheTTL.
	CacheTTL time.Duration

	// KeyPrefix namespaces cache keys, e.g. when the cache is shared.
	KeyPrefix string

	// RequireViewToConvert drops conversions from scopes with no counted
	// view for the experiment.
	RequireViewToConvert bool
}

// Tracker records experiment events. Every public method is fire-and-forget:
// failures are logged and counted, never returned, so instrumented request
// paths cannot break on tracking trouble.
type Tracker struct {
	counters store.CounterStore
	cache    cache.TrackingCache
	oracle   flags.Oracle
	resolver *scope.Resolver
	cfg      Config
	logger   *slog.Logger
	metrics  *Metrics
}

// NewTracker assembles a tracker. metrics may be nil; a nop sink is used.
func NewTracker(counters store.CounterStore, c cache.TrackingCache, oracle flags.Oracle, resolver *scope.Resolver, cfg Config, metrics *Metrics) *Tracker {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Tracker{
		counters: counters,
		cache:    c,
		oracle:   oracle,
		resolver: resolver,
		cfg:      cfg,
		logger:   slog.Default().With("component", "tracking"),
		metrics:  metrics,
	}
}

// TrackView counts one view for the scope's variant, at most once per scope
// per TTL window. Pass the zero Scope to use the scope attached to the
// request context. An empty variant is resolved through the oracle.
func (t *Tracker) TrackView(ctx context.Context, experiment string, explicit scope.Scope, variant string) {
	sc := t.resolver.Resolve(ctx, explicit)
	if sc.IsZero() {
		t.metrics.observe(kindView, outcomeSkippedScope)
		t.logger.Debug("view skipped, no scope", "experiment", experiment)
		return
	}

	key := t.cacheKey(kindView, experiment, sc.Key())
	if t.seen(ctx, kindView, key) {
		return
	}

	variant, ok := t.resolveVariant(ctx, kindView, experiment, sc.Key(), variant)
	if !ok {
		return
	}

	if _, err := t.counters.IncrementViews(ctx, experiment, variant); err != nil {
		t.fail(kindView, experiment, sc.Key(), err)
		return
	}

	t.remember(ctx, key, variant)
	t.metrics.observe(kindView, outcomeRecorded)
}

// TrackConversion counts one conversion for the given goal, at most once per
// scope per TTL window. The variant comes from the scope's recorded view
// entry; without one, require-view mode drops the conversion, otherwise the
// oracle is consulted live (which may disagree with what the visitor saw).
func (t *Tracker) TrackConversion(ctx context.Context, experiment string, kind store.ConversionKind, explicit scope.Scope) {
	event := conversionEvent(kind)
	if !kind.Valid() {
		t.metrics.observe(event, outcomeError)
		t.logger.Warn("unknown conversion kind", "experiment", experiment, "kind", kind)
		return
	}

	sc := t.resolver.Resolve(ctx, explicit)
	if sc.IsZero() {
		t.metrics.observe(event, outcomeSkippedScope)
		t.logger.Debug("conversion skipped, no scope", "experiment", experiment, "kind", kind)
		return
	}

	key := t.cacheKey(event, experiment, sc.Key())
	if t.seen(ctx, event, key) {
		return
	}

	variant, err := t.cache.Get(ctx, t.cacheKey(kindView, experiment, sc.Key()))
	switch {
	case err == nil:
		// Attribute the conversion to the variant the visitor actually saw.

	case errors.Is(err, cache.ErrNotFound) && t.cfg.RequireViewToConvert:
		t.metrics.observe(event, outcomeSkippedNoView)
		t.logger.Debug("conversion skipped, no prior view",
			"experiment", experiment, "scope", sc.Key(), "kind", kind)
		return

	case errors.Is(err, cache.ErrNotFound):
		t.logger.Warn("conversion without recorded view, attributing via live assignment",
			"experiment", experiment, "scope", sc.Key(), "kind", kind)
		variant = ""

	default:
		t.metrics.observe(event, outcomeError)
		t.logger.Warn("view lookup failed", "experiment", experiment, "error", err)
		return
	}

	variant, ok := t.resolveVariant(ctx, event, experiment, sc.Key(), variant)
	if !ok {
		return
	}

	if _, err := t.counters.IncrementConversions(ctx, experiment, variant, kind); err != nil {
		t.fail(event, experiment, sc.Key(), err)
		return
	}

	t.remember(ctx, key, "true")
	t.metrics.observe(event, outcomeRecorded)
}

// LookupEntry is one dedup cache entry as seen by Lookup.
type LookupEntry struct {
	Key     string
	Present bool
	Variant string
}

// Lookup reports the tracker's dedup state and live assignment for one
// (experiment, scope) pair. Read-only diagnostic used by the debug page.
func (t *Tracker) Lookup(ctx context.Context, experiment, scopeKey string) (assignment string, entries []LookupEntry, err error) {
	assignment, err = t.oracle.Assign(ctx, experiment, scopeKey)
	if err != nil {
		return "", nil, fmt.Errorf("assigning variant: %w", err)
	}
	assignment = store.NormalizeVariant(assignment)

	for _, event := range []string{kindView, kindConversion, kindSecondaryConversion} {
		key := t.cacheKey(event, experiment, scopeKey)
		entry := LookupEntry{Key: key}
		value, getErr := t.cache.Get(ctx, key)
		switch {
		case getErr == nil:
			entry.Present = true
			entry.Variant = value
		case !errors.Is(getErr, cache.ErrNotFound):
			return "", nil, fmt.Errorf("reading cache entry %q: %w", key, getErr)
		}
		entries = append(entries, entry)
	}
	return assignment, entries, nil
}

// resolveVariant normalizes the supplied variant, consulting the oracle when
// none was supplied, and filters to the canonical pair. Anything else
// (including assignment failures) ends the event here with the outcome
// observed.
func (t *Tracker) resolveVariant(ctx context.Context, event, experiment, scopeKey, variant string) (string, bool) {
	if variant == "" {
		var err error
		variant, err = t.oracle.Assign(ctx, experiment, scopeKey)
		if err != nil {
			t.metrics.observe(event, outcomeError)
			t.logger.Warn("variant assignment failed",
				"experiment", experiment, "scope", scopeKey, "error", err)
			return "", false
		}
	}

	variant = store.NormalizeVariant(variant)
	if !store.IsCanonical(variant) {
		t.metrics.observe(event, outcomeSkippedVariant)
		t.logger.Debug("event skipped, non-canonical variant",
			"experiment", experiment, "variant", variant)
		return "", false
	}
	return variant, true
}

// seen checks the dedup cache. Cache read failures end the event here:
// without the dedup guard every retry would inflate the counters, so an
// unreachable cache means nothing gets counted until it is back.
func (t *Tracker) seen(ctx context.Context, event, key string) bool {
	has, err := t.cache.Has(ctx, key)
	if err != nil {
		t.metrics.observe(event, outcomeError)
		t.logger.Warn("dedup lookup failed", "key", key, "error", err)
		return true
	}
	if has {
		t.metrics.observe(event, outcomeDuplicate)
	}
	return has
}

func (t *Tracker) remember(ctx context.Context, key, variant string) {
	if err := t.cache.Put(ctx, key, variant, t.cfg.CacheTTL); err != nil {
		t.logger.Warn("dedup write failed", "key", key, "error", err)
	}
}

func (t *Tracker) fail(event, experiment, scopeKey string, err error) {
	t.metrics.observe(event, outcomeError)
	t.logger.Error("recording event failed",
		"event", event, "experiment", experiment, "scope", scopeKey, "error", err)
}

func (t *Tracker) cacheKey(event, experiment, scopeKey string) string {
	return t.cfg.KeyPrefix + event + "-" + slugify(experiment) + "-" + scopeKey
}

func conversionEvent(kind store.ConversionKind) string {
	if kind == store.ConversionSecondary {
		return kindSecondaryConversion
	}
	return kindConversion
}

// slugify collapses an experiment name into a cache-key-safe slug.
func slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
