// ABOUTME: Variant assignment oracle interface and the default hash splitter
// ABOUTME: Deterministic FNV bucketing with per-experiment rollout and pinning

package flags

import (
	"context"
	"hash/fnv"
	"log/slog"

	"github.com/growthtools/abtrack/internal/store"
)

// Oracle decides which variant a scope is bucketed into. The tracker treats
// the returned value as opaque apart from normalization; "true"/"false" map
// onto "test"/"control".
type Oracle interface {
	Assign(ctx context.Context, experiment, scopeKey string) (string, error)
}

// Rollout configures assignment for one experiment.
type Rollout struct {
	// Percent is the share of scopes assigned "test", 0-100.
	Percent int

	// Variant pins every scope to a fixed label, bypassing the hash.
	// Useful for ramping an experiment down to one arm.
	Variant string
}

// DefaultRolloutPercent is the test share when an experiment has no explicit
// rollout configured.
const DefaultRolloutPercent = 50

// Splitter is the default Oracle: a deterministic hash split over
// (experiment, scope), so a scope always lands in the same arm without any
// stored assignment state.
type Splitter struct {
	rollouts map[string]Rollout
	logger   *slog.Logger
}

// NewSplitter creates a Splitter with per-experiment rollout configuration.
// rollouts may be nil; unknown experiments get a 50/50 split.
func NewSplitter(rollouts map[string]Rollout) *Splitter {
	return &Splitter{
		rollouts: rollouts,
		logger:   slog.Default().With("component", "flags"),
	}
}

// Assign buckets the scope. An empty scope key always resolves to "control",
// mirroring how an unresolvable visitor should never enter the test arm.
func (s *Splitter) Assign(_ context.Context, experiment, scopeKey string) (string, error) {
	if scopeKey == "" {
		return store.VariantControl, nil
	}

	rollout, ok := s.rollouts[experiment]
	if ok && rollout.Variant != "" {
		s.logger.Debug("experiment pinned", "experiment", experiment, "variant", rollout.Variant)
		return rollout.Variant, nil
	}

	percent := DefaultRolloutPercent
	if ok {
		percent = rollout.Percent
	}
	if percent <= 0 {
		return store.VariantControl, nil
	}
	if percent >= 100 {
		return store.VariantTest, nil
	}

	if int(bucket(experiment, scopeKey)) < percent {
		return store.VariantTest, nil
	}
	return store.VariantControl, nil
}

// bucket maps (experiment, scope) onto 0-99 deterministically.
func bucket(experiment, scopeKey string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(experiment))
	h.Write([]byte{0})
	h.Write([]byte(scopeKey))
	return h.Sum32() % 100
}

// Ensure Splitter implements Oracle interface
var _ Oracle = (*Splitter)(nil)
