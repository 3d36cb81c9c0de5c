// ABOUTME: Admin web UI package for experiment result browsing
// ABOUTME: Serves the results dashboard and the per-scope debug page

package webadmin

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/growthtools/abtrack/internal/stats"
	"github.com/growthtools/abtrack/internal/store"
	"github.com/growthtools/abtrack/internal/tracking"
)

// activeWindow is how recently an experiment must have been updated to be
// shown as active.
const activeWindow = 6 * time.Hour

// Admin handles the admin UI routes. Authentication is the host's problem:
// mount these routes behind whatever admin middleware the deployment uses.
type Admin struct {
	counters store.CounterStore
	tracker  *tracking.Tracker
	logger   *slog.Logger
}

// New creates the admin UI handler.
func New(counters store.CounterStore, tracker *tracking.Tracker) *Admin {
	return &Admin{
		counters: counters,
		tracker:  tracker,
		logger:   slog.Default().With("component", "webadmin"),
	}
}

// Register attaches the admin routes to the mux.
func (a *Admin) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/ab", a.handleDashboard)
	mux.HandleFunc("GET /admin/ab/debug", a.handleDebug)
}

// handleDashboard renders the experiment results table.
func (a *Admin) handleDashboard(w http.ResponseWriter, r *http.Request) {
	groups, err := a.counters.ListExperiments(r.Context())
	if err != nil {
		a.logger.Error("listing experiments failed", "error", err)
		http.Error(w, "listing experiments failed", http.StatusInternalServerError)
		return
	}

	experiments := make([]experimentView, 0, len(groups))
	for _, group := range groups {
		experiments = append(experiments, buildExperimentView(group, time.Now()))
	}

	a.renderDashboard(w, experiments)
}

// handleDebug renders tracking state for one (experiment, scope) pair.
func (a *Admin) handleDebug(w http.ResponseWriter, r *http.Request) {
	experiment := r.URL.Query().Get("experiment")
	scopeKey := r.URL.Query().Get("scope")

	data := debugData{Experiment: experiment, ScopeKey: scopeKey}

	if experiment != "" && scopeKey != "" {
		assignment, entries, err := a.tracker.Lookup(r.Context(), experiment, scopeKey)
		if err != nil {
			a.logger.Error("debug lookup failed",
				"experiment", experiment, "scope", scopeKey, "error", err)
			data.Error = err.Error()
		} else {
			data.Assignment = assignment
			for _, entry := range entries {
				data.Entries = append(data.Entries, debugEntry{
					Key:     entry.Key,
					Present: entry.Present,
					Variant: entry.Variant,
				})
			}
		}
	}

	a.renderDebug(w, data)
}

// buildExperimentView combines counters and the significance report into one
// renderable row group.
func buildExperimentView(group store.ExperimentGroup, now time.Time) experimentView {
	view := experimentView{Name: group.Name}

	var earliest, latest time.Time
	for _, row := range group.Variants {
		if earliest.IsZero() || row.CreatedAt.Before(earliest) {
			earliest = row.CreatedAt
		}
		if row.UpdatedAt.After(latest) {
			latest = row.UpdatedAt
		}
	}
	view.Duration = formatDuration(now.Sub(earliest))
	view.Active = now.Sub(latest) < activeWindow

	report := stats.Calculate(group.Variants)
	view.Report = report

	for _, row := range group.Variants {
		vr := variantView{
			Variant:     row.Variant,
			Views:       row.TotalViews,
			Conversions: row.Conversions,
			Secondary:   row.SecondaryConversions,
		}
		if result, ok := report.Variants[row.Variant]; ok {
			vr.Rate = result.ConversionRate * 100
			vr.SecondaryRate = result.SecondaryConversionRate * 100
			vr.Improvement = result.Improvement.String()
			vr.SecondaryImprovement = result.SecondaryImprovement.String()
		}
		view.Variants = append(view.Variants, vr)
	}
	return view
}

// formatDuration shows hours until the value reads better in days.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	if hours > 48 {
		return formatCount(hours/24, "day")
	}
	return formatCount(hours, "hour")
}

func formatCount(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
