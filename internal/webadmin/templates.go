// ABOUTME: Template rendering functions for the admin UI
// ABOUTME: Loads templates from embedded filesystem and renders them

package webadmin

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/growthtools/abtrack/internal/stats"
)

// Template data types
type variantView struct {
	Variant              string
	Views                int64
	Conversions          int64
	Secondary            int64
	Rate                 float64
	SecondaryRate        float64
	Improvement          string
	SecondaryImprovement string
}

type experimentView struct {
	Name     string
	Duration string
	Active   bool
	Report   *stats.Report
	Variants []variantView
}

type dashboardData struct {
	Title       string
	Experiments []experimentView
}

type debugEntry struct {
	Key     string
	Present bool
	Variant string
}

type debugData struct {
	Title      string
	Experiment string
	ScopeKey   string
	Assignment string
	Entries    []debugEntry
	Error      string
}

var templateFuncs = template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
	"pvalue": func(p *float64) string {
		if p == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.4f", *p)
	},
}

// renderDashboard renders the experiment results table
func (a *Admin) renderDashboard(w http.ResponseWriter, experiments []experimentView) {
	tmpl := template.Must(template.New("base.html").Funcs(templateFuncs).
		ParseFS(templateFS, "templates/base.html", "templates/dashboard.html"))

	data := dashboardData{
		Title:       "Experiments",
		Experiments: experiments,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("failed to render dashboard", "error", err)
	}
}

// renderDebug renders the tracking state debug page
func (a *Admin) renderDebug(w http.ResponseWriter, data debugData) {
	tmpl := template.Must(template.New("base.html").Funcs(templateFuncs).
		ParseFS(templateFS, "templates/base.html", "templates/debug.html"))

	data.Title = "Tracking Debug"

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("failed to render debug page", "error", err)
	}
}
