// ABOUTME: Package documentation for the significance engine
// ABOUTME: Notes the chi-squared model and the tagged improvement type

// Package stats turns raw experiment counters into a significance report.
//
// The model is a chi-squared test of independence over the 2xk contingency
// table of conversions vs non-conversions per variant, evaluated once for the
// primary goal and once for the secondary goal. Improvement against the
// control arm is carried as a tagged value so "control never converted" does
// not collapse into a bogus finite percentage.
package stats
