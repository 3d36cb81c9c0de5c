// ABOUTME: Package documentation for the experiment counter store
// ABOUTME: Describes counter semantics and concurrency guarantees

// Package store persists aggregate experiment counters.
//
// Each (experiment, variant) pair owns one row of monotonically growing
// counters: total views, primary conversions, secondary conversions. Rows are
// created lazily on first sight and never deleted. Increments are atomic in
// SQL so concurrent writers cannot lose counts, and the composite primary key
// keeps concurrent first-writers from creating duplicate rows.
//
// The store also keeps visitor tokens for authenticated users, which the
// scope resolver uses to link anonymous activity forward after login.
package store
