// ABOUTME: Package documentation for the tracking layer
// ABOUTME: States the fire-and-forget contract and the dedup window caveat

// Package tracking counts experiment views and conversions.
//
// The tracker sits between instrumented request paths and the counter store.
// It resolves the visitor scope, asks the assignment oracle for a variant,
// consults the TTL dedup cache, and increments counters. Public methods never
// return errors: a page must render whether or not tracking worked, so
// failures go to the log and to the abtrack_track_events_total metric
// instead, and the event is dropped without touching any counter.
//
// Dedup is check-then-act against the cache, so two concurrent first-events
// for the same scope can both count. The window is a single request pair per
// scope and the counters are aggregates; the cheap cache read stays.
package tracking
