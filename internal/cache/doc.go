// ABOUTME: Package documentation for the tracking dedup cache
// ABOUTME: Notes the best-effort nature of TTL dedup entries

// Package cache provides the TTL-bounded key-value store that deduplicates
// tracking events.
//
// Entries are hints, not locks. The tracker checks for an entry before
// counting and writes one after, so two concurrent first-events for the same
// scope can both slip through the miss window. Expiry re-opens the window on
// purpose: a visitor returning after the TTL counts again.
//
// BadgerCache is the production implementation (durable, native TTL);
// MemoryCache serves tests and setups that accept losing dedup state on
// restart.
package cache
