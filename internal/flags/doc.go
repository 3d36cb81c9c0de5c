// ABOUTME: Package documentation for variant assignment
// ABOUTME: Positions the Oracle interface against external flag platforms

// Package flags defines the assignment oracle consumed by tracking.
//
// Deployments with a real feature-flag platform implement Oracle against it;
// the tracker only cares that the same scope keeps getting the same answer.
// The bundled Splitter covers the standalone case with a deterministic hash
// split, per-experiment rollout percentages, and variant pinning.
package flags
