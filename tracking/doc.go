// Package tracking keeps the previous board between polls.
//
// This package handles:
// - Retaining the last board so the display can keep showing it
// - Ignoring boards that are not newer than the one already held
// - Per-combo change detection (new trip, countdown, status, markers)
// - Vehicle movement between two polls
//
// The service publishes a board only when its Snapshot reports Changed.
package tracking
