// Package utils provides internal utility functions shared by the signage packages.
//
// It contains:
//   - Clock abstraction and GTFS time-of-day helpers
//   - Great-circle distance
//   - HTML stripping for alert text
package utils
