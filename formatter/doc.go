// Package formatter provides response wrapping and serialization for boards.
//
// This package is organized into:
// - json.go: the display envelope and its debug counts
// - filter.go: route, stop and direction filters for single-feed responses
package formatter
