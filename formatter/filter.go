package formatter

import (
	"strings"

	"github.com/Retexc/ETSignage/board"
)

// ArrivalFilter narrows a feed's arrivals. Empty fields match everything.
type ArrivalFilter struct {
	Route     string
	Stop      string
	Direction string
}

// FilterArrivals applies filters to arrival records
func FilterArrivals(recs []board.ArrivalRecord, f ArrivalFilter) []board.ArrivalRecord {
	route := strings.ToLower(strings.TrimSpace(f.Route))
	stop := strings.ToLower(strings.TrimSpace(f.Stop))
	direction := strings.ToLower(strings.TrimSpace(f.Direction))

	filtered := []board.ArrivalRecord{}
	for _, r := range recs {
		// Filter by route
		if route != "" && strings.ToLower(r.Route) != route {
			continue
		}

		// Filter by stop
		if stop != "" && strings.ToLower(r.StopID) != stop {
			continue
		}

		// Filter by direction
		if direction != "" && strings.ToLower(r.Direction) != direction {
			continue
		}

		filtered = append(filtered, r)
	}
	return filtered
}
