package converter

import "github.com/Retexc/ETSignage/board"

// AnnotateArrivals attaches the markers of every route or stop alert to the
// arrivals of the routes it names. Alerts naming only stops mark nothing.
// Timing fields are left untouched. It returns the number of markers added.
func AnnotateArrivals(arrivals []board.ArrivalRecord, alerts []board.AlertRecord) int {
	added := 0
	for _, a := range alerts {
		if len(a.Markers) == 0 || (a.Scope != board.ScopeRoute && a.Scope != board.ScopeStop) {
			continue
		}
		for i := range arrivals {
			if !contains(a.Routes, arrivals[i].Route) {
				continue
			}
			for _, m := range a.Markers {
				if !arrivals[i].HasMarker(m) {
					arrivals[i].AddMarker(m)
					added++
				}
			}
		}
	}
	return added
}
