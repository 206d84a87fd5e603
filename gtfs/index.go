package gtfs

import (
	"sort"
	"time"

	"github.com/Retexc/ETSignage/utils"
)

// ScheduleIndex stores GTFS static data in memory for fast lookups. It is
// read-only once Load returns and safe for concurrent readers. Fields are
// exported for gob caching; use the accessors.
type ScheduleIndex struct {
	Routes     map[string]string              // route_id -> short name
	Trips      map[string]Trip                // trip_id -> trip
	StopTimes  map[string]map[string]StopTime // trip_id -> stop_id -> times
	ByStop     map[string][]StopTime          // stop_id -> stop times ordered by arrival
	Calendar   map[string]Service             // service_id -> weekly pattern
	Exceptions map[string]map[string]int      // service_id -> YYYYMMDD -> exception_type
	Stops      map[string]Stop                // stop_id -> stop
}

// NewScheduleIndex creates a new empty schedule index
func NewScheduleIndex() *ScheduleIndex {
	return &ScheduleIndex{
		Routes:     map[string]string{},
		Trips:      map[string]Trip{},
		StopTimes:  map[string]map[string]StopTime{},
		ByStop:     map[string][]StopTime{},
		Calendar:   map[string]Service{},
		Exceptions: map[string]map[string]int{},
		Stops:      map[string]Stop{},
	}
}

func (g *ScheduleIndex) addStopTime(st StopTime) {
	m, ok := g.StopTimes[st.TripID]
	if !ok {
		m = map[string]StopTime{}
		g.StopTimes[st.TripID] = m
	}
	if _, dup := m[st.StopID]; dup {
		// loop trips visit a stop twice; keep the first visit
		return
	}
	m[st.StopID] = st
	g.ByStop[st.StopID] = append(g.ByStop[st.StopID], st)
}

func (g *ScheduleIndex) sortByStop() {
	for _, sts := range g.ByStop {
		sort.SliceStable(sts, func(i, j int) bool { return sts[i].Arrival < sts[j].Arrival })
	}
}

// Accessor methods

func (g *ScheduleIndex) GetRouteShortName(routeID string) string { return g.Routes[routeID] }

func (g *ScheduleIndex) GetTrip(tripID string) (Trip, bool) {
	t, ok := g.Trips[tripID]
	return t, ok
}

// GetStopTime returns the scheduled times of stopID on tripID.
func (g *ScheduleIndex) GetStopTime(tripID, stopID string) (StopTime, bool) {
	st, ok := g.StopTimes[tripID][stopID]
	return st, ok
}

// GetStopTimesAtStop returns every scheduled visit of stopID ordered by arrival.
func (g *ScheduleIndex) GetStopTimesAtStop(stopID string) []StopTime { return g.ByStop[stopID] }

func (g *ScheduleIndex) GetStop(stopID string) (Stop, bool) {
	s, ok := g.Stops[stopID]
	return s, ok
}

// ValidateTrip reports whether tripID is scheduled on the route with the given
// short name (or route_id).
func (g *ScheduleIndex) ValidateTrip(tripID, route string) bool {
	t, ok := g.Trips[tripID]
	if !ok {
		return false
	}
	return t.RouteShortName == route || t.RouteID == route
}

// HasCalendar reports whether any service calendar data was loaded.
func (g *ScheduleIndex) HasCalendar() bool {
	return len(g.Calendar) > 0 || len(g.Exceptions) > 0
}

// ServiceRunsOn reports whether serviceID operates on the calendar day of date.
// An exception for that exact date always wins over the weekly pattern.
func (g *ScheduleIndex) ServiceRunsOn(serviceID string, date time.Time) bool {
	day := utils.ServiceDate(date)
	if ex, ok := g.Exceptions[serviceID][day]; ok {
		switch ex {
		case ExceptionAdded:
			return true
		case ExceptionRemoved:
			return false
		}
	}
	svc, ok := g.Calendar[serviceID]
	if !ok {
		return false
	}
	if !svc.Weekdays[date.Weekday()] {
		return false
	}
	if svc.Start != "" && day < svc.Start {
		return false
	}
	if svc.End != "" && day > svc.End {
		return false
	}
	return true
}

// TripRunsOn reports whether tripID operates on date. Without calendar data
// every known trip is assumed to run.
func (g *ScheduleIndex) TripRunsOn(tripID string, date time.Time) bool {
	t, ok := g.Trips[tripID]
	if !ok {
		return false
	}
	if !g.HasCalendar() {
		return true
	}
	return g.ServiceRunsOn(t.ServiceID, date)
}

// Stats summarizes the index for logging
func (g *ScheduleIndex) Stats() map[string]int {
	n := 0
	for _, m := range g.StopTimes {
		n += len(m)
	}
	return map[string]int{
		"routes":     len(g.Routes),
		"trips":      len(g.Trips),
		"stop_times": n,
		"services":   len(g.Calendar),
		"exceptions": len(g.Exceptions),
		"stops":      len(g.Stops),
	}
}
