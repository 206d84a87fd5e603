package gtfs

import "path/filepath"

// calendar_dates.txt exception_type values
const (
	ExceptionAdded   = 1
	ExceptionRemoved = 2
)

// Trip is a trips.txt row with its route resolved to a display name.
type Trip struct {
	ID                   string
	RouteID              string
	RouteShortName       string
	ServiceID            string
	DirectionID          string
	WheelchairAccessible bool
}

// StopTime holds scheduled times as seconds after midnight of the service day.
type StopTime struct {
	TripID    string
	StopID    string
	Arrival   int
	Departure int
}

// Service is a calendar.txt row. Weekdays is indexed by time.Weekday.
type Service struct {
	Weekdays [7]bool
	Start    string
	End      string
}

// Stop is a stops.txt row
type Stop struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// Paths locates the static tables of one feed. Routes, Trips and StopTimes are
// required.
type Paths struct {
	Routes        string
	Trips         string
	StopTimes     string
	Calendar      string
	CalendarDates string
	Stops         string
}

// PathsFromDir returns the conventional file names inside dir.
func PathsFromDir(dir string) Paths {
	return Paths{
		Routes:        filepath.Join(dir, "routes.txt"),
		Trips:         filepath.Join(dir, "trips.txt"),
		StopTimes:     filepath.Join(dir, "stop_times.txt"),
		Calendar:      filepath.Join(dir, "calendar.txt"),
		CalendarDates: filepath.Join(dir, "calendar_dates.txt"),
		Stops:         filepath.Join(dir, "stops.txt"),
	}
}

func (p Paths) required() []string { return []string{p.Routes, p.Trips, p.StopTimes} }
