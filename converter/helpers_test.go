package converter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Retexc/ETSignage/config"
	"github.com/Retexc/ETSignage/gtfs"
	"github.com/Retexc/ETSignage/gtfsrt"
)

// busGTFS is a Tuesday-to-Friday bus schedule around stop 50270. Route 180
// has a route_id that differs from its short name.
var busGTFS = map[string]string{
	"routes.txt": "route_id,route_short_name\n171,171\nSTM180,180\n",
	"trips.txt": "route_id,service_id,trip_id,wheelchair_accessible\n" +
		"171,WEEK,T1,1\n171,WEEK,T2,0\nSTM180,WEEK,T3,1\n171,SUN,TS,1\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T1,08:15:00,08:15:00,50270,1\n" +
		"T2,09:00:00,09:00:00,50270,1\n" +
		"T3,07:30:00,07:30:00,50270,1\n" +
		"TS,07:45:00,07:45:00,50270,1\n",
	"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
		"WEEK,1,1,1,1,1,0,0,20250101,20251231\n" +
		"SUN,0,0,0,0,0,0,1,20250101,20251231\n",
	"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n50270,Collège,45.5000,-73.6000\n",
}

// railGTFS has two route 4 departures from MTL7D with dashed trip ids.
var railGTFS = map[string]string{
	"routes.txt": "route_id,route_short_name\n4,4\n",
	"trips.txt":  "route_id,service_id,trip_id,wheelchair_accessible\n4,WEEK,T9-A,1\n4,WEEK,T10-A,1\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T9-A,08:09:00,08:10:00,MTL7D,1\n" +
		"T10-A,08:40:00,08:40:00,MTL7D,1\n",
}

// tuesday returns 2025-06-17 at hh:mm UTC.
func tuesday(hh, mm int) time.Time {
	return time.Date(2025, time.June, 17, hh, mm, 0, 0, time.UTC)
}

func loadSchedule(t *testing.T, files map[string]string) *gtfs.ScheduleIndex {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	idx, err := gtfs.Load(gtfs.PathsFromDir(dir), nil)
	require.NoError(t, err)
	return idx
}

func combo(route, stop string) config.Combo {
	return config.Combo{Route: route, Stop: stop, Key: route + "_" + stop}
}

func newBusConverter(t *testing.T, combos ...config.Combo) *Converter {
	t.Helper()
	return NewConverter(loadSchedule(t, busGTFS), Options{
		Feed:      "stm",
		Mode:      config.ModeLive,
		Combos:    combos,
		Occupancy: config.DefaultOccupancy(),
		Location:  time.UTC,
	})
}

func newRailConverter(t *testing.T, combos ...config.Combo) *Converter {
	t.Helper()
	return NewConverter(loadSchedule(t, railGTFS), Options{
		Feed:            "exo",
		Mode:            config.ModeSchedule,
		Combos:          combos,
		Occupancy:       map[int32]string{5: "not_accepting_passengers"},
		TripIDSeparator: "-",
		Location:        time.UTC,
	})
}

func predicted(trip, route, stop string, at time.Time) gtfsrt.TripUpdate {
	return gtfsrt.TripUpdate{
		TripID:  trip,
		RouteID: route,
		StopTimeUpdates: []gtfsrt.StopTimeUpdate{
			{StopID: stop, ArrivalTime: at.Unix(), HasArrivalTime: true},
		},
	}
}

func skipped(trip, route, stop string) gtfsrt.TripUpdate {
	return gtfsrt.TripUpdate{
		TripID:          trip,
		RouteID:         route,
		StopTimeUpdates: []gtfsrt.StopTimeUpdate{{StopID: stop, Skipped: true}},
	}
}

func delayed(trip, stop string, seconds int32) gtfsrt.TripUpdate {
	return gtfsrt.TripUpdate{
		TripID: trip,
		StopTimeUpdates: []gtfsrt.StopTimeUpdate{
			{StopID: stop, ArrivalDelay: seconds, HasArrivalDelay: true},
		},
	}
}
