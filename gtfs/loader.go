package gtfs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Retexc/ETSignage/internal/logging"
	"github.com/Retexc/ETSignage/utils"
)

// ErrMissingRequiredFile is returned by Load when routes, trips or stop_times
// cannot be opened.
var ErrMissingRequiredFile = errors.New("missing required GTFS file")

type table struct {
	head []string
	rows [][]string
}

// idx returns the column of col in the header, or -1.
func (t table) idx(col string) int {
	for i, h := range t.head {
		if strings.EqualFold(strings.TrimSpace(h), col) {
			return i
		}
	}
	return -1
}

func readTable(r io.Reader) (table, error) {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	csvr.LazyQuotes = true
	rec, err := csvr.ReadAll()
	if err != nil {
		return table{}, err
	}
	if len(rec) == 0 {
		return table{}, nil
	}
	head := rec[0]
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], "\ufeff")
	}
	return table{head: head, rows: rec[1:]}, nil
}

func openTable(path string) (table, error) {
	f, err := os.Open(path)
	if err != nil {
		return table{}, err
	}
	defer f.Close()
	t, err := readTable(f)
	if err != nil {
		return table{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

// field returns row[i] trimmed, or "" when the column is absent or short.
func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Load reads the static tables named by paths into a ScheduleIndex. A missing
// required table is an error wrapping ErrMissingRequiredFile; missing
// optional tables are logged and left empty. Malformed rows are dropped.
func Load(paths Paths, logger *slog.Logger) (*ScheduleIndex, error) {
	logger = logging.OrDefault(logger)
	for _, p := range paths.required() {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingRequiredFile, p)
		}
	}

	g := NewScheduleIndex()
	routes, err := openTable(paths.Routes)
	if err != nil {
		return nil, err
	}
	g.consumeRoutes(routes)

	trips, err := openTable(paths.Trips)
	if err != nil {
		return nil, err
	}
	g.consumeTrips(trips)

	stopTimes, err := openTable(paths.StopTimes)
	if err != nil {
		return nil, err
	}
	if dropped := g.consumeStopTimes(stopTimes); dropped > 0 {
		logger.Warn("dropped stop_times rows",
			slog.Int("count", dropped),
			slog.String("file", paths.StopTimes))
	}
	g.sortByStop()

	optional := []struct {
		path    string
		consume func(table)
	}{
		{paths.Calendar, g.consumeCalendar},
		{paths.CalendarDates, g.consumeCalendarDates},
		{paths.Stops, g.consumeStops},
	}
	for _, o := range optional {
		if o.path == "" {
			continue
		}
		t, err := openTable(o.path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logging.LogWarn(logger, "optional GTFS file missing", nil, slog.String("file", o.path))
				continue
			}
			logging.LogWarn(logger, "optional GTFS file unreadable", err, slog.String("file", o.path))
			continue
		}
		o.consume(t)
	}
	return g, nil
}

func (g *ScheduleIndex) consumeRoutes(t table) {
	rID := t.idx("route_id")
	rSN := t.idx("route_short_name")
	if rID < 0 {
		return
	}
	for _, row := range t.rows {
		id := field(row, rID)
		if id == "" {
			continue
		}
		name := field(row, rSN)
		if name == "" {
			name = id
		}
		g.Routes[id] = name
	}
}

func (g *ScheduleIndex) consumeTrips(t table) {
	rID := t.idx("route_id")
	tID := t.idx("trip_id")
	svc := t.idx("service_id")
	dir := t.idx("direction_id")
	wc := t.idx("wheelchair_accessible")
	if rID < 0 || tID < 0 {
		return
	}
	for _, row := range t.rows {
		id := field(row, tID)
		route := field(row, rID)
		if id == "" || route == "" {
			continue
		}
		short := g.Routes[route]
		if short == "" {
			short = route
		}
		g.Trips[id] = Trip{
			ID:                   id,
			RouteID:              route,
			RouteShortName:       short,
			ServiceID:            field(row, svc),
			DirectionID:          field(row, dir),
			WheelchairAccessible: field(row, wc) == "1",
		}
	}
}

// consumeStopTimes returns how many rows were dropped.
func (g *ScheduleIndex) consumeStopTimes(t table) int {
	tID := t.idx("trip_id")
	sID := t.idx("stop_id")
	arr := t.idx("arrival_time")
	dep := t.idx("departure_time")
	if tID < 0 || sID < 0 || (arr < 0 && dep < 0) {
		return len(t.rows)
	}
	dropped := 0
	for _, row := range t.rows {
		trip := field(row, tID)
		stop := field(row, sID)
		if _, ok := g.Trips[trip]; !ok || stop == "" {
			dropped++
			continue
		}
		arrS, depS := field(row, arr), field(row, dep)
		if arrS == "" {
			arrS = depS
		}
		if depS == "" {
			depS = arrS
		}
		a, err := utils.ParseGTFSTime(arrS)
		if err != nil {
			dropped++
			continue
		}
		d, err := utils.ParseGTFSTime(depS)
		if err != nil {
			d = a
		}
		g.addStopTime(StopTime{TripID: trip, StopID: stop, Arrival: a, Departure: d})
	}
	return dropped
}

var weekdayColumns = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func (g *ScheduleIndex) consumeCalendar(t table) {
	sID := t.idx("service_id")
	start := t.idx("start_date")
	end := t.idx("end_date")
	if sID < 0 {
		return
	}
	var days [7]int
	for i, c := range weekdayColumns {
		days[i] = t.idx(c)
	}
	for _, row := range t.rows {
		id := field(row, sID)
		if id == "" {
			continue
		}
		var svc Service
		for i, col := range days {
			svc.Weekdays[i] = field(row, col) == "1"
		}
		svc.Start = field(row, start)
		svc.End = field(row, end)
		g.Calendar[id] = svc
	}
}

func (g *ScheduleIndex) consumeCalendarDates(t table) {
	sID := t.idx("service_id")
	date := t.idx("date")
	typ := t.idx("exception_type")
	if sID < 0 || date < 0 || typ < 0 {
		return
	}
	for _, row := range t.rows {
		id, day := field(row, sID), field(row, date)
		ex, err := strconv.Atoi(field(row, typ))
		if id == "" || day == "" || err != nil {
			continue
		}
		if ex != ExceptionAdded && ex != ExceptionRemoved {
			continue
		}
		m, ok := g.Exceptions[id]
		if !ok {
			m = map[string]int{}
			g.Exceptions[id] = m
		}
		m[day] = ex
	}
}

func (g *ScheduleIndex) consumeStops(t table) {
	sID := t.idx("stop_id")
	sN := t.idx("stop_name")
	sLat := t.idx("stop_lat")
	sLon := t.idx("stop_lon")
	if sID < 0 {
		return
	}
	for _, row := range t.rows {
		id := field(row, sID)
		if id == "" {
			continue
		}
		lat, _ := strconv.ParseFloat(field(row, sLat), 64)
		lon, _ := strconv.ParseFloat(field(row, sLon), 64)
		g.Stops[id] = Stop{ID: id, Name: field(row, sN), Lat: lat, Lon: lon}
	}
}
