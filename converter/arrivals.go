package converter

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Retexc/ETSignage/board"
	"github.com/Retexc/ETSignage/config"
	"github.com/Retexc/ETSignage/gtfs"
	"github.com/Retexc/ETSignage/gtfsrt"
	"github.com/Retexc/ETSignage/internal/logging"
	"github.com/Retexc/ETSignage/utils"
)

const secondsPerDay = 24 * 3600

type routeStop struct {
	route string
	stop  string
}

// comboIndex maps (route, stop) to the positions of every combo watching it.
func comboIndex(combos []config.Combo) map[routeStop][]int {
	idx := make(map[routeStop][]int, len(combos))
	for i, cb := range combos {
		k := routeStop{cb.Route, cb.Stop}
		idx[k] = append(idx[k], i)
	}
	return idx
}

// BuildArrivals reconciles live trip updates against the schedule and returns
// exactly one record per combo, in combo order. Combos without a live
// candidate fall back to the next scheduled arrival.
func (c *Converter) BuildArrivals(now time.Time, updates []gtfsrt.TripUpdate, vehicles gtfsrt.VehicleSnapshot) []board.ArrivalRecord {
	now = now.In(c.Opts.Location)
	combos := c.Opts.Combos
	index := comboIndex(combos)
	held := make([]*board.ArrivalRecord, len(combos))

	for _, tu := range updates {
		short := tu.RouteID
		if trip, ok := c.GTFS.GetTrip(tu.TripID); ok && trip.RouteShortName != "" {
			short = trip.RouteShortName
		}
		for _, stu := range tu.StopTimeUpdates {
			for _, i := range matchingCombos(index, tu.RouteID, short, stu.StopID) {
				rec, ok := c.candidate(fmt.Sprintf("%s@%s", tu.TripID, stu.StopID), func() (board.ArrivalRecord, bool) {
					return c.liveRecord(now, combos[i], tu, stu, vehicles)
				})
				if !ok {
					continue
				}
				if better(rec, held[i]) {
					r := rec
					held[i] = &r
				}
			}
		}
	}

	out := make([]board.ArrivalRecord, 0, len(combos))
	for i, combo := range combos {
		i, combo := i, combo
		out = append(out, c.finalize(combo, func() (board.ArrivalRecord, error) {
			if held[i] != nil {
				return *held[i], nil
			}
			return c.fallback(now, combo), nil
		}))
	}
	return out
}

// matchingCombos returns the combos watching stop on the trip's route,
// matched by route_id or by the schedule short name.
func matchingCombos(index map[routeStop][]int, routeID, short, stop string) []int {
	hits := index[routeStop{routeID, stop}]
	if short == routeID {
		return hits
	}
	extra := index[routeStop{short, stop}]
	if len(extra) == 0 {
		return hits
	}
	out := append([]int(nil), hits...)
	for _, i := range extra {
		dup := false
		for _, h := range hits {
			if h == i {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, i)
		}
	}
	return out
}

// better reports whether cand should replace held. A cancelled candidate
// never replaces anything; any live candidate replaces a cancelled one.
func better(cand board.ArrivalRecord, held *board.ArrivalRecord) bool {
	switch {
	case held == nil:
		return true
	case cand.Status == board.StatusCancelled:
		return false
	case held.Status == board.StatusCancelled:
		return true
	default:
		return cand.Minutes() < held.Minutes()
	}
}

// candidate runs build for one stop-time update in isolation. A panic drops
// the candidate with a warning and leaves the other candidates untouched.
func (c *Converter) candidate(id string, build func() (board.ArrivalRecord, bool)) (board.ArrivalRecord, bool) {
	var (
		rec board.ArrivalRecord
		ok  bool
	)
	err := logging.Recover(fmt.Sprintf("candidate %s", id), func() error {
		rec, ok = build()
		return nil
	})
	if err != nil {
		c.warnings.Add(WarningCandidateFailed, id)
		logging.LogWarn(c.logger, "Candidate failed", err, slog.String("candidate", id))
		return board.ArrivalRecord{}, false
	}
	return rec, ok
}

// liveRecord builds the record of one stop-time update for combo. It reports
// false when the update carries no usable prediction.
func (c *Converter) liveRecord(now time.Time, combo config.Combo, tu gtfsrt.TripUpdate, stu gtfsrt.StopTimeUpdate, vehicles gtfsrt.VehicleSnapshot) (board.ArrivalRecord, bool) {
	rec := identity(combo, tu.TripID)
	trip, inStatic := c.GTFS.GetTrip(tu.TripID)
	rec.WheelchairAccessible = inStatic && trip.WheelchairAccessible

	if stu.Skipped {
		rec.Status = board.StatusCancelled
		rec.ArrivalTime = board.TextCancelled
		rec.DisplayTime = board.TextCancelled
		return rec, true
	}
	if !stu.HasArrivalTime || stu.ArrivalTime <= 0 {
		c.warnings.Add(WarningNoArrivalTime, fmt.Sprintf("%s@%s", tu.TripID, stu.StopID))
		return rec, false
	}

	predicted := time.Unix(stu.ArrivalTime, 0).In(now.Location())
	minutes := utils.MinutesUntil(now, stu.ArrivalTime)
	rec.Status = board.StatusNormal
	rec.MinutesRemaining = intPtr(minutes)
	rec.DisplayTime = minutesText(minutes)
	rec.ArrivalTime = utils.FormatClock(predicted)
	rec.AtStop = minutes < atStopMinutes

	switch st, ok := c.GTFS.GetStopTime(tu.TripID, stu.StopID); {
	case !inStatic:
		c.warnings.Add(WarningTripNotInStatic, tu.TripID)
	case !ok:
		c.warnings.Add(WarningNoStaticTime, fmt.Sprintf("%s@%s", tu.TripID, stu.StopID))
	default:
		scheduled := utils.TimeOnDay(now, st.Arrival)
		if scheduled.Before(now) {
			scheduled = scheduled.AddDate(0, 0, 1)
		}
		if predicted.After(scheduled) {
			rec.DelayText = fmt.Sprintf(lateFormat, utils.FormatClock(scheduled))
		}
	}

	v, ok := vehicles.Lookup(tu.RouteID, tu.TripID)
	if ok && !c.GTFS.ValidateTrip(tu.TripID, combo.Route) {
		c.warnings.Add(WarningVehicleMismatch, tu.TripID)
		ok = false
	}
	rec.Occupancy = c.occupancy(v, ok, tu.TripID)
	if ok {
		c.attachVehicle(&rec, v)
	}
	return rec, true
}

// attachVehicle copies the vehicle position and its distance to the stop.
func (c *Converter) attachVehicle(rec *board.ArrivalRecord, v gtfsrt.Vehicle) {
	rec.VehicleStatus = v.Status
	if !v.HasPosition {
		return
	}
	rec.VehiclePosition = &board.Position{Lat: v.Lat, Lon: v.Lon}
	if stop, ok := c.GTFS.GetStop(rec.StopID); ok {
		d := utils.RoundMeters(utils.HaversineMeters(v.Lat, v.Lon, stop.Lat, stop.Lon))
		rec.DistanceMeters = intPtr(int(d))
	}
}

// fallback returns the next scheduled arrival of combo, or Indisponible.
func (c *Converter) fallback(now time.Time, combo config.Combo) board.ArrivalRecord {
	next, ok := c.nextScheduled(now, combo)
	if !ok {
		c.warnings.Add(WarningNoScheduledTrip, combo.Key)
		return unavailable(combo)
	}
	rec := identity(combo, board.TripNA)
	rec.Status = board.StatusScheduled
	rec.ArrivalTime = utils.FormatClock(next)
	rec.DisplayTime = rec.ArrivalTime
	return rec
}

// nextScheduled scans the stop's schedule for the earliest future arrival
// of the combo's route.
func (c *Converter) nextScheduled(now time.Time, combo config.Combo) (time.Time, bool) {
	var best time.Time
	found := false
	for _, st := range c.GTFS.GetStopTimesAtStop(combo.Stop) {
		trip, ok := c.GTFS.GetTrip(st.TripID)
		if !ok || !c.GTFS.ValidateTrip(st.TripID, combo.Route) {
			continue
		}
		at := utils.TimeOnDay(now, st.Arrival)
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		if !c.runsFor(trip, st.Arrival, at) {
			continue
		}
		if !found || at.Before(best) {
			best, found = at, true
		}
	}
	return best, found
}

// runsFor reports whether trip operates when its stop time at secs lands on
// at. Times past 24:00 belong to the previous service day. Without calendar
// data every trip runs.
func (c *Converter) runsFor(trip gtfs.Trip, secs int, at time.Time) bool {
	if !c.GTFS.HasCalendar() {
		return true
	}
	day := at
	if secs >= secondsPerDay {
		day = day.AddDate(0, 0, -1)
	}
	return c.GTFS.ServiceRunsOn(trip.ServiceID, day)
}
