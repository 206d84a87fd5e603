package converter

import (
	"fmt"
	"time"

	"github.com/Retexc/ETSignage/board"
	"github.com/Retexc/ETSignage/config"
	"github.com/Retexc/ETSignage/gtfsrt"
	"github.com/Retexc/ETSignage/utils"
)

type tripStop struct {
	trip string
	stop string
}

// delayMinutes collects the live arrival delay, in whole minutes rounded
// down, of every (trip, stop) pair.
func delayMinutes(updates []gtfsrt.TripUpdate) map[tripStop]int {
	out := make(map[tripStop]int)
	for _, tu := range updates {
		for _, stu := range tu.StopTimeUpdates {
			d := 0
			if stu.HasArrivalDelay {
				d = int(utils.FloorDiv(int64(stu.ArrivalDelay), 60))
			}
			out[tripStop{tu.TripID, stu.StopID}] = d
		}
	}
	return out
}

// BuildScheduledArrivals walks the static departures of each combo and
// applies the live delay of the matching trip. It returns one record per
// combo, in combo order.
func (c *Converter) BuildScheduledArrivals(now time.Time, updates []gtfsrt.TripUpdate, vehicles gtfsrt.VehicleSnapshot) []board.ArrivalRecord {
	now = now.In(c.Opts.Location)
	delays := delayMinutes(updates)

	out := make([]board.ArrivalRecord, 0, len(c.Opts.Combos))
	for _, combo := range c.Opts.Combos {
		combo := combo
		out = append(out, c.finalize(combo, func() (board.ArrivalRecord, error) {
			return c.nextDeparture(now, combo, delays, vehicles), nil
		}))
	}
	return out
}

func (c *Converter) nextDeparture(now time.Time, combo config.Combo, delays map[tripStop]int, vehicles gtfsrt.VehicleSnapshot) board.ArrivalRecord {
	var best *board.ArrivalRecord
	for _, st := range c.GTFS.GetStopTimesAtStop(combo.Stop) {
		trip, ok := c.GTFS.GetTrip(st.TripID)
		if !ok || !c.GTFS.ValidateTrip(st.TripID, combo.Route) {
			continue
		}
		tripID := gtfsrt.NormalizeTripID(st.TripID, c.Opts.TripIDSeparator)
		delay := delays[tripStop{tripID, combo.Stop}]

		scheduled := utils.TimeOnDay(now, st.Departure)
		adjusted := scheduled.Add(time.Duration(delay) * time.Minute)
		if adjusted.Before(now) {
			scheduled = scheduled.AddDate(0, 0, 1)
			adjusted = adjusted.AddDate(0, 0, 1)
		}
		if !c.runsFor(trip, st.Departure, scheduled) {
			continue
		}
		minutes := utils.MinutesUntil(now, adjusted.Unix())
		if best != nil && minutes >= best.Minutes() {
			continue
		}

		rec := identity(combo, tripID)
		rec.Status = board.StatusNormal
		rec.WheelchairAccessible = trip.WheelchairAccessible
		rec.MinutesRemaining = intPtr(minutes)
		rec.ArrivalTime = utils.FormatClock(adjusted)
		rec.DisplayTime = rec.ArrivalTime
		if minutes < railCountdownWindow {
			rec.DisplayTime = minutesText(minutes)
		}
		rec.AtStop = minutes < atStopMinutes
		switch {
		case delay > 0:
			rec.DelayText = fmt.Sprintf(lateFormat, utils.FormatClock(scheduled))
		case delay < 0:
			rec.EarlyText = fmt.Sprintf(earlyFormat, utils.FormatClock(scheduled))
		}

		v, found := vehicles.Lookup(trip.RouteID, tripID)
		rec.Occupancy = c.occupancy(v, found, tripID)
		if found {
			c.attachVehicle(&rec, v)
		}
		best = &rec
	}
	if best == nil {
		c.warnings.Add(WarningNoScheduledTrip, combo.Key)
		return unavailable(combo)
	}
	return *best
}
