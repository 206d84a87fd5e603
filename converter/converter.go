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
)

// Converter reconciles one feed's realtime data against its static schedule
type Converter struct {
	GTFS     *gtfs.ScheduleIndex
	Opts     Options
	logger   *slog.Logger
	warnings *WarningAggregator
}

// NewConverter creates a new converter instance
func NewConverter(idx *gtfs.ScheduleIndex, opts Options) *Converter {
	if idx == nil {
		idx = gtfs.NewScheduleIndex()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Converter{
		GTFS:     idx,
		Opts:     opts,
		logger:   logging.OrDefault(opts.Logger).With(slog.String("feed", opts.Feed)),
		warnings: NewWarningAggregator(),
	}
}

// Warnings returns the aggregator collecting this converter's warnings.
func (c *Converter) Warnings() *WarningAggregator { return c.warnings }

// Build produces the feed's arrivals for now, dispatching on the feed mode,
// then flushes the warnings collected during the build.
func (c *Converter) Build(now time.Time, rt gtfsrt.Realtime) []board.ArrivalRecord {
	var out []board.ArrivalRecord
	if c.Opts.Mode == config.ModeSchedule {
		out = c.BuildScheduledArrivals(now, rt.TripUpdates, rt.Vehicles)
	} else {
		out = c.BuildArrivals(now, rt.TripUpdates, rt.Vehicles)
	}
	c.warnings.LogAll(c.logger)
	return out
}

// finalize runs build for one combo in isolation. An error or panic turns
// into an Indisponible record and a warning.
func (c *Converter) finalize(combo config.Combo, build func() (board.ArrivalRecord, error)) board.ArrivalRecord {
	var rec board.ArrivalRecord
	err := logging.Recover(fmt.Sprintf("combo %s", combo.Key), func() error {
		var err error
		rec, err = build()
		return err
	})
	if err != nil {
		c.warnings.Add(WarningComboFailed, combo.Key)
		logging.LogWarn(c.logger, "Combo failed", err, slog.String("combo", combo.Key))
		return unavailable(combo)
	}
	return rec
}

func unavailable(combo config.Combo) board.ArrivalRecord {
	return board.Unavailable(combo.Route, combo.Stop, combo.Key, combo.Direction, combo.Location)
}

func identity(combo config.Combo, tripID string) board.ArrivalRecord {
	return board.ArrivalRecord{
		Route:     combo.Route,
		TripID:    tripID,
		StopID:    combo.Stop,
		Key:       combo.Key,
		Direction: combo.Direction,
		Location:  combo.Location,
		Occupancy: board.OccupancyUnknown,
	}
}

// occupancy maps a vehicle's raw occupancy through the feed table.
func (c *Converter) occupancy(v gtfsrt.Vehicle, ok bool, tripID string) string {
	if !ok || !v.HasOccupancy {
		return board.OccupancyUnknown
	}
	level, mapped := c.Opts.Occupancy[v.Occupancy]
	if !mapped {
		c.warnings.Add(WarningUnmappedOccupied, fmt.Sprintf("%s=%d", tripID, v.Occupancy))
		return board.OccupancyUnknown
	}
	return level
}

func minutesText(m int) string { return fmt.Sprintf("%d min", m) }

func intPtr(v int) *int { return &v }
