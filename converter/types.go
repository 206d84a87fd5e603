package converter

import (
	"log/slog"
	"time"

	"github.com/Retexc/ETSignage/config"
)

// Default texts used when an alert carries none
const (
	DefaultNetworkHeader = "Alerte STM"
	DefaultRouteHeader   = "Alerte de ligne"
	DefaultDescription   = "Aucune description disponible"
)

// Delay annotations. The clock text is the scheduled time.
const (
	lateFormat  = "En retard (planifié à %s)"
	earlyFormat = "En avance (planifié à %s)"
)

// Countdown thresholds in minutes
const (
	atStopMinutes       = 2
	railCountdownWindow = 30
)

// MaxMonitoredStops caps the stops an alert correlator watches.
const MaxMonitoredStops = 8

// Options contains everything one feed's conversion needs. It has no
// dependency on how the configuration was loaded.
type Options struct {
	// Feed names the agency in logs and warnings.
	Feed string

	// Mode selects live reconciliation (config.ModeLive) or schedule-driven
	// arrivals (config.ModeSchedule).
	Mode string

	// Combos are the monitored (route, stop) pairs in display order.
	Combos []config.Combo

	// Occupancy maps raw GTFS-RT occupancy values to display levels.
	Occupancy map[int32]string

	// TripIDSeparator normalizes realtime trip ids before schedule lookups.
	TripIDSeparator string

	// Location is the agency timezone used to place schedule times.
	Location *time.Location

	Logger *slog.Logger
}

// OptionsFromConfig builds the options of one configured feed.
func OptionsFromConfig(feed config.Feed, loc *time.Location, logger *slog.Logger) Options {
	return Options{
		Feed:            feed.Name,
		Mode:            feed.Mode,
		Combos:          feed.Combos,
		Occupancy:       feed.Occupancy,
		TripIDSeparator: feed.TripIDSeparator,
		Location:        loc,
		Logger:          logger,
	}
}
