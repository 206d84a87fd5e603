package converter

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Retexc/ETSignage/internal/logging"
)

// Warning type constants
const (
	// Arrival warnings
	WarningNoArrivalTime    = "no_arrival_time"
	WarningTripNotInStatic  = "trip_not_in_static"
	WarningNoStaticTime     = "no_static_time"
	WarningNoScheduledTrip  = "no_scheduled_trip"
	WarningComboFailed      = "combo_failed"
	WarningCandidateFailed  = "candidate_failed"
	WarningVehicleMismatch  = "vehicle_route_mismatch"
	WarningUnmappedOccupied = "unmapped_occupancy"

	// Alert warnings
	WarningNoHeader        = "no_header"
	WarningNoDescription   = "no_description"
	WarningExcludedRoute   = "excluded_route"
	WarningTooManyStops    = "too_many_monitored_stops"
	WarningAlertEnded      = "alert_ended"
	WarningAlertOutOfScope = "alert_out_of_scope"
	WarningDuplicateAlert  = "duplicate_alert"
)

// warningInfo holds aggregated information about a specific warning type
type warningInfo struct {
	count    int
	examples []string
}

// WarningAggregator collects warnings during one poll and outputs
// consolidated summaries. It is safe for concurrent use.
type WarningAggregator struct {
	mu       sync.Mutex
	warnings map[string]*warningInfo
}

// NewWarningAggregator creates a new warning aggregator
func NewWarningAggregator() *WarningAggregator {
	return &WarningAggregator{
		warnings: make(map[string]*warningInfo),
	}
}

// Add records a warning occurrence with an example ID
func (w *WarningAggregator) Add(warningType, exampleID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.warnings[warningType] == nil {
		w.warnings[warningType] = &warningInfo{
			examples: make([]string, 0, 3),
		}
	}

	info := w.warnings[warningType]
	info.count++

	// Store up to 3 examples
	if len(info.examples) < 3 {
		info.examples = append(info.examples, exampleID)
	}
}

// Count returns how many times warningType was recorded.
func (w *WarningAggregator) Count(warningType string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if info := w.warnings[warningType]; info != nil {
		return info.count
	}
	return 0
}

// LogAll outputs all collected warnings, one line per type, and resets the
// aggregator. The feed is expected on logger.
func (w *WarningAggregator) LogAll(logger *slog.Logger) {
	w.mu.Lock()
	warnings := w.warnings
	w.warnings = make(map[string]*warningInfo)
	w.mu.Unlock()

	if len(warnings) == 0 {
		return
	}
	logger = logging.OrDefault(logger)

	types := make([]string, 0, len(warnings))
	for t := range warnings {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, warningType := range types {
		info := warnings[warningType]
		description, action := describeWarning(warningType)
		logger.Warn(description,
			slog.String("warning", warningType),
			slog.Int("count", info.count),
			slog.String("action", action),
			slog.String("examples", strings.Join(info.examples, ", ")))
	}
}

// describeWarning returns a human-readable description and the action taken
func describeWarning(warningType string) (description, action string) {
	switch warningType {
	case WarningNoArrivalTime:
		return "stop time updates with no predicted arrival", "Ignoring the prediction"
	case WarningTripNotInStatic:
		return "realtime trips not found in static GTFS", "Building arrivals without schedule comparison"
	case WarningNoStaticTime:
		return "realtime stops with no static time", "Building arrivals without delay text"
	case WarningNoScheduledTrip:
		return "combos with no scheduled trip at the stop", "Showing Indisponible"
	case WarningComboFailed:
		return "combos that failed to build", "Showing Indisponible"
	case WarningCandidateFailed:
		return "stop time updates that failed to build", "Ignoring the prediction"
	case WarningVehicleMismatch:
		return "vehicles whose trip is not scheduled on their route", "Ignoring vehicle occupancy"
	case WarningUnmappedOccupied:
		return "occupancy values with no configured label", "Using unknown occupancy"
	case WarningNoHeader:
		return "alerts with no header text", "Using the default header"
	case WarningNoDescription:
		return "alerts with no description text", "Using the default description"
	case WarningExcludedRoute:
		return "alerts tagged with an excluded route and direction", "Removing the route from the alert"
	case WarningTooManyStops:
		return "monitored stops above the limit", "Dropping the extra stops"
	case WarningAlertEnded:
		return "alerts whose active periods all ended", "Dropping the alert"
	case WarningAlertOutOfScope:
		return "alerts matching no monitored route or stop", "Dropping the alert"
	case WarningDuplicateAlert:
		return "duplicate alerts", "Keeping the first occurrence"
	default:
		return "unknown issue", "Continuing with fallback behavior"
	}
}
