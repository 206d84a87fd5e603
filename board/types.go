package board

// Occupancy levels
const (
	OccupancyUnknown = "unknown"
)

// Arrival statuses
const (
	StatusNormal    = "normal"
	StatusCancelled = "cancelled"
	StatusScheduled = "scheduled"
)

// Sentinel arrival texts
const (
	TextCancelled   = "Annulé"
	TextUnavailable = "Indisponible"
	TripNA          = "N/A"
)

// Alert scopes
const (
	ScopeNetwork   = "network"
	ScopeRoute     = "route"
	ScopeStop      = "stop"
	ScopeMetroLine = "metro-line"
)

// Arrival markers
const (
	MarkerCancelled = "cancelled"
	MarkerRelocated = "relocated"
	MarkerMoved     = "moved"
)

// Position is a vehicle location.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ArrivalRecord is the next arrival of one monitored combo.
type ArrivalRecord struct {
	Route     string `json:"route_id"`
	TripID    string `json:"trip_id"`
	StopID    string `json:"stop_id"`
	Key       string `json:"key"`
	Direction string `json:"direction,omitempty"`
	Location  string `json:"location,omitempty"`

	// MinutesRemaining is set when the arrival has a computed countdown.
	MinutesRemaining *int   `json:"minutes_remaining"`
	ArrivalTime      string `json:"arrival_time,omitempty"`
	DisplayTime      string `json:"display_time"`
	Status           string `json:"status"`
	DelayText        string `json:"delayed_text,omitempty"`
	EarlyText        string `json:"early_text,omitempty"`
	AtStop           bool   `json:"at_stop"`

	Occupancy            string   `json:"occupancy"`
	WheelchairAccessible bool     `json:"wheelchair_accessible"`
	Markers              []string `json:"markers,omitempty"`

	VehiclePosition *Position `json:"vehicle_position,omitempty"`
	VehicleStatus   string    `json:"vehicle_status,omitempty"`
	DistanceMeters  *int      `json:"distance_m,omitempty"`
}

// Minutes returns the countdown, or -1 when there is none.
func (r ArrivalRecord) Minutes() int {
	if r.MinutesRemaining == nil {
		return -1
	}
	return *r.MinutesRemaining
}

// HasMarker reports whether m is already attached.
func (r ArrivalRecord) HasMarker(m string) bool {
	for _, have := range r.Markers {
		if have == m {
			return true
		}
	}
	return false
}

// AddMarker attaches m once.
func (r *ArrivalRecord) AddMarker(m string) {
	if !r.HasMarker(m) {
		r.Markers = append(r.Markers, m)
	}
}

// Unavailable returns the record shown when nothing is known for a combo.
func Unavailable(route, stop, key, direction, location string) ArrivalRecord {
	return ArrivalRecord{
		Route:       route,
		TripID:      TripNA,
		StopID:      stop,
		Key:         key,
		Direction:   direction,
		Location:    location,
		ArrivalTime: TextUnavailable,
		DisplayTime: TextUnavailable,
		Status:      StatusScheduled,
		Occupancy:   OccupancyUnknown,
	}
}

// AlertRecord is one banner alert.
type AlertRecord struct {
	Header      string   `json:"header"`
	Description string   `json:"description"`
	Scope       string   `json:"scope"`
	Routes      []string `json:"routes,omitempty"`
	Stops       []string `json:"stops,omitempty"`
	StopLabels  []string `json:"stop_labels,omitempty"`
	Markers     []string `json:"markers,omitempty"`
	Effect      string   `json:"effect,omitempty"`
	Cause       string   `json:"cause,omitempty"`
	Severity    string   `json:"severity,omitempty"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// MetroLine is the status of one metro line.
type MetroLine struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Status  string `json:"status"`
	Normal  bool   `json:"is_normal"`
	Message string `json:"message,omitempty"`
}

// Board is everything the display shows for one poll.
type Board struct {
	GeneratedAt  int64                      `json:"generated_at"`
	Arrivals     map[string][]ArrivalRecord `json:"arrivals"`
	FeedOrder    []string                   `json:"-"`
	Alerts       []AlertRecord              `json:"alerts"`
	MetroLines   []MetroLine                `json:"metro_lines"`
	WeatherAlert bool                       `json:"weather_alert"`
}

// New returns an empty board.
func New(generatedAt int64) *Board {
	return &Board{
		GeneratedAt: generatedAt,
		Arrivals:    map[string][]ArrivalRecord{},
		Alerts:      []AlertRecord{},
		MetroLines:  []MetroLine{},
	}
}

// AllArrivals returns the arrivals of every feed in feed order.
func (b *Board) AllArrivals() []ArrivalRecord {
	var out []ArrivalRecord
	for _, name := range b.FeedOrder {
		out = append(out, b.Arrivals[name]...)
	}
	return out
}
