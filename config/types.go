package config

// Feed modes
const (
	// ModeLive reconciles live trip updates against the schedule (bus network).
	ModeLive = "live"
	// ModeSchedule walks the schedule and applies live delays (commuter rail).
	ModeSchedule = "schedule"
)

// Alert payload formats
const (
	AlertsJSON     = "json"
	AlertsProtobuf = "protobuf"
)

// ServerConfig contains server configuration
type ServerConfig struct {
	Port           int  `yaml:"port" validate:"gt=0"`
	MetricsEnabled bool `yaml:"metricsEnabled"`
}

// LoggingConfig selects the log level
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// Combo is one monitored (route, stop) pair shown on the display.
type Combo struct {
	Route     string `yaml:"route" validate:"required"`
	Stop      string `yaml:"stop" validate:"required"`
	Key       string `yaml:"key" validate:"required"`
	Direction string `yaml:"direction"`
	Location  string `yaml:"location"`
}

// RouteDirection identifies an upstream (route, direction) tagging to ignore.
type RouteDirection struct {
	Route     string `yaml:"route" validate:"required"`
	Direction string `yaml:"direction" validate:"required"`
}

// GTFSConfig contains GTFS static feed configuration
type GTFSConfig struct {
	Dir       string `yaml:"dir" validate:"required"`
	CachePath string `yaml:"cachePath"`
}

// GTFSRTConfig contains GTFS-Realtime feed configuration. URLs may also be
// local file paths.
type GTFSRTConfig struct {
	TripUpdatesURL        string `yaml:"tripUpdatesURL"`
	VehiclePositionsURL   string `yaml:"vehiclePositionsURL"`
	ServiceAlertsURL      string `yaml:"serviceAlertsURL"`
	AlertsFormat          string `yaml:"alertsFormat" validate:"omitempty,oneof=json protobuf"`
	APIKeyEnv             string `yaml:"apiKeyEnv"`
	APIKeyHeader          string `yaml:"apiKeyHeader"`
	TimeoutMS             int    `yaml:"timeoutMS" validate:"gte=0"`
	FeedCacheTTLSeconds   int    `yaml:"feedCacheTTLSeconds" validate:"gte=0"`
	AlertsCacheTTLSeconds int    `yaml:"alertsCacheTTLSeconds" validate:"gte=0"`
}

// AlertsConfig drives alert correlation for one feed
type AlertsConfig struct {
	// NetworkMarker is the agency_id that makes an alert network-wide.
	NetworkMarker string `yaml:"networkMarker"`
	// HeaderPrefix is prepended to route and stop alert headers.
	HeaderPrefix string `yaml:"headerPrefix"`
	// Stops are extra monitored stops on top of the combo stops.
	Stops      []string          `yaml:"stops"`
	StopLabels map[string]string `yaml:"stopLabels"`
	Exclusions []RouteDirection  `yaml:"exclusions" validate:"dive"`
}

// Feed represents one agency: its static schedule, realtime endpoints and
// monitored combos.
type Feed struct {
	Name            string           `yaml:"name" validate:"required"`
	Mode            string           `yaml:"mode" validate:"required,oneof=live schedule"`
	GTFS            GTFSConfig       `yaml:"gtfs" validate:"required"`
	GTFSRT          GTFSRTConfig     `yaml:"gtfsrt"`
	TripIDSeparator string           `yaml:"tripIDSeparator"`
	Occupancy       map[int32]string `yaml:"occupancy" validate:"omitempty,dive,oneof=empty many_seats_available few_seats_available standing_room_only crushed_standing_room_only full not_accepting_passengers unknown"`
	Combos          []Combo          `yaml:"combos" validate:"required,min=1,dive"`
	Alerts          AlertsConfig     `yaml:"alerts"`
}

// MetroLine is one fixed metro line tracked for status
type MetroLine struct {
	ID    string `yaml:"id" validate:"required"`
	Name  string `yaml:"name" validate:"required"`
	Color string `yaml:"color"`
}

// MetroConfig names the feed whose alerts carry metro line status
type MetroConfig struct {
	Feed  string      `yaml:"feed"`
	Lines []MetroLine `yaml:"lines" validate:"max=4,dive"`
}

// MarkerConfig lists description keywords per arrival marker
type MarkerConfig struct {
	Cancelled []string `yaml:"cancelled"`
	Relocated []string `yaml:"relocated"`
	Moved     []string `yaml:"moved"`
}

// WeatherConfig configures the weather advisory provider
type WeatherConfig struct {
	Enabled         bool   `yaml:"enabled"`
	URL             string `yaml:"url" validate:"omitempty,url"`
	City            string `yaml:"city"`
	APIKeyEnv       string `yaml:"apiKeyEnv"`
	CacheTTLSeconds int    `yaml:"cacheTTLSeconds" validate:"gte=0"`
	BadCodes        []int  `yaml:"badCodes"`
	TimeoutMS       int    `yaml:"timeoutMS" validate:"gte=0"`
}

// NATSConfig configures the optional board publisher
type NATSConfig struct {
	URLEnv  string `yaml:"urlEnv"`
	Subject string `yaml:"subject"`
	// PollSeconds is the interval between boards built for publishing.
	PollSeconds int `yaml:"pollSeconds" validate:"gte=0"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server   ServerConfig  `yaml:"server" validate:"required"`
	Logging  LoggingConfig `yaml:"logging"`
	Timezone string        `yaml:"timezone" validate:"required"`
	Locale   string        `yaml:"locale"`
	Feeds    []Feed        `yaml:"feeds" validate:"required,min=1,dive"`
	Metro    MetroConfig   `yaml:"metro"`
	Markers  MarkerConfig  `yaml:"markers"`
	Weather  WeatherConfig `yaml:"weather"`
	NATS     NATSConfig    `yaml:"nats"`
}
