package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are tried in order when Load is given an empty path.
var DefaultPaths = []string{"config.yml", "./config/config.yml"}

// Load reads, defaults and validates the application configuration.
func Load(path string) (*AppConfig, error) {
	paths := DefaultPaths
	if path != "" {
		paths = []string{path}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("validate config: timezone %q: %w", cfg.Timezone, err)
	}
	seen := map[string]bool{}
	for _, f := range cfg.Feeds {
		if seen[f.Name] {
			return nil, fmt.Errorf("validate config: duplicate feed name %q", f.Name)
		}
		seen[f.Name] = true
	}
	return &cfg, nil
}

// LoadEnv loads .env style files into the process environment. Missing files
// are ignored; the first malformed file is reported.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env %s: %w", f, err)
		}
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "America/Montreal"
	}
	if cfg.Locale == "" {
		cfg.Locale = "fr"
	}
	for i := range cfg.Feeds {
		f := &cfg.Feeds[i]
		if f.Mode == "" {
			f.Mode = ModeLive
		}
		if f.GTFSRT.AlertsFormat == "" {
			f.GTFSRT.AlertsFormat = AlertsProtobuf
		}
		if f.GTFSRT.TimeoutMS == 0 {
			f.GTFSRT.TimeoutMS = 10000
		}
		if f.GTFSRT.AlertsCacheTTLSeconds == 0 {
			f.GTFSRT.AlertsCacheTTLSeconds = 30
		}
		if f.GTFSRT.APIKeyEnv != "" && f.GTFSRT.APIKeyHeader == "" {
			f.GTFSRT.APIKeyHeader = "apiKey"
		}
		if len(f.Occupancy) == 0 {
			f.Occupancy = DefaultOccupancy()
		}
	}
	if cfg.Metro.Feed != "" && len(cfg.Metro.Lines) == 0 {
		cfg.Metro.Lines = DefaultMetroLines()
	}
	if len(cfg.Markers.Cancelled)+len(cfg.Markers.Relocated)+len(cfg.Markers.Moved) == 0 {
		cfg.Markers = DefaultMarkers()
	}
	if cfg.Weather.CacheTTLSeconds == 0 {
		cfg.Weather.CacheTTLSeconds = 300
	}
	if cfg.Weather.TimeoutMS == 0 {
		cfg.Weather.TimeoutMS = 5000
	}
	if cfg.Weather.City == "" {
		cfg.Weather.City = "Montreal"
	}
	if cfg.Weather.URL == "" {
		cfg.Weather.URL = "https://api.weatherapi.com/v1/current.json"
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "signage.board"
	}
	if cfg.NATS.PollSeconds == 0 {
		cfg.NATS.PollSeconds = 30
	}
}

// DefaultOccupancy maps GTFS-RT OccupancyStatus values to display levels.
func DefaultOccupancy() map[int32]string {
	return map[int32]string{
		1: "many_seats_available",
		2: "few_seats_available",
		3: "standing_room_only",
		4: "full",
	}
}

// DefaultMetroLines returns the four Montréal metro lines.
func DefaultMetroLines() []MetroLine {
	return []MetroLine{
		{ID: "1", Name: "Ligne 1", Color: "Verte"},
		{ID: "2", Name: "Ligne 2", Color: "Orange"},
		{ID: "4", Name: "Ligne 4", Color: "Jaune"},
		{ID: "5", Name: "Ligne 5", Color: "Bleue"},
	}
}

// DefaultMarkers returns the French description keywords per marker.
func DefaultMarkers() MarkerConfig {
	return MarkerConfig{
		Cancelled: []string{"annul"},
		Relocated: []string{"relocalis"},
		Moved:     []string{"déplac", "deplac"},
	}
}

// FeedByName returns the feed with the given name.
func (c *AppConfig) FeedByName(name string) (Feed, bool) {
	for _, f := range c.Feeds {
		if f.Name == name {
			return f, true
		}
	}
	return Feed{}, false
}

// Location resolves the configured timezone.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// APIKey reads the feed API key from the environment.
func (f Feed) APIKey() string {
	if f.GTFSRT.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(f.GTFSRT.APIKeyEnv)
}

// Timeout returns the per-request upstream timeout.
func (f Feed) Timeout() time.Duration {
	return time.Duration(f.GTFSRT.TimeoutMS) * time.Millisecond
}
