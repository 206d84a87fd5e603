package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/bluele/gcache"

	"github.com/Retexc/ETSignage/board"
	"github.com/Retexc/ETSignage/config"
	"github.com/Retexc/ETSignage/internal/logging"
)

// ErrNoAPIKey is returned by Advisory when the provider is enabled but its
// API key variable is empty.
var ErrNoAPIKey = errors.New("weather API key not set")

// Advisory texts
const (
	AdvisoryHeader      = "🚨 Avertissement météorologique"
	AdvisoryDescription = "Retards possibles en raison des conditions météo. Vérifiez l’horaire avant de partir."
	AdvisorySeverity    = "weather_alert"
	AdvisorySource      = "weather"
)

// DefaultBadCodes are the WeatherAPI.com condition codes that slow buses and
// trains: thunder, freezing precipitation, heavy rain, sleet, snow and ice.
func DefaultBadCodes() []int {
	return []int{
		1087, 1114, 1117, 1147, 1168, 1171, 1186, 1189, 1192, 1195,
		1198, 1201, 1204, 1207, 1216, 1219, 1222, 1225, 1237, 1243,
		1246, 1252, 1258, 1264, 1276, 1282,
	}
}

// Condition is the current weather condition reported upstream.
type Condition struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

type currentResponse struct {
	Current struct {
		Condition Condition `json:"condition"`
	} `json:"current"`
}

// Provider turns current weather conditions into a network advisory.
// Conditions are cached per city for the configured TTL.
type Provider struct {
	cfg        config.WeatherConfig
	apiKey     string
	bad        map[int]bool
	httpClient *http.Client
	cache      gcache.Cache
	logger     *slog.Logger
}

// NewProvider creates a provider reading its key from cfg.APIKeyEnv. A nil
// clock uses the wall clock.
func NewProvider(cfg config.WeatherConfig, clock gcache.Clock, logger *slog.Logger) *Provider {
	codes := cfg.BadCodes
	if len(codes) == 0 {
		codes = DefaultBadCodes()
	}
	bad := make(map[int]bool, len(codes))
	for _, c := range codes {
		bad[c] = true
	}
	if clock == nil {
		clock = gcache.NewRealClock()
	}
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	p := &Provider{
		cfg:        cfg,
		bad:        bad,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		cache:      gcache.New(8).LRU().Expiration(ttl).Clock(clock).Build(),
		logger:     logging.OrDefault(logger),
	}
	if cfg.APIKeyEnv != "" {
		p.apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	return p
}

// WithHTTPClient replaces the underlying http.Client.
func (p *Provider) WithHTTPClient(hc *http.Client) *Provider {
	p.httpClient = hc
	return p
}

// WithAPIKey overrides the key read from the environment.
func (p *Provider) WithAPIKey(key string) *Provider {
	p.apiKey = key
	return p
}

// Advisory returns a network alert when the current condition is one of the
// bad codes, and nil otherwise. A disabled provider always returns nil.
func (p *Provider) Advisory(ctx context.Context) (*board.AlertRecord, error) {
	if !p.cfg.Enabled {
		return nil, nil
	}
	if p.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	cond, err := p.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !p.bad[cond.Code] {
		return nil, nil
	}
	p.logger.Info("Weather advisory raised",
		slog.Int("code", cond.Code),
		slog.String("condition", cond.Text))
	return &board.AlertRecord{
		Header:      AdvisoryHeader,
		Description: AdvisoryDescription,
		Scope:       board.ScopeNetwork,
		Severity:    AdvisorySeverity,
		Source:      AdvisorySource,
	}, nil
}

// Current returns the current condition of the configured city.
func (p *Provider) Current(ctx context.Context) (Condition, error) {
	if v, err := p.cache.Get(p.cfg.City); err == nil {
		if cond, ok := v.(Condition); ok {
			return cond, nil
		}
	}
	cond, err := p.fetch(ctx)
	if err != nil {
		return Condition{}, err
	}
	if err := p.cache.Set(p.cfg.City, cond); err != nil {
		logging.LogWarn(p.logger, "Failed to cache weather condition", err)
	}
	return cond, nil
}

func (p *Provider) fetch(ctx context.Context) (Condition, error) {
	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return Condition{}, fmt.Errorf("invalid weather URL: %w", err)
	}
	q := u.Query()
	q.Set("key", p.apiKey)
	q.Set("q", p.cfg.City)
	q.Set("aqi", "no")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Condition{}, fmt.Errorf("failed to build weather request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		// the URL carries the key; report the city only
		return Condition{}, fmt.Errorf("failed to fetch weather for %s: %w", p.cfg.City, errors.Unwrap(err))
	}
	defer logging.SafeCloseWithLogging(resp.Body, p.logger, "close weather response")

	if resp.StatusCode != http.StatusOK {
		return Condition{}, fmt.Errorf("HTTP %d from weather provider", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Condition{}, fmt.Errorf("failed to read weather response: %w", err)
	}
	var cr currentResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return Condition{}, fmt.Errorf("failed to decode weather response: %w", err)
	}
	return cr.Current.Condition, nil
}
