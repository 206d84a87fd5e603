package gtfsrt

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Retexc/ETSignage/config"
	"github.com/Retexc/ETSignage/internal/logging"
	"github.com/Retexc/ETSignage/utils"
)

// Feed kinds used in logs and metrics
const (
	KindTripUpdates = "trip_updates"
	KindVehicles    = "vehicle_positions"
	KindAlerts      = "alerts"
)

// FeedMetrics receives fetch and cache outcomes.
type FeedMetrics interface {
	CacheMetrics
	ObserveFetch(feed, kind string, d time.Duration, err error)
}

// Realtime is the trip updates and vehicles of one poll.
type Realtime struct {
	TripUpdates []TripUpdate
	Vehicles    VehicleSnapshot
}

// AgencyFeed is the realtime side of one agency. Every accessor degrades to
// an empty collection on failure and logs why; callers treat empty as "no
// data".
type AgencyFeed struct {
	cfg     config.Feed
	client  *Client
	logger  *slog.Logger
	metrics FeedMetrics

	realtime *Cell[Realtime]
	alerts   *Cell[[]Alert]
}

// NewAgencyFeed builds the feed client of cfg. clock drives the TTL cells.
func NewAgencyFeed(cfg config.Feed, clock utils.Clock, logger *slog.Logger, m FeedMetrics) *AgencyFeed {
	logger = logging.OrDefault(logger).With(slog.String("feed", cfg.Name))
	headers := map[string]string{}
	if key := cfg.APIKey(); key != "" && cfg.GTFSRT.APIKeyHeader != "" {
		headers[cfg.GTFSRT.APIKeyHeader] = key
	}
	return &AgencyFeed{
		cfg:     cfg,
		client:  NewClient(headers, cfg.Timeout()),
		logger:  logger,
		metrics: m,
		realtime: NewCell[Realtime](cfg.Name+".realtime",
			time.Duration(cfg.GTFSRT.FeedCacheTTLSeconds)*time.Second, clock, logger, m),
		alerts: NewCell[[]Alert](cfg.Name+"."+KindAlerts,
			time.Duration(cfg.GTFSRT.AlertsCacheTTLSeconds)*time.Second, clock, logger, m),
	}
}

// WithClient replaces the fetch client.
func (f *AgencyFeed) WithClient(c *Client) *AgencyFeed {
	f.client = c
	return f
}

// Name returns the configured feed name.
func (f *AgencyFeed) Name() string { return f.cfg.Name }

// Config returns the feed configuration.
func (f *AgencyFeed) Config() config.Feed { return f.cfg }

// TripUpdates fetches and decodes the trip updates feed, uncached.
func (f *AgencyFeed) TripUpdates(ctx context.Context) []TripUpdate {
	tus, err := f.fetchTripUpdates(ctx)
	if err != nil {
		f.warn(KindTripUpdates, err)
		return []TripUpdate{}
	}
	return tus
}

// Vehicles fetches and decodes the vehicle positions feed, uncached.
func (f *AgencyFeed) Vehicles(ctx context.Context) VehicleSnapshot {
	snap, err := f.fetchVehicles(ctx)
	if err != nil {
		f.warn(KindVehicles, err)
		return VehicleSnapshot{}
	}
	return snap
}

// Realtime returns trip updates and vehicles. With a feed cache TTL both are
// fetched together and cached as one value, and a failure of either keeps the
// previous pair. Without one they are fetched concurrently and degrade
// independently.
func (f *AgencyFeed) Realtime(ctx context.Context) Realtime {
	if f.realtime.Disabled() {
		var rt Realtime
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			rt.TripUpdates = f.TripUpdates(gctx)
			return nil
		})
		g.Go(func() error {
			rt.Vehicles = f.Vehicles(gctx)
			return nil
		})
		_ = g.Wait()
		return rt
	}

	rt, err := f.realtime.Get(ctx, f.fetchRealtime)
	if err != nil {
		f.warn(KindTripUpdates, err)
		return Realtime{TripUpdates: []TripUpdate{}, Vehicles: VehicleSnapshot{}}
	}
	return rt
}

// Alerts returns the normalized alerts, cached for the alerts TTL.
func (f *AgencyFeed) Alerts(ctx context.Context) []Alert {
	alerts, err := f.alerts.Get(ctx, f.fetchAlerts)
	if err != nil {
		f.warn(KindAlerts, err)
		return []Alert{}
	}
	return alerts
}

func (f *AgencyFeed) fetchRealtime(ctx context.Context) (Realtime, error) {
	var rt Realtime
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tus, err := f.fetchTripUpdates(gctx)
		rt.TripUpdates = tus
		return err
	})
	g.Go(func() error {
		snap, err := f.fetchVehicles(gctx)
		rt.Vehicles = snap
		return err
	})
	if err := g.Wait(); err != nil {
		return Realtime{}, err
	}
	return rt, nil
}

func (f *AgencyFeed) fetchTripUpdates(ctx context.Context) ([]TripUpdate, error) {
	data, err := f.fetch(ctx, KindTripUpdates, f.cfg.GTFSRT.TripUpdatesURL)
	if err != nil || data == nil {
		return []TripUpdate{}, err
	}
	fm, err := DecodeFeed(data)
	if err != nil {
		return []TripUpdate{}, err
	}
	return TripUpdatesFromFeed(fm, f.cfg.TripIDSeparator), nil
}

func (f *AgencyFeed) fetchVehicles(ctx context.Context) (VehicleSnapshot, error) {
	data, err := f.fetch(ctx, KindVehicles, f.cfg.GTFSRT.VehiclePositionsURL)
	if err != nil || data == nil {
		return VehicleSnapshot{}, err
	}
	fm, err := DecodeFeed(data)
	if err != nil {
		return VehicleSnapshot{}, err
	}
	return VehiclesFromFeed(fm, f.cfg.TripIDSeparator), nil
}

func (f *AgencyFeed) fetchAlerts(ctx context.Context) ([]Alert, error) {
	data, err := f.fetch(ctx, KindAlerts, f.cfg.GTFSRT.ServiceAlertsURL)
	if err != nil || data == nil {
		return []Alert{}, err
	}
	if f.cfg.GTFSRT.AlertsFormat == config.AlertsJSON {
		return NormalizeAlerts(data)
	}
	fm, err := DecodeFeed(data)
	if err != nil {
		return []Alert{}, err
	}
	return AlertsFromFeed(fm), nil
}

func (f *AgencyFeed) fetch(ctx context.Context, kind, target string) ([]byte, error) {
	if target == "" {
		return nil, nil
	}
	start := time.Now()
	data, err := f.client.Fetch(ctx, target)
	if f.metrics != nil {
		f.metrics.ObserveFetch(f.cfg.Name, kind, time.Since(start), err)
	}
	return data, err
}

func (f *AgencyFeed) warn(kind string, err error) {
	logging.LogWarn(f.logger, "realtime feed unavailable", err, slog.String("kind", kind))
}
