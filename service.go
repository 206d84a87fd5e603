package etsignage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Retexc/ETSignage/board"
	"github.com/Retexc/ETSignage/config"
	"github.com/Retexc/ETSignage/converter"
	"github.com/Retexc/ETSignage/gtfsrt"
	"github.com/Retexc/ETSignage/internal/logging"
	"github.com/Retexc/ETSignage/tracking"
	"github.com/Retexc/ETSignage/utils"
	"github.com/Retexc/ETSignage/weather"
)

// RealtimeSource is the realtime side of one agency. Both accessors degrade to
// empty results instead of failing.
type RealtimeSource interface {
	Name() string
	Realtime(ctx context.Context) gtfsrt.Realtime
	Alerts(ctx context.Context) []gtfsrt.Alert
}

// AdvisorySource raises a network-wide advisory, or returns nil.
type AdvisorySource interface {
	Advisory(ctx context.Context) (*board.AlertRecord, error)
}

// BoardPublisher pushes changed boards to displays.
type BoardPublisher interface {
	PublishBoard(b *board.Board) error
}

// SnapshotMetrics receives the outcome of every board.
type SnapshotMetrics interface {
	ObserveSnapshot(d time.Duration, generatedAt int64)
	SetArrivals(feed string, byStatus map[string]int)
	SetAlerts(n int, weather bool)
}

// Options configures a Service. Every field is optional.
type Options struct {
	Clock  utils.Clock
	Logger *slog.Logger

	// MetroFeed names the pipeline whose alerts drive the metro line status.
	MetroFeed  string
	MetroLines []config.MetroLine
	Locale     string

	Weather   AdvisorySource
	Publisher BoardPublisher
	Metrics   SnapshotMetrics
}

// Service builds display boards. It is safe for concurrent use.
type Service struct {
	feeds   []FeedPipeline
	opts    Options
	clock   utils.Clock
	logger  *slog.Logger
	tracker *tracking.Tracker
}

// NewService creates a service over the given feed pipelines, in display order.
func NewService(feeds []FeedPipeline, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Service{
		feeds:   feeds,
		opts:    opts,
		clock:   clock,
		logger:  logging.OrDefault(opts.Logger),
		tracker: tracking.NewTracker(),
	}
}

// Tracker exposes the snapshot history.
func (s *Service) Tracker() *tracking.Tracker { return s.tracker }

type feedResult struct {
	rt     gtfsrt.Realtime
	alerts []gtfsrt.Alert
}

// Snapshot fetches every feed concurrently, reconciles arrivals, correlates
// alerts and returns the tracked snapshot. Upstream failures degrade the board
// rather than failing it; only a cancelled context is returned as an error.
func (s *Service) Snapshot(ctx context.Context) (*tracking.Snapshot, error) {
	start := time.Now()

	results := make([]feedResult, len(s.feeds))
	var advisory *board.AlertRecord

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range s.feeds {
		g.Go(func() error {
			results[i].rt = f.Source.Realtime(gctx)
			return nil
		})
		g.Go(func() error {
			results[i].alerts = f.Source.Alerts(gctx)
			return nil
		})
	}
	if s.opts.Weather != nil {
		g.Go(func() error {
			advisory = s.advisory(gctx)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	b := board.New(now.Unix())
	for i, f := range s.feeds {
		name := f.Source.Name()
		b.FeedOrder = append(b.FeedOrder, name)

		arrivals := f.Converter.Build(now, results[i].rt)
		banner := f.Correlator.Correlate(now, results[i].alerts)
		if n := converter.AnnotateArrivals(arrivals, banner); n > 0 {
			s.logger.Debug("Arrivals marked by alerts", slog.String("feed", name), slog.Int("markers", n))
		}

		b.Arrivals[name] = arrivals
		b.Alerts = append(b.Alerts, banner...)

		if name == s.opts.MetroFeed && len(s.opts.MetroLines) > 0 {
			b.MetroLines = converter.BuildMetroStatus(s.opts.MetroLines, results[i].alerts, s.opts.Locale)
			b.Alerts = append(b.Alerts, converter.MetroAlerts(b.MetroLines, name)...)
		}
	}
	if advisory != nil {
		b.Alerts = append(b.Alerts, *advisory)
		b.WeatherAlert = true
	}

	snap := s.tracker.Observe(b)
	if snap.Board == b {
		s.record(b, time.Since(start))
		if snap.Changed {
			s.publish(b)
		}
	}
	return snap, nil
}

// Run builds a board every interval until ctx is done. Boards are published
// only when their content changed.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Snapshot(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.LogWarn(s.logger, "Snapshot failed", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) advisory(ctx context.Context) *board.AlertRecord {
	a, err := s.opts.Weather.Advisory(ctx)
	switch {
	case errors.Is(err, weather.ErrNoAPIKey):
		s.logger.Debug("Weather advisory skipped", slog.String("reason", err.Error()))
		return nil
	case err != nil:
		logging.LogWarn(s.logger, "Weather advisory unavailable", err)
		return nil
	}
	return a
}

func (s *Service) publish(b *board.Board) {
	if s.opts.Publisher == nil {
		return
	}
	if err := s.opts.Publisher.PublishBoard(b); err != nil {
		logging.LogError(s.logger, "Failed to publish board", err,
			slog.Int64("generated_at", b.GeneratedAt))
	}
}

func (s *Service) record(b *board.Board, d time.Duration) {
	logging.LogOperation(s.logger, "Board built",
		slog.Int64("generated_at", b.GeneratedAt),
		slog.Int("alerts", len(b.Alerts)),
		slog.Bool("weather_alert", b.WeatherAlert),
		slog.Duration("duration", d))

	m := s.opts.Metrics
	if m == nil {
		return
	}
	m.ObserveSnapshot(d, b.GeneratedAt)
	m.SetAlerts(len(b.Alerts), b.WeatherAlert)
	for _, name := range b.FeedOrder {
		byStatus := map[string]int{}
		for _, r := range b.Arrivals[name] {
			status := r.Status
			if r.ArrivalTime == board.TextUnavailable {
				status = "unavailable"
			}
			byStatus[status]++
		}
		m.SetArrivals(name, byStatus)
	}
}
