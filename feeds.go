package etsignage

import (
	"fmt"
	"log/slog"

	"github.com/Retexc/ETSignage/config"
	"github.com/Retexc/ETSignage/converter"
	"github.com/Retexc/ETSignage/gtfs"
	"github.com/Retexc/ETSignage/gtfsrt"
	"github.com/Retexc/ETSignage/internal/logging"
	"github.com/Retexc/ETSignage/utils"
)

// FeedPipeline is everything the service needs to turn one agency's feeds
// into arrivals and banner alerts.
type FeedPipeline struct {
	Source     RealtimeSource
	Converter  *converter.Converter
	Correlator *converter.Correlator
}

// NewFeedPipelines loads the static schedule of every configured feed and
// builds its realtime client, converter and correlator. A missing required
// schedule table aborts with gtfs.ErrMissingRequiredFile.
func NewFeedPipelines(cfg *config.AppConfig, clock utils.Clock, m gtfsrt.FeedMetrics, logger *slog.Logger) ([]FeedPipeline, error) {
	logger = logging.OrDefault(logger)
	loc := cfg.Location()

	pipelines := make([]FeedPipeline, 0, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		flog := logger.With(slog.String("feed", fc.Name))

		idx, err := gtfs.LoadCached(gtfs.PathsFromDir(fc.GTFS.Dir), fc.GTFS.CachePath, flog)
		if err != nil {
			return nil, fmt.Errorf("failed to load schedule for feed %s: %w", fc.Name, err)
		}
		flog.Info("Schedule loaded", statsAttrs(idx.Stats())...)

		pipelines = append(pipelines, FeedPipeline{
			Source:     gtfsrt.NewAgencyFeed(fc, clock, logger, m),
			Converter:  converter.NewConverter(idx, converter.OptionsFromConfig(fc, loc, logger)),
			Correlator: converter.NewCorrelator(converter.AlertOptionsFromConfig(fc, cfg, logger)),
		})
	}
	return pipelines, nil
}

func statsAttrs(stats map[string]int) []any {
	attrs := make([]any, 0, len(stats))
	for k, v := range stats {
		attrs = append(attrs, slog.Int(k, v))
	}
	return attrs
}
