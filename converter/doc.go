// Package converter turns one agency's static schedule and realtime feeds into
// the records shown on the display.
//
// Two engines live here:
//
//   - Arrival reconciliation. BuildArrivals merges live trip updates with the
//     schedule (bus network); BuildScheduledArrivals walks the schedule and
//     applies live delays (commuter rail). Both return exactly one record per
//     monitored combo, in combo order.
//   - Alert correlation. A Correlator keeps the alerts that concern the
//     network or a monitored route or stop; BuildMetroStatus derives the
//     metro line statuses; AnnotateArrivals copies alert markers onto the
//     arrivals they concern.
//
// # Usage
//
//	idx, _ := gtfs.LoadCached(gtfs.PathsFromDir(feed.GTFS.Dir), feed.GTFS.CachePath, logger)
//	conv := converter.NewConverter(idx, converter.OptionsFromConfig(feed, cfg.Location(), logger))
//	arrivals := conv.Build(time.Now(), agencyFeed.Realtime(ctx))
//
//	corr := converter.NewCorrelator(converter.AlertOptionsFromConfig(feed, cfg, logger))
//	alerts := corr.Correlate(time.Now(), agencyFeed.Alerts(ctx))
//	converter.AnnotateArrivals(arrivals, alerts)
//
// # Warnings
//
// Data problems never fail a build. They are counted per kind by a
// WarningAggregator and flushed as one log line per kind after each build.
//
// # Thread Safety
//
// A Converter or Correlator may be shared between goroutines; the schedule
// index is read-only and the warning aggregator is locked.
package converter
