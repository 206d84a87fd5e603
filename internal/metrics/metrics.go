package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the service metrics. It satisfies
// gtfsrt.FeedMetrics and publisher.PublisherMetrics.
type Collector struct {
	reg *prometheus.Registry

	FetchDuration *prometheus.HistogramVec // feed, kind
	FetchErrors   *prometheus.CounterVec   // feed, kind
	CacheResults  *prometheus.CounterVec   // cell, result: hit|miss|stale

	SnapshotDuration prometheus.Histogram
	Arrivals         *prometheus.GaugeVec // feed, status
	Alerts           prometheus.Gauge
	WeatherAlert     prometheus.Gauge
	LastSnapshot     prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

// NewCollector creates and registers every metric
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signage_feed_fetch_duration_seconds",
			Help:    "Duration of upstream realtime feed fetches.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"feed", "kind"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signage_feed_fetch_errors_total",
			Help: "Total failed upstream realtime feed fetches.",
		}, []string{"feed", "kind"}),
		CacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signage_cache_results_total",
			Help: "Feed cache lookups by outcome.",
		}, []string{"cell", "result"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signage_snapshot_duration_seconds",
			Help:    "Duration to fetch, reconcile and correlate one board.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		Arrivals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signage_arrivals",
			Help: "Arrival records on the latest board by status.",
		}, []string{"feed", "status"}),
		Alerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signage_alerts",
			Help: "Banner alerts on the latest board.",
		}),
		WeatherAlert: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signage_weather_alert",
			Help: "1 if the latest board carries a weather advisory.",
		}),
		LastSnapshot: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signage_last_snapshot_timestamp_seconds",
			Help: "Generation time of the latest board.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signage_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signage_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signage_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signage_publish_duration_seconds",
			Help:    "Duration to marshal and publish a board.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.FetchDuration, c.FetchErrors, c.CacheResults,
		c.SnapshotDuration, c.Arrivals, c.Alerts, c.WeatherAlert, c.LastSnapshot,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Registry exposes the registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) CacheHit(cell string)   { c.CacheResults.WithLabelValues(cell, "hit").Inc() }
func (c *Collector) CacheMiss(cell string)  { c.CacheResults.WithLabelValues(cell, "miss").Inc() }
func (c *Collector) CacheStale(cell string) { c.CacheResults.WithLabelValues(cell, "stale").Inc() }

// ObserveFetch records one upstream fetch.
func (c *Collector) ObserveFetch(feed, kind string, d time.Duration, err error) {
	c.FetchDuration.WithLabelValues(feed, kind).Observe(d.Seconds())
	if err != nil {
		c.FetchErrors.WithLabelValues(feed, kind).Inc()
	}
}

// ObserveSnapshot records the duration and generation time of a board.
func (c *Collector) ObserveSnapshot(d time.Duration, generatedAt int64) {
	c.SnapshotDuration.Observe(d.Seconds())
	c.LastSnapshot.Set(float64(generatedAt))
}

// SetArrivals replaces the per-status arrival counts of feed.
func (c *Collector) SetArrivals(feed string, byStatus map[string]int) {
	c.Arrivals.DeletePartialMatch(prometheus.Labels{"feed": feed})
	for status, n := range byStatus {
		c.Arrivals.WithLabelValues(feed, status).Set(float64(n))
	}
}

// SetAlerts records the banner alert count and the weather flag.
func (c *Collector) SetAlerts(n int, weather bool) {
	c.Alerts.Set(float64(n))
	if weather {
		c.WeatherAlert.Set(1)
	} else {
		c.WeatherAlert.Set(0)
	}
}

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
