package converter

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Retexc/ETSignage/board"
	"github.com/Retexc/ETSignage/config"
	"github.com/Retexc/ETSignage/gtfsrt"
	"github.com/Retexc/ETSignage/internal/logging"
	"github.com/Retexc/ETSignage/utils"
)

// EffectNoService is the GTFS-RT effect that cancels arrivals of a route.
const EffectNoService = "NO_SERVICE"

// AlertOptions configures alert correlation for one feed
type AlertOptions struct {
	Feed          string
	Locale        string
	NetworkMarker string
	HeaderPrefix  string
	// Routes and Stops are monitored. Stops beyond MaxMonitoredStops are
	// dropped.
	Routes     []string
	Stops      []string
	StopLabels map[string]string
	Exclusions []config.RouteDirection
	Markers    config.MarkerConfig
	Location   *time.Location
	Logger     *slog.Logger
}

// AlertOptionsFromConfig derives the monitored routes and stops from the
// feed's combos, followed by its extra alert stops.
func AlertOptionsFromConfig(feed config.Feed, app *config.AppConfig, logger *slog.Logger) AlertOptions {
	opts := AlertOptions{
		Feed:          feed.Name,
		Locale:        app.Locale,
		NetworkMarker: feed.Alerts.NetworkMarker,
		HeaderPrefix:  feed.Alerts.HeaderPrefix,
		StopLabels:    feed.Alerts.StopLabels,
		Exclusions:    feed.Alerts.Exclusions,
		Markers:       app.Markers,
		Location:      app.Location(),
		Logger:        logger,
	}
	for _, cb := range feed.Combos {
		opts.Routes = appendUnique(opts.Routes, cb.Route)
		opts.Stops = appendUnique(opts.Stops, cb.Stop)
	}
	for _, s := range feed.Alerts.Stops {
		opts.Stops = appendUnique(opts.Stops, s)
	}
	return opts
}

// Correlator filters a feed's alerts down to the ones that concern the
// monitored routes and stops, or the whole network.
type Correlator struct {
	opts     AlertOptions
	routes   map[string]bool
	stops    []string
	stopSet  map[string]bool
	logger   *slog.Logger
	warnings *WarningAggregator
}

// NewCorrelator creates a correlator. Monitored stops past MaxMonitoredStops
// are dropped with a warning.
func NewCorrelator(opts AlertOptions) *Correlator {
	if opts.Locale == "" {
		opts.Locale = "fr"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	c := &Correlator{
		opts:     opts,
		routes:   make(map[string]bool, len(opts.Routes)),
		stopSet:  make(map[string]bool, len(opts.Stops)),
		logger:   logging.OrDefault(opts.Logger).With(slog.String("feed", opts.Feed)),
		warnings: NewWarningAggregator(),
	}
	for _, r := range opts.Routes {
		c.routes[r] = true
	}
	for _, s := range opts.Stops {
		if c.stopSet[s] {
			continue
		}
		if len(c.stops) >= MaxMonitoredStops {
			c.warnings.Add(WarningTooManyStops, s)
			continue
		}
		c.stops = append(c.stops, s)
		c.stopSet[s] = true
	}
	c.warnings.LogAll(c.logger)
	return c
}

// MonitoredStops returns the stops the correlator watches.
func (c *Correlator) MonitoredStops() []string { return c.stops }

// Warnings returns the aggregator collecting this correlator's warnings.
func (c *Correlator) Warnings() *WarningAggregator { return c.warnings }

// Correlate keeps the alerts that are network-wide or that touch a monitored
// route or stop, and renders them as banner records. Alerts whose active
// periods have all ended are dropped. Duplicates by header and description
// are removed.
func (c *Correlator) Correlate(now time.Time, alerts []gtfsrt.Alert) []board.AlertRecord {
	out := make([]board.AlertRecord, 0)
	seen := make(map[[2]string]bool)
	for i, a := range alerts {
		rec, ok := c.correlate(now, a)
		if !ok {
			continue
		}
		k := [2]string{rec.Header, rec.Description}
		if seen[k] {
			c.warnings.Add(WarningDuplicateAlert, rec.Header)
			continue
		}
		seen[k] = true
		out = append(out, rec)
		c.logger.Debug("Alert kept", slog.Int("index", i), slog.String("scope", rec.Scope))
	}
	c.warnings.LogAll(c.logger)
	return out
}

func (c *Correlator) correlate(now time.Time, a gtfsrt.Alert) (board.AlertRecord, bool) {
	header := strings.TrimSpace(a.HeaderTexts.Resolve(c.opts.Locale))
	desc := utils.StripHTML(a.DescriptionTexts.Resolve(c.opts.Locale))

	if a.Ended(now.Unix()) {
		c.warnings.Add(WarningAlertEnded, header)
		return board.AlertRecord{}, false
	}

	rec := board.AlertRecord{
		Effect:   a.Effect,
		Cause:    a.Cause,
		Severity: severityForEffect(a.Effect),
		Source:   c.opts.Feed,
	}
	rec.StartDate, rec.EndDate = c.validity(a.ActivePeriods)

	if c.isNetwork(a) {
		rec.Scope = board.ScopeNetwork
		rec.Header = orDefault(header, DefaultNetworkHeader, c.warnings, WarningNoHeader)
		rec.Description = orDefault(desc, DefaultDescription, c.warnings, WarningNoDescription)
		rec.Markers = AlertMarkers(rec.Description, rec.Effect, c.opts.Markers)
		return rec, true
	}

	routes, stops, named := c.affected(a)
	matchedRoutes := make([]string, 0, len(routes))
	for _, r := range routes {
		if c.routes[r] {
			matchedRoutes = append(matchedRoutes, r)
		}
	}
	matchedStops := make([]string, 0)
	for _, s := range c.stops {
		if contains(stops, s) || (desc != "" && strings.Contains(desc, s)) {
			matchedStops = append(matchedStops, s)
		}
	}

	switch {
	case len(matchedRoutes) > 0 && len(matchedStops) > 0:
		rec.Scope = board.ScopeStop
	case len(matchedRoutes) > 0:
		rec.Scope = board.ScopeRoute
	case !named && len(matchedStops) > 0:
		rec.Scope = board.ScopeStop
	default:
		c.warnings.Add(WarningAlertOutOfScope, header)
		return board.AlertRecord{}, false
	}

	rec.Routes = matchedRoutes
	rec.Stops = matchedStops
	for _, s := range matchedStops {
		label := s
		if l, ok := c.opts.StopLabels[s]; ok && l != "" {
			label = l
		}
		rec.StopLabels = append(rec.StopLabels, label)
	}
	rec.Header = c.routeHeader(header)
	rec.Description = orDefault(desc, DefaultDescription, c.warnings, WarningNoDescription)
	rec.Markers = AlertMarkers(rec.Description, rec.Effect, c.opts.Markers)
	return rec, true
}

func (c *Correlator) isNetwork(a gtfsrt.Alert) bool {
	if c.opts.NetworkMarker == "" {
		return false
	}
	for _, e := range a.InformedEntities {
		if e.AgencyID == c.opts.NetworkMarker {
			return true
		}
	}
	return false
}

// affected returns the sorted routes and stops the alert names. Routes and
// directions are collected over every entity, and an excluded route is
// removed when its direction appears anywhere in the alert. named reports
// whether the alert named any route before exclusions.
func (c *Correlator) affected(a gtfsrt.Alert) (routes, stops []string, named bool) {
	var directions []string
	for _, e := range a.InformedEntities {
		if r := e.Route(); r != "" {
			routes = appendUnique(routes, r)
		}
		if d := strings.TrimSpace(e.DirectionID); d != "" {
			directions = appendUnique(directions, d)
		}
		if s := e.Stop(); s != "" {
			stops = appendUnique(stops, s)
		}
	}
	named = len(routes) > 0

	kept := routes[:0]
	for _, r := range routes {
		if d, ok := c.excluded(r, directions); ok {
			c.warnings.Add(WarningExcludedRoute, r+"/"+d)
			continue
		}
		kept = append(kept, r)
	}
	sort.Strings(kept)
	sort.Strings(stops)
	return kept, stops, named
}

func (c *Correlator) excluded(route string, directions []string) (string, bool) {
	for _, ex := range c.opts.Exclusions {
		if ex.Route != route {
			continue
		}
		for _, d := range directions {
			if strings.EqualFold(ex.Direction, d) {
				return d, true
			}
		}
	}
	return "", false
}

func (c *Correlator) routeHeader(header string) string {
	prefix := c.opts.HeaderPrefix
	switch {
	case header != "" && prefix != "":
		return prefix + ": " + header
	case header != "":
		return header
	case prefix != "":
		c.warnings.Add(WarningNoHeader, prefix)
		return prefix
	default:
		c.warnings.Add(WarningNoHeader, DefaultRouteHeader)
		return DefaultRouteHeader
	}
}

// validity returns the display dates of the earliest start and latest end.
func (c *Correlator) validity(periods []gtfsrt.ActivePeriod) (start, end string) {
	var first, last int64
	for _, p := range periods {
		if p.Start > 0 && (first == 0 || p.Start < first) {
			first = p.Start
		}
		if p.End > 0 && p.End > last {
			last = p.End
		}
	}
	if first > 0 {
		start = utils.DisplayDateFromUnixSeconds(first, c.opts.Location)
	}
	if last > 0 {
		end = utils.DisplayDateFromUnixSeconds(last, c.opts.Location)
	}
	return start, end
}

// AlertMarkers returns the arrival markers an alert implies: one per marker
// whose keywords appear in the description, plus cancelled for NO_SERVICE.
func AlertMarkers(description, effect string, cfg config.MarkerConfig) []string {
	lower := strings.ToLower(description)
	var out []string
	if effect == EffectNoService || containsAny(lower, cfg.Cancelled) {
		out = append(out, board.MarkerCancelled)
	}
	if containsAny(lower, cfg.Relocated) {
		out = append(out, board.MarkerRelocated)
	}
	if containsAny(lower, cfg.Moved) {
		out = append(out, board.MarkerMoved)
	}
	return out
}

// severityForEffect maps a GTFS-RT effect to a display severity.
func severityForEffect(effect string) string {
	switch effect {
	case "NO_SERVICE":
		return "noService"
	case "REDUCED_SERVICE", "SIGNIFICANT_DELAYS":
		return "severe"
	case "DETOUR", "MODIFIED_SERVICE", "STOP_MOVED":
		return "slight"
	case "ADDITIONAL_SERVICE":
		return "normal"
	case "NO_EFFECT":
		return "noImpact"
	default:
		return "undefined"
	}
}

func orDefault(s, def string, w *WarningAggregator, warning string) string {
	if s != "" {
		return s
	}
	w.Add(warning, def)
	return def
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	if s == "" || contains(list, s) {
		return list
	}
	return append(list, s)
}
