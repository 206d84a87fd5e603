package gtfsrt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/bluele/gcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/Retexc/ETSignage/config"
)

type fakeUpstream struct {
	tripUpdates []byte
	vehicles    []byte
	alerts      []byte
	failing     atomic.Bool
	hits        atomic.Int32
}

func (u *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	serve := func(body *[]byte) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			u.hits.Add(1)
			if u.failing.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write(*body)
		}
	}
	mux.HandleFunc("/tripUpdates", serve(&u.tripUpdates))
	mux.HandleFunc("/vehiclePositions", serve(&u.vehicles))
	mux.HandleFunc("/alerts", serve(&u.alerts))
	return mux
}

func testFeedConfig(base string) config.Feed {
	return config.Feed{
		Name:            "exo",
		Mode:            config.ModeSchedule,
		TripIDSeparator: "-",
		GTFSRT: config.GTFSRTConfig{
			TripUpdatesURL:        base + "/tripUpdates",
			VehiclePositionsURL:   base + "/vehiclePositions",
			ServiceAlertsURL:      base + "/alerts",
			AlertsFormat:          config.AlertsProtobuf,
			TimeoutMS:             1000,
			FeedCacheTTLSeconds:   60,
			AlertsCacheTTLSeconds: 30,
		},
	}
}

func newUpstream(t *testing.T) (*fakeUpstream, *httptest.Server) {
	t.Helper()
	full := gtfsrtpb.VehiclePosition_FULL
	u := &fakeUpstream{
		tripUpdates: marshalFeed(t, feedMessage(tripUpdateEntity("e1", "4", "T9-2025", arrivalAt("MTL7D", 1750000600)))),
		vehicles:    marshalFeed(t, feedMessage(vehicleEntity("v1", "4", "T9-2025", &full))),
		alerts:      marshalFeed(t, feedMessage(&gtfsrtpb.FeedEntity{Id: proto.String("a1"), Alert: &gtfsrtpb.Alert{DescriptionText: translated("fr", "Gare fermée")}})),
	}
	server := httptest.NewServer(u.handler())
	t.Cleanup(server.Close)
	return u, server
}

func TestAgencyFeed_RealtimeCachedTogether(t *testing.T) {
	u, server := newUpstream(t)
	clock := gcache.NewFakeClock()
	feed := NewAgencyFeed(testFeedConfig(server.URL), clock, nil, nil)

	rt := feed.Realtime(context.Background())
	require.Len(t, rt.TripUpdates, 1)
	assert.Equal(t, "T9", rt.TripUpdates[0].TripID)
	_, ok := rt.Vehicles.Lookup("4", "T9")
	assert.True(t, ok)
	assert.Equal(t, int32(2), u.hits.Load())

	clock.Advance(30 * time.Second)
	feed.Realtime(context.Background())
	assert.Equal(t, int32(2), u.hits.Load(), "combined feed is cached for its TTL")

	u.failing.Store(true)
	clock.Advance(time.Minute)
	rt = feed.Realtime(context.Background())
	assert.Len(t, rt.TripUpdates, 1, "stale pair is served while upstream fails")
}

func TestAgencyFeed_DegradesToEmpty(t *testing.T) {
	u, server := newUpstream(t)
	u.failing.Store(true)
	cfg := testFeedConfig(server.URL)
	cfg.GTFSRT.FeedCacheTTLSeconds = 0
	feed := NewAgencyFeed(cfg, gcache.NewFakeClock(), nil, nil)

	rt := feed.Realtime(context.Background())
	assert.NotNil(t, rt.TripUpdates)
	assert.Empty(t, rt.TripUpdates)
	assert.NotNil(t, rt.Vehicles)
	assert.Empty(t, rt.Vehicles)

	alerts := feed.Alerts(context.Background())
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestAgencyFeed_ProtobufAlerts(t *testing.T) {
	_, server := newUpstream(t)
	feed := NewAgencyFeed(testFeedConfig(server.URL), gcache.NewFakeClock(), nil, nil)

	alerts := feed.Alerts(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, "Gare fermée", alerts[0].DescriptionTexts.Resolve("fr"))
}

func TestAgencyFeed_JSONAlerts(t *testing.T) {
	u, server := newUpstream(t)
	u.alerts = []byte(`{"alerts":[{"informed_entities":[{"agency_id":"STM"}],"header_texts":[{"language":"fr","text":"Grève"}]}]}`)
	cfg := testFeedConfig(server.URL)
	cfg.GTFSRT.AlertsFormat = config.AlertsJSON
	feed := NewAgencyFeed(cfg, gcache.NewFakeClock(), nil, nil)

	alerts := feed.Alerts(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, "STM", alerts[0].InformedEntities[0].AgencyID)
}

func TestAgencyFeed_APIKeyHeader(t *testing.T) {
	t.Setenv("ETSIGNAGE_FEED_KEY", "k")
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("apiKey"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cfg := testFeedConfig(server.URL)
	cfg.GTFSRT.AlertsFormat = config.AlertsJSON
	cfg.GTFSRT.APIKeyEnv = "ETSIGNAGE_FEED_KEY"
	cfg.GTFSRT.APIKeyHeader = "apiKey"
	NewAgencyFeed(cfg, gcache.NewFakeClock(), nil, nil).Alerts(context.Background())

	assert.Equal(t, "k", got.Load())
}
