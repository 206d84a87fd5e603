package etsignage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Retexc/ETSignage/board"
	"github.com/Retexc/ETSignage/config"
	"github.com/Retexc/ETSignage/converter"
	"github.com/Retexc/ETSignage/gtfs"
	"github.com/Retexc/ETSignage/gtfsrt"
	"github.com/Retexc/ETSignage/weather"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeSource struct {
	name   string
	rt     gtfsrt.Realtime
	alerts []gtfsrt.Alert
	calls  atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Realtime(context.Context) gtfsrt.Realtime {
	f.calls.Add(1)
	return f.rt
}

func (f *fakeSource) Alerts(context.Context) []gtfsrt.Alert {
	f.calls.Add(1)
	return f.alerts
}

type fakeAdvisory struct {
	alert *board.AlertRecord
	err   error
}

func (f fakeAdvisory) Advisory(context.Context) (*board.AlertRecord, error) { return f.alert, f.err }

type recordingPublisher struct {
	mu     sync.Mutex
	boards []*board.Board
}

func (p *recordingPublisher) PublishBoard(b *board.Board) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boards = append(p.boards, b)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.boards)
}

type recordingMetrics struct {
	snapshots int
	arrivals  map[string]map[string]int
	alerts    int
	weather   bool
}

func (m *recordingMetrics) ObserveSnapshot(time.Duration, int64) { m.snapshots++ }

func (m *recordingMetrics) SetArrivals(feed string, byStatus map[string]int) {
	if m.arrivals == nil {
		m.arrivals = map[string]map[string]int{}
	}
	m.arrivals[feed] = byStatus
}

func (m *recordingMetrics) SetAlerts(n int, weather bool) {
	m.alerts = n
	m.weather = weather
}

var combos = []config.Combo{
	{Route: "171", Stop: "50270", Key: "171_Est", Direction: "Est"},
	{Route: "180", Stop: "50270", Key: "180_Est", Direction: "Est"},
}

// testIndex schedules trip T1 of route 171 at stop 50270 at 08:15.
func testIndex() *gtfs.ScheduleIndex {
	idx := gtfs.NewScheduleIndex()
	idx.Routes["171"] = "171"
	idx.Trips["T1"] = gtfs.Trip{ID: "T1", RouteID: "171", RouteShortName: "171", ServiceID: "WEEK"}
	st := gtfs.StopTime{TripID: "T1", StopID: "50270", Arrival: 8*3600 + 15*60, Departure: 8*3600 + 15*60}
	idx.StopTimes["T1"] = map[string]gtfs.StopTime{"50270": st}
	idx.ByStop["50270"] = []gtfs.StopTime{st}
	return idx
}

func newTestPipeline(src *fakeSource) FeedPipeline {
	return FeedPipeline{
		Source: src,
		Converter: converter.NewConverter(testIndex(), converter.Options{
			Feed:     src.name,
			Mode:     config.ModeLive,
			Combos:   combos,
			Location: time.UTC,
		}),
		Correlator: converter.NewCorrelator(converter.AlertOptions{
			Feed:          src.name,
			Locale:        "fr",
			NetworkMarker: "STM",
			Routes:        []string{"171", "180"},
			Stops:         []string{"50270"},
			Markers:       config.DefaultMarkers(),
			Location:      time.UTC,
		}),
	}
}

func fr(text string) gtfsrt.Translations {
	return gtfsrt.Translations{{Language: "fr", Text: text}}
}

func testSetup(now time.Time) (*fakeSource, *testClock) {
	src := &fakeSource{
		name: "stm",
		rt: gtfsrt.Realtime{TripUpdates: []gtfsrt.TripUpdate{{
			TripID:  "T1",
			RouteID: "171",
			StopTimeUpdates: []gtfsrt.StopTimeUpdate{{
				StopID:         "50270",
				ArrivalTime:    now.Add(5 * time.Minute).Unix(),
				HasArrivalTime: true,
			}},
		}}},
		alerts: []gtfsrt.Alert{
			{
				InformedEntities: []gtfsrt.InformedEntity{{RouteShortName: "171"}},
				HeaderTexts:      fr("Détour"),
				DescriptionTexts: fr("Arrêt déplacé sur Henri-Bourassa"),
			},
			{
				InformedEntities: []gtfsrt.InformedEntity{{AgencyID: "STM"}},
				HeaderTexts:      fr("Grève"),
				DescriptionTexts: fr("Service réduit"),
			},
			{
				InformedEntities: []gtfsrt.InformedEntity{{RouteShortName: "2"}},
				DescriptionTexts: fr("Interruption entre Berri-UQAM et Lionel-Groulx"),
			},
		},
	}
	return src, &testClock{t: now}
}

func TestSnapshot_BuildsBoard(t *testing.T) {
	now := time.Date(2025, 6, 17, 8, 0, 0, 0, time.UTC)
	src, clock := testSetup(now)
	m := &recordingMetrics{}

	svc := NewService([]FeedPipeline{newTestPipeline(src)}, Options{
		Clock:      clock,
		MetroFeed:  "stm",
		MetroLines: config.DefaultMetroLines(),
		Locale:     "fr",
		Metrics:    m,
	})
	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	b := snap.Board
	assert.Equal(t, now.Unix(), b.GeneratedAt)
	assert.Equal(t, []string{"stm"}, b.FeedOrder)

	arrivals := b.Arrivals["stm"]
	require.Len(t, arrivals, 2)
	assert.Equal(t, "171_Est", arrivals[0].Key)
	assert.Equal(t, 5, arrivals[0].Minutes())
	assert.Equal(t, []string{board.MarkerMoved}, arrivals[0].Markers)
	assert.Equal(t, "180_Est", arrivals[1].Key)
	assert.Equal(t, board.TextUnavailable, arrivals[1].DisplayTime)
	assert.Empty(t, arrivals[1].Markers)

	require.Len(t, b.Alerts, 3)
	assert.Equal(t, board.ScopeRoute, b.Alerts[0].Scope)
	assert.Equal(t, board.ScopeNetwork, b.Alerts[1].Scope)
	assert.Equal(t, board.ScopeMetroLine, b.Alerts[2].Scope)
	assert.Equal(t, []string{"2"}, b.Alerts[2].Routes)
	assert.False(t, b.WeatherAlert)

	require.Len(t, b.MetroLines, 4)
	assert.True(t, b.MetroLines[0].Normal)
	assert.False(t, b.MetroLines[1].Normal)
	assert.Equal(t, converter.MetroStatusDisrupted, b.MetroLines[1].Status)

	assert.True(t, snap.Changed)
	assert.Equal(t, 1, m.snapshots)
	assert.Equal(t, 3, m.alerts)
	assert.Equal(t, map[string]int{board.StatusNormal: 1, "unavailable": 1}, m.arrivals["stm"])
}

func TestSnapshot_WeatherAdvisory(t *testing.T) {
	now := time.Date(2025, 6, 17, 8, 0, 0, 0, time.UTC)
	src, clock := testSetup(now)
	src.alerts = nil
	adv := &board.AlertRecord{Header: weather.AdvisoryHeader, Scope: board.ScopeNetwork}

	svc := NewService([]FeedPipeline{newTestPipeline(src)}, Options{
		Clock:   clock,
		Weather: fakeAdvisory{alert: adv},
	})
	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Board.WeatherAlert)
	require.Len(t, snap.Board.Alerts, 1)
	assert.Equal(t, weather.AdvisoryHeader, snap.Board.Alerts[0].Header)
}

func TestSnapshot_WeatherFailureDegrades(t *testing.T) {
	now := time.Date(2025, 6, 17, 8, 0, 0, 0, time.UTC)
	for _, werr := range []error{weather.ErrNoAPIKey, errors.New("HTTP 500 from weather provider")} {
		src, clock := testSetup(now)
		svc := NewService([]FeedPipeline{newTestPipeline(src)}, Options{
			Clock:   clock,
			Weather: fakeAdvisory{err: werr},
		})
		snap, err := svc.Snapshot(context.Background())
		require.NoError(t, err)
		assert.False(t, snap.Board.WeatherAlert)
		assert.Len(t, snap.Board.Arrivals["stm"], 2)
	}
}

func TestSnapshot_PublishesOnlyChanges(t *testing.T) {
	now := time.Date(2025, 6, 17, 8, 0, 0, 0, time.UTC)
	src, clock := testSetup(now)
	pub := &recordingPublisher{}
	svc := NewService([]FeedPipeline{newTestPipeline(src)}, Options{Clock: clock, Publisher: pub})

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pub.count())

	// same second: the tracked board is returned and nothing is published
	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), snap.Board.GeneratedAt)
	assert.Equal(t, 1, pub.count())

	// a later board with the same content is not republished
	clock.Advance(time.Second)
	src.rt.TripUpdates[0].StopTimeUpdates[0].ArrivalTime += 1
	snap, err = svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Changed)
	assert.Equal(t, 1, pub.count())

	// a later board with a new countdown is published
	clock.Advance(time.Minute)
	snap, err = svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Changed)
	assert.Equal(t, 2, pub.count())
}

func TestSnapshot_LogsBoardBuilt(t *testing.T) {
	src, clock := testSetup(time.Date(2025, 6, 17, 8, 0, 0, 0, time.UTC))
	var buf bytes.Buffer
	svc := NewService([]FeedPipeline{newTestPipeline(src)}, Options{
		Clock:  clock,
		Logger: slog.New(slog.NewJSONHandler(&buf, nil)),
	})

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	var entry map[string]any
	for _, l := range bytes.Split(buf.Bytes(), []byte("\n")) {
		if bytes.Contains(l, []byte(`"Board built"`)) {
			require.NoError(t, json.Unmarshal(l, &entry))
		}
	}
	require.NotNil(t, entry, buf.String())
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, float64(clock.Now().Unix()), entry["generated_at"])
	assert.Equal(t, float64(2), entry["alerts"])
}

func TestSnapshot_CancelledContext(t *testing.T) {
	src, clock := testSetup(time.Date(2025, 6, 17, 8, 0, 0, 0, time.UTC))
	svc := NewService([]FeedPipeline{newTestPipeline(src)}, Options{Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, svc.Tracker().Current())
}

func TestRun_StopsWithContext(t *testing.T) {
	src, clock := testSetup(time.Date(2025, 6, 17, 8, 0, 0, 0, time.UTC))
	svc := NewService([]FeedPipeline{newTestPipeline(src)}, Options{Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return svc.Tracker().Current() != nil }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, int32(2), src.calls.Load())
}
