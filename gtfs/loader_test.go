package gtfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestIndex(t *testing.T) *ScheduleIndex {
	t.Helper()
	index, err := Load(PathsFromDir(filepath.Join("testdata", "stm")), nil)
	require.NoError(t, err)
	return index
}

func day(s string) time.Time {
	d, err := time.ParseInLocation("20060102 15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLoad_Tables(t *testing.T) {
	index := loadTestIndex(t)

	assert.Equal(t, "171", index.GetRouteShortName("171"))
	assert.Equal(t, "180", index.GetRouteShortName("180"), "empty short name falls back to route_id")

	trip, ok := index.GetTrip("T171A")
	require.True(t, ok)
	assert.Equal(t, "WEEK", trip.ServiceID)
	assert.True(t, trip.WheelchairAccessible)

	trip, _ = index.GetTrip("T171B")
	assert.False(t, trip.WheelchairAccessible)

	st, ok := index.GetStopTime("T171B", "50270")
	require.True(t, ok)
	assert.Equal(t, 25*3600+5*60, st.Arrival)

	stop, ok := index.GetStop("50270")
	require.True(t, ok)
	assert.InDelta(t, 45.557, stop.Lat, 1e-9)
}

func TestLoad_DropsBadStopTimes(t *testing.T) {
	index := loadTestIndex(t)

	_, ok := index.GetStopTime("GHOST", "50270")
	assert.False(t, ok, "rows for unknown trips are dropped")
	_, ok = index.GetStopTime("T180A", "50271")
	assert.False(t, ok, "rows with unparseable times are dropped")

	assert.Equal(t, 5, index.Stats()["stop_times"])
}

func TestLoad_ByStopOrdered(t *testing.T) {
	index := loadTestIndex(t)

	sts := index.GetStopTimesAtStop("50270")
	require.Len(t, sts, 4)
	for i := 1; i < len(sts); i++ {
		assert.LessOrEqual(t, sts[i-1].Arrival, sts[i].Arrival)
	}
	assert.Equal(t, "T180A", sts[0].TripID)
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	paths := PathsFromDir(filepath.Join("testdata", "stm"))
	paths.StopTimes = filepath.Join(t.TempDir(), "stop_times.txt")

	_, err := Load(paths, nil)
	assert.ErrorIs(t, err, ErrMissingRequiredFile)
}

func TestLoad_MissingOptionalFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"routes.txt", "trips.txt", "stop_times.txt"} {
		data, err := os.ReadFile(filepath.Join("testdata", "stm", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}

	index, err := Load(PathsFromDir(dir), nil)
	require.NoError(t, err)
	assert.False(t, index.HasCalendar())
	assert.True(t, index.TripRunsOn("T171S", day("20250616 12:00")), "without a calendar every trip runs")
	assert.False(t, index.TripRunsOn("UNKNOWN", day("20250616 12:00")))
}

func TestValidateTrip(t *testing.T) {
	index := loadTestIndex(t)

	tests := []struct {
		name  string
		trip  string
		route string
		want  bool
	}{
		{"matching route", "T171A", "171", true},
		{"other route", "T171A", "180", false},
		{"unknown trip", "NOPE", "171", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, index.ValidateTrip(tt.trip, tt.route))
		})
	}
}

func TestServiceRunsOn(t *testing.T) {
	index := loadTestIndex(t)
	require.True(t, index.HasCalendar())

	tests := []struct {
		name    string
		service string
		date    string
		want    bool
	}{
		{"weekday pattern", "WEEK", "20250617 08:00", true},
		{"weekend excluded", "WEEK", "20250621 08:00", false},
		{"removed by exception", "WEEK", "20250616 08:00", false},
		{"added by exception", "SUN", "20250616 08:00", true},
		{"sunday pattern", "SUN", "20250622 08:00", true},
		{"before start date", "WEEK", "20241231 08:00", false},
		{"after end date", "WEEK", "20260101 08:00", false},
		{"unknown service", "NONE", "20250617 08:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, index.ServiceRunsOn(tt.service, day(tt.date)))
		})
	}
}

func TestLoadCached_RoundTrip(t *testing.T) {
	paths := PathsFromDir(filepath.Join("testdata", "stm"))
	cachePath := filepath.Join(t.TempDir(), "stm.gob")

	first, err := LoadCached(paths, cachePath, nil)
	require.NoError(t, err)
	require.FileExists(t, cachePath)

	cached, err := DeserializeIndexFromFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, first.Stats(), cached.Stats())
	assert.Equal(t, first.GetStopTimesAtStop("50270"), cached.GetStopTimesAtStop("50270"))

	second, err := LoadCached(paths, cachePath, nil)
	require.NoError(t, err)
	assert.True(t, second.ServiceRunsOn("SUN", day("20250616 08:00")))
}

func TestLoadCached_CorruptCacheReloads(t *testing.T) {
	paths := PathsFromDir(filepath.Join("testdata", "stm"))
	cachePath := filepath.Join(t.TempDir(), "stm.gob")
	require.NoError(t, os.WriteFile(cachePath, []byte("not gob"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(cachePath, future, future))

	index, err := LoadCached(paths, cachePath, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, index.Stats()["trips"])
}
