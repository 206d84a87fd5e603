package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGTFSTime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{name: "morning", in: "08:15:00", want: 8*3600 + 15*60},
		{name: "past midnight", in: "25:01:30", want: 25*3600 + 60 + 30},
		{name: "padded", in: " 7:05:09 ", want: 7*3600 + 5*60 + 9},
		{name: "missing seconds", in: "08:15", wantErr: true},
		{name: "letters", in: "aa:bb:cc", wantErr: true},
		{name: "minutes out of range", in: "08:75:00", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGTFSTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOnDayWrapsHours(t *testing.T) {
	loc, err := time.LoadLocation("America/Montreal")
	require.NoError(t, err)
	ref := time.Date(2024, 3, 5, 22, 0, 0, 0, loc)

	got := TimeOnDay(ref, 25*3600+30*60)
	assert.Equal(t, time.Date(2024, 3, 5, 1, 30, 0, 0, loc), got)
	assert.Equal(t, "01:30 AM", FormatClock(got))
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, int64(2), FloorDiv(150, 60))
	assert.Equal(t, int64(-1), FloorDiv(-1, 60))
	assert.Equal(t, int64(-2), FloorDiv(-61, 60))
	assert.Equal(t, int64(0), FloorDiv(59, 60))
	assert.Equal(t, int64(-1), FloorDiv(-60, 60))
}

func TestMinutesUntil(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.Equal(t, 5, MinutesUntil(now, now.Unix()+5*60+59))
	assert.Equal(t, -1, MinutesUntil(now, now.Unix()-30))
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"<p>Arrêt <b>50270</b> déplacé</p>", "Arrêt 50270 déplacé"},
		{"Ligne&nbsp;171 &amp; 180", "Ligne 171 & 180"},
		{"a<br/>b", "a b"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripHTML(tt.in), tt.in)
	}
}

func TestHaversineMeters(t *testing.T) {
	// Henri-Bourassa metro to Collège Bois-de-Boulogne, roughly 2.1 km apart
	d := HaversineMeters(45.5557, -73.6680, 45.5374, -73.6794)
	assert.InDelta(t, 2200, d, 200)
	assert.Zero(t, HaversineMeters(45.5, -73.6, 45.5, -73.6))
}

func TestDisplayDateFromUnixSeconds(t *testing.T) {
	assert.Equal(t, "14/11/2023", DisplayDateFromUnixSeconds(1_700_000_000, time.UTC))
}
