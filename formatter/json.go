package formatter

import (
	"encoding/json"

	"github.com/Retexc/ETSignage/board"
)

// Response is the JSON envelope served to the display.
type Response struct {
	GeneratedAt  int64                            `json:"generated_at"`
	Arrivals     map[string][]board.ArrivalRecord `json:"arrivals"`
	Alerts       []board.AlertRecord              `json:"alerts"`
	MetroLines   []board.MetroLine                `json:"metro_lines"`
	WeatherAlert bool                             `json:"weather_alert"`
	Debug        Debug                            `json:"debug"`
}

// Debug carries counts that help diagnose an empty display.
type Debug struct {
	Feeds        []string       `json:"feeds"`
	ArrivalCount map[string]int `json:"arrival_count"`
	Live         int            `json:"live"`
	Scheduled    int            `json:"scheduled"`
	Cancelled    int            `json:"cancelled"`
	Unavailable  int            `json:"unavailable"`
	AlertCount   int            `json:"alert_count"`
}

// FeedResponse is the envelope of a single feed's arrivals.
type FeedResponse struct {
	GeneratedAt int64                 `json:"generated_at"`
	Feed        string                `json:"feed"`
	Arrivals    []board.ArrivalRecord `json:"arrivals"`
}

type responseBuilder struct{}

func newResponseBuilder() *responseBuilder { return &responseBuilder{} }

// NewResponseBuilder creates a new response builder for formatting boards
func NewResponseBuilder() *responseBuilder {
	return newResponseBuilder()
}

// Envelope wraps b with its debug counts. Collections are never null.
func Envelope(b *board.Board) Response {
	r := Response{
		GeneratedAt:  b.GeneratedAt,
		Arrivals:     map[string][]board.ArrivalRecord{},
		Alerts:       b.Alerts,
		MetroLines:   b.MetroLines,
		WeatherAlert: b.WeatherAlert,
		Debug: Debug{
			Feeds:        append([]string{}, b.FeedOrder...),
			ArrivalCount: map[string]int{},
			AlertCount:   len(b.Alerts),
		},
	}
	if r.Alerts == nil {
		r.Alerts = []board.AlertRecord{}
	}
	if r.MetroLines == nil {
		r.MetroLines = []board.MetroLine{}
	}
	for name, recs := range b.Arrivals {
		if recs == nil {
			recs = []board.ArrivalRecord{}
		}
		r.Arrivals[name] = recs
		r.Debug.ArrivalCount[name] = len(recs)
		for _, rec := range recs {
			switch {
			case rec.Status == board.StatusCancelled:
				r.Debug.Cancelled++
			case rec.ArrivalTime == board.TextUnavailable:
				r.Debug.Unavailable++
			case rec.Status == board.StatusScheduled:
				r.Debug.Scheduled++
			default:
				r.Debug.Live++
			}
		}
	}
	return r
}

// BuildJSON serializes a board envelope to JSON
func (rb *responseBuilder) BuildJSON(b *board.Board) ([]byte, error) {
	return json.Marshal(Envelope(b))
}

// BuildFeedJSON serializes the arrivals of one feed. The second result is
// false when the board has no such feed.
func (rb *responseBuilder) BuildFeedJSON(b *board.Board, feed string, f ArrivalFilter) ([]byte, bool, error) {
	recs, ok := b.Arrivals[feed]
	if !ok {
		return nil, false, nil
	}
	data, err := json.Marshal(FeedResponse{
		GeneratedAt: b.GeneratedAt,
		Feed:        feed,
		Arrivals:    FilterArrivals(recs, f),
	})
	return data, true, err
}
