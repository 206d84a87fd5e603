package tracking

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/Retexc/ETSignage/board"
	"github.com/Retexc/ETSignage/utils"
)

// Snapshot is one accepted board together with how each arrival moved since
// the previous snapshot.
type Snapshot struct {
	Board  *board.Board
	States map[string]ArrivalState
	// Changed is set when anything shown on the display differs from the
	// previous snapshot.
	Changed bool

	body []byte
}

// ArrivalState describes one combo's record relative to the previous poll.
type ArrivalState struct {
	FirstOccurrence bool
	TripChanged     bool
	MinutesChanged  bool
	StatusChanged   bool
	MarkersChanged  bool
	AtStop          bool
	HasMoved        bool
	// MovedMeters is the vehicle displacement when HasMoved is set.
	MovedMeters float64
}

// Tracker keeps the latest snapshot. It is safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	current  *Snapshot
	previous *Snapshot
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe records b and returns the resulting snapshot. A board that is not
// newer than the current one is ignored and the current snapshot returned.
func (t *Tracker) Observe(b *board.Board) *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil && b.GeneratedAt <= t.current.Board.GeneratedAt {
		return t.current
	}

	s := &Snapshot{
		Board:  b,
		States: map[string]ArrivalState{},
		body:   fingerprint(b),
	}
	var prev map[string]board.ArrivalRecord
	if t.current != nil {
		prev = byKey(t.current.Board)
		s.Changed = !bytes.Equal(s.body, t.current.body)
	} else {
		s.Changed = true
	}
	for _, r := range b.AllArrivals() {
		s.States[r.Key] = compare(prev, r)
	}

	t.previous = t.current
	t.current = s
	return s
}

// Current returns the latest snapshot, or nil before the first board.
func (t *Tracker) Current() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Previous returns the snapshot before the latest one.
func (t *Tracker) Previous() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.previous
}

// LastGeneratedAt returns the epoch of the latest board, or 0.
func (t *Tracker) LastGeneratedAt() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return 0
	}
	return t.current.Board.GeneratedAt
}

func compare(prev map[string]board.ArrivalRecord, r board.ArrivalRecord) ArrivalState {
	st := ArrivalState{AtStop: r.AtStop}
	old, ok := prev[r.Key]
	if !ok {
		st.FirstOccurrence = true
		return st
	}
	st.TripChanged = old.TripID != r.TripID
	st.MinutesChanged = old.Minutes() != r.Minutes()
	st.StatusChanged = old.Status != r.Status
	st.MarkersChanged = !equalStrings(old.Markers, r.Markers)
	if !st.TripChanged && old.VehiclePosition != nil && r.VehiclePosition != nil {
		d := utils.HaversineMeters(old.VehiclePosition.Lat, old.VehiclePosition.Lon,
			r.VehiclePosition.Lat, r.VehiclePosition.Lon)
		if d > 0 {
			st.HasMoved = true
			st.MovedMeters = utils.RoundMeters(d)
		}
	}
	return st
}

func byKey(b *board.Board) map[string]board.ArrivalRecord {
	out := map[string]board.ArrivalRecord{}
	for _, r := range b.AllArrivals() {
		out[r.Key] = r
	}
	return out
}

// fingerprint serializes everything but the generation time.
func fingerprint(b *board.Board) []byte {
	cp := *b
	cp.GeneratedAt = 0
	data, err := json.Marshal(struct {
		board.Board
		Order []string `json:"order"`
	}{cp, cp.FeedOrder})
	if err != nil {
		return nil
	}
	return data
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
