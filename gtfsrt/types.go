package gtfsrt

import "strings"

// StopTimeUpdate is one prediction of a trip update. Has* fields record
// whether the optional protobuf field was present.
type StopTimeUpdate struct {
	StopID          string
	Skipped         bool
	ArrivalTime     int64
	HasArrivalTime  bool
	ArrivalDelay    int32
	HasArrivalDelay bool
}

// TripUpdate is a decoded trip_update entity.
type TripUpdate struct {
	TripID          string
	RouteID         string
	StopTimeUpdates []StopTimeUpdate
}

// VehicleKey identifies a vehicle by the trip it is serving.
type VehicleKey struct {
	RouteID string
	TripID  string
}

// Vehicle is a decoded vehicle position. Occupancy is the raw enum value and
// only meaningful when HasOccupancy is set.
type Vehicle struct {
	Lat           float64
	Lon           float64
	HasPosition   bool
	Occupancy     int32
	HasOccupancy  bool
	CurrentStopID string
	Status        string
	Timestamp     int64
}

// VehicleSnapshot holds the vehicles of one poll.
type VehicleSnapshot map[VehicleKey]Vehicle

// Lookup returns the vehicle serving tripID on routeID.
func (s VehicleSnapshot) Lookup(routeID, tripID string) (Vehicle, bool) {
	v, ok := s[VehicleKey{RouteID: routeID, TripID: tripID}]
	return v, ok
}

// NormalizeTripID returns the part of id before the first sep. An empty sep
// leaves id untouched.
func NormalizeTripID(id, sep string) string {
	if sep == "" {
		return id
	}
	if i := strings.Index(id, sep); i >= 0 {
		id = id[:i]
	}
	return strings.TrimSpace(id)
}

// Translation is one language variant of an alert text.
type Translation struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// Translations is a translated string.
type Translations []Translation

// Resolve returns the text in locale, else the first non-empty text.
func (ts Translations) Resolve(locale string) string {
	for _, t := range ts {
		if strings.EqualFold(t.Language, locale) && t.Text != "" {
			return t.Text
		}
	}
	for _, t := range ts {
		if t.Text != "" {
			return t.Text
		}
	}
	return ""
}

// InformedEntity selects what an alert applies to. Empty fields are unset.
type InformedEntity struct {
	AgencyID       string `json:"agency_id,omitempty"`
	RouteID        string `json:"route_id,omitempty"`
	RouteShortName string `json:"route_short_name,omitempty"`
	DirectionID    string `json:"direction_id,omitempty"`
	StopID         string `json:"stop_id,omitempty"`
	StopCode       string `json:"stop_code,omitempty"`
	TripID         string `json:"trip_id,omitempty"`
}

// Route returns the short name when present, else the route id.
func (e InformedEntity) Route() string {
	if e.RouteShortName != "" {
		return e.RouteShortName
	}
	return e.RouteID
}

// Stop returns the stop code when present, else the stop id.
func (e InformedEntity) Stop() string {
	if e.StopCode != "" {
		return e.StopCode
	}
	return e.StopID
}

// ActivePeriod bounds are epoch seconds; zero means open-ended.
type ActivePeriod struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Alert is the canonical alert every feed format is normalized into.
type Alert struct {
	InformedEntities []InformedEntity `json:"informed_entities"`
	HeaderTexts      Translations     `json:"header_texts"`
	DescriptionTexts Translations     `json:"description_texts"`
	ActivePeriods    []ActivePeriod   `json:"active_periods"`
	Cause            string           `json:"cause"`
	Effect           string           `json:"effect"`
}

// Ended reports whether every active period closed before now. An alert
// without periods, or with an open period, has not ended.
func (a Alert) Ended(now int64) bool {
	if len(a.ActivePeriods) == 0 {
		return false
	}
	for _, p := range a.ActivePeriods {
		if p.End == 0 || p.End >= now {
			return false
		}
	}
	return true
}

func (a *Alert) fillNil() {
	if a.InformedEntities == nil {
		a.InformedEntities = []InformedEntity{}
	}
	if a.HeaderTexts == nil {
		a.HeaderTexts = Translations{}
	}
	if a.DescriptionTexts == nil {
		a.DescriptionTexts = Translations{}
	}
	if a.ActivePeriods == nil {
		a.ActivePeriods = []ActivePeriod{}
	}
}
