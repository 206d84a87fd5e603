package gtfsrt

import (
	"errors"
	"fmt"
	"strings"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// ErrEmptyPayload is returned when a feed answered with no bytes.
var ErrEmptyPayload = errors.New("empty feed payload")

// DecodeFeed unmarshals a protobuf FeedMessage.
func DecodeFeed(data []byte) (*gtfsrtpb.FeedMessage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("decode feed message: %w", err)
	}
	return &fm, nil
}

// TripUpdatesFromFeed extracts trip updates. Entities without a trip id are
// ignored. Trip ids are normalized with sep.
func TripUpdatesFromFeed(fm *gtfsrtpb.FeedMessage, sep string) []TripUpdate {
	out := []TripUpdate{}
	if fm == nil {
		return out
	}
	for _, e := range fm.GetEntity() {
		tu := e.GetTripUpdate()
		if tu == nil || tu.GetTrip().GetTripId() == "" {
			continue
		}
		update := TripUpdate{
			TripID:          NormalizeTripID(tu.GetTrip().GetTripId(), sep),
			RouteID:         strings.TrimSpace(tu.GetTrip().GetRouteId()),
			StopTimeUpdates: make([]StopTimeUpdate, 0, len(tu.GetStopTimeUpdate())),
		}
		for _, stu := range tu.GetStopTimeUpdate() {
			if stu.GetStopId() == "" {
				continue
			}
			s := StopTimeUpdate{
				StopID:  strings.TrimSpace(stu.GetStopId()),
				Skipped: stu.GetScheduleRelationship() == gtfsrtpb.TripUpdate_StopTimeUpdate_SKIPPED,
			}
			if arr := stu.GetArrival(); arr != nil {
				if arr.Time != nil {
					s.ArrivalTime = arr.GetTime()
					s.HasArrivalTime = true
				}
				if arr.Delay != nil {
					s.ArrivalDelay = arr.GetDelay()
					s.HasArrivalDelay = true
				}
			}
			update.StopTimeUpdates = append(update.StopTimeUpdates, s)
		}
		out = append(out, update)
	}
	return out
}

// VehiclesFromFeed builds the snapshot keyed by (route, normalized trip).
func VehiclesFromFeed(fm *gtfsrtpb.FeedMessage, sep string) VehicleSnapshot {
	snap := VehicleSnapshot{}
	if fm == nil {
		return snap
	}
	for _, e := range fm.GetEntity() {
		vp := e.GetVehicle()
		if vp == nil || vp.GetTrip().GetTripId() == "" {
			continue
		}
		key := VehicleKey{
			RouteID: strings.TrimSpace(vp.GetTrip().GetRouteId()),
			TripID:  NormalizeTripID(vp.GetTrip().GetTripId(), sep),
		}
		v := Vehicle{
			CurrentStopID: vp.GetStopId(),
			Timestamp:     int64(vp.GetTimestamp()),
		}
		if pos := vp.GetPosition(); pos != nil {
			v.Lat = float64(pos.GetLatitude())
			v.Lon = float64(pos.GetLongitude())
			v.HasPosition = true
		}
		if vp.OccupancyStatus != nil {
			v.Occupancy = int32(vp.GetOccupancyStatus())
			v.HasOccupancy = true
		}
		if vp.CurrentStatus != nil {
			v.Status = vp.GetCurrentStatus().String()
		}
		snap[key] = v
	}
	return snap
}

// AlertsFromFeed converts protobuf alerts to the canonical shape.
func AlertsFromFeed(fm *gtfsrtpb.FeedMessage) []Alert {
	out := []Alert{}
	if fm == nil {
		return out
	}
	for _, e := range fm.GetEntity() {
		a := e.GetAlert()
		if a == nil {
			continue
		}
		alert := Alert{
			HeaderTexts:      translationsFromPB(a.GetHeaderText()),
			DescriptionTexts: translationsFromPB(a.GetDescriptionText()),
		}
		if a.Cause != nil {
			alert.Cause = a.GetCause().String()
		}
		if a.Effect != nil {
			alert.Effect = a.GetEffect().String()
		}
		for _, p := range a.GetActivePeriod() {
			alert.ActivePeriods = append(alert.ActivePeriods, ActivePeriod{
				Start: int64(p.GetStart()),
				End:   int64(p.GetEnd()),
			})
		}
		for _, ie := range a.GetInformedEntity() {
			alert.InformedEntities = append(alert.InformedEntities, InformedEntity{
				AgencyID: ie.GetAgencyId(),
				RouteID:  ie.GetRouteId(),
				StopID:   ie.GetStopId(),
				TripID:   ie.GetTrip().GetTripId(),
			})
		}
		alert.fillNil()
		out = append(out, alert)
	}
	return out
}

func translationsFromPB(ts *gtfsrtpb.TranslatedString) Translations {
	out := Translations{}
	for _, t := range ts.GetTranslation() {
		out = append(out, Translation{Language: t.GetLanguage(), Text: t.GetText()})
	}
	return out
}
