package gtfsrt

import (
	"testing"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func feedMessage(entities ...*gtfsrtpb.FeedEntity) *gtfsrtpb.FeedMessage {
	return &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1750000000),
		},
		Entity: entities,
	}
}

func marshalFeed(t *testing.T, fm *gtfsrtpb.FeedMessage) []byte {
	t.Helper()
	data, err := proto.Marshal(fm)
	require.NoError(t, err)
	return data
}

func tripUpdateEntity(id, route, trip string, stus ...*gtfsrtpb.TripUpdate_StopTimeUpdate) *gtfsrtpb.FeedEntity {
	return &gtfsrtpb.FeedEntity{
		Id: proto.String(id),
		TripUpdate: &gtfsrtpb.TripUpdate{
			Trip: &gtfsrtpb.TripDescriptor{
				RouteId: proto.String(route),
				TripId:  proto.String(trip),
			},
			StopTimeUpdate: stus,
		},
	}
}

func arrivalAt(stop string, at int64) *gtfsrtpb.TripUpdate_StopTimeUpdate {
	return &gtfsrtpb.TripUpdate_StopTimeUpdate{
		StopId:  proto.String(stop),
		Arrival: &gtfsrtpb.TripUpdate_StopTimeEvent{Time: proto.Int64(at)},
	}
}

func skippedAt(stop string) *gtfsrtpb.TripUpdate_StopTimeUpdate {
	rel := gtfsrtpb.TripUpdate_StopTimeUpdate_SKIPPED
	return &gtfsrtpb.TripUpdate_StopTimeUpdate{
		StopId:               proto.String(stop),
		ScheduleRelationship: &rel,
	}
}

func vehicleEntity(id, route, trip string, occupancy *gtfsrtpb.VehiclePosition_OccupancyStatus) *gtfsrtpb.FeedEntity {
	return &gtfsrtpb.FeedEntity{
		Id: proto.String(id),
		Vehicle: &gtfsrtpb.VehiclePosition{
			Trip: &gtfsrtpb.TripDescriptor{
				RouteId: proto.String(route),
				TripId:  proto.String(trip),
			},
			Position: &gtfsrtpb.Position{
				Latitude:  proto.Float32(45.5),
				Longitude: proto.Float32(-73.6),
			},
			OccupancyStatus: occupancy,
		},
	}
}

func translated(pairs ...string) *gtfsrtpb.TranslatedString {
	ts := &gtfsrtpb.TranslatedString{}
	for i := 0; i+1 < len(pairs); i += 2 {
		ts.Translation = append(ts.Translation, &gtfsrtpb.TranslatedString_Translation{
			Language: proto.String(pairs[i]),
			Text:     proto.String(pairs[i+1]),
		})
	}
	return ts
}
