// Package gtfsrt fetches the realtime feeds of an agency and decodes them
// into plain Go values.
//
// It supports three feed types:
//   - Trip Updates: arrival predictions, including skipped stops
//   - Vehicle Positions: location and occupancy keyed by route and trip
//   - Service Alerts: protobuf, or JSON in any of the known STM layouts
//
// Every alert, whatever its wire format, is normalized into Alert before it
// leaves the package. AgencyFeed wraps the fetches in TTL cells so upstream
// rate limits are respected and a failed poll serves the last good data.
package gtfsrt
