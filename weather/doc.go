// Package weather raises a network-wide advisory when the current weather is
// likely to delay buses and trains.
//
// Conditions come from the WeatherAPI.com current-conditions endpoint and are
// cached with gcache so the upstream is queried at most once per TTL.
package weather
