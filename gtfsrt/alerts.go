package gtfsrt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NormalizeAlerts decodes a JSON alert payload of any known layout into
// canonical alerts. Accepted roots are {"alerts": [...]}, a bare list, a single
// alert object and {"result": {"ligne1": ..., "ligne2": ...}}. Field names may
// be singular or plural and texts may be translation objects, flat lists,
// single objects or bare strings. Unknown roots yield no alerts.
func NormalizeAlerts(raw []byte) ([]Alert, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyPayload
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode alerts: %w", err)
	}
	return normalizeValue(v), nil
}

// ResolveText resolves a raw JSON text field in locale.
func ResolveText(raw []byte, locale string) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	return texts(v).Resolve(locale)
}

var alertKeys = []string{
	"informed_entities", "informed_entity",
	"header_texts", "header_text",
	"description_texts", "description_text",
	"active_periods", "active_period",
	"cause", "effect",
}

func normalizeValue(v any) []Alert {
	out := []Alert{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, normalizeAlert(m))
			}
		}
	case map[string]any:
		if list, ok := first(t, "alerts", "alert"); ok {
			return normalizeValue(list)
		}
		if res, ok := t["result"].(map[string]any); ok {
			return metroResult(res)
		}
		if looksLikeAlert(t) {
			out = append(out, normalizeAlert(t))
		}
	}
	return out
}

func looksLikeAlert(m map[string]any) bool {
	_, ok := first(m, alertKeys...)
	return ok
}

// first returns the value of the first key present in m.
func first(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func normalizeAlert(m map[string]any) Alert {
	var a Alert
	if v, ok := first(m, "informed_entities", "informed_entity"); ok {
		for _, item := range asList(v) {
			if em, ok := item.(map[string]any); ok {
				a.InformedEntities = append(a.InformedEntities, entity(em))
			}
		}
	}
	if v, ok := first(m, "header_texts", "header_text"); ok {
		a.HeaderTexts = texts(v)
	}
	if v, ok := first(m, "description_texts", "description_text"); ok {
		a.DescriptionTexts = texts(v)
	}
	if v, ok := first(m, "active_periods", "active_period"); ok {
		for _, item := range asList(v) {
			if pm, ok := item.(map[string]any); ok {
				a.ActivePeriods = append(a.ActivePeriods, ActivePeriod{
					Start: scalarInt(pm["start"]),
					End:   scalarInt(pm["end"]),
				})
			}
		}
	}
	a.Cause = scalarString(m["cause"])
	a.Effect = scalarString(m["effect"])
	a.fillNil()
	return a
}

func entity(m map[string]any) InformedEntity {
	e := InformedEntity{
		AgencyID:       scalarString(m["agency_id"]),
		RouteID:        scalarString(m["route_id"]),
		RouteShortName: scalarString(m["route_short_name"]),
		DirectionID:    scalarString(m["direction_id"]),
		StopID:         scalarString(m["stop_id"]),
		StopCode:       scalarString(m["stop_code"]),
		TripID:         scalarString(m["trip_id"]),
	}
	if trip, ok := m["trip"].(map[string]any); ok && e.TripID == "" {
		e.TripID = scalarString(trip["trip_id"])
	}
	return e
}

// texts accepts every observed text layout.
func texts(v any) Translations {
	out := Translations{}
	switch t := v.(type) {
	case string:
		if t != "" {
			out = append(out, Translation{Text: t})
		}
	case map[string]any:
		if inner, ok := first(t, "translation", "translations"); ok {
			return texts(inner)
		}
		if _, ok := t["text"]; ok {
			out = append(out, Translation{
				Language: scalarString(t["language"]),
				Text:     scalarString(t["text"]),
			})
		}
	case []any:
		for _, item := range t {
			out = append(out, texts(item)...)
		}
	}
	return out
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case nil:
		return nil
	default:
		return []any{t}
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func scalarInt(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n
		}
	case float64:
		return int64(t)
	}
	return 0
}

// metroResult handles the per-line status layout. Every entry becomes an
// alert informing its line.
func metroResult(res map[string]any) []Alert {
	keys := make([]string, 0, len(res))
	for k := range res {
		if strings.HasPrefix(strings.ToLower(k), "ligne") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := []Alert{}
	for _, k := range keys {
		line := strings.TrimSpace(k[len("ligne"):])
		for _, item := range asList(res[k]) {
			var a Alert
			switch t := item.(type) {
			case map[string]any:
				if looksLikeAlert(t) {
					a = normalizeAlert(t)
					break
				}
				if d, ok := t["data"].(map[string]any); ok {
					t = d
				}
				if v, ok := first(t, "text", "message", "status", "description"); ok {
					a.DescriptionTexts = texts(v)
				}
				a.fillNil()
			case string:
				a.DescriptionTexts = texts(t)
				a.fillNil()
			default:
				continue
			}
			if len(a.InformedEntities) == 0 {
				a.InformedEntities = []InformedEntity{{RouteShortName: line}}
			}
			out = append(out, a)
		}
	}
	return out
}
