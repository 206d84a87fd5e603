package converter

import (
	"strings"

	"github.com/Retexc/ETSignage/board"
	"github.com/Retexc/ETSignage/config"
	"github.com/Retexc/ETSignage/gtfsrt"
)

// Metro line statuses
const (
	MetroStatusNormal    = "Service normal"
	MetroStatusDisrupted = "Service perturbé"
)

// BuildMetroStatus returns one status per configured line, in configuration
// order. A line named by an alert entity takes the alert's description (or
// header) as its message; the line stays normal only when that message
// itself announces normal service.
func BuildMetroStatus(lines []config.MetroLine, alerts []gtfsrt.Alert, locale string) []board.MetroLine {
	out := make([]board.MetroLine, len(lines))
	pos := make(map[string]int, len(lines))
	for i, l := range lines {
		out[i] = board.MetroLine{
			ID:     l.ID,
			Name:   l.Name,
			Color:  l.Color,
			Status: MetroStatusNormal,
			Normal: true,
		}
		pos[l.ID] = i
	}

	for _, a := range alerts {
		msg := a.DescriptionTexts.Resolve(locale)
		if msg == "" {
			msg = a.HeaderTexts.Resolve(locale)
		}
		if msg == "" {
			continue
		}
		normal := strings.Contains(strings.ToLower(msg), "service normal")
		for _, e := range a.InformedEntities {
			i, ok := pos[e.Route()]
			if !ok {
				continue
			}
			out[i].Message = msg
			out[i].Normal = normal
			if normal {
				out[i].Status = MetroStatusNormal
			} else {
				out[i].Status = MetroStatusDisrupted
			}
		}
	}
	return out
}

// MetroAlerts returns one metro-line banner per disrupted line, in line
// order. Disrupted lines always carry the alert message.
func MetroAlerts(lines []board.MetroLine, source string) []board.AlertRecord {
	out := make([]board.AlertRecord, 0)
	for _, l := range lines {
		if l.Normal {
			continue
		}
		out = append(out, board.AlertRecord{
			Header:      l.Name + ": " + l.Status,
			Description: l.Message,
			Scope:       board.ScopeMetroLine,
			Routes:      []string{l.ID},
			Source:      source,
		})
	}
	return out
}
