package filter

import (
	"strings"
	"time"

	"github.com/amishk599/simoradar/internal/model"
)

// Sentinels the source uses for a closing date that has not been set yet.
// Both count as open.
var openSentinels = []string{"por definir", "undefined"}

var closingDateLayouts = []string{"02/01/2006", "2/1/2006", "2006-01-02"}

// Active reports whether rec is still open for applications at now.
// An absent closing date or a "to be determined" sentinel is active; a
// parseable date is active through the end of that day; anything else is not.
func Active(rec model.JobRecord, now time.Time) bool {
	raw := strings.TrimSpace(rec.ClosingDate)
	if raw == "" {
		return true
	}

	lower := fold(raw)
	for _, s := range openSentinels {
		if strings.Contains(lower, s) {
			return true
		}
	}

	closing, ok := ParseClosingDate(raw, now.Location())
	if !ok {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !closing.Before(today)
}

// ParseClosingDate parses the date portion of a source closing date such as
// "15/11/2026 23:59" or "2026-11-15T23:59:59-05:00". Only the calendar day is
// kept, in loc.
func ParseClosingDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
	}

	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return time.Time{}, false
	}
	token := fields[0]
	if i := strings.IndexByte(token, 'T'); i == 10 {
		token = token[:10]
	}

	for _, layout := range closingDateLayouts {
		if t, err := time.ParseInLocation(layout, token, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
