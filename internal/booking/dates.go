package booking

import (
	"fmt"
	"strings"
	"time"

	"deskbot/internal/models"
)

// ParseDate parses s under layout in loc. A trailing weekday label such as
// "2025-01-10 (Fri)" is accepted as long as layout has no spaces itself.
func ParseDate(layout, s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(layout, " ") {
		if fields := strings.Fields(s); len(fields) > 0 {
			s = fields[0]
		}
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q does not match %s", ErrInvalidDate, s, layout)
	}
	return truncateDay(t), nil
}

// FormatDate renders a date button label, e.g. "2025-01-10 (Fri)".
func FormatDate(layout string, d time.Time) string {
	return fmt.Sprintf("%s (%s)", d.Format(layout), models.WeekdayOf(d))
}

// AvailableDates returns the weekdays from now's date through days calendar
// days ahead, the same horizon the writer accepts.
func AvailableDates(now time.Time, days int) []time.Time {
	if days <= 0 {
		return nil
	}
	from := truncateDay(now)
	to := from.AddDate(0, 0, days)
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if isWorkday(d) {
			out = append(out, d)
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
