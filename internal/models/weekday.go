package models

import (
	"strings"
	"time"
)

// Weekday is a day of week with Monday = 0 and Sunday = 6.
// Both desk assignments and availability lookups use this encoding.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdayOf converts Go's Sunday-first weekday.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

func (w Weekday) String() string {
	if !w.Valid() {
		return "?"
	}
	return weekdayNames[w]
}

// ParseWeekday accepts short English names ("mon") or numbers 0-6.
func ParseWeekday(s string) (Weekday, bool) {
	if len(s) == 1 && s[0] >= '0' && s[0] <= '6' {
		return Weekday(s[0] - '0'), true
	}
	if len(s) < 3 {
		return 0, false
	}
	prefix := s[:3]
	for i, name := range weekdayNames {
		if strings.EqualFold(prefix, name) {
			return Weekday(i), true
		}
	}
	return 0, false
}
