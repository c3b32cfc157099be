package booking

import "time"

// WorkdaysBetween counts Monday to Friday days from today through date, both
// inclusive. Today counts when it is a weekday. A date before today yields 0.
func WorkdaysBetween(today, date time.Time) int {
	from := truncateDay(today)
	to := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, from.Location())

	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if isWorkday(d) {
			n++
		}
	}
	return n
}

func isWorkday(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
