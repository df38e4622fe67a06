package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
}

// crew portals publish local times relative to the CVG/ILN hubs,
// so "today" and "this month" are always evaluated in eastern time
// regardless of where the server happens to be running.
func Now() time.Time {
	return time.Now().In(Location)
}

// Date returns midnight of the given day in the hub timezone.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Location)
}

// MonthStart returns midnight on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.In(Location)
	return Date(t.Year(), t.Month(), 1)
}
