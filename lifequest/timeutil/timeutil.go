package timeutil

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// time.LoadLocation reads the tzdata files on every miss; timezone strings
// arrive on every request, so resolved locations are kept in a small cache.
var locations *lru.Cache

func init() {
	locations, _ = lru.New(128)
}

// LoadLocation resolves an IANA timezone name, caching the result.
func LoadLocation(name string) (*time.Location, error) {
	if cached, ok := locations.Get(name); ok {
		return cached.(*time.Location), nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}

	locations.Add(name, loc)
	return loc, nil
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfISOWeek returns local midnight of the Monday of t's week.
func StartOfISOWeek(t time.Time) time.Time {
	days := int(t.Weekday()) - 1
	if days < 0 {
		days = 6
	}
	return time.Date(t.Year(), t.Month(), t.Day()-days, 0, 0, 0, 0, t.Location())
}

// OnLocalDay reports whether the calendar day carried by date, read in
// date's own location, equals the day t falls on in loc. Event dates
// arrive as bare YYYY-MM-DD values parsed at UTC midnight; converting
// that instant into a zone west of UTC would shift it to the previous day.
func OnLocalDay(date, t time.Time, loc *time.Location) bool {
	dy, dm, dd := date.Date()
	ty, tm, td := t.In(loc).Date()
	return dy == ty && dm == tm && dd == td
}
