package dialog

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2/1/2006",
}

var dateTimeLayouts = []string{
	"02-01-2006 15:04",
	"2-1-2006 15:04",
	"02.01.2006 15:04",
	"2.1.2006 15:04",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
}

// parseDate accepts a day-month-year date in loc.
func parseDate(input string, loc *time.Location) (time.Time, bool) {
	return parseWithLayouts(input, dateLayouts, loc)
}

// parseDateTime accepts a day-month-year date followed by hour:minute in loc.
func parseDateTime(input string, loc *time.Location) (time.Time, bool) {
	s := strings.Join(strings.Fields(input), " ")
	return parseWithLayouts(s, dateTimeLayouts, loc)
}

func parseWithLayouts(input string, layouts []string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
