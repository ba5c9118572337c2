package gamma

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const hourlySlugPrefix = "bitcoin-up-or-down-"

var newYork = loadNewYork()

func loadNewYork() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// HourlySlug returns the slug of the hourly market covering t, e.g.
// "bitcoin-up-or-down-march-5-2pm-et".
func HourlySlug(t time.Time) string {
	et := t.In(newYork)
	month := strings.ToLower(et.Month().String())
	return fmt.Sprintf("%s%s-%d-%s-et", hourlySlugPrefix, month, et.Day(), hourLabel(et.Hour()))
}

func hourLabel(h int) string {
	switch {
	case h == 0:
		return "12am"
	case h < 12:
		return fmt.Sprintf("%dam", h)
	case h == 12:
		return "12pm"
	default:
		return fmt.Sprintf("%dpm", h-12)
	}
}

// isHourlySlug reports whether s has the shape HourlySlug produces.
func isHourlySlug(s string) bool {
	if !strings.HasPrefix(s, hourlySlugPrefix) || !strings.HasSuffix(s, "-et") {
		return false
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(s, hourlySlugPrefix), "-et"), "-")
	if len(parts) != 3 {
		return false
	}
	return isMonthName(parts[0]) && isDayOfMonth(parts[1]) && isHourAmPm(parts[2])
}

func isMonthName(s string) bool {
	for m := time.January; m <= time.December; m++ {
		if s == strings.ToLower(m.String()) {
			return true
		}
	}
	return false
}

func isDayOfMonth(s string) bool {
	var d int
	if _, err := fmt.Sscanf(s, "%d", &d); err != nil || fmt.Sprint(d) != s {
		return false
	}
	return d >= 1 && d <= 31
}

func isHourAmPm(s string) bool {
	if len(s) < 3 {
		return false
	}
	suffix := s[len(s)-2:]
	if suffix != "am" && suffix != "pm" {
		return false
	}
	var h int
	num := s[:len(s)-2]
	if _, err := fmt.Sscanf(num, "%d", &h); err != nil || fmt.Sprint(h) != num {
		return false
	}
	return h >= 1 && h <= 12
}
