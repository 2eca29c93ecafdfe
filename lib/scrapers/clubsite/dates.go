package clubsite

import (
	"fmt"
	"regexp"
	"time"
)

// Activity pages render their dates in one of three shapes:
//
//	Sat, Jul 12, 2025
//	Sat, Jul 12, 2025 from 9:00 AM - 5:00 PM
//	Sat, Jul 12, 2025 – Sun, Jul 13, 2025
var (
	singleDatePat = regexp.MustCompile(`^\w{3}, (\w{3} \d{1,2}, \d{4})$`)
	dateTimePat   = regexp.MustCompile(`^\w{3}, (\w{3} \d{1,2}, \d{4}) from.*$`)
	dateRangePat  = regexp.MustCompile(`^\w{3}, (\w{3} \d{1,2}, \d{4}) . \w{3}, (\w{3} \d{1,2}, \d{4})$`)
)

const siteDateFormat = "Jan 2, 2006"

// ParseDateRange parses an activity date string into a start and end
// day. Single-day shapes return the same day twice.
func ParseDateRange(s string) (time.Time, time.Time, error) {
	if m := singleDatePat.FindStringSubmatch(s); m != nil {
		day, err := time.Parse(siteDateFormat, m[1])
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return day, day, nil
	}
	if m := dateTimePat.FindStringSubmatch(s); m != nil {
		day, err := time.Parse(siteDateFormat, m[1])
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return day, day, nil
	}
	if m := dateRangePat.FindStringSubmatch(s); m != nil {
		start, err := time.Parse(siteDateFormat, m[1])
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := time.Parse(siteDateFormat, m[2])
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return start, end, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unrecognized date string: %q", s)
}
