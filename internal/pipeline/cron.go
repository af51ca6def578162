package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression:
// "minute hour day-of-month month day-of-week". Each field accepts "*",
// numbers, lists ("1,15"), ranges ("1-5") and steps ("*/10", "0-30/5").
type Schedule struct {
	minute, hour, dom, month, dow fieldSet
}

// fieldSet is a bitmask of allowed values; bit i set means value i matches.
type fieldSet uint64

func (f fieldSet) has(v int) bool { return f&(1<<uint(v)) != 0 }

var cronBounds = [5]struct{ lo, hi int }{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week
}

// ParseCron parses a 5-field cron expression.
func ParseCron(expr string) (Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return Schedule{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}
	var sets [5]fieldSet
	for i, f := range fields {
		set, err := parseField(f, cronBounds[i].lo, cronBounds[i].hi)
		if err != nil {
			return Schedule{}, fmt.Errorf("field %d %q: %w", i+1, f, err)
		}
		sets[i] = set
	}
	return Schedule{minute: sets[0], hour: sets[1], dom: sets[2], month: sets[3], dow: sets[4]}, nil
}

func parseField(field string, lo, hi int) (fieldSet, error) {
	var set fieldSet
	for _, part := range strings.Split(field, ",") {
		rng, step := part, 1
		if i := strings.IndexByte(part, '/'); i >= 0 {
			s, err := strconv.Atoi(part[i+1:])
			if err != nil || s <= 0 {
				return 0, fmt.Errorf("invalid step %q", part[i+1:])
			}
			rng, step = part[:i], s
		}

		from, to := lo, hi
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			a, b, _ := strings.Cut(rng, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return 0, fmt.Errorf("invalid range start %q", a)
			}
			if to, err = strconv.Atoi(b); err != nil {
				return 0, fmt.Errorf("invalid range end %q", b)
			}
		default:
			v, err := strconv.Atoi(rng)
			if err != nil {
				return 0, fmt.Errorf("invalid value %q", rng)
			}
			from, to = v, v
			if step > 1 {
				to = hi
			}
		}
		if from < lo || to > hi || from > to {
			return 0, fmt.Errorf("value out of range [%d,%d]", lo, hi)
		}
		for v := from; v <= to; v += step {
			set |= 1 << uint(v)
		}
	}
	return set, nil
}

// Matches reports whether t (to the minute) satisfies the schedule.
func (s Schedule) Matches(t time.Time) bool {
	return s.minute.has(t.Minute()) &&
		s.hour.has(t.Hour()) &&
		s.dom.has(t.Day()) &&
		s.month.has(int(t.Month())) &&
		s.dow.has(int(t.Weekday()))
}

// Next returns the first matching minute strictly after after. It searches
// up to one year ahead.
func (s Schedule) Next(after time.Time) (time.Time, error) {
	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if s.Matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time within one year")
}
