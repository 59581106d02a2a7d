// Package rotation implements grandfather-father-son retention: the most
// recent backups are kept unconditionally, older ones thin out to one per
// week and then one per month, and everything beyond the last monthly bucket
// is dropped.
package rotation

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Params configures one partition run.
type Params struct {
	// Days is how many of the most recent backups to keep unconditionally.
	Days int
	// Weeks is how many weekly buckets keep one backup each.
	Weeks int
	// Months is how many monthly buckets keep one backup each.
	Months int
	// FirstWeekDay anchors the week boundaries.
	FirstWeekDay time.Weekday
	// Now fixes the reference time of the run.
	Now time.Time
}

// Validate rejects negative keep counts.
func (p Params) Validate() error {
	if p.Days < 0 || p.Weeks < 0 || p.Months < 0 {
		return fmt.Errorf("rotation keep counts must not be negative: days=%d weeks=%d months=%d",
			p.Days, p.Weeks, p.Months)
	}
	return nil
}

// Partition splits dates into the retained and removed sets. The input is
// treated as a set; duplicates collapse. Both result slices come back sorted
// newest first, and together they cover the input exactly.
//
// Tier windows are anchored at Now: the weekly tier considers buckets no
// older than Weeks weeks before Now's week start, the monthly tier buckets
// no older than Months months before Now's month start. Dates older than
// every window fall through and are removed.
//
// Within a weekly or monthly bucket holding several candidates, the oldest
// date wins: it sits closest to the bucket boundary, which is the classic
// grandfather-father-son choice.
func Partition(dates []time.Time, p Params) (retain, remove []time.Time, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}

	uniq := dedupe(dates)
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].After(uniq[j]) })

	kept := make(map[time.Time]bool, len(uniq))

	// Daily tier: the freshest Days dates survive unconditionally.
	n := p.Days
	if n > len(uniq) {
		n = len(uniq)
	}
	for _, d := range uniq[:n] {
		kept[d] = true
	}
	older := uniq[n:]

	if p.Weeks > 0 {
		floor := weekStart(p.Now, p.FirstWeekDay).AddDate(0, 0, -7*p.Weeks)
		keepOldestPerBucket(older, kept, floor, func(d time.Time) time.Time {
			return weekStart(d, p.FirstWeekDay)
		})
	}

	// Monthly tier only sees what the weekly tier left behind.
	if p.Months > 0 {
		var leftover []time.Time
		for _, d := range older {
			if !kept[d] {
				leftover = append(leftover, d)
			}
		}
		floor := monthStart(p.Now).AddDate(0, -p.Months, 0)
		keepOldestPerBucket(leftover, kept, floor, monthStart)
	}

	for _, d := range uniq {
		if kept[d] {
			retain = append(retain, d)
		} else {
			remove = append(remove, d)
		}
	}
	return retain, remove, nil
}

// keepOldestPerBucket marks one date per bucket as kept, for every bucket
// starting at or after floor. dates must be sorted newest first, so the
// last write per bucket is the oldest date in it.
func keepOldestPerBucket(dates []time.Time, kept map[time.Time]bool, floor time.Time, bucket func(time.Time) time.Time) {
	buckets := make(map[time.Time]time.Time) // bucket start -> oldest date seen
	for _, d := range dates {
		b := bucket(d)
		if b.Before(floor) {
			continue
		}
		buckets[b] = d
	}
	for _, d := range buckets {
		kept[d] = true
	}
}

// weekStart returns midnight UTC of the most recent firstWeekDay at or
// before t.
func weekStart(t time.Time, firstWeekDay time.Weekday) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) - int(firstWeekDay) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func dedupe(dates []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(dates))
	var out []time.Time
	for _, d := range dates {
		d = d.UTC()
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// ParseWeekday resolves a config weekday name. An empty name defaults to
// Saturday, matching the historical rotation default.
func ParseWeekday(name string) (time.Weekday, error) {
	if name == "" {
		return time.Saturday, nil
	}
	days := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	d, ok := days[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return d, nil
}
