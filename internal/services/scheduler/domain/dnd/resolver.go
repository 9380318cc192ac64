// Package dnd resolves per-user local quiet-hours windows into absolute UTC
// intervals. Resolution is pure: the same window, zone, and date always yield
// the same intervals.
package dnd

import (
	"fmt"
	"time"
	// Embedded IANA database so zone lookups work without a host zoneinfo dir.
	_ "time/tzdata"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/services/scheduler/domain"
)

// Resolve maps a quiet-hours window onto the local calendar day containing
// day (interpreted in zone) and returns the resulting UTC intervals.
//
// A window that does not wrap midnight yields one interval. A wrapping window
// (start > end) is split at local midnight and yields two: the evening part
// of the given day and the morning part of the same day.
func Resolve(window domain.QuietWindow, zone string, day time.Time) ([]domain.Interval, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	loc, err := loadZone(zone)
	if err != nil {
		return nil, err
	}

	local := day.In(loc)
	year, month, dom := local.Date()
	// time.Date normalizes overflowing minutes, so minute offsets from local
	// midnight stay correct across DST transitions.
	at := func(dayOffset, minute int) time.Time {
		return time.Date(year, month, dom+dayOffset, 0, minute, 0, 0, loc).UTC()
	}

	if !window.Wraps() {
		return []domain.Interval{
			{Start: at(0, window.StartMinute), End: at(0, window.EndMinute)},
		}, nil
	}
	return []domain.Interval{
		{Start: at(0, 0), End: at(0, window.EndMinute)},
		{Start: at(0, window.StartMinute), End: at(1, 0)},
	}, nil
}

// WindowsAround returns every quiet-hours interval that could intersect the
// half-open UTC range [start, end): the window is resolved for each local day
// the range touches, padded by one day on each side, and intervals outside
// the range are dropped.
func WindowsAround(window domain.QuietWindow, zone string, start, end time.Time) ([]domain.Interval, error) {
	if !end.After(start) {
		return nil, nil
	}

	query := domain.Interval{Start: start, End: end}
	var out []domain.Interval
	seen := make(map[time.Time]bool)

	for day := start.AddDate(0, 0, -1); !day.After(end.AddDate(0, 0, 1)); day = day.AddDate(0, 0, 1) {
		intervals, err := Resolve(window, zone, day)
		if err != nil {
			return nil, err
		}
		for _, interval := range intervals {
			if !interval.Overlaps(query) {
				continue
			}
			if seen[interval.Start] {
				continue
			}
			seen[interval.Start] = true
			out = append(out, interval)
		}
	}
	return out, nil
}

func loadZone(zone string) (*time.Location, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, apperrors.WithMetadata(apperrors.CodeUserInvalidTimezone,
			fmt.Sprintf("timezone %q is not a valid IANA zone", zone),
			map[string]string{"Timezone": zone})
	}
	return loc, nil
}
