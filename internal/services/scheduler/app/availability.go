package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/services/scheduler/domain"
	"github.com/quorumcal/quorum/internal/services/scheduler/domain/dnd"
	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
)

// Availability answers read-only free/busy and schedule-summary queries.
// Queries never touch the ledger.
type Availability struct {
	store storage.Store
}

// NewAvailability constructs the availability query service.
func NewAvailability(store storage.Store) *Availability {
	return &Availability{store: store}
}

// BusyBlock is one committed event occupying part of a user's range.
type BusyBlock struct {
	EventID  string
	Title    string
	Tier     domain.Tier
	Interval domain.Interval
}

// UserAvailability is one user's view of a queried range: busy blocks from
// events, resolved quiet hours, and the free gaps left between busy blocks.
type UserAvailability struct {
	UserID     string
	Busy       []BusyBlock
	QuietHours []domain.Interval
	Free       []domain.Interval
}

// FreeBusy computes availability for each user across the half-open
// [start, end) range. Free gaps complement the union of busy blocks only;
// quiet hours are reported separately so callers can distinguish preference
// from commitment.
func (a *Availability) FreeBusy(ctx context.Context, userIDs []string, start, end time.Time) ([]UserAvailability, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("availability is not configured")
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	results := make([]UserAvailability, 0, len(userIDs))
	for _, userID := range userIDs {
		record, err := a.store.GetUser(ctx, userID)
		if err != nil {
			return nil, mapStoreErr(err, "user "+userID)
		}
		user := userFromRecord(record)

		events, err := a.store.ListEventsByUser(ctx, userID, start, end)
		if err != nil {
			return nil, err
		}
		busy := make([]BusyBlock, 0, len(events))
		for _, event := range events {
			busy = append(busy, BusyBlock{
				EventID:  event.ID,
				Title:    event.Title,
				Tier:     domain.Tier(event.Tier),
				Interval: domain.Interval{Start: event.StartUTC, End: event.EndUTC},
			})
		}

		var quiet []domain.Interval
		if user.QuietHours != nil {
			quiet, err = dnd.WindowsAround(*user.QuietHours, user.DefaultTimezone, start, end)
			if err != nil {
				return nil, err
			}
		}

		results = append(results, UserAvailability{
			UserID:     userID,
			Busy:       busy,
			QuietHours: quiet,
			Free:       freeGaps(busy, start, end),
		})
	}
	return results, nil
}

// ScheduleEntry pairs an event with the user's own RSVP state.
type ScheduleEntry struct {
	Event domain.Event
	RSVP  domain.RSVPStatus
}

// ScheduleSummary aggregates one user's events over a range.
type ScheduleSummary struct {
	UserID  string
	Entries []ScheduleEntry
	ByTier  map[domain.Tier]int
	ByRSVP  map[domain.RSVPStatus]int
}

// Summarize returns a user's events in start order with per-tier and
// per-reply counts.
func (a *Availability) Summarize(ctx context.Context, userID string, start, end time.Time) (ScheduleSummary, error) {
	if a == nil || a.store == nil {
		return ScheduleSummary{}, fmt.Errorf("availability is not configured")
	}
	if err := validateRange(start, end); err != nil {
		return ScheduleSummary{}, err
	}
	if _, err := a.store.GetUser(ctx, userID); err != nil {
		return ScheduleSummary{}, mapStoreErr(err, "user "+userID)
	}

	events, err := a.store.ListEventsByUser(ctx, userID, start, end)
	if err != nil {
		return ScheduleSummary{}, err
	}

	summary := ScheduleSummary{
		UserID:  userID,
		Entries: make([]ScheduleEntry, 0, len(events)),
		ByTier:  make(map[domain.Tier]int),
		ByRSVP:  make(map[domain.RSVPStatus]int),
	}
	for _, record := range events {
		attendee, err := a.store.GetAttendee(ctx, record.ID, userID)
		if err != nil {
			return ScheduleSummary{}, mapStoreErr(err, "attendee "+userID)
		}
		entry := ScheduleEntry{
			Event: eventFromRecord(record),
			RSVP:  domain.RSVPStatus(attendee.Status),
		}
		summary.Entries = append(summary.Entries, entry)
		summary.ByTier[entry.Event.Tier]++
		summary.ByRSVP[entry.RSVP]++
	}
	return summary, nil
}

// freeGaps subtracts the merged union of busy blocks from [start, end).
func freeGaps(busy []BusyBlock, start, end time.Time) []domain.Interval {
	intervals := make([]domain.Interval, 0, len(busy))
	for _, block := range busy {
		interval := block.Interval
		if interval.Start.Before(start) {
			interval.Start = start
		}
		if interval.End.After(end) {
			interval.End = end
		}
		if interval.End.After(interval.Start) {
			intervals = append(intervals, interval)
		}
	}
	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})

	var free []domain.Interval
	cursor := start
	for _, interval := range intervals {
		if interval.Start.After(cursor) {
			free = append(free, domain.Interval{Start: cursor, End: interval.Start})
		}
		if interval.End.After(cursor) {
			cursor = interval.End
		}
	}
	if end.After(cursor) {
		free = append(free, domain.Interval{Start: cursor, End: end})
	}
	return free
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return apperrors.WithMetadata(apperrors.CodeEventInvalidTimeRange,
			"query range end must be after start",
			map[string]string{
				"Start": start.Format(time.RFC3339),
				"End":   end.Format(time.RFC3339),
			})
	}
	return nil
}
