// Package conflict decides whether a proposed event time can coexist with a
// group's existing schedule and quiet hours. Evaluation is pure and
// symmetric: the outcome never depends on the order of the existing events.
package conflict

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/services/scheduler/domain"
)

// Candidate is a proposed event placement under evaluation. For updates,
// ExcludeEventID carries the event's own id so it does not conflict with
// itself.
type Candidate struct {
	Interval       domain.Interval
	Tier           domain.Tier
	AttendeeIDs    []string
	ExcludeEventID string
}

// Busy is an existing non-cancelled event sharing at least one attendee with
// the candidate.
type Busy struct {
	EventID  string
	Title    string
	Tier     domain.Tier
	Interval domain.Interval
}

// UserIntervals holds one attendee's resolved quiet-hours intervals.
type UserIntervals struct {
	UserID    string
	Intervals []domain.Interval
}

// Warning flags a non-blocking scheduling concern on an accepted candidate.
type Warning struct {
	UserID   string
	Interval domain.Interval
}

// Decision is the evaluator's verdict. Reason is nil when Allowed.
type Decision struct {
	Allowed  bool
	Reason   error
	Warnings []Warning
}

// Evaluate applies the scheduling rules in precedence order: a Hard candidate
// overlapping an existing Hard event is rejected first, then a Hard candidate
// intersecting any attendee's quiet hours. Soft candidates always pass, with
// warnings when they fall inside quiet hours.
func Evaluate(candidate Candidate, existing []Busy, dnd []UserIntervals) Decision {
	overlapping := overlapSet(candidate, existing)

	if candidate.Tier == domain.TierHard {
		if reject := hardConflict(overlapping); reject != nil {
			return Decision{Reason: reject}
		}
		if reject := quietHoursConflict(candidate, dnd); reject != nil {
			return Decision{Reason: reject}
		}
	}

	return Decision{Allowed: true, Warnings: dndWarnings(candidate, dnd)}
}

func overlapSet(candidate Candidate, existing []Busy) []Busy {
	var out []Busy
	for _, busy := range existing {
		if busy.EventID == candidate.ExcludeEventID && candidate.ExcludeEventID != "" {
			continue
		}
		if busy.Interval.Overlaps(candidate.Interval) {
			out = append(out, busy)
		}
	}
	return out
}

func hardConflict(overlapping []Busy) error {
	var ids []string
	for _, busy := range overlapping {
		if busy.Tier == domain.TierHard {
			ids = append(ids, busy.EventID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)
	return apperrors.WithMetadata(apperrors.CodeSchedulingHardConflict,
		fmt.Sprintf("candidate overlaps %d hard-tier event(s)", len(ids)),
		map[string]string{"ConflictingEventIDs": strings.Join(ids, ",")})
}

func quietHoursConflict(candidate Candidate, dnd []UserIntervals) error {
	violated := intersections(candidate.Interval, dnd)
	if len(violated) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var users []string
	for _, warning := range violated {
		if seen[warning.UserID] {
			continue
		}
		seen[warning.UserID] = true
		users = append(users, warning.UserID)
	}
	sort.Strings(users)
	return apperrors.WithMetadata(apperrors.CodeSchedulingQuietHours,
		fmt.Sprintf("candidate falls inside quiet hours of %d attendee(s)", len(users)),
		map[string]string{"UserIDs": strings.Join(users, ",")})
}

func dndWarnings(candidate Candidate, dnd []UserIntervals) []Warning {
	if candidate.Tier != domain.TierSoft {
		return nil
	}
	return intersections(candidate.Interval, dnd)
}

func intersections(interval domain.Interval, dnd []UserIntervals) []Warning {
	var out []Warning
	for _, user := range dnd {
		for _, quiet := range user.Intervals {
			if quiet.Overlaps(interval) {
				out = append(out, Warning{UserID: user.UserID, Interval: quiet})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Interval.Start.Before(out[j].Interval.Start)
	})
	return out
}
