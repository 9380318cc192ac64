package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/platform/id"
)

// Tier describes how strictly an event defends its time slot.
type Tier string

const (
	// TierHard events may not overlap other hard events or attendee quiet hours.
	TierHard Tier = "Hard"
	// TierSoft events tolerate overlap with anything.
	TierSoft Tier = "Soft"
)

// ParseTier validates a constraint tier literal.
func ParseTier(value string) (Tier, error) {
	switch Tier(value) {
	case TierHard, TierSoft:
		return Tier(value), nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeEventInvalidTier,
			fmt.Sprintf("unknown constraint tier %q", value),
			map[string]string{"Tier": value})
	}
}

// Status describes the event lifecycle. The only transition is
// StatusScheduled to StatusCancelled; rows are never deleted.
type Status string

const (
	// StatusScheduled is the live state of an event.
	StatusScheduled Status = "Scheduled"
	// StatusCancelled is terminal; cancelled events are immutable.
	StatusCancelled Status = "Cancelled"
)

// Interval is a half-open UTC time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Event is a scheduled calendar entry owned by a group.
type Event struct {
	ID          string
	GroupID     string
	OrganizerID string
	Title       string
	StartUTC    time.Time
	EndUTC      time.Time
	Tier        Tier
	Status      Status
	// Version increments on every accepted mutation of the event itself.
	// RSVP changes do not touch it.
	Version int64

	CancelledAt       *time.Time
	CancelledByUserID string
	CancelReason      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval returns the event's half-open UTC time range.
func (e Event) Interval() Interval {
	return Interval{Start: e.StartUTC, End: e.EndUTC}
}

// CreateEventInput describes the fields needed to schedule an event.
type CreateEventInput struct {
	GroupID     string
	OrganizerID string
	Title       string
	StartUTC    time.Time
	EndUTC      time.Time
	Tier        Tier
}

// NewEvent validates input and creates an event at version 1.
func NewEvent(input CreateEventInput, now func() time.Time, idGenerator func() (string, error)) (Event, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Event{}, apperrors.New(apperrors.CodeEventTitleEmpty, "event title is required")
	}
	if err := validateTimeRange(input.StartUTC, input.EndUTC); err != nil {
		return Event{}, err
	}
	tier := input.Tier
	if tier == "" {
		tier = TierSoft
	}
	if _, err := ParseTier(string(tier)); err != nil {
		return Event{}, err
	}

	eventID, err := idGenerator()
	if err != nil {
		return Event{}, fmt.Errorf("generate event id: %w", err)
	}

	createdAt := now().UTC()
	return Event{
		ID:          eventID,
		GroupID:     input.GroupID,
		OrganizerID: input.OrganizerID,
		Title:       title,
		StartUTC:    input.StartUTC.UTC(),
		EndUTC:      input.EndUTC.UTC(),
		Tier:        tier,
		Status:      StatusScheduled,
		Version:     1,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// EventChanges is a partial update to an event. Nil fields are untouched.
type EventChanges struct {
	Title    *string    `json:"title,omitempty"`
	StartUTC *time.Time `json:"start_utc,omitempty"`
	EndUTC   *time.Time `json:"end_utc,omitempty"`
	Tier     *Tier      `json:"tier,omitempty"`
}

// IsZero reports whether no field is set.
func (c EventChanges) IsZero() bool {
	return c.Title == nil && c.StartUTC == nil && c.EndUTC == nil && c.Tier == nil
}

// Apply returns a copy of the event with the changes applied and the version
// incremented. Cancelled events are immutable.
func (e Event) Apply(changes EventChanges, now func() time.Time) (Event, error) {
	if now == nil {
		now = time.Now
	}
	if e.Status == StatusCancelled {
		return Event{}, apperrors.WithMetadata(apperrors.CodeEventCancelledImmutable,
			fmt.Sprintf("event %s is cancelled and cannot change", e.ID),
			map[string]string{"EventID": e.ID})
	}
	if changes.IsZero() {
		return Event{}, apperrors.New(apperrors.CodeChangeRequestEmpty, "no changes supplied")
	}

	updated := e
	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return Event{}, apperrors.New(apperrors.CodeEventTitleEmpty, "event title is required")
		}
		updated.Title = title
	}
	if changes.StartUTC != nil {
		updated.StartUTC = changes.StartUTC.UTC()
	}
	if changes.EndUTC != nil {
		updated.EndUTC = changes.EndUTC.UTC()
	}
	if err := validateTimeRange(updated.StartUTC, updated.EndUTC); err != nil {
		return Event{}, err
	}
	if changes.Tier != nil {
		tier, err := ParseTier(string(*changes.Tier))
		if err != nil {
			return Event{}, err
		}
		updated.Tier = tier
	}

	updated.Version = e.Version + 1
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

// Cancel returns a copy of the event in the terminal cancelled state.
func (e Event) Cancel(actorID, reason string, now func() time.Time) (Event, error) {
	if now == nil {
		now = time.Now
	}
	if e.Status == StatusCancelled {
		return Event{}, apperrors.WithMetadata(apperrors.CodeEventAlreadyCancelled,
			fmt.Sprintf("event %s is already cancelled", e.ID),
			map[string]string{"EventID": e.ID})
	}

	cancelledAt := now().UTC()
	updated := e
	updated.Status = StatusCancelled
	updated.CancelledAt = &cancelledAt
	updated.CancelledByUserID = actorID
	updated.CancelReason = strings.TrimSpace(reason)
	updated.Version = e.Version + 1
	updated.UpdatedAt = cancelledAt
	return updated, nil
}

func validateTimeRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return apperrors.WithMetadata(apperrors.CodeEventInvalidTimeRange,
			fmt.Sprintf("event end %s must be after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)),
			map[string]string{
				"Start": start.Format(time.RFC3339),
				"End":   end.Format(time.RFC3339),
			})
	}
	return nil
}
