// Package app orchestrates scheduler mutations: validation, conflict
// evaluation, optimistic-concurrency writes, and the append-only ledger.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/platform/id"
	"github.com/quorumcal/quorum/internal/services/scheduler/domain"
	"github.com/quorumcal/quorum/internal/services/scheduler/domain/conflict"
	"github.com/quorumcal/quorum/internal/services/scheduler/domain/dnd"
	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
)

const tracerName = "github.com/quorumcal/quorum/internal/services/scheduler/app"

// Coordinator serializes event mutations through conflict evaluation,
// compare-and-swap persistence, and ledger appends.
type Coordinator struct {
	store    storage.Store
	notifier Notifier
	clock    func() time.Time
	newID    func() (string, error)
	tracer   trace.Tracer
}

// NewCoordinator constructs the mutation coordinator. A nil clock defaults to
// time.Now and a nil newID to the platform generator.
func NewCoordinator(store storage.Store, notifier Notifier, clock func() time.Time, newID func() (string, error)) *Coordinator {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Coordinator{
		store:    store,
		notifier: notifier,
		clock:    clock,
		newID:    newID,
		tracer:   otel.Tracer(tracerName),
	}
}

// CreateEventInput describes one event creation call.
type CreateEventInput struct {
	GroupID     string
	OrganizerID string
	Title       string
	StartUTC    time.Time
	EndUTC      time.Time
	Tier        domain.Tier
	// InviteeIDs are persisted as invited attendees; the organizer is always
	// added as going and need not be listed.
	InviteeIDs []string
	// IdempotencyKey makes retried calls safe. Assigned when empty.
	IdempotencyKey string
}

// UpdateEventInput describes one organizer edit.
type UpdateEventInput struct {
	EventID         string
	ExpectedVersion int64
	ActorID         string
	Changes         domain.EventChanges
	IdempotencyKey  string
}

// CancelEventInput describes one cancellation.
type CancelEventInput struct {
	EventID         string
	ExpectedVersion int64
	ActorID         string
	Reason          string
	IdempotencyKey  string
}

// RSVPInput describes one attendee reply.
type RSVPInput struct {
	EventID        string
	UserID         string
	Status         string
	IdempotencyKey string
}

// EventResult carries the committed event state plus any non-blocking
// scheduling warnings.
type EventResult struct {
	Event    domain.Event
	Warnings []conflict.Warning
	// Replayed reports that the idempotency key had already been recorded
	// and the prior result was returned without a new mutation.
	Replayed bool
}

// CreateEvent validates membership, evaluates conflicts for every
// prospective attendee, and persists the event at version 1 together with
// its create ledger entry.
func (c *Coordinator) CreateEvent(ctx context.Context, input CreateEventInput) (EventResult, error) {
	if c == nil || c.store == nil {
		return EventResult{}, fmt.Errorf("coordinator is not configured")
	}
	ctx, span := c.tracer.Start(ctx, "Coordinator.CreateEvent",
		trace.WithAttributes(attribute.String("group.id", input.GroupID)))
	defer span.End()

	key, replayed, err := c.replayEvent(ctx, input.IdempotencyKey)
	if err != nil {
		return EventResult{}, err
	}
	if replayed != nil {
		return EventResult{Event: *replayed, Replayed: true}, nil
	}

	if _, err := c.store.GetGroup(ctx, input.GroupID); err != nil {
		return EventResult{}, mapStoreErr(err, "group "+input.GroupID)
	}
	if _, err := c.store.GetUser(ctx, input.OrganizerID); err != nil {
		return EventResult{}, mapStoreErr(err, "user "+input.OrganizerID)
	}
	if err := c.requireMembership(ctx, input.GroupID, input.OrganizerID); err != nil {
		return EventResult{}, err
	}

	event, err := domain.NewEvent(domain.CreateEventInput{
		GroupID:     input.GroupID,
		OrganizerID: input.OrganizerID,
		Title:       input.Title,
		StartUTC:    input.StartUTC,
		EndUTC:      input.EndUTC,
		Tier:        input.Tier,
	}, c.clock, c.newID)
	if err != nil {
		return EventResult{}, err
	}

	attendees := []domain.Attendee{{
		EventID:  event.ID,
		UserID:   event.OrganizerID,
		Status:   domain.RSVPGoing,
		Required: true,
	}}
	for _, inviteeID := range input.InviteeIDs {
		if inviteeID == event.OrganizerID {
			continue
		}
		if err := c.requireMembership(ctx, input.GroupID, inviteeID); err != nil {
			return EventResult{}, err
		}
		attendees = append(attendees, domain.Attendee{
			EventID:  event.ID,
			UserID:   inviteeID,
			Status:   domain.RSVPInvited,
			Required: true,
		})
	}

	warnings, err := c.evaluate(ctx, event, attendeeIDs(attendees), "")
	if err != nil {
		return EventResult{}, err
	}

	entry, err := c.newEntry(domain.ActionCreate, nil, event, input.OrganizerID, key, "")
	if err != nil {
		return EventResult{}, err
	}
	now := c.clock().UTC()
	records := make([]storage.AttendeeRecord, 0, len(attendees))
	for _, attendee := range attendees {
		records = append(records, attendeeToRecord(attendee, now, now))
	}
	if err := c.store.CreateEvent(ctx, eventToRecord(event), records, entry); err != nil {
		if errors.Is(err, storage.ErrDuplicateIdempotencyKey) {
			return c.replayRace(ctx, key)
		}
		return EventResult{}, err
	}

	notify(ctx, c.notifier, Signal{EventID: event.ID, Action: domain.ActionCreate, Version: event.Version})
	return EventResult{Event: event, Warnings: warnings}, nil
}

// UpdateEvent applies an organizer edit under optimistic concurrency. The
// candidate is re-evaluated as if newly proposed, excluding itself from the
// overlap set.
func (c *Coordinator) UpdateEvent(ctx context.Context, input UpdateEventInput) (EventResult, error) {
	if c == nil || c.store == nil {
		return EventResult{}, fmt.Errorf("coordinator is not configured")
	}
	ctx, span := c.tracer.Start(ctx, "Coordinator.UpdateEvent",
		trace.WithAttributes(attribute.String("event.id", input.EventID)))
	defer span.End()

	key, replayed, err := c.replayEvent(ctx, input.IdempotencyKey)
	if err != nil {
		return EventResult{}, err
	}
	if replayed != nil {
		return EventResult{Event: *replayed, Replayed: true}, nil
	}

	event, err := c.loadEvent(ctx, input.EventID)
	if err != nil {
		return EventResult{}, err
	}
	if event.OrganizerID != input.ActorID {
		return EventResult{}, notOrganizerErr(event.ID, input.ActorID)
	}
	if event.Version != input.ExpectedVersion {
		return EventResult{}, versionMismatchErr(event.ID, input.ExpectedVersion, event.Version)
	}

	updated, err := event.Apply(input.Changes, c.clock)
	if err != nil {
		return EventResult{}, err
	}

	attendees, err := c.store.ListAttendees(ctx, event.ID)
	if err != nil {
		return EventResult{}, mapStoreErr(err, "attendees of "+event.ID)
	}
	ids := make([]string, 0, len(attendees))
	for _, attendee := range attendees {
		ids = append(ids, attendee.UserID)
	}
	warnings, err := c.evaluate(ctx, updated, ids, event.ID)
	if err != nil {
		return EventResult{}, err
	}

	entry, err := c.newEntry(domain.ActionUpdate, &event, updated, input.ActorID, key, "")
	if err != nil {
		return EventResult{}, err
	}
	if err := c.store.UpdateEvent(ctx, eventToRecord(updated), input.ExpectedVersion, entry); err != nil {
		if errors.Is(err, storage.ErrDuplicateIdempotencyKey) {
			return c.replayRace(ctx, key)
		}
		return EventResult{}, mapStoreErr(err, "event "+event.ID)
	}

	notify(ctx, c.notifier, Signal{EventID: updated.ID, Action: domain.ActionUpdate, Version: updated.Version})
	return EventResult{Event: updated, Warnings: warnings}, nil
}

// CancelEvent transitions an event to its terminal cancelled state. The row
// is never deleted.
func (c *Coordinator) CancelEvent(ctx context.Context, input CancelEventInput) (EventResult, error) {
	if c == nil || c.store == nil {
		return EventResult{}, fmt.Errorf("coordinator is not configured")
	}
	ctx, span := c.tracer.Start(ctx, "Coordinator.CancelEvent",
		trace.WithAttributes(attribute.String("event.id", input.EventID)))
	defer span.End()

	key, replayed, err := c.replayEvent(ctx, input.IdempotencyKey)
	if err != nil {
		return EventResult{}, err
	}
	if replayed != nil {
		return EventResult{Event: *replayed, Replayed: true}, nil
	}

	event, err := c.loadEvent(ctx, input.EventID)
	if err != nil {
		return EventResult{}, err
	}
	if event.OrganizerID != input.ActorID {
		return EventResult{}, notOrganizerErr(event.ID, input.ActorID)
	}
	if event.Version != input.ExpectedVersion {
		return EventResult{}, versionMismatchErr(event.ID, input.ExpectedVersion, event.Version)
	}

	cancelled, err := event.Cancel(input.ActorID, input.Reason, c.clock)
	if err != nil {
		return EventResult{}, err
	}

	entry, err := c.newEntry(domain.ActionCancel, &event, cancelled, input.ActorID, key, "")
	if err != nil {
		return EventResult{}, err
	}
	if err := c.store.UpdateEvent(ctx, eventToRecord(cancelled), input.ExpectedVersion, entry); err != nil {
		if errors.Is(err, storage.ErrDuplicateIdempotencyKey) {
			return c.replayRace(ctx, key)
		}
		return EventResult{}, mapStoreErr(err, "event "+event.ID)
	}

	notify(ctx, c.notifier, Signal{EventID: cancelled.ID, Action: domain.ActionCancel, Version: cancelled.Version})
	return EventResult{Event: cancelled, Warnings: nil}, nil
}

// RSVP records an attendee reply. The event version is untouched: replies
// are per-attendee state, not event state.
func (c *Coordinator) RSVP(ctx context.Context, input RSVPInput) (domain.Attendee, error) {
	if c == nil || c.store == nil {
		return domain.Attendee{}, fmt.Errorf("coordinator is not configured")
	}
	ctx, span := c.tracer.Start(ctx, "Coordinator.RSVP",
		trace.WithAttributes(attribute.String("event.id", input.EventID)))
	defer span.End()

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	} else {
		if _, err := c.store.GetMutationByIdempotencyKey(ctx, key); err == nil {
			record, err := c.store.GetAttendee(ctx, input.EventID, input.UserID)
			if err != nil {
				return domain.Attendee{}, mapStoreErr(err, "attendee "+input.UserID)
			}
			return attendeeFromRecord(record), nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return domain.Attendee{}, err
		}
	}

	status, err := domain.ParseRSVPStatus(input.Status)
	if err != nil {
		return domain.Attendee{}, err
	}

	event, err := c.loadEvent(ctx, input.EventID)
	if err != nil {
		return domain.Attendee{}, err
	}
	if event.Status == domain.StatusCancelled {
		return domain.Attendee{}, apperrors.WithMetadata(apperrors.CodeEventAlreadyCancelled,
			fmt.Sprintf("event %s is cancelled; replies are closed", event.ID),
			map[string]string{"EventID": event.ID})
	}

	record, err := c.store.GetAttendee(ctx, input.EventID, input.UserID)
	if err != nil {
		return domain.Attendee{}, mapStoreErr(err, "attendee "+input.UserID)
	}

	now := c.clock().UTC()
	attendee := attendeeFromRecord(record)
	attendee.Status = status
	attendee.RespondedAt = &now

	entry, err := c.newEntry(domain.ActionRSVP, &event, event, input.UserID, key, "")
	if err != nil {
		return domain.Attendee{}, err
	}
	if err := c.store.SetAttendeeStatus(ctx, attendeeToRecord(attendee, record.CreatedAt, now), entry); err != nil {
		if errors.Is(err, storage.ErrDuplicateIdempotencyKey) {
			return attendee, nil
		}
		return domain.Attendee{}, mapStoreErr(err, "attendee "+input.UserID)
	}

	notify(ctx, c.notifier, Signal{EventID: event.ID, Action: domain.ActionRSVP, Version: event.Version})
	return attendee, nil
}

// evaluate runs the conflict rules for a proposed event placement: overlap
// candidates come from the store, quiet hours from each attendee's resolved
// DND windows.
func (c *Coordinator) evaluate(ctx context.Context, event domain.Event, attendeeUserIDs []string, excludeEventID string) ([]conflict.Warning, error) {
	busyRecords, err := c.store.ListOverlapping(ctx, attendeeUserIDs, event.StartUTC, event.EndUTC, excludeEventID)
	if err != nil {
		return nil, err
	}
	busy := make([]conflict.Busy, 0, len(busyRecords))
	for _, record := range busyRecords {
		busy = append(busy, conflict.Busy{
			EventID:  record.ID,
			Title:    record.Title,
			Tier:     domain.Tier(record.Tier),
			Interval: domain.Interval{Start: record.StartUTC, End: record.EndUTC},
		})
	}

	var intervals []conflict.UserIntervals
	for _, userID := range attendeeUserIDs {
		record, err := c.store.GetUser(ctx, userID)
		if err != nil {
			return nil, mapStoreErr(err, "user "+userID)
		}
		user := userFromRecord(record)
		if user.QuietHours == nil {
			continue
		}
		windows, err := dnd.WindowsAround(*user.QuietHours, user.DefaultTimezone, event.StartUTC, event.EndUTC)
		if err != nil {
			return nil, err
		}
		if len(windows) == 0 {
			continue
		}
		intervals = append(intervals, conflict.UserIntervals{UserID: userID, Intervals: windows})
	}

	decision := conflict.Evaluate(conflict.Candidate{
		Interval:       event.Interval(),
		Tier:           event.Tier,
		AttendeeIDs:    attendeeUserIDs,
		ExcludeEventID: excludeEventID,
	}, busy, intervals)
	if !decision.Allowed {
		return nil, decision.Reason
	}
	return decision.Warnings, nil
}

// replayEvent resolves the idempotency key for an event mutation. When the
// key was already recorded, the previously committed event state is returned
// and no new mutation happens.
func (c *Coordinator) replayEvent(ctx context.Context, key string) (string, *domain.Event, error) {
	if key == "" {
		return uuid.NewString(), nil, nil
	}
	entry, err := c.store.GetMutationByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return key, nil, nil
		}
		return "", nil, err
	}
	snapshot, err := domain.UnmarshalSnapshot(entry.After)
	if err != nil {
		return "", nil, err
	}
	event, err := snapshot.Event()
	if err != nil {
		return "", nil, err
	}
	return key, &event, nil
}

// replayRace handles losing an idempotency-key insert race to a concurrent
// identical request.
func (c *Coordinator) replayRace(ctx context.Context, key string) (EventResult, error) {
	_, event, err := c.replayEvent(ctx, key)
	if err != nil {
		return EventResult{}, err
	}
	if event == nil {
		return EventResult{}, storage.ErrDuplicateIdempotencyKey
	}
	return EventResult{Event: *event, Replayed: true}, nil
}

func (c *Coordinator) loadEvent(ctx context.Context, eventID string) (domain.Event, error) {
	record, err := c.store.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, mapStoreErr(err, "event "+eventID)
	}
	return eventFromRecord(record), nil
}

func (c *Coordinator) requireMembership(ctx context.Context, groupID, userID string) error {
	_, err := c.store.GetMembership(ctx, groupID, userID)
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(apperrors.CodeGroupMembershipRequired,
			fmt.Sprintf("user %s is not a member of group %s", userID, groupID),
			map[string]string{"GroupID": groupID, "UserID": userID})
	}
	return err
}

func (c *Coordinator) newEntry(action domain.Action, before *domain.Event, after domain.Event, actorID, key, requestID string) (storage.MutationRecord, error) {
	entryID, err := c.newID()
	if err != nil {
		return storage.MutationRecord{}, fmt.Errorf("generate mutation id: %w", err)
	}
	entry := storage.MutationRecord{
		ID:             entryID,
		EventID:        after.ID,
		ActorID:        actorID,
		Action:         string(action),
		After:          domain.MarshalSnapshot(domain.Snapshot(after)),
		IdempotencyKey: key,
		RequestID:      requestID,
		CreatedAt:      c.clock().UTC(),
	}
	if before != nil {
		entry.Before = domain.MarshalSnapshot(domain.Snapshot(*before))
	}
	return entry, nil
}

func attendeeIDs(attendees []domain.Attendee) []string {
	ids := make([]string, 0, len(attendees))
	for _, attendee := range attendees {
		ids = append(ids, attendee.UserID)
	}
	return ids
}

func mapStoreErr(err error, subject string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, subject+" not found", err)
	case errors.Is(err, storage.ErrVersionConflict):
		return apperrors.Wrap(apperrors.CodeEventVersionMismatch, subject+" changed concurrently", err)
	default:
		return err
	}
}

func notOrganizerErr(eventID, actorID string) error {
	return apperrors.WithMetadata(apperrors.CodeEventNotOrganizer,
		fmt.Sprintf("user %s is not the organizer of event %s", actorID, eventID),
		map[string]string{"EventID": eventID, "ActorID": actorID})
}

func versionMismatchErr(eventID string, expected, stored int64) error {
	return apperrors.WithMetadata(apperrors.CodeEventVersionMismatch,
		fmt.Sprintf("event %s is at version %d, caller expected %d", eventID, stored, expected),
		map[string]string{"EventID": eventID})
}
