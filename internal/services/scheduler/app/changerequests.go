package app

import (
	"context"
	"encoding/json"
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
	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
)

// ChangeRequests runs the propose-approve-reject workflow for non-organizer
// event edits. Approvals flow through the same conflict evaluation and
// optimistic-concurrency path as a direct organizer update.
type ChangeRequests struct {
	store       storage.Store
	coordinator *Coordinator
	clock       func() time.Time
	newID       func() (string, error)
	tracer      trace.Tracer
}

// NewChangeRequests constructs the change-request workflow service.
func NewChangeRequests(store storage.Store, coordinator *Coordinator, clock func() time.Time, newID func() (string, error)) *ChangeRequests {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &ChangeRequests{
		store:       store,
		coordinator: coordinator,
		clock:       clock,
		newID:       newID,
		tracer:      otel.Tracer(tracerName),
	}
}

// SubmitInput describes one proposed edit.
type SubmitInput struct {
	EventID    string
	ProposerID string
	Changes    domain.EventChanges
}

// Submit stores a pending change request. Organizers cannot propose: they
// edit directly.
func (s *ChangeRequests) Submit(ctx context.Context, input SubmitInput) (domain.ChangeRequest, error) {
	if s == nil || s.store == nil {
		return domain.ChangeRequest{}, fmt.Errorf("change requests are not configured")
	}
	ctx, span := s.tracer.Start(ctx, "ChangeRequests.Submit",
		trace.WithAttributes(attribute.String("event.id", input.EventID)))
	defer span.End()

	event, err := s.loadEvent(ctx, input.EventID)
	if err != nil {
		return domain.ChangeRequest{}, err
	}
	if event.Status == domain.StatusCancelled {
		return domain.ChangeRequest{}, apperrors.WithMetadata(apperrors.CodeEventCancelledImmutable,
			fmt.Sprintf("event %s is cancelled and cannot change", event.ID),
			map[string]string{"EventID": event.ID})
	}
	if input.ProposerID == event.OrganizerID {
		return domain.ChangeRequest{}, apperrors.WithMetadata(apperrors.CodeChangeRequestProposerIsOrganizer,
			"organizers edit events directly instead of proposing changes",
			map[string]string{"EventID": event.ID, "UserID": input.ProposerID})
	}
	if err := s.requireParticipant(ctx, event, input.ProposerID); err != nil {
		return domain.ChangeRequest{}, err
	}

	request, err := domain.NewChangeRequest(event.ID, input.ProposerID, input.Changes, s.clock, s.newID)
	if err != nil {
		return domain.ChangeRequest{}, err
	}
	record, err := changeRequestToRecord(request)
	if err != nil {
		return domain.ChangeRequest{}, err
	}
	if err := s.store.PutChangeRequest(ctx, record); err != nil {
		return domain.ChangeRequest{}, err
	}
	return request, nil
}

// ResolveInput identifies one pending request and the organizer acting on it.
type ResolveInput struct {
	RequestID      string
	OrganizerID    string
	IdempotencyKey string
}

// Approve applies the stored changes through the same evaluation path as a
// direct update at the event's current version. A stale version or fresh
// conflict fails the approval and leaves the request pending for retry.
func (s *ChangeRequests) Approve(ctx context.Context, input ResolveInput) (domain.ChangeRequest, domain.Event, error) {
	if s == nil || s.store == nil {
		return domain.ChangeRequest{}, domain.Event{}, fmt.Errorf("change requests are not configured")
	}
	ctx, span := s.tracer.Start(ctx, "ChangeRequests.Approve",
		trace.WithAttributes(attribute.String("request.id", input.RequestID)))
	defer span.End()

	request, event, err := s.loadForResolution(ctx, input.RequestID, input.OrganizerID)
	if err != nil {
		return domain.ChangeRequest{}, domain.Event{}, err
	}

	updated, err := event.Apply(request.Changes, s.clock)
	if err != nil {
		return domain.ChangeRequest{}, domain.Event{}, err
	}

	attendees, err := s.store.ListAttendees(ctx, event.ID)
	if err != nil {
		return domain.ChangeRequest{}, domain.Event{}, mapStoreErr(err, "attendees of "+event.ID)
	}
	ids := make([]string, 0, len(attendees))
	for _, attendee := range attendees {
		ids = append(ids, attendee.UserID)
	}
	if _, err := s.coordinator.evaluate(ctx, updated, ids, event.ID); err != nil {
		return domain.ChangeRequest{}, domain.Event{}, err
	}

	resolved, err := request.Resolve(domain.ChangeRequestApproved, input.OrganizerID, s.clock)
	if err != nil {
		return domain.ChangeRequest{}, domain.Event{}, err
	}
	resolvedRecord, err := changeRequestToRecord(resolved)
	if err != nil {
		return domain.ChangeRequest{}, domain.Event{}, err
	}

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	updateEntry, err := s.coordinator.newEntry(domain.ActionUpdate, &event, updated, input.OrganizerID, key, request.ID)
	if err != nil {
		return domain.ChangeRequest{}, domain.Event{}, err
	}
	approveEntry, err := s.coordinator.newEntry(domain.ActionApproveChange, &event, updated, input.OrganizerID, uuid.NewString(), request.ID)
	if err != nil {
		return domain.ChangeRequest{}, domain.Event{}, err
	}

	err = s.store.ApproveChangeRequest(ctx, resolvedRecord, eventToRecord(updated), event.Version, updateEntry, approveEntry)
	if err != nil {
		return domain.ChangeRequest{}, domain.Event{}, mapStoreErr(err, "event "+event.ID)
	}

	notify(ctx, s.coordinator.notifier, Signal{EventID: updated.ID, Action: domain.ActionApproveChange, Version: updated.Version})
	return resolved, updated, nil
}

// Reject flips a pending request to rejected. The event is untouched.
func (s *ChangeRequests) Reject(ctx context.Context, input ResolveInput) (domain.ChangeRequest, error) {
	if s == nil || s.store == nil {
		return domain.ChangeRequest{}, fmt.Errorf("change requests are not configured")
	}
	ctx, span := s.tracer.Start(ctx, "ChangeRequests.Reject",
		trace.WithAttributes(attribute.String("request.id", input.RequestID)))
	defer span.End()

	request, event, err := s.loadForResolution(ctx, input.RequestID, input.OrganizerID)
	if err != nil {
		return domain.ChangeRequest{}, err
	}

	resolved, err := request.Resolve(domain.ChangeRequestRejected, input.OrganizerID, s.clock)
	if err != nil {
		return domain.ChangeRequest{}, err
	}
	record, err := changeRequestToRecord(resolved)
	if err != nil {
		return domain.ChangeRequest{}, err
	}

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	entry, err := s.coordinator.newEntry(domain.ActionRejectChange, &event, event, input.OrganizerID, key, request.ID)
	if err != nil {
		return domain.ChangeRequest{}, err
	}
	if err := s.store.ResolveChangeRequest(ctx, record, entry); err != nil {
		return domain.ChangeRequest{}, mapStoreErr(err, "change request "+request.ID)
	}

	notify(ctx, s.coordinator.notifier, Signal{EventID: event.ID, Action: domain.ActionRejectChange, Version: event.Version})
	return resolved, nil
}

// ListByEvent returns an event's change requests, optionally filtered by state.
func (s *ChangeRequests) ListByEvent(ctx context.Context, eventID string, state domain.ChangeRequestState) ([]domain.ChangeRequest, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("change requests are not configured")
	}
	records, err := s.store.ListChangeRequestsByEvent(ctx, eventID, string(state))
	if err != nil {
		return nil, err
	}
	requests := make([]domain.ChangeRequest, 0, len(records))
	for _, record := range records {
		request, err := changeRequestFromRecord(record)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, nil
}

func (s *ChangeRequests) loadForResolution(ctx context.Context, requestID, organizerID string) (domain.ChangeRequest, domain.Event, error) {
	record, err := s.store.GetChangeRequest(ctx, requestID)
	if err != nil {
		return domain.ChangeRequest{}, domain.Event{}, mapStoreErr(err, "change request "+requestID)
	}
	request, err := changeRequestFromRecord(record)
	if err != nil {
		return domain.ChangeRequest{}, domain.Event{}, err
	}
	if request.State != domain.ChangeRequestPending {
		return domain.ChangeRequest{}, domain.Event{}, apperrors.WithMetadata(apperrors.CodeChangeRequestNotPending,
			fmt.Sprintf("change request %s is already %s", request.ID, request.State),
			map[string]string{"RequestID": request.ID, "State": string(request.State)})
	}
	event, err := s.loadEvent(ctx, request.EventID)
	if err != nil {
		return domain.ChangeRequest{}, domain.Event{}, err
	}
	if event.OrganizerID != organizerID {
		return domain.ChangeRequest{}, domain.Event{}, notOrganizerErr(event.ID, organizerID)
	}
	return request, event, nil
}

func (s *ChangeRequests) loadEvent(ctx context.Context, eventID string) (domain.Event, error) {
	record, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, mapStoreErr(err, "event "+eventID)
	}
	return eventFromRecord(record), nil
}

// requireParticipant admits attendees of the event or members of its group.
func (s *ChangeRequests) requireParticipant(ctx context.Context, event domain.Event, userID string) error {
	_, err := s.store.GetAttendee(ctx, event.ID, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	_, err = s.store.GetMembership(ctx, event.GroupID, userID)
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(apperrors.CodeGroupMembershipRequired,
			fmt.Sprintf("user %s is neither an attendee nor a member of group %s", userID, event.GroupID),
			map[string]string{"GroupID": event.GroupID, "UserID": userID})
	}
	return err
}

func encodeChanges(changes domain.EventChanges) ([]byte, error) {
	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("encode changes: %w", err)
	}
	return raw, nil
}

func decodeChanges(raw []byte) (domain.EventChanges, error) {
	var changes domain.EventChanges
	if err := json.Unmarshal(raw, &changes); err != nil {
		return domain.EventChanges{}, fmt.Errorf("decode changes: %w", err)
	}
	return changes, nil
}
