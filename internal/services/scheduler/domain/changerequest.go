package domain

import (
	"fmt"
	"time"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/platform/id"
)

// ChangeRequestState is the lifecycle of a proposed non-organizer edit.
// pending is the only mutable state; approved and rejected are terminal.
type ChangeRequestState string

const (
	// ChangeRequestPending awaits an organizer decision.
	ChangeRequestPending ChangeRequestState = "pending"
	// ChangeRequestApproved means the edit was applied to the event.
	ChangeRequestApproved ChangeRequestState = "approved"
	// ChangeRequestRejected means the edit was declined; the event is untouched.
	ChangeRequestRejected ChangeRequestState = "rejected"
)

// ChangeRequest is a proposed event edit awaiting organizer approval.
// Once resolved it is immutable.
type ChangeRequest struct {
	ID         string
	EventID    string
	ProposerID string
	Changes    EventChanges
	State      ChangeRequestState
	CreatedAt  time.Time
	ResolvedAt *time.Time
	ResolvedBy string
}

// NewChangeRequest creates a pending request for an event edit.
func NewChangeRequest(eventID, proposerID string, changes EventChanges, now func() time.Time, idGenerator func() (string, error)) (ChangeRequest, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if changes.IsZero() {
		return ChangeRequest{}, apperrors.New(apperrors.CodeChangeRequestEmpty, "change request carries no changes")
	}

	requestID, err := idGenerator()
	if err != nil {
		return ChangeRequest{}, fmt.Errorf("generate change request id: %w", err)
	}

	return ChangeRequest{
		ID:         requestID,
		EventID:    eventID,
		ProposerID: proposerID,
		Changes:    changes,
		State:      ChangeRequestPending,
		CreatedAt:  now().UTC(),
	}, nil
}

// Resolve returns a copy of the request in a terminal state. Only pending
// requests may be resolved, and exactly once.
func (r ChangeRequest) Resolve(state ChangeRequestState, resolverID string, now func() time.Time) (ChangeRequest, error) {
	if now == nil {
		now = time.Now
	}
	if r.State != ChangeRequestPending {
		return ChangeRequest{}, apperrors.WithMetadata(apperrors.CodeChangeRequestNotPending,
			fmt.Sprintf("change request %s is already %s", r.ID, r.State),
			map[string]string{"RequestID": r.ID, "State": string(r.State)})
	}
	if state != ChangeRequestApproved && state != ChangeRequestRejected {
		return ChangeRequest{}, fmt.Errorf("invalid resolution state %q", state)
	}

	resolvedAt := now().UTC()
	resolved := r
	resolved.State = state
	resolved.ResolvedAt = &resolvedAt
	resolved.ResolvedBy = resolverID
	return resolved, nil
}
