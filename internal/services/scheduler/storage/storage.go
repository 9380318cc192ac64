// Package storage defines persistence contracts for scheduler state: users,
// groups, events, attendees, change requests, and the append-only mutation
// ledger.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict indicates a compare-and-swap write lost to a concurrent
// mutation; the caller must reload and retry with the fresh version.
var ErrVersionConflict = errors.New("event version conflict")

// ErrDuplicateIdempotencyKey indicates a ledger entry with the same
// idempotency key already exists.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// QuietHoursRecord stores a user's recurring local do-not-disturb window as
// minutes since local midnight.
type QuietHoursRecord struct {
	StartMinute int
	EndMinute   int
}

// UserRecord stores one calendar user.
type UserRecord struct {
	ID                  string
	DisplayName         string
	PasswordHash        string
	DefaultTimezone     string
	QuietHours          *QuietHoursRecord
	Aliases             []string
	EnableTransitChecks bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// GroupRecord stores one scheduling group.
type GroupRecord struct {
	ID              string
	Name            string
	CreatedByUserID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MembershipRecord stores one user's membership in a group.
type MembershipRecord struct {
	GroupID  string
	UserID   string
	Role     string
	JoinedAt time.Time
}

// EventRecord stores one event at its current version.
type EventRecord struct {
	ID                string
	GroupID           string
	OrganizerID       string
	Title             string
	StartUTC          time.Time
	EndUTC            time.Time
	Tier              string
	Status            string
	Version           int64
	CancelledAt       *time.Time
	CancelledByUserID string
	CancelReason      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AttendeeRecord stores one user's participation in an event.
type AttendeeRecord struct {
	EventID     string
	UserID      string
	Status      string
	Required    bool
	RespondedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChangeRequestRecord stores one proposed event change awaiting resolution.
// Changes holds the proposed field deltas as JSON.
type ChangeRequestRecord struct {
	ID               string
	EventID          string
	ProposerID       string
	Changes          []byte
	State            string
	CreatedAt        time.Time
	ResolvedAt       *time.Time
	ResolvedByUserID string
}

// MutationRecord stores one append-only ledger entry. Before is nil for
// create entries; Before and After hold event snapshots as JSON.
type MutationRecord struct {
	ID             string
	EventID        string
	ActorID        string
	Action         string
	Before         []byte
	After          []byte
	IdempotencyKey string
	RequestID      string
	CreatedAt      time.Time
}

// UserStore persists calendar users.
type UserStore interface {
	PutUser(ctx context.Context, user UserRecord) error
	GetUser(ctx context.Context, userID string) (UserRecord, error)
}

// GroupStore persists groups and memberships.
type GroupStore interface {
	PutGroup(ctx context.Context, group GroupRecord) error
	GetGroup(ctx context.Context, groupID string) (GroupRecord, error)
	PutMembership(ctx context.Context, membership MembershipRecord) error
	GetMembership(ctx context.Context, groupID string, userID string) (MembershipRecord, error)
	ListMemberships(ctx context.Context, groupID string) ([]MembershipRecord, error)
}

// EventStore reads events and attendees.
type EventStore interface {
	GetEvent(ctx context.Context, eventID string) (EventRecord, error)
	// ListOverlapping returns non-cancelled events that share at least one
	// attendee with userIDs and whose [start, end) intersects the given
	// half-open range. The event with excludeEventID is omitted when set.
	ListOverlapping(ctx context.Context, userIDs []string, start time.Time, end time.Time, excludeEventID string) ([]EventRecord, error)
	ListEventsByUser(ctx context.Context, userID string, from time.Time, to time.Time) ([]EventRecord, error)
	ListAttendees(ctx context.Context, eventID string) ([]AttendeeRecord, error)
	GetAttendee(ctx context.Context, eventID string, userID string) (AttendeeRecord, error)
}

// ChangeRequestStore persists change requests.
type ChangeRequestStore interface {
	PutChangeRequest(ctx context.Context, request ChangeRequestRecord) error
	GetChangeRequest(ctx context.Context, requestID string) (ChangeRequestRecord, error)
	// ListChangeRequestsByEvent returns requests for an event, optionally
	// filtered to one state; an empty state returns all.
	ListChangeRequestsByEvent(ctx context.Context, eventID string, state string) ([]ChangeRequestRecord, error)
}

// LedgerStore reads the append-only mutation ledger.
type LedgerStore interface {
	GetMutationByIdempotencyKey(ctx context.Context, key string) (MutationRecord, error)
	ListMutationsByEvent(ctx context.Context, eventID string) ([]MutationRecord, error)
}

// MutationStore performs transactional writes: each method commits the state
// change and its ledger entry as one atomic unit.
type MutationStore interface {
	// CreateEvent inserts the event, its initial attendees, and the create
	// ledger entry in one transaction.
	CreateEvent(ctx context.Context, event EventRecord, attendees []AttendeeRecord, entry MutationRecord) error
	// UpdateEvent replaces the event row only when the stored version equals
	// expectedVersion, appending the ledger entry in the same transaction.
	// Returns ErrVersionConflict when the row exists at a different version.
	UpdateEvent(ctx context.Context, event EventRecord, expectedVersion int64, entry MutationRecord) error
	// SetAttendeeStatus updates one attendee row and appends the rsvp ledger
	// entry without touching the event version.
	SetAttendeeStatus(ctx context.Context, attendee AttendeeRecord, entry MutationRecord) error
	// ResolveChangeRequest flips a request to a terminal state and appends
	// the ledger entry in one transaction.
	ResolveChangeRequest(ctx context.Context, request ChangeRequestRecord, entry MutationRecord) error
	// ApproveChangeRequest applies the approved event update (CAS on
	// expectedVersion), flips the request, and appends both the update and
	// approve ledger entries in one transaction. A version conflict rolls
	// everything back.
	ApproveChangeRequest(ctx context.Context, request ChangeRequestRecord, event EventRecord, expectedVersion int64, updateEntry MutationRecord, approveEntry MutationRecord) error
}

// Store aggregates all scheduler persistence contracts.
type Store interface {
	UserStore
	GroupStore
	EventStore
	ChangeRequestStore
	LedgerStore
	MutationStore
}
