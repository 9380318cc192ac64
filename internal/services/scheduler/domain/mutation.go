package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action identifies the kind of accepted state transition a ledger entry records.
type Action string

const (
	// ActionCreate records event creation.
	ActionCreate Action = "create"
	// ActionUpdate records an organizer edit.
	ActionUpdate Action = "update"
	// ActionCancel records the terminal cancellation.
	ActionCancel Action = "cancel"
	// ActionRSVP records an attendee reply.
	ActionRSVP Action = "rsvp"
	// ActionApproveChange records an approved change request.
	ActionApproveChange Action = "approve_change"
	// ActionRejectChange records a rejected change request.
	ActionRejectChange Action = "reject_change"
)

// EventSnapshot is the JSON-safe event state captured in ledger entries.
type EventSnapshot struct {
	EventID  string `json:"event_id"`
	Title    string `json:"title"`
	StartUTC string `json:"start_utc"`
	EndUTC   string `json:"end_utc"`
	Status   string `json:"status"`
	Tier     string `json:"tier"`
	Version  int64  `json:"version"`
}

// Snapshot captures the ledger view of an event.
func Snapshot(e Event) EventSnapshot {
	return EventSnapshot{
		EventID:  e.ID,
		Title:    e.Title,
		StartUTC: e.StartUTC.UTC().Format(time.RFC3339),
		EndUTC:   e.EndUTC.UTC().Format(time.RFC3339),
		Status:   string(e.Status),
		Tier:     string(e.Tier),
		Version:  e.Version,
	}
}

// MarshalSnapshot serializes a snapshot for ledger storage. Snapshots contain
// only JSON-safe scalars, so serialization cannot fail.
func MarshalSnapshot(s EventSnapshot) []byte {
	raw, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return raw
}

// UnmarshalSnapshot decodes a stored ledger snapshot.
func UnmarshalSnapshot(raw []byte) (EventSnapshot, error) {
	var s EventSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return EventSnapshot{}, fmt.Errorf("decode event snapshot: %w", err)
	}
	return s, nil
}

// Event reconstructs the recorded event state from a snapshot. Only the
// fields the ledger captures are populated.
func (s EventSnapshot) Event() (Event, error) {
	start, err := time.Parse(time.RFC3339, s.StartUTC)
	if err != nil {
		return Event{}, fmt.Errorf("parse snapshot start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, s.EndUTC)
	if err != nil {
		return Event{}, fmt.Errorf("parse snapshot end: %w", err)
	}
	return Event{
		ID:       s.EventID,
		Title:    s.Title,
		StartUTC: start.UTC(),
		EndUTC:   end.UTC(),
		Status:   Status(s.Status),
		Tier:     Tier(s.Tier),
		Version:  s.Version,
	}, nil
}

// Mutation is one append-only ledger entry for an accepted state transition.
// Failed or rejected attempts never produce an entry.
type Mutation struct {
	ID      string
	EventID string
	ActorID string
	Action  Action
	// Before is nil for create entries.
	Before []byte
	After  []byte
	// IdempotencyKey is unique across the ledger; a repeated key makes the
	// mutation a no-op returning the previously recorded result.
	IdempotencyKey string
	// RequestID references the change request for approve/reject entries.
	RequestID string
	CreatedAt time.Time
}
