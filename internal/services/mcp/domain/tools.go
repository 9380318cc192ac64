// Package domain defines the agent-facing tool surface: a closed set of
// scheduling operations executed under the acting user's identity.
package domain

// EventCreateInput represents the tool input for event creation.
type EventCreateInput struct {
	ActingUserID   string   `json:"acting_user_id" jsonschema:"user identity the call runs as"`
	GroupID        string   `json:"group_id" jsonschema:"group identifier"`
	Title          string   `json:"title" jsonschema:"event title"`
	Start          string   `json:"start" jsonschema:"RFC3339 start time"`
	End            string   `json:"end" jsonschema:"RFC3339 end time"`
	Tier           string   `json:"tier,omitempty" jsonschema:"constraint tier (Hard, Soft); defaults to Soft"`
	InviteeIDs     []string `json:"invitee_ids,omitempty" jsonschema:"user ids to invite"`
	IdempotencyKey string   `json:"idempotency_key,omitempty" jsonschema:"key for safe retries"`
}

// EventUpdateInput represents the tool input for an organizer edit.
type EventUpdateInput struct {
	ActingUserID    string `json:"acting_user_id" jsonschema:"user identity the call runs as"`
	EventID         string `json:"event_id" jsonschema:"event identifier"`
	ExpectedVersion int64  `json:"expected_version" jsonschema:"last observed event version"`
	Title           string `json:"title,omitempty" jsonschema:"new title"`
	Start           string `json:"start,omitempty" jsonschema:"new RFC3339 start time"`
	End             string `json:"end,omitempty" jsonschema:"new RFC3339 end time"`
	Tier            string `json:"tier,omitempty" jsonschema:"new constraint tier (Hard, Soft)"`
	IdempotencyKey  string `json:"idempotency_key,omitempty" jsonschema:"key for safe retries"`
}

// EventCancelInput represents the tool input for cancellation.
type EventCancelInput struct {
	ActingUserID    string `json:"acting_user_id" jsonschema:"user identity the call runs as"`
	EventID         string `json:"event_id" jsonschema:"event identifier"`
	ExpectedVersion int64  `json:"expected_version" jsonschema:"last observed event version"`
	Reason          string `json:"reason,omitempty" jsonschema:"cancellation reason"`
	IdempotencyKey  string `json:"idempotency_key,omitempty" jsonschema:"key for safe retries"`
}

// WarningPayload flags a non-blocking quiet-hours intersection.
type WarningPayload struct {
	UserID string `json:"user_id"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// EventResult represents the tool output for event mutations.
type EventResult struct {
	ID          string           `json:"id" jsonschema:"event identifier"`
	GroupID     string           `json:"group_id" jsonschema:"group identifier"`
	OrganizerID string           `json:"organizer_id" jsonschema:"organizer user identifier"`
	Title       string           `json:"title" jsonschema:"event title"`
	Start       string           `json:"start" jsonschema:"RFC3339 start time"`
	End         string           `json:"end" jsonschema:"RFC3339 end time"`
	Tier        string           `json:"tier" jsonschema:"constraint tier"`
	Status      string           `json:"status" jsonschema:"event status"`
	Version     int64            `json:"version" jsonschema:"current event version"`
	CancelledAt string           `json:"cancelled_at,omitempty" jsonschema:"RFC3339 cancellation timestamp"`
	Warnings    []WarningPayload `json:"warnings,omitempty" jsonschema:"non-blocking quiet-hours warnings"`
	Replayed    bool             `json:"replayed,omitempty" jsonschema:"true when an idempotency key returned the prior result"`
}

// AvailabilityInput represents the tool input for free/busy queries.
type AvailabilityInput struct {
	ActingUserID string   `json:"acting_user_id" jsonschema:"user identity the call runs as"`
	UserIDs      []string `json:"user_ids" jsonschema:"users to query"`
	Start        string   `json:"start" jsonschema:"RFC3339 range start"`
	End          string   `json:"end" jsonschema:"RFC3339 range end"`
}

// IntervalPayload is one half-open UTC interval.
type IntervalPayload struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// BusyPayload is one committed event occupying part of a user's range.
type BusyPayload struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	Tier    string `json:"tier"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// UserAvailabilityPayload is one user's free/busy view.
type UserAvailabilityPayload struct {
	UserID     string            `json:"user_id"`
	Busy       []BusyPayload     `json:"busy"`
	QuietHours []IntervalPayload `json:"quiet_hours,omitempty"`
	Free       []IntervalPayload `json:"free"`
}

// AvailabilityResult represents the tool output for free/busy queries.
type AvailabilityResult struct {
	Users []UserAvailabilityPayload `json:"users"`
}

// ScheduleSummaryInput represents the tool input for schedule summaries.
type ScheduleSummaryInput struct {
	ActingUserID string `json:"acting_user_id" jsonschema:"user identity the call runs as"`
	Start        string `json:"start" jsonschema:"RFC3339 range start"`
	End          string `json:"end" jsonschema:"RFC3339 range end"`
}

// ScheduleEntryPayload pairs an event with the user's reply.
type ScheduleEntryPayload struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	Tier    string `json:"tier"`
	Start   string `json:"start"`
	End     string `json:"end"`
	RSVP    string `json:"rsvp"`
}

// ScheduleSummaryResult represents the tool output for schedule summaries.
type ScheduleSummaryResult struct {
	UserID  string                 `json:"user_id"`
	Entries []ScheduleEntryPayload `json:"entries"`
	ByTier  map[string]int         `json:"by_tier"`
	ByRSVP  map[string]int         `json:"by_rsvp"`
}
