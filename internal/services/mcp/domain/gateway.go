package domain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/services/scheduler/app"
	"github.com/quorumcal/quorum/internal/services/scheduler/domain"
	"github.com/quorumcal/quorum/internal/services/scheduler/domain/conflict"
)

const (
	defaultRateLimit rate.Limit = 5
	defaultBurst                = 10
)

// Gateway executes tool calls against the scheduler services. Every call
// runs with the acting user's identity and no additional privilege. Each
// acting user gets an independent token bucket so one chatty agent cannot
// starve the rest.
type Gateway struct {
	coordinator  *app.Coordinator
	availability *app.Availability
	limit        rate.Limit
	burst        int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewGateway returns a gateway backed by the given services with the given
// per-user rate limit. Non-positive values fall back to the defaults.
func NewGateway(coordinator *app.Coordinator, availability *app.Availability, limit rate.Limit, burst int) *Gateway {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &Gateway{
		coordinator:  coordinator,
		availability: availability,
		limit:        limit,
		burst:        burst,
		limiters:     make(map[string]*rate.Limiter),
	}
}

// admit checks identity and the caller's token bucket before any tool runs.
func (g *Gateway) admit(actingUserID string) error {
	if actingUserID == "" {
		return apperrors.New(apperrors.CodeToolBadArgument, "acting_user_id is required")
	}
	g.mu.Lock()
	limiter, ok := g.limiters[actingUserID]
	if !ok {
		limiter = rate.NewLimiter(g.limit, g.burst)
		g.limiters[actingUserID] = limiter
	}
	g.mu.Unlock()
	if !limiter.Allow() {
		return apperrors.WithMetadata(apperrors.CodeToolRateLimited,
			"tool call rate limit exceeded",
			map[string]string{"user_id": actingUserID})
	}
	return nil
}

// CreateEvent schedules a new event organized by the acting user.
func (g *Gateway) CreateEvent(ctx context.Context, input EventCreateInput) (EventResult, error) {
	if err := g.admit(input.ActingUserID); err != nil {
		return EventResult{}, err
	}
	start, err := parseTime("start", input.Start)
	if err != nil {
		return EventResult{}, err
	}
	end, err := parseTime("end", input.End)
	if err != nil {
		return EventResult{}, err
	}
	tier := domain.TierSoft
	if input.Tier != "" {
		tier, err = domain.ParseTier(input.Tier)
		if err != nil {
			return EventResult{}, err
		}
	}
	result, err := g.coordinator.CreateEvent(ctx, app.CreateEventInput{
		GroupID:        input.GroupID,
		OrganizerID:    input.ActingUserID,
		Title:          input.Title,
		StartUTC:       start,
		EndUTC:         end,
		Tier:           tier,
		InviteeIDs:     input.InviteeIDs,
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		return EventResult{}, err
	}
	return eventResult(result), nil
}

// UpdateEvent edits an event the acting user organizes.
func (g *Gateway) UpdateEvent(ctx context.Context, input EventUpdateInput) (EventResult, error) {
	if err := g.admit(input.ActingUserID); err != nil {
		return EventResult{}, err
	}
	changes, err := buildChanges(input)
	if err != nil {
		return EventResult{}, err
	}
	result, err := g.coordinator.UpdateEvent(ctx, app.UpdateEventInput{
		EventID:         input.EventID,
		ExpectedVersion: input.ExpectedVersion,
		ActorID:         input.ActingUserID,
		Changes:         changes,
		IdempotencyKey:  input.IdempotencyKey,
	})
	if err != nil {
		return EventResult{}, err
	}
	return eventResult(result), nil
}

// CancelEvent cancels an event the acting user organizes.
func (g *Gateway) CancelEvent(ctx context.Context, input EventCancelInput) (EventResult, error) {
	if err := g.admit(input.ActingUserID); err != nil {
		return EventResult{}, err
	}
	result, err := g.coordinator.CancelEvent(ctx, app.CancelEventInput{
		EventID:         input.EventID,
		ExpectedVersion: input.ExpectedVersion,
		ActorID:         input.ActingUserID,
		Reason:          input.Reason,
		IdempotencyKey:  input.IdempotencyKey,
	})
	if err != nil {
		return EventResult{}, err
	}
	return eventResult(result), nil
}

// FindAvailability reports the free/busy view for the requested users.
func (g *Gateway) FindAvailability(ctx context.Context, input AvailabilityInput) (AvailabilityResult, error) {
	if err := g.admit(input.ActingUserID); err != nil {
		return AvailabilityResult{}, err
	}
	start, err := parseTime("start", input.Start)
	if err != nil {
		return AvailabilityResult{}, err
	}
	end, err := parseTime("end", input.End)
	if err != nil {
		return AvailabilityResult{}, err
	}
	views, err := g.availability.FreeBusy(ctx, input.UserIDs, start, end)
	if err != nil {
		return AvailabilityResult{}, err
	}
	result := AvailabilityResult{Users: make([]UserAvailabilityPayload, 0, len(views))}
	for _, view := range views {
		payload := UserAvailabilityPayload{
			UserID: view.UserID,
			Busy:   make([]BusyPayload, 0, len(view.Busy)),
			Free:   intervalPayloads(view.Free),
		}
		for _, block := range view.Busy {
			payload.Busy = append(payload.Busy, BusyPayload{
				EventID: block.EventID,
				Title:   block.Title,
				Tier:    string(block.Tier),
				Start:   block.Interval.Start.Format(time.RFC3339),
				End:     block.Interval.End.Format(time.RFC3339),
			})
		}
		if len(view.QuietHours) > 0 {
			payload.QuietHours = intervalPayloads(view.QuietHours)
		}
		result.Users = append(result.Users, payload)
	}
	return result, nil
}

// SummarizeSchedule reports the acting user's own schedule for a range.
func (g *Gateway) SummarizeSchedule(ctx context.Context, input ScheduleSummaryInput) (ScheduleSummaryResult, error) {
	if err := g.admit(input.ActingUserID); err != nil {
		return ScheduleSummaryResult{}, err
	}
	start, err := parseTime("start", input.Start)
	if err != nil {
		return ScheduleSummaryResult{}, err
	}
	end, err := parseTime("end", input.End)
	if err != nil {
		return ScheduleSummaryResult{}, err
	}
	summary, err := g.availability.Summarize(ctx, input.ActingUserID, start, end)
	if err != nil {
		return ScheduleSummaryResult{}, err
	}
	result := ScheduleSummaryResult{
		UserID:  summary.UserID,
		Entries: make([]ScheduleEntryPayload, 0, len(summary.Entries)),
		ByTier:  make(map[string]int, len(summary.ByTier)),
		ByRSVP:  make(map[string]int, len(summary.ByRSVP)),
	}
	for _, entry := range summary.Entries {
		result.Entries = append(result.Entries, ScheduleEntryPayload{
			EventID: entry.Event.ID,
			Title:   entry.Event.Title,
			Tier:    string(entry.Event.Tier),
			Start:   entry.Event.StartUTC.Format(time.RFC3339),
			End:     entry.Event.EndUTC.Format(time.RFC3339),
			RSVP:    string(entry.RSVP),
		})
	}
	for tier, count := range summary.ByTier {
		result.ByTier[string(tier)] = count
	}
	for status, count := range summary.ByRSVP {
		result.ByRSVP[string(status)] = count
	}
	return result, nil
}

func parseTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apperrors.New(apperrors.CodeToolBadArgument, fmt.Sprintf("%s is required", field))
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperrors.WithMetadata(apperrors.CodeToolBadArgument,
			fmt.Sprintf("%s must be an RFC3339 timestamp", field),
			map[string]string{"field": field, "value": value})
	}
	return parsed.UTC(), nil
}

func buildChanges(input EventUpdateInput) (domain.EventChanges, error) {
	var changes domain.EventChanges
	if input.Title != "" {
		title := input.Title
		changes.Title = &title
	}
	if input.Start != "" {
		start, err := parseTime("start", input.Start)
		if err != nil {
			return domain.EventChanges{}, err
		}
		changes.StartUTC = &start
	}
	if input.End != "" {
		end, err := parseTime("end", input.End)
		if err != nil {
			return domain.EventChanges{}, err
		}
		changes.EndUTC = &end
	}
	if input.Tier != "" {
		tier, err := domain.ParseTier(input.Tier)
		if err != nil {
			return domain.EventChanges{}, err
		}
		changes.Tier = &tier
	}
	return changes, nil
}

func eventResult(result app.EventResult) EventResult {
	event := result.Event
	out := EventResult{
		ID:          event.ID,
		GroupID:     event.GroupID,
		OrganizerID: event.OrganizerID,
		Title:       event.Title,
		Start:       event.StartUTC.Format(time.RFC3339),
		End:         event.EndUTC.Format(time.RFC3339),
		Tier:        string(event.Tier),
		Status:      string(event.Status),
		Version:     event.Version,
		Warnings:    warningPayloads(result.Warnings),
		Replayed:    result.Replayed,
	}
	if event.CancelledAt != nil {
		out.CancelledAt = event.CancelledAt.Format(time.RFC3339)
	}
	return out
}

func warningPayloads(warnings []conflict.Warning) []WarningPayload {
	if len(warnings) == 0 {
		return nil
	}
	payloads := make([]WarningPayload, 0, len(warnings))
	for _, warning := range warnings {
		payloads = append(payloads, WarningPayload{
			UserID: warning.UserID,
			Start:  warning.Interval.Start.Format(time.RFC3339),
			End:    warning.Interval.End.Format(time.RFC3339),
		})
	}
	return payloads
}

func intervalPayloads(intervals []domain.Interval) []IntervalPayload {
	payloads := make([]IntervalPayload, 0, len(intervals))
	for _, interval := range intervals {
		payloads = append(payloads, IntervalPayload{
			Start: interval.Start.Format(time.RFC3339),
			End:   interval.End.Format(time.RFC3339),
		})
	}
	return payloads
}
