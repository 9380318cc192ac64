package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const eventColumns = `id, group_id, organizer_id, title, start_utc, end_utc,
	 tier, status, version, cancelled_at, cancelled_by_user_id, cancel_reason,
	 created_at, updated_at`

func scanEvent(row rowScanner) (storage.EventRecord, error) {
	var (
		event       storage.EventRecord
		startUTC    int64
		endUTC      int64
		cancelledAt sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	err := row.Scan(
		&event.ID,
		&event.GroupID,
		&event.OrganizerID,
		&event.Title,
		&startUTC,
		&endUTC,
		&event.Tier,
		&event.Status,
		&event.Version,
		&cancelledAt,
		&event.CancelledByUserID,
		&event.CancelReason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.EventRecord{}, err
	}
	event.StartUTC = fromMillis(startUTC)
	event.EndUTC = fromMillis(endUTC)
	event.CancelledAt = fromMillisPtr(cancelledAt)
	event.CreatedAt = fromMillis(createdAt)
	event.UpdatedAt = fromMillis(updatedAt)
	return event, nil
}

// GetEvent returns one event at its current version.
func (s *Store) GetEvent(ctx context.Context, eventID string) (storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EventRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.EventRecord{}, fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return storage.EventRecord{}, fmt.Errorf("event id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`,
		eventID,
	)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EventRecord{}, storage.ErrNotFound
		}
		return storage.EventRecord{}, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// ListOverlapping returns non-cancelled events that share at least one
// attendee with userIDs and intersect the half-open [start, end) range.
func (s *Store) ListOverlapping(ctx context.Context, userIDs []string, start time.Time, end time.Time, excludeEventID string) ([]storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(userIDs))
	placeholders = placeholders[:len(placeholders)-1]
	query := `SELECT DISTINCT e.id, e.group_id, e.organizer_id, e.title,
		   e.start_utc, e.end_utc, e.tier, e.status, e.version, e.cancelled_at,
		   e.cancelled_by_user_id, e.cancel_reason, e.created_at, e.updated_at
		 FROM events e
		 JOIN attendees a ON a.event_id = e.id
		 WHERE a.user_id IN (` + placeholders + `)
		   AND e.status != 'Cancelled'
		   AND e.start_utc < ? AND e.end_utc > ?
		   AND e.id != ?
		 ORDER BY e.start_utc ASC, e.id ASC`

	args := make([]any, 0, len(userIDs)+3)
	for _, userID := range userIDs {
		args = append(args, userID)
	}
	args = append(args, toMillis(end), toMillis(start), excludeEventID)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list overlapping events: %w", err)
	}
	defer rows.Close()

	var events []storage.EventRecord
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list overlapping events: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list overlapping events: %w", err)
	}
	return events, nil
}

// ListEventsByUser returns a user's events intersecting [from, to), cancelled
// ones excluded, ordered by start time.
func (s *Store) ListEventsByUser(ctx context.Context, userID string, from time.Time, to time.Time) ([]storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT e.id, e.group_id, e.organizer_id, e.title, e.start_utc,
		   e.end_utc, e.tier, e.status, e.version, e.cancelled_at,
		   e.cancelled_by_user_id, e.cancel_reason, e.created_at, e.updated_at
		 FROM events e
		 JOIN attendees a ON a.event_id = e.id
		 WHERE a.user_id = ?
		   AND e.status != 'Cancelled'
		   AND e.start_utc < ? AND e.end_utc > ?
		 ORDER BY e.start_utc ASC, e.id ASC`,
		userID,
		toMillis(to),
		toMillis(from),
	)
	if err != nil {
		return nil, fmt.Errorf("list events by user: %w", err)
	}
	defer rows.Close()

	var events []storage.EventRecord
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list events by user: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events by user: %w", err)
	}
	return events, nil
}

func scanAttendee(row rowScanner) (storage.AttendeeRecord, error) {
	var (
		attendee    storage.AttendeeRecord
		respondedAt sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	err := row.Scan(
		&attendee.EventID,
		&attendee.UserID,
		&attendee.Status,
		&attendee.Required,
		&respondedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.AttendeeRecord{}, err
	}
	attendee.RespondedAt = fromMillisPtr(respondedAt)
	attendee.CreatedAt = fromMillis(createdAt)
	attendee.UpdatedAt = fromMillis(updatedAt)
	return attendee, nil
}

// ListAttendees returns all attendees of an event ordered by user id.
func (s *Store) ListAttendees(ctx context.Context, eventID string) ([]storage.AttendeeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT event_id, user_id, status, required, responded_at, created_at, updated_at
		 FROM attendees
		 WHERE event_id = ?
		 ORDER BY user_id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	var attendees []storage.AttendeeRecord
	for rows.Next() {
		attendee, err := scanAttendee(rows)
		if err != nil {
			return nil, fmt.Errorf("list attendees: %w", err)
		}
		attendees = append(attendees, attendee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return attendees, nil
}

// GetAttendee returns one attendee of an event.
func (s *Store) GetAttendee(ctx context.Context, eventID string, userID string) (storage.AttendeeRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.AttendeeRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.AttendeeRecord{}, fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	userID = strings.TrimSpace(userID)
	if eventID == "" {
		return storage.AttendeeRecord{}, fmt.Errorf("event id is required")
	}
	if userID == "" {
		return storage.AttendeeRecord{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT event_id, user_id, status, required, responded_at, created_at, updated_at
		 FROM attendees
		 WHERE event_id = ? AND user_id = ?`,
		eventID,
		userID,
	)
	attendee, err := scanAttendee(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.AttendeeRecord{}, storage.ErrNotFound
		}
		return storage.AttendeeRecord{}, fmt.Errorf("get attendee: %w", err)
	}
	return attendee, nil
}
