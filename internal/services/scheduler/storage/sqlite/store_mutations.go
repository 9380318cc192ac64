package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
)

// CreateEvent inserts the event, its initial attendees, and the create ledger
// entry in one transaction.
func (s *Store) CreateEvent(ctx context.Context, event storage.EventRecord, attendees []storage.AttendeeRecord, entry storage.MutationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("event id is required")
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertEventTx(ctx, tx, event); err != nil {
			return err
		}
		for _, attendee := range attendees {
			if err := upsertAttendeeTx(ctx, tx, attendee); err != nil {
				return err
			}
		}
		return insertMutationTx(ctx, tx, entry)
	})
}

// UpdateEvent replaces the event row when the stored version matches
// expectedVersion and appends the ledger entry atomically.
func (s *Store) UpdateEvent(ctx context.Context, event storage.EventRecord, expectedVersion int64, entry storage.MutationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("event id is required")
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := casEventTx(ctx, tx, event, expectedVersion); err != nil {
			return err
		}
		return insertMutationTx(ctx, tx, entry)
	})
}

// SetAttendeeStatus updates one attendee row and appends the rsvp ledger
// entry atomically. The event version is untouched.
func (s *Store) SetAttendeeStatus(ctx context.Context, attendee storage.AttendeeRecord, entry storage.MutationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(
			ctx,
			`UPDATE attendees
			 SET status = ?, responded_at = ?, updated_at = ?
			 WHERE event_id = ? AND user_id = ?`,
			attendee.Status,
			toMillisPtr(attendee.RespondedAt),
			toMillis(attendee.UpdatedAt),
			attendee.EventID,
			attendee.UserID,
		)
		if err != nil {
			return fmt.Errorf("set attendee status: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("set attendee status: %w", err)
		}
		if affected == 0 {
			return storage.ErrNotFound
		}
		return insertMutationTx(ctx, tx, entry)
	})
}

// ResolveChangeRequest flips a request to a terminal state and appends the
// ledger entry atomically.
func (s *Store) ResolveChangeRequest(ctx context.Context, request storage.ChangeRequestRecord, entry storage.MutationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := resolveChangeRequestTx(ctx, tx, request); err != nil {
			return err
		}
		return insertMutationTx(ctx, tx, entry)
	})
}

// ApproveChangeRequest applies the approved event update, flips the request,
// and appends both ledger entries in one transaction. A version conflict
// rolls everything back, leaving the request pending.
func (s *Store) ApproveChangeRequest(ctx context.Context, request storage.ChangeRequestRecord, event storage.EventRecord, expectedVersion int64, updateEntry storage.MutationRecord, approveEntry storage.MutationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := casEventTx(ctx, tx, event, expectedVersion); err != nil {
			return err
		}
		if err := resolveChangeRequestTx(ctx, tx, request); err != nil {
			return err
		}
		if err := insertMutationTx(ctx, tx, updateEntry); err != nil {
			return err
		}
		return insertMutationTx(ctx, tx, approveEntry)
	})
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertEventTx(ctx context.Context, tx *sql.Tx, event storage.EventRecord) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO events (id, group_id, organizer_id, title, start_utc,
		   end_utc, tier, status, version, cancelled_at, cancelled_by_user_id,
		   cancel_reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.GroupID,
		event.OrganizerID,
		event.Title,
		toMillis(event.StartUTC),
		toMillis(event.EndUTC),
		event.Tier,
		event.Status,
		event.Version,
		toMillisPtr(event.CancelledAt),
		event.CancelledByUserID,
		event.CancelReason,
		toMillis(event.CreatedAt),
		toMillis(event.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// casEventTx replaces the event row only when the stored version equals
// expectedVersion.
func casEventTx(ctx context.Context, tx *sql.Tx, event storage.EventRecord, expectedVersion int64) error {
	result, err := tx.ExecContext(
		ctx,
		`UPDATE events
		 SET title = ?, start_utc = ?, end_utc = ?, tier = ?, status = ?,
		   version = ?, cancelled_at = ?, cancelled_by_user_id = ?,
		   cancel_reason = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		event.Title,
		toMillis(event.StartUTC),
		toMillis(event.EndUTC),
		event.Tier,
		event.Status,
		event.Version,
		toMillisPtr(event.CancelledAt),
		event.CancelledByUserID,
		event.CancelReason,
		toMillis(event.UpdatedAt),
		event.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if affected == 1 {
		return nil
	}

	row := tx.QueryRowContext(ctx, `SELECT version FROM events WHERE id = ?`, event.ID)
	var stored int64
	if err := row.Scan(&stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("update event: %w", err)
	}
	return storage.ErrVersionConflict
}

func upsertAttendeeTx(ctx context.Context, tx *sql.Tx, attendee storage.AttendeeRecord) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO attendees (event_id, user_id, status, required,
		   responded_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(event_id, user_id) DO UPDATE SET
		   status = excluded.status,
		   responded_at = excluded.responded_at,
		   updated_at = excluded.updated_at`,
		attendee.EventID,
		attendee.UserID,
		attendee.Status,
		attendee.Required,
		toMillisPtr(attendee.RespondedAt),
		toMillis(attendee.CreatedAt),
		toMillis(attendee.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert attendee: %w", err)
	}
	return nil
}

func resolveChangeRequestTx(ctx context.Context, tx *sql.Tx, request storage.ChangeRequestRecord) error {
	result, err := tx.ExecContext(
		ctx,
		`UPDATE change_requests
		 SET state = ?, resolved_at = ?, resolved_by_user_id = ?
		 WHERE id = ? AND state = 'pending'`,
		request.State,
		toMillisPtr(request.ResolvedAt),
		request.ResolvedByUserID,
		request.ID,
	)
	if err != nil {
		return fmt.Errorf("resolve change request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve change request: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func insertMutationTx(ctx context.Context, tx *sql.Tx, entry storage.MutationRecord) error {
	var before any
	if entry.Before != nil {
		before = string(entry.Before)
	}
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO mutations (id, event_id, actor_id, action, before_snapshot,
		   after_snapshot, idempotency_key, request_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.EventID,
		entry.ActorID,
		entry.Action,
		before,
		string(entry.After),
		entry.IdempotencyKey,
		entry.RequestID,
		toMillis(entry.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "idx_mutations_idempotency_key") ||
			strings.Contains(err.Error(), "mutations.idempotency_key") {
			return storage.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert mutation: %w", err)
	}
	return nil
}
