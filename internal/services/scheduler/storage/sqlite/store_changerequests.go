package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
)

// PutChangeRequest inserts or replaces one change request.
func (s *Store) PutChangeRequest(ctx context.Context, request storage.ChangeRequestRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	requestID := strings.TrimSpace(request.ID)
	if requestID == "" {
		return fmt.Errorf("change request id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO change_requests (id, event_id, proposer_id, changes, state,
		   created_at, resolved_at, resolved_by_user_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   state = excluded.state,
		   resolved_at = excluded.resolved_at,
		   resolved_by_user_id = excluded.resolved_by_user_id`,
		requestID,
		request.EventID,
		request.ProposerID,
		string(request.Changes),
		request.State,
		toMillis(request.CreatedAt),
		toMillisPtr(request.ResolvedAt),
		request.ResolvedByUserID,
	)
	if err != nil {
		return fmt.Errorf("put change request: %w", err)
	}
	return nil
}

func scanChangeRequest(row rowScanner) (storage.ChangeRequestRecord, error) {
	var (
		request    storage.ChangeRequestRecord
		changes    string
		createdAt  int64
		resolvedAt sql.NullInt64
	)
	err := row.Scan(
		&request.ID,
		&request.EventID,
		&request.ProposerID,
		&changes,
		&request.State,
		&createdAt,
		&resolvedAt,
		&request.ResolvedByUserID,
	)
	if err != nil {
		return storage.ChangeRequestRecord{}, err
	}
	request.Changes = []byte(changes)
	request.CreatedAt = fromMillis(createdAt)
	request.ResolvedAt = fromMillisPtr(resolvedAt)
	return request, nil
}

// GetChangeRequest returns one change request.
func (s *Store) GetChangeRequest(ctx context.Context, requestID string) (storage.ChangeRequestRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ChangeRequestRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ChangeRequestRecord{}, fmt.Errorf("storage is not configured")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return storage.ChangeRequestRecord{}, fmt.Errorf("change request id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, event_id, proposer_id, changes, state, created_at,
		   resolved_at, resolved_by_user_id
		 FROM change_requests
		 WHERE id = ?`,
		requestID,
	)
	request, err := scanChangeRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ChangeRequestRecord{}, storage.ErrNotFound
		}
		return storage.ChangeRequestRecord{}, fmt.Errorf("get change request: %w", err)
	}
	return request, nil
}

// ListChangeRequestsByEvent returns an event's change requests, newest first,
// optionally filtered to one state.
func (s *Store) ListChangeRequestsByEvent(ctx context.Context, eventID string, state string) ([]storage.ChangeRequestRecord, error) {
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

	var (
		rows *sql.Rows
		err  error
	)
	if state == "" {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, event_id, proposer_id, changes, state, created_at,
			   resolved_at, resolved_by_user_id
			 FROM change_requests
			 WHERE event_id = ?
			 ORDER BY created_at DESC, id ASC`,
			eventID,
		)
	} else {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, event_id, proposer_id, changes, state, created_at,
			   resolved_at, resolved_by_user_id
			 FROM change_requests
			 WHERE event_id = ? AND state = ?
			 ORDER BY created_at DESC, id ASC`,
			eventID,
			state,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	defer rows.Close()

	var requests []storage.ChangeRequestRecord
	for rows.Next() {
		request, err := scanChangeRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("list change requests: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	return requests, nil
}
