package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
)

func scanMutation(row rowScanner) (storage.MutationRecord, error) {
	var (
		entry     storage.MutationRecord
		before    sql.NullString
		after     string
		createdAt int64
	)
	err := row.Scan(
		&entry.ID,
		&entry.EventID,
		&entry.ActorID,
		&entry.Action,
		&before,
		&after,
		&entry.IdempotencyKey,
		&entry.RequestID,
		&createdAt,
	)
	if err != nil {
		return storage.MutationRecord{}, err
	}
	if before.Valid {
		entry.Before = []byte(before.String)
	}
	entry.After = []byte(after)
	entry.CreatedAt = fromMillis(createdAt)
	return entry, nil
}

// GetMutationByIdempotencyKey returns the ledger entry recorded for a key.
func (s *Store) GetMutationByIdempotencyKey(ctx context.Context, key string) (storage.MutationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MutationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MutationRecord{}, fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return storage.MutationRecord{}, fmt.Errorf("idempotency key is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, event_id, actor_id, action, before_snapshot, after_snapshot,
		   idempotency_key, request_id, created_at
		 FROM mutations
		 WHERE idempotency_key = ?`,
		key,
	)
	entry, err := scanMutation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MutationRecord{}, storage.ErrNotFound
		}
		return storage.MutationRecord{}, fmt.Errorf("get mutation by idempotency key: %w", err)
	}
	return entry, nil
}

// ListMutationsByEvent returns an event's ledger entries in append order.
func (s *Store) ListMutationsByEvent(ctx context.Context, eventID string) ([]storage.MutationRecord, error) {
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
		`SELECT id, event_id, actor_id, action, before_snapshot, after_snapshot,
		   idempotency_key, request_id, created_at
		 FROM mutations
		 WHERE event_id = ?
		 ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list mutations: %w", err)
	}
	defer rows.Close()

	var entries []storage.MutationRecord
	for rows.Next() {
		entry, err := scanMutation(rows)
		if err != nil {
			return nil, fmt.Errorf("list mutations: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mutations: %w", err)
	}
	return entries, nil
}
