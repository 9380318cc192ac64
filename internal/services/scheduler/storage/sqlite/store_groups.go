package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
)

// PutGroup upserts one scheduling group.
func (s *Store) PutGroup(ctx context.Context, group storage.GroupRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	groupID := strings.TrimSpace(group.ID)
	if groupID == "" {
		return fmt.Errorf("group id is required")
	}
	if strings.TrimSpace(group.Name) == "" {
		return fmt.Errorf("group name is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO groups (id, name, created_by_user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   updated_at = excluded.updated_at`,
		groupID,
		group.Name,
		group.CreatedByUserID,
		toMillis(group.CreatedAt),
		toMillis(group.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put group: %w", err)
	}
	return nil
}

// GetGroup returns one scheduling group.
func (s *Store) GetGroup(ctx context.Context, groupID string) (storage.GroupRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.GroupRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.GroupRecord{}, fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return storage.GroupRecord{}, fmt.Errorf("group id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, created_by_user_id, created_at, updated_at
		 FROM groups
		 WHERE id = ?`,
		groupID,
	)
	var (
		group     storage.GroupRecord
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&group.ID, &group.Name, &group.CreatedByUserID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.GroupRecord{}, storage.ErrNotFound
		}
		return storage.GroupRecord{}, fmt.Errorf("get group: %w", err)
	}
	group.CreatedAt = fromMillis(createdAt)
	group.UpdatedAt = fromMillis(updatedAt)
	return group, nil
}

// PutMembership upserts one group membership.
func (s *Store) PutMembership(ctx context.Context, membership storage.MembershipRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	groupID := strings.TrimSpace(membership.GroupID)
	userID := strings.TrimSpace(membership.UserID)
	if groupID == "" {
		return fmt.Errorf("group id is required")
	}
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO memberships (group_id, user_id, role, joined_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(group_id, user_id) DO UPDATE SET
		   role = excluded.role`,
		groupID,
		userID,
		membership.Role,
		toMillis(membership.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("put membership: %w", err)
	}
	return nil
}

// GetMembership returns one group membership.
func (s *Store) GetMembership(ctx context.Context, groupID string, userID string) (storage.MembershipRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MembershipRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MembershipRecord{}, fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	userID = strings.TrimSpace(userID)
	if groupID == "" {
		return storage.MembershipRecord{}, fmt.Errorf("group id is required")
	}
	if userID == "" {
		return storage.MembershipRecord{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT group_id, user_id, role, joined_at
		 FROM memberships
		 WHERE group_id = ? AND user_id = ?`,
		groupID,
		userID,
	)
	var (
		membership storage.MembershipRecord
		joinedAt   int64
	)
	err := row.Scan(&membership.GroupID, &membership.UserID, &membership.Role, &joinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MembershipRecord{}, storage.ErrNotFound
		}
		return storage.MembershipRecord{}, fmt.Errorf("get membership: %w", err)
	}
	membership.JoinedAt = fromMillis(joinedAt)
	return membership, nil
}

// ListMemberships returns all memberships of a group ordered by user id.
func (s *Store) ListMemberships(ctx context.Context, groupID string) ([]storage.MembershipRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, fmt.Errorf("group id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT group_id, user_id, role, joined_at
		 FROM memberships
		 WHERE group_id = ?
		 ORDER BY user_id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []storage.MembershipRecord
	for rows.Next() {
		var (
			membership storage.MembershipRecord
			joinedAt   int64
		)
		if err := rows.Scan(&membership.GroupID, &membership.UserID, &membership.Role, &joinedAt); err != nil {
			return nil, fmt.Errorf("list memberships: %w", err)
		}
		membership.JoinedAt = fromMillis(joinedAt)
		memberships = append(memberships, membership)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return memberships, nil
}
