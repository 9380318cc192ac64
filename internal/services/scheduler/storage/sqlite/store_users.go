package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
)

// PutUser upserts one calendar user.
func (s *Store) PutUser(ctx context.Context, user storage.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	userID := strings.TrimSpace(user.ID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(user.DisplayName) == "" {
		return fmt.Errorf("display name is required")
	}
	aliases, err := encodeAliases(user.Aliases)
	if err != nil {
		return err
	}
	var quietStart, quietEnd any
	if user.QuietHours != nil {
		quietStart = user.QuietHours.StartMinute
		quietEnd = user.QuietHours.EndMinute
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (id, display_name, password_hash, default_timezone,
		   quiet_start_minute, quiet_end_minute, aliases, enable_transit_checks,
		   created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   display_name = excluded.display_name,
		   password_hash = excluded.password_hash,
		   default_timezone = excluded.default_timezone,
		   quiet_start_minute = excluded.quiet_start_minute,
		   quiet_end_minute = excluded.quiet_end_minute,
		   aliases = excluded.aliases,
		   enable_transit_checks = excluded.enable_transit_checks,
		   updated_at = excluded.updated_at`,
		userID,
		user.DisplayName,
		user.PasswordHash,
		user.DefaultTimezone,
		quietStart,
		quietEnd,
		aliases,
		user.EnableTransitChecks,
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser returns one calendar user.
func (s *Store) GetUser(ctx context.Context, userID string) (storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.UserRecord{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.UserRecord{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, display_name, password_hash, default_timezone,
		   quiet_start_minute, quiet_end_minute, aliases, enable_transit_checks,
		   created_at, updated_at
		 FROM users
		 WHERE id = ?`,
		userID,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (storage.UserRecord, error) {
	var (
		user       storage.UserRecord
		quietStart sql.NullInt64
		quietEnd   sql.NullInt64
		aliases    string
		createdAt  int64
		updatedAt  int64
	)
	err := row.Scan(
		&user.ID,
		&user.DisplayName,
		&user.PasswordHash,
		&user.DefaultTimezone,
		&quietStart,
		&quietEnd,
		&aliases,
		&user.EnableTransitChecks,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.UserRecord{}, storage.ErrNotFound
		}
		return storage.UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	if quietStart.Valid && quietEnd.Valid {
		user.QuietHours = &storage.QuietHoursRecord{
			StartMinute: int(quietStart.Int64),
			EndMinute:   int(quietEnd.Int64),
		}
	}
	user.Aliases, err = decodeAliases(aliases)
	if err != nil {
		return storage.UserRecord{}, err
	}
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}
