package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/platform/id"
)

// Role describes a member's standing within a group.
type Role string

const (
	// RoleAdmin can manage group membership.
	RoleAdmin Role = "admin"
	// RoleMember is a regular participant.
	RoleMember Role = "member"
)

// ParseRole validates a role literal.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleAdmin, RoleMember:
		return Role(value), nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeGroupInvalidRole,
			fmt.Sprintf("unknown group role %q", value),
			map[string]string{"Role": value})
	}
}

// Group is a closed set of users sharing one calendar.
type Group struct {
	ID              string
	Name            string
	CreatedByUserID string
	CreatedAt       time.Time
}

// Membership links a user to a group with a role.
type Membership struct {
	GroupID  string
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// NewGroup creates a group with a generated ID; the creator joins as admin.
func NewGroup(name, createdByUserID string, now func() time.Time, idGenerator func() (string, error)) (Group, Membership, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, Membership{}, apperrors.New(apperrors.CodeGroupNameEmpty, "group name is required")
	}

	groupID, err := idGenerator()
	if err != nil {
		return Group{}, Membership{}, fmt.Errorf("generate group id: %w", err)
	}

	createdAt := now().UTC()
	group := Group{
		ID:              groupID,
		Name:            name,
		CreatedByUserID: createdByUserID,
		CreatedAt:       createdAt,
	}
	membership := Membership{
		GroupID:  groupID,
		UserID:   createdByUserID,
		Role:     RoleAdmin,
		JoinedAt: createdAt,
	}
	return group, membership, nil
}
