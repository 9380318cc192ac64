// Package domain defines the scheduling entities and their invariants.
package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/platform/id"
)

const minutesPerDay = 24 * 60

var (
	// ErrEmptyDisplayName indicates a missing user display name.
	ErrEmptyDisplayName = apperrors.New(apperrors.CodeUserEmptyDisplayName, "display name is required")
	// ErrInvalidTimezone indicates an unknown IANA timezone name.
	ErrInvalidTimezone = apperrors.New(apperrors.CodeUserInvalidTimezone, "timezone is not a valid IANA zone")
	// ErrInvalidQuietWindow indicates a malformed quiet-hours window.
	ErrInvalidQuietWindow = apperrors.New(apperrors.CodeQuietHoursInvalid, "quiet-hours window is invalid")
)

// QuietWindow is a daily local-time range during which hard events are
// disallowed for the user. Minutes are measured from local midnight.
// A window with StartMinute > EndMinute wraps past midnight.
type QuietWindow struct {
	StartMinute int
	EndMinute   int
}

// Wraps reports whether the window crosses local midnight.
func (w QuietWindow) Wraps() bool {
	return w.StartMinute > w.EndMinute
}

// Validate checks that both bounds are clock minutes and the window is not empty.
func (w QuietWindow) Validate() error {
	if w.StartMinute < 0 || w.StartMinute >= minutesPerDay ||
		w.EndMinute < 0 || w.EndMinute >= minutesPerDay {
		return apperrors.WithMetadata(apperrors.CodeQuietHoursInvalid,
			fmt.Sprintf("quiet-hours bounds out of range: %d-%d", w.StartMinute, w.EndMinute),
			map[string]string{"Start": minuteLabel(w.StartMinute), "End": minuteLabel(w.EndMinute)})
	}
	if w.StartMinute == w.EndMinute {
		return ErrInvalidQuietWindow
	}
	return nil
}

// String renders the window as HH:MM-HH:MM local time.
func (w QuietWindow) String() string {
	return minuteLabel(w.StartMinute) + "-" + minuteLabel(w.EndMinute)
}

func minuteLabel(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// User represents a member of the scheduling group.
//
// PasswordHash is opaque to this core; it is stored for the account system
// but never interpreted here. Users are never physically removed.
type User struct {
	ID              string
	DisplayName     string
	PasswordHash    string
	DefaultTimezone string
	// QuietHours is nil when the user has no do-not-disturb window.
	QuietHours          *QuietWindow
	Aliases             []string
	EnableTransitChecks bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CreateUserInput describes the fields needed to register a user.
type CreateUserInput struct {
	DisplayName         string
	PasswordHash        string
	DefaultTimezone     string
	QuietHours          *QuietWindow
	Aliases             []string
	EnableTransitChecks bool
}

// NewUser creates a user with a generated ID and timestamps.
func NewUser(input CreateUserInput, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return User{}, ErrEmptyDisplayName
	}

	zone := strings.TrimSpace(input.DefaultTimezone)
	if zone == "" {
		zone = "UTC"
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return User{}, apperrors.WithMetadata(apperrors.CodeUserInvalidTimezone,
			fmt.Sprintf("timezone %q is not a valid IANA zone", zone),
			map[string]string{"Timezone": zone})
	}

	if input.QuietHours != nil {
		if err := input.QuietHours.Validate(); err != nil {
			return User{}, err
		}
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	createdAt := now().UTC()
	return User{
		ID:                  userID,
		DisplayName:         displayName,
		PasswordHash:        input.PasswordHash,
		DefaultTimezone:     zone,
		QuietHours:          input.QuietHours,
		Aliases:             input.Aliases,
		EnableTransitChecks: input.EnableTransitChecks,
		CreatedAt:           createdAt,
		UpdatedAt:           createdAt,
	}, nil
}
