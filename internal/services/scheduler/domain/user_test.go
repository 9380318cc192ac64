package domain

import (
	"testing"
	"time"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
)

func TestNewUserDefaults(t *testing.T) {
	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)

	user, err := NewUser(CreateUserInput{DisplayName: "  ada "}, fixedClock(now), fixedID("usr-1"))
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if user.DisplayName != "ada" {
		t.Fatalf("display name = %q, want trimmed", user.DisplayName)
	}
	if user.DefaultTimezone != "UTC" {
		t.Fatalf("timezone = %q, want UTC default", user.DefaultTimezone)
	}
	if user.QuietHours != nil {
		t.Fatal("expected no quiet hours by default")
	}
}

func TestNewUserValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateUserInput
		wantErr apperrors.Code
	}{
		{"empty name", CreateUserInput{DisplayName: " "}, apperrors.CodeUserEmptyDisplayName},
		{"bad zone", CreateUserInput{DisplayName: "ada", DefaultTimezone: "Mars/Olympus"}, apperrors.CodeUserInvalidTimezone},
		{"bad window", CreateUserInput{
			DisplayName: "ada",
			QuietHours:  &QuietWindow{StartMinute: -1, EndMinute: 400},
		}, apperrors.CodeQuietHoursInvalid},
		{"empty window", CreateUserInput{
			DisplayName: "ada",
			QuietHours:  &QuietWindow{StartMinute: 600, EndMinute: 600},
		}, apperrors.CodeQuietHoursInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser(tt.input, nil, nil)
			if apperrors.CodeOf(err) != tt.wantErr {
				t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), tt.wantErr)
			}
		})
	}
}

func TestQuietWindowWraps(t *testing.T) {
	normal := QuietWindow{StartMinute: 8 * 60, EndMinute: 17 * 60}
	if normal.Wraps() {
		t.Fatal("daytime window must not wrap")
	}
	overnight := QuietWindow{StartMinute: 22 * 60, EndMinute: 7 * 60}
	if !overnight.Wraps() {
		t.Fatal("overnight window must wrap")
	}
	if overnight.String() != "22:00-07:00" {
		t.Fatalf("string = %q", overnight.String())
	}
}

func TestNewGroupCreatorJoinsAsAdmin(t *testing.T) {
	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)

	group, membership, err := NewGroup("climbing club", "usr-1", fixedClock(now), fixedID("grp-1"))
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	if group.ID != "grp-1" || group.CreatedByUserID != "usr-1" {
		t.Fatalf("unexpected group: %+v", group)
	}
	if membership.Role != RoleAdmin || membership.GroupID != "grp-1" || membership.UserID != "usr-1" {
		t.Fatalf("unexpected membership: %+v", membership)
	}

	if _, _, err := NewGroup("  ", "usr-1", nil, nil); apperrors.CodeOf(err) != apperrors.CodeGroupNameEmpty {
		t.Fatalf("code = %q, want empty group name", apperrors.CodeOf(err))
	}
}
