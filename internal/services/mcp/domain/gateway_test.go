package domain

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/services/scheduler/app"
	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
	"github.com/quorumcal/quorum/internal/services/scheduler/storage/sqlite"
)

func newTestGateway(t *testing.T) (*Gateway, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "quorum.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	clock := func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	seq := 0
	newID := func() (string, error) {
		seq++
		return fmt.Sprintf("id-%04d", seq), nil
	}

	coordinator := app.NewCoordinator(store, nil, clock, newID)
	return NewGateway(coordinator, app.NewAvailability(store), 100, 100), store
}

func seedMember(t *testing.T, store *sqlite.Store, groupID, userID string) {
	t.Helper()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	err := store.PutUser(ctx, storage.UserRecord{
		ID: userID, DisplayName: userID, DefaultTimezone: "UTC",
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	err = store.PutGroup(ctx, storage.GroupRecord{
		ID: groupID, Name: groupID, CreatedByUserID: userID,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed group: %v", err)
	}
	err = store.PutMembership(ctx, storage.MembershipRecord{
		GroupID: groupID, UserID: userID, Role: "member", JoinedAt: now,
	})
	if err != nil {
		t.Fatalf("seed membership: %v", err)
	}
}

func TestCreateEventDefaultsToSoftTier(t *testing.T) {
	gateway, store := newTestGateway(t)
	seedMember(t, store, "club", "alice")

	result, err := gateway.CreateEvent(context.Background(), EventCreateInput{
		ActingUserID: "alice",
		GroupID:      "club",
		Title:        "Coffee",
		Start:        "2026-03-02T10:00:00Z",
		End:          "2026-03-02T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if result.Tier != "Soft" {
		t.Fatalf("Tier = %q, want %q", result.Tier, "Soft")
	}
	if result.Start != "2026-03-02T10:00:00Z" {
		t.Fatalf("Start = %q, want RFC3339 echo", result.Start)
	}
}

func TestCreateEventRejectsBadTimestamp(t *testing.T) {
	gateway, _ := newTestGateway(t)

	_, err := gateway.CreateEvent(context.Background(), EventCreateInput{
		ActingUserID: "alice",
		GroupID:      "club",
		Title:        "Coffee",
		Start:        "next tuesday",
		End:          "2026-03-02T11:00:00Z",
	})
	if got := apperrors.CodeOf(err); got != apperrors.CodeToolBadArgument {
		t.Fatalf("CodeOf = %q, want %q", got, apperrors.CodeToolBadArgument)
	}
}

func TestCreateEventRequiresActingUser(t *testing.T) {
	gateway, _ := newTestGateway(t)

	_, err := gateway.CreateEvent(context.Background(), EventCreateInput{
		GroupID: "club",
		Title:   "Coffee",
		Start:   "2026-03-02T10:00:00Z",
		End:     "2026-03-02T11:00:00Z",
	})
	if got := apperrors.CodeOf(err); got != apperrors.CodeToolBadArgument {
		t.Fatalf("CodeOf = %q, want %q", got, apperrors.CodeToolBadArgument)
	}
}

func TestUpdateEventPartialChanges(t *testing.T) {
	gateway, store := newTestGateway(t)
	seedMember(t, store, "club", "alice")

	created, err := gateway.CreateEvent(context.Background(), EventCreateInput{
		ActingUserID: "alice",
		GroupID:      "club",
		Title:        "Coffee",
		Start:        "2026-03-02T10:00:00Z",
		End:          "2026-03-02T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	updated, err := gateway.UpdateEvent(context.Background(), EventUpdateInput{
		ActingUserID:    "alice",
		EventID:         created.ID,
		ExpectedVersion: created.Version,
		Title:           "Espresso",
	})
	if err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if updated.Title != "Espresso" {
		t.Fatalf("Title = %q, want %q", updated.Title, "Espresso")
	}
	if updated.Start != created.Start {
		t.Fatalf("Start changed to %q, want untouched %q", updated.Start, created.Start)
	}
	if updated.Version != created.Version+1 {
		t.Fatalf("Version = %d, want %d", updated.Version, created.Version+1)
	}
}

func TestFindAvailabilityReportsFreeGaps(t *testing.T) {
	gateway, store := newTestGateway(t)
	seedMember(t, store, "club", "alice")

	_, err := gateway.CreateEvent(context.Background(), EventCreateInput{
		ActingUserID: "alice",
		GroupID:      "club",
		Title:        "Standup",
		Start:        "2026-03-02T10:00:00Z",
		End:          "2026-03-02T11:00:00Z",
		Tier:         "Hard",
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	result, err := gateway.FindAvailability(context.Background(), AvailabilityInput{
		ActingUserID: "alice",
		UserIDs:      []string{"alice"},
		Start:        "2026-03-02T09:00:00Z",
		End:          "2026-03-02T13:00:00Z",
	})
	if err != nil {
		t.Fatalf("FindAvailability: %v", err)
	}
	if len(result.Users) != 1 {
		t.Fatalf("Users len = %d, want 1", len(result.Users))
	}
	user := result.Users[0]
	if len(user.Busy) != 1 {
		t.Fatalf("Busy len = %d, want 1", len(user.Busy))
	}
	wantFree := []IntervalPayload{
		{Start: "2026-03-02T09:00:00Z", End: "2026-03-02T10:00:00Z"},
		{Start: "2026-03-02T11:00:00Z", End: "2026-03-02T13:00:00Z"},
	}
	if len(user.Free) != len(wantFree) {
		t.Fatalf("Free len = %d, want %d", len(user.Free), len(wantFree))
	}
	for i, want := range wantFree {
		if user.Free[i] != want {
			t.Fatalf("Free[%d] = %+v, want %+v", i, user.Free[i], want)
		}
	}
}
