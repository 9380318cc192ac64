package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "scheduler.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func testTime(hour int) time.Time {
	return time.Date(2026, 3, 2, hour, 0, 0, 0, time.UTC)
}

func seedUser(t *testing.T, s *Store, userID string) {
	t.Helper()
	err := s.PutUser(context.Background(), storage.UserRecord{
		ID:              userID,
		DisplayName:     "User " + userID,
		DefaultTimezone: "UTC",
		CreatedAt:       testTime(0),
		UpdatedAt:       testTime(0),
	})
	if err != nil {
		t.Fatalf("PutUser(%s) error = %v", userID, err)
	}
}

func seedGroup(t *testing.T, s *Store, groupID string, memberIDs ...string) {
	t.Helper()
	ctx := context.Background()
	err := s.PutGroup(ctx, storage.GroupRecord{
		ID:              groupID,
		Name:            "Group " + groupID,
		CreatedByUserID: memberIDs[0],
		CreatedAt:       testTime(0),
		UpdatedAt:       testTime(0),
	})
	if err != nil {
		t.Fatalf("PutGroup(%s) error = %v", groupID, err)
	}
	for i, userID := range memberIDs {
		role := "member"
		if i == 0 {
			role = "admin"
		}
		err := s.PutMembership(ctx, storage.MembershipRecord{
			GroupID:  groupID,
			UserID:   userID,
			Role:     role,
			JoinedAt: testTime(0),
		})
		if err != nil {
			t.Fatalf("PutMembership(%s, %s) error = %v", groupID, userID, err)
		}
	}
}

func seedEvent(t *testing.T, s *Store, eventID string, startHour, endHour int, tier string, attendeeIDs ...string) {
	t.Helper()
	event := storage.EventRecord{
		ID:          eventID,
		GroupID:     "g-1",
		OrganizerID: attendeeIDs[0],
		Title:       "Event " + eventID,
		StartUTC:    testTime(startHour),
		EndUTC:      testTime(endHour),
		Tier:        tier,
		Status:      "Scheduled",
		Version:     1,
		CreatedAt:   testTime(0),
		UpdatedAt:   testTime(0),
	}
	var attendees []storage.AttendeeRecord
	for i, userID := range attendeeIDs {
		status := "invited"
		if i == 0 {
			status = "going"
		}
		attendees = append(attendees, storage.AttendeeRecord{
			EventID:   eventID,
			UserID:    userID,
			Status:    status,
			Required:  true,
			CreatedAt: testTime(0),
			UpdatedAt: testTime(0),
		})
	}
	entry := storage.MutationRecord{
		ID:             "mut-create-" + eventID,
		EventID:        eventID,
		ActorID:        attendeeIDs[0],
		Action:         "create",
		After:          []byte(`{}`),
		IdempotencyKey: "idem-create-" + eventID,
		CreatedAt:      testTime(0),
	}
	if err := s.CreateEvent(context.Background(), event, attendees, entry); err != nil {
		t.Fatalf("CreateEvent(%s) error = %v", eventID, err)
	}
}

func TestUserRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := storage.UserRecord{
		ID:              "u-1",
		DisplayName:     "Ada",
		PasswordHash:    "opaque-hash",
		DefaultTimezone: "America/New_York",
		QuietHours:      &storage.QuietHoursRecord{StartMinute: 22 * 60, EndMinute: 7 * 60},
		Aliases:         []string{"ada", "al"},
		CreatedAt:       testTime(1),
		UpdatedAt:       testTime(2),
	}
	if err := store.PutUser(ctx, want); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}

	got, err := store.GetUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.DisplayName != want.DisplayName {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, want.DisplayName)
	}
	if got.DefaultTimezone != want.DefaultTimezone {
		t.Errorf("DefaultTimezone = %q, want %q", got.DefaultTimezone, want.DefaultTimezone)
	}
	if got.QuietHours == nil || got.QuietHours.StartMinute != 22*60 || got.QuietHours.EndMinute != 7*60 {
		t.Errorf("QuietHours = %+v, want 22:00-07:00 window", got.QuietHours)
	}
	if len(got.Aliases) != 2 || got.Aliases[0] != "ada" {
		t.Errorf("Aliases = %v, want %v", got.Aliases, want.Aliases)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetUser(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetUser() error = %v, want ErrNotFound", err)
	}
}

func TestGroupMembershipRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u-1")
	seedUser(t, store, "u-2")
	seedGroup(t, store, "g-1", "u-1", "u-2")

	membership, err := store.GetMembership(ctx, "g-1", "u-1")
	if err != nil {
		t.Fatalf("GetMembership() error = %v", err)
	}
	if membership.Role != "admin" {
		t.Errorf("Role = %q, want admin", membership.Role)
	}

	memberships, err := store.ListMemberships(ctx, "g-1")
	if err != nil {
		t.Fatalf("ListMemberships() error = %v", err)
	}
	if len(memberships) != 2 {
		t.Errorf("ListMemberships() returned %d records, want 2", len(memberships))
	}

	if _, err := store.GetMembership(ctx, "g-1", "stranger"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetMembership(stranger) error = %v, want ErrNotFound", err)
	}
}

func TestCreateEventPersistsAttendeesAndLedger(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u-1")
	seedUser(t, store, "u-2")
	seedGroup(t, store, "g-1", "u-1", "u-2")
	seedEvent(t, store, "ev-1", 10, 11, "Hard", "u-1", "u-2")

	event, err := store.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if event.Version != 1 {
		t.Errorf("Version = %d, want 1", event.Version)
	}
	if event.Status != "Scheduled" {
		t.Errorf("Status = %q, want scheduled", event.Status)
	}

	attendees, err := store.ListAttendees(ctx, "ev-1")
	if err != nil {
		t.Fatalf("ListAttendees() error = %v", err)
	}
	if len(attendees) != 2 {
		t.Fatalf("ListAttendees() returned %d records, want 2", len(attendees))
	}
	if attendees[0].UserID != "u-1" || attendees[0].Status != "going" {
		t.Errorf("organizer attendee = %+v, want u-1 going", attendees[0])
	}
	if attendees[1].UserID != "u-2" || attendees[1].Status != "invited" {
		t.Errorf("invitee attendee = %+v, want u-2 invited", attendees[1])
	}

	entries, err := store.ListMutationsByEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("ListMutationsByEvent() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "create" {
		t.Fatalf("ledger = %+v, want one create entry", entries)
	}
	if entries[0].Before != nil {
		t.Errorf("create entry Before = %s, want nil", entries[0].Before)
	}
}

func TestUpdateEventCompareAndSwap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u-1")
	seedGroup(t, store, "g-1", "u-1")
	seedEvent(t, store, "ev-1", 10, 11, "Soft", "u-1")

	event, err := store.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	event.Title = "moved"
	event.Version = 2
	entry := storage.MutationRecord{
		ID: "mut-1", EventID: "ev-1", ActorID: "u-1", Action: "update",
		Before: []byte(`{}`), After: []byte(`{}`),
		IdempotencyKey: "idem-1", CreatedAt: testTime(1),
	}
	if err := store.UpdateEvent(ctx, event, 1, entry); err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}

	updated, err := store.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if updated.Version != 2 || updated.Title != "moved" {
		t.Errorf("event = version %d title %q, want version 2 title moved", updated.Version, updated.Title)
	}

	// Retrying with the stale version must fail without touching the row.
	stale := entry
	stale.ID = "mut-2"
	stale.IdempotencyKey = "idem-2"
	err = store.UpdateEvent(ctx, event, 1, stale)
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("UpdateEvent(stale) error = %v, want ErrVersionConflict", err)
	}
	entries, err := store.ListMutationsByEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("ListMutationsByEvent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ledger has %d entries after failed CAS, want 2", len(entries))
	}
}

func TestUpdateEventMissingRow(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateEvent(context.Background(), storage.EventRecord{ID: "ghost", Version: 2}, 1, storage.MutationRecord{
		ID: "mut-1", EventID: "ghost", Action: "update",
		After: []byte(`{}`), IdempotencyKey: "idem-1", CreatedAt: testTime(0),
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateEvent(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDuplicateIdempotencyKeyRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u-1")
	seedGroup(t, store, "g-1", "u-1")
	seedEvent(t, store, "ev-1", 10, 11, "Soft", "u-1")

	event, err := store.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	event.Version = 2
	err = store.UpdateEvent(ctx, event, 1, storage.MutationRecord{
		ID: "mut-1", EventID: "ev-1", ActorID: "u-1", Action: "update",
		Before: []byte(`{}`), After: []byte(`{}`),
		IdempotencyKey: "idem-create-ev-1", CreatedAt: testTime(1),
	})
	if !errors.Is(err, storage.ErrDuplicateIdempotencyKey) {
		t.Fatalf("UpdateEvent(dup key) error = %v, want ErrDuplicateIdempotencyKey", err)
	}

	// The failed transaction must not have bumped the version.
	current, err := store.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if current.Version != 1 {
		t.Errorf("Version = %d after rolled-back update, want 1", current.Version)
	}
}

func TestSetAttendeeStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u-1")
	seedUser(t, store, "u-2")
	seedGroup(t, store, "g-1", "u-1", "u-2")
	seedEvent(t, store, "ev-1", 10, 11, "Soft", "u-1", "u-2")

	respondedAt := testTime(3)
	err := store.SetAttendeeStatus(ctx, storage.AttendeeRecord{
		EventID: "ev-1", UserID: "u-2", Status: "going",
		RespondedAt: &respondedAt, UpdatedAt: respondedAt,
	}, storage.MutationRecord{
		ID: "mut-rsvp", EventID: "ev-1", ActorID: "u-2", Action: "rsvp",
		After: []byte(`{}`), IdempotencyKey: "idem-rsvp", CreatedAt: respondedAt,
	})
	if err != nil {
		t.Fatalf("SetAttendeeStatus() error = %v", err)
	}

	attendee, err := store.GetAttendee(ctx, "ev-1", "u-2")
	if err != nil {
		t.Fatalf("GetAttendee() error = %v", err)
	}
	if attendee.Status != "going" {
		t.Errorf("Status = %q, want going", attendee.Status)
	}
	if attendee.RespondedAt == nil || !attendee.RespondedAt.Equal(respondedAt) {
		t.Errorf("RespondedAt = %v, want %v", attendee.RespondedAt, respondedAt)
	}

	event, err := store.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if event.Version != 1 {
		t.Errorf("Version = %d after rsvp, want 1", event.Version)
	}

	err = store.SetAttendeeStatus(ctx, storage.AttendeeRecord{
		EventID: "ev-1", UserID: "stranger", Status: "going",
	}, storage.MutationRecord{ID: "mut-x", EventID: "ev-1", Action: "rsvp", After: []byte(`{}`), IdempotencyKey: "idem-x"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetAttendeeStatus(stranger) error = %v, want ErrNotFound", err)
	}
}

func TestListOverlappingHalfOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u-1")
	seedGroup(t, store, "g-1", "u-1")
	seedEvent(t, store, "ev-before", 8, 10, "Hard", "u-1")
	seedEvent(t, store, "ev-inside", 10, 12, "Hard", "u-1")
	seedEvent(t, store, "ev-after", 12, 14, "Hard", "u-1")

	got, err := store.ListOverlapping(ctx, []string{"u-1"}, testTime(10), testTime(12), "")
	if err != nil {
		t.Fatalf("ListOverlapping() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "ev-inside" {
		t.Errorf("ListOverlapping() = %+v, want only ev-inside", got)
	}

	// Excluding the event itself leaves nothing.
	got, err = store.ListOverlapping(ctx, []string{"u-1"}, testTime(10), testTime(12), "ev-inside")
	if err != nil {
		t.Fatalf("ListOverlapping() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListOverlapping(exclude self) = %+v, want empty", got)
	}
}

func TestListOverlappingIgnoresCancelled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u-1")
	seedGroup(t, store, "g-1", "u-1")
	seedEvent(t, store, "ev-1", 10, 12, "Hard", "u-1")

	event, err := store.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	cancelledAt := testTime(9)
	event.Status = "Cancelled"
	event.CancelledAt = &cancelledAt
	event.CancelledByUserID = "u-1"
	event.Version = 2
	err = store.UpdateEvent(ctx, event, 1, storage.MutationRecord{
		ID: "mut-cancel", EventID: "ev-1", ActorID: "u-1", Action: "cancel",
		Before: []byte(`{}`), After: []byte(`{}`),
		IdempotencyKey: "idem-cancel", CreatedAt: cancelledAt,
	})
	if err != nil {
		t.Fatalf("UpdateEvent(cancel) error = %v", err)
	}

	got, err := store.ListOverlapping(ctx, []string{"u-1"}, testTime(10), testTime(12), "")
	if err != nil {
		t.Fatalf("ListOverlapping() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListOverlapping() = %+v, want cancelled event excluded", got)
	}
}

func TestApproveChangeRequestRollsBackOnStaleVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u-1")
	seedUser(t, store, "u-2")
	seedGroup(t, store, "g-1", "u-1", "u-2")
	seedEvent(t, store, "ev-1", 10, 11, "Soft", "u-1", "u-2")

	err := store.PutChangeRequest(ctx, storage.ChangeRequestRecord{
		ID: "cr-1", EventID: "ev-1", ProposerID: "u-2",
		Changes: []byte(`{"title":"later"}`), State: "pending",
		CreatedAt: testTime(1),
	})
	if err != nil {
		t.Fatalf("PutChangeRequest() error = %v", err)
	}

	event, err := store.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	event.Title = "later"
	event.Version = 2
	resolvedAt := testTime(2)
	request := storage.ChangeRequestRecord{
		ID: "cr-1", State: "approved",
		ResolvedAt: &resolvedAt, ResolvedByUserID: "u-1",
	}
	updateEntry := storage.MutationRecord{
		ID: "mut-u", EventID: "ev-1", ActorID: "u-1", Action: "update",
		Before: []byte(`{}`), After: []byte(`{}`),
		IdempotencyKey: "idem-u", CreatedAt: resolvedAt,
	}
	approveEntry := storage.MutationRecord{
		ID: "mut-a", EventID: "ev-1", ActorID: "u-1", Action: "approve_change",
		Before: []byte(`{}`), After: []byte(`{}`),
		IdempotencyKey: "idem-a", RequestID: "cr-1", CreatedAt: resolvedAt,
	}

	// Stale expected version: the whole approval must roll back.
	err = store.ApproveChangeRequest(ctx, request, event, 7, updateEntry, approveEntry)
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("ApproveChangeRequest(stale) error = %v, want ErrVersionConflict", err)
	}
	pending, err := store.GetChangeRequest(ctx, "cr-1")
	if err != nil {
		t.Fatalf("GetChangeRequest() error = %v", err)
	}
	if pending.State != "pending" {
		t.Errorf("State = %q after rollback, want pending", pending.State)
	}
	entries, err := store.ListMutationsByEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("ListMutationsByEvent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("ledger has %d entries after rollback, want 1", len(entries))
	}

	// Correct version: everything commits together.
	if err := store.ApproveChangeRequest(ctx, request, event, 1, updateEntry, approveEntry); err != nil {
		t.Fatalf("ApproveChangeRequest() error = %v", err)
	}
	approved, err := store.GetChangeRequest(ctx, "cr-1")
	if err != nil {
		t.Fatalf("GetChangeRequest() error = %v", err)
	}
	if approved.State != "approved" || approved.ResolvedByUserID != "u-1" {
		t.Errorf("request = %+v, want approved by u-1", approved)
	}
	updated, err := store.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if updated.Version != 2 || updated.Title != "later" {
		t.Errorf("event = version %d title %q, want version 2 title later", updated.Version, updated.Title)
	}
	entries, err = store.ListMutationsByEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("ListMutationsByEvent() error = %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("ledger has %d entries, want 3", len(entries))
	}
}

func TestChangeRequestStateFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u-1")
	seedUser(t, store, "u-2")
	seedGroup(t, store, "g-1", "u-1", "u-2")
	seedEvent(t, store, "ev-1", 10, 11, "Soft", "u-1", "u-2")

	for i, state := range []string{"pending", "rejected"} {
		err := store.PutChangeRequest(ctx, storage.ChangeRequestRecord{
			ID: "cr-" + state, EventID: "ev-1", ProposerID: "u-2",
			Changes: []byte(`{}`), State: state,
			CreatedAt: testTime(i + 1),
		})
		if err != nil {
			t.Fatalf("PutChangeRequest(%s) error = %v", state, err)
		}
	}

	pending, err := store.ListChangeRequestsByEvent(ctx, "ev-1", "pending")
	if err != nil {
		t.Fatalf("ListChangeRequestsByEvent(pending) error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "cr-pending" {
		t.Errorf("pending = %+v, want only cr-pending", pending)
	}

	all, err := store.ListChangeRequestsByEvent(ctx, "ev-1", "")
	if err != nil {
		t.Fatalf("ListChangeRequestsByEvent(all) error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d records, want 2", len(all))
	}
}

func TestGetMutationByIdempotencyKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u-1")
	seedGroup(t, store, "g-1", "u-1")
	seedEvent(t, store, "ev-1", 10, 11, "Soft", "u-1")

	entry, err := store.GetMutationByIdempotencyKey(ctx, "idem-create-ev-1")
	if err != nil {
		t.Fatalf("GetMutationByIdempotencyKey() error = %v", err)
	}
	if entry.Action != "create" || entry.EventID != "ev-1" {
		t.Errorf("entry = %+v, want create for ev-1", entry)
	}

	_, err = store.GetMutationByIdempotencyKey(ctx, "never-seen")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetMutationByIdempotencyKey(missing) error = %v, want ErrNotFound", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("Open(\"\") expected error")
	}
}
