package dnd

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/services/scheduler/domain"
)

func TestResolveSimpleWindow(t *testing.T) {
	window := domain.QuietWindow{StartMinute: 9 * 60, EndMinute: 17 * 60}
	day := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	got, err := Resolve(window, "UTC", day)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Resolve() returned %d intervals, want 1", len(got))
	}
	wantStart := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 1, 15, 17, 0, 0, 0, time.UTC)
	if !got[0].Start.Equal(wantStart) || !got[0].End.Equal(wantEnd) {
		t.Errorf("Resolve() = [%v, %v), want [%v, %v)", got[0].Start, got[0].End, wantStart, wantEnd)
	}
}

func TestResolveWrappingWindowSplitsAtMidnight(t *testing.T) {
	// 22:00-07:00 for a user in New York (UTC-5 in January).
	window := domain.QuietWindow{StartMinute: 22 * 60, EndMinute: 7 * 60}
	day := time.Date(2026, 1, 15, 17, 0, 0, 0, time.UTC)

	got, err := Resolve(window, "America/New_York", day)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Resolve() returned %d intervals, want 2", len(got))
	}

	// Morning part: local midnight to 07:00 is 05:00Z to 12:00Z.
	morning := domain.Interval{
		Start: time.Date(2026, 1, 15, 5, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	// Evening part: local 22:00 to next midnight is 03:00Z to 05:00Z next day.
	evening := domain.Interval{
		Start: time.Date(2026, 1, 16, 3, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 16, 5, 0, 0, 0, time.UTC),
	}

	if !got[0].Start.Equal(morning.Start) || !got[0].End.Equal(morning.End) {
		t.Errorf("morning = [%v, %v), want [%v, %v)", got[0].Start, got[0].End, morning.Start, morning.End)
	}
	if !got[1].Start.Equal(evening.Start) || !got[1].End.Equal(evening.End) {
		t.Errorf("evening = [%v, %v), want [%v, %v)", got[1].Start, got[1].End, evening.Start, evening.End)
	}
}

func TestResolveAcrossDSTTransition(t *testing.T) {
	// US spring forward: 2026-03-08, clocks jump 02:00 -> 03:00 EST->EDT.
	// A 22:00-07:00 window on that day still ends at local 07:00, which is
	// 11:00Z under EDT rather than 12:00Z.
	window := domain.QuietWindow{StartMinute: 22 * 60, EndMinute: 7 * 60}
	day := time.Date(2026, 3, 8, 15, 0, 0, 0, time.UTC)

	got, err := Resolve(window, "America/New_York", day)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	wantMorningEnd := time.Date(2026, 3, 8, 11, 0, 0, 0, time.UTC)
	if !got[0].End.Equal(wantMorningEnd) {
		t.Errorf("morning end = %v, want %v", got[0].End, wantMorningEnd)
	}
}

func TestResolveRejectsUnknownZone(t *testing.T) {
	window := domain.QuietWindow{StartMinute: 22 * 60, EndMinute: 7 * 60}

	_, err := Resolve(window, "Mars/Olympus_Mons", time.Now())
	if err == nil {
		t.Fatal("Resolve() expected error for unknown zone")
	}
	if got := apperrors.CodeOf(err); got != apperrors.CodeUserInvalidTimezone {
		t.Errorf("CodeOf() = %v, want %v", got, apperrors.CodeUserInvalidTimezone)
	}
}

func TestResolveRejectsInvalidWindow(t *testing.T) {
	window := domain.QuietWindow{StartMinute: -1, EndMinute: 7 * 60}

	if _, err := Resolve(window, "UTC", time.Now()); !errors.Is(err, domain.ErrInvalidQuietWindow) {
		t.Errorf("Resolve() error = %v, want ErrInvalidQuietWindow", err)
	}
}

func TestWindowsAroundCoversRangeEdges(t *testing.T) {
	// A quiet window wrapping midnight in New York. The query range starts
	// mid-evening, inside the previous local day's evening part.
	window := domain.QuietWindow{StartMinute: 22 * 60, EndMinute: 7 * 60}
	start := time.Date(2026, 1, 16, 4, 0, 0, 0, time.UTC) // local 23:00 Jan 15
	end := time.Date(2026, 1, 16, 14, 0, 0, 0, time.UTC)  // local 09:00 Jan 16

	got, err := WindowsAround(window, "America/New_York", start, end)
	if err != nil {
		t.Fatalf("WindowsAround() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("WindowsAround() returned %d intervals, want 2", len(got))
	}
	for _, interval := range got {
		query := domain.Interval{Start: start, End: end}
		if !interval.Overlaps(query) {
			t.Errorf("interval [%v, %v) does not overlap query range", interval.Start, interval.End)
		}
	}
}

func TestWindowsAroundNoDuplicates(t *testing.T) {
	window := domain.QuietWindow{StartMinute: 22 * 60, EndMinute: 7 * 60}
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC)

	got, err := WindowsAround(window, "America/New_York", start, end)
	if err != nil {
		t.Fatalf("WindowsAround() error = %v", err)
	}
	seen := make(map[time.Time]bool)
	for _, interval := range got {
		if seen[interval.Start] {
			t.Errorf("duplicate interval starting at %v", interval.Start)
		}
		seen[interval.Start] = true
	}
}

func TestWindowsAroundEmptyRange(t *testing.T) {
	window := domain.QuietWindow{StartMinute: 22 * 60, EndMinute: 7 * 60}
	at := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	got, err := WindowsAround(window, "UTC", at, at)
	if err != nil {
		t.Fatalf("WindowsAround() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("WindowsAround() returned %d intervals for empty range, want 0", len(got))
	}
}
