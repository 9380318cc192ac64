package domain

import (
	"fmt"
	"time"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
)

// RSVPStatus is an attendee's reply to an invitation.
type RSVPStatus string

const (
	// RSVPInvited is the initial state for non-organizer attendees.
	RSVPInvited RSVPStatus = "invited"
	// RSVPGoing means the attendee will attend. Organizers start here.
	RSVPGoing RSVPStatus = "going"
	// RSVPMaybe means the attendee is undecided.
	RSVPMaybe RSVPStatus = "maybe"
	// RSVPDeclined means the attendee will not attend.
	RSVPDeclined RSVPStatus = "declined"
)

// ParseRSVPStatus validates an RSVP literal supplied by a caller.
// "invited" is storage-initial only and cannot be set through RSVP.
func ParseRSVPStatus(value string) (RSVPStatus, error) {
	switch RSVPStatus(value) {
	case RSVPGoing, RSVPMaybe, RSVPDeclined:
		return RSVPStatus(value), nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeRSVPInvalidStatus,
			fmt.Sprintf("unknown rsvp status %q", value),
			map[string]string{"Status": value})
	}
}

// Attendee links a user to an event with an RSVP state. RSVP changes do not
// bump the event version.
type Attendee struct {
	EventID     string
	UserID      string
	Status      RSVPStatus
	Required    bool
	RespondedAt *time.Time
}
