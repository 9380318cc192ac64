package app

import (
	"time"

	"github.com/quorumcal/quorum/internal/services/scheduler/domain"
	"github.com/quorumcal/quorum/internal/services/scheduler/storage"
)

func eventToRecord(event domain.Event) storage.EventRecord {
	return storage.EventRecord{
		ID:                event.ID,
		GroupID:           event.GroupID,
		OrganizerID:       event.OrganizerID,
		Title:             event.Title,
		StartUTC:          event.StartUTC,
		EndUTC:            event.EndUTC,
		Tier:              string(event.Tier),
		Status:            string(event.Status),
		Version:           event.Version,
		CancelledAt:       event.CancelledAt,
		CancelledByUserID: event.CancelledByUserID,
		CancelReason:      event.CancelReason,
		CreatedAt:         event.CreatedAt,
		UpdatedAt:         event.UpdatedAt,
	}
}

func eventFromRecord(record storage.EventRecord) domain.Event {
	return domain.Event{
		ID:                record.ID,
		GroupID:           record.GroupID,
		OrganizerID:       record.OrganizerID,
		Title:             record.Title,
		StartUTC:          record.StartUTC,
		EndUTC:            record.EndUTC,
		Tier:              domain.Tier(record.Tier),
		Status:            domain.Status(record.Status),
		Version:           record.Version,
		CancelledAt:       record.CancelledAt,
		CancelledByUserID: record.CancelledByUserID,
		CancelReason:      record.CancelReason,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

func attendeeToRecord(attendee domain.Attendee, createdAt, updatedAt time.Time) storage.AttendeeRecord {
	return storage.AttendeeRecord{
		EventID:     attendee.EventID,
		UserID:      attendee.UserID,
		Status:      string(attendee.Status),
		Required:    attendee.Required,
		RespondedAt: attendee.RespondedAt,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

func attendeeFromRecord(record storage.AttendeeRecord) domain.Attendee {
	return domain.Attendee{
		EventID:     record.EventID,
		UserID:      record.UserID,
		Status:      domain.RSVPStatus(record.Status),
		Required:    record.Required,
		RespondedAt: record.RespondedAt,
	}
}

func userFromRecord(record storage.UserRecord) domain.User {
	user := domain.User{
		ID:                  record.ID,
		DisplayName:         record.DisplayName,
		PasswordHash:        record.PasswordHash,
		DefaultTimezone:     record.DefaultTimezone,
		Aliases:             record.Aliases,
		EnableTransitChecks: record.EnableTransitChecks,
		CreatedAt:           record.CreatedAt,
		UpdatedAt:           record.UpdatedAt,
	}
	if record.QuietHours != nil {
		user.QuietHours = &domain.QuietWindow{
			StartMinute: record.QuietHours.StartMinute,
			EndMinute:   record.QuietHours.EndMinute,
		}
	}
	return user
}

func changeRequestFromRecord(record storage.ChangeRequestRecord) (domain.ChangeRequest, error) {
	changes, err := decodeChanges(record.Changes)
	if err != nil {
		return domain.ChangeRequest{}, err
	}
	return domain.ChangeRequest{
		ID:         record.ID,
		EventID:    record.EventID,
		ProposerID: record.ProposerID,
		Changes:    changes,
		State:      domain.ChangeRequestState(record.State),
		CreatedAt:  record.CreatedAt,
		ResolvedAt: record.ResolvedAt,
		ResolvedBy: record.ResolvedByUserID,
	}, nil
}

func changeRequestToRecord(request domain.ChangeRequest) (storage.ChangeRequestRecord, error) {
	changes, err := encodeChanges(request.Changes)
	if err != nil {
		return storage.ChangeRequestRecord{}, err
	}
	return storage.ChangeRequestRecord{
		ID:               request.ID,
		EventID:          request.EventID,
		ProposerID:       request.ProposerID,
		Changes:          changes,
		State:            string(request.State),
		CreatedAt:        request.CreatedAt,
		ResolvedAt:       request.ResolvedAt,
		ResolvedByUserID: request.ResolvedBy,
	}, nil
}
