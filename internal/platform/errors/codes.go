// Package errors provides structured error handling for the scheduling core.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Event errors
	CodeEventInvalidTimeRange   Code = "EVENT_INVALID_TIME_RANGE"
	CodeEventTitleEmpty         Code = "EVENT_TITLE_EMPTY"
	CodeEventInvalidTier        Code = "EVENT_INVALID_TIER"
	CodeEventAlreadyCancelled   Code = "EVENT_ALREADY_CANCELLED"
	CodeEventCancelledImmutable Code = "EVENT_CANCELLED_IMMUTABLE"
	CodeEventNotOrganizer       Code = "EVENT_NOT_ORGANIZER"
	CodeEventVersionMismatch    Code = "EVENT_VERSION_MISMATCH"

	// Scheduling conflict errors
	CodeSchedulingHardConflict Code = "SCHEDULING_HARD_CONFLICT"
	CodeSchedulingQuietHours   Code = "SCHEDULING_QUIET_HOURS"

	// Attendee errors
	CodeRSVPInvalidStatus Code = "RSVP_INVALID_STATUS"

	// Group errors
	CodeGroupNameEmpty          Code = "GROUP_NAME_EMPTY"
	CodeGroupMembershipRequired Code = "GROUP_MEMBERSHIP_REQUIRED"
	CodeGroupInvalidRole        Code = "GROUP_INVALID_ROLE"

	// User errors
	CodeUserEmptyDisplayName Code = "USER_EMPTY_DISPLAY_NAME"
	CodeUserInvalidTimezone  Code = "USER_INVALID_TIMEZONE"
	CodeQuietHoursInvalid    Code = "QUIET_HOURS_INVALID"

	// Change-request errors
	CodeChangeRequestNotPending          Code = "CHANGE_REQUEST_NOT_PENDING"
	CodeChangeRequestEmpty               Code = "CHANGE_REQUEST_EMPTY"
	CodeChangeRequestProposerIsOrganizer Code = "CHANGE_REQUEST_PROPOSER_IS_ORGANIZER"

	// Agent gateway errors
	CodeToolUnknown     Code = "TOOL_UNKNOWN"
	CodeToolRateLimited Code = "TOOL_RATE_LIMITED"
	CodeToolBadArgument Code = "TOOL_BAD_ARGUMENT"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Kind groups codes into the coarse failure classes callers branch on.
type Kind int

const (
	// KindInternal covers unclassified failures.
	KindInternal Kind = iota
	// KindValidation covers malformed input that must not be retried as-is.
	KindValidation
	// KindPermission covers actors lacking authority for the operation.
	KindPermission
	// KindConflict covers scheduling-rule rejections.
	KindConflict
	// KindVersionConflict covers optimistic-lock mismatches.
	KindVersionConflict
	// KindNotFound covers unknown identifier references.
	KindNotFound
)

// String names the kind for logs and transport payloads.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindConflict:
		return "conflict"
	case KindVersionConflict:
		return "version_conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Kind maps a code to its failure class.
func (c Code) Kind() Kind {
	switch c {
	case CodeEventInvalidTimeRange,
		CodeEventTitleEmpty,
		CodeEventInvalidTier,
		CodeEventAlreadyCancelled,
		CodeEventCancelledImmutable,
		CodeRSVPInvalidStatus,
		CodeGroupNameEmpty,
		CodeGroupInvalidRole,
		CodeUserEmptyDisplayName,
		CodeUserInvalidTimezone,
		CodeQuietHoursInvalid,
		CodeChangeRequestNotPending,
		CodeChangeRequestEmpty,
		CodeToolUnknown,
		CodeToolBadArgument:
		return KindValidation
	case CodeEventNotOrganizer,
		CodeGroupMembershipRequired,
		CodeChangeRequestProposerIsOrganizer,
		CodeToolRateLimited:
		return KindPermission
	case CodeSchedulingHardConflict,
		CodeSchedulingQuietHours:
		return KindConflict
	case CodeEventVersionMismatch:
		return KindVersionConflict
	case CodeNotFound:
		return KindNotFound
	default:
		return KindInternal
	}
}

// GRPCCode maps domain codes to gRPC status codes for transport layers.
func (c Code) GRPCCode() codes.Code {
	if c == CodeToolRateLimited {
		return codes.ResourceExhausted
	}
	switch c.Kind() {
	case KindValidation:
		return codes.InvalidArgument
	case KindPermission:
		return codes.PermissionDenied
	case KindConflict:
		return codes.FailedPrecondition
	case KindVersionConflict:
		return codes.Aborted
	case KindNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}
