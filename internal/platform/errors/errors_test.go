package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New(CodeEventVersionMismatch, "stored version is 3")
	other := New(CodeEventVersionMismatch, "different message")

	if !errors.Is(base, other) {
		t.Fatal("expected errors with the same code to match")
	}
	if errors.Is(base, New(CodeNotFound, "record not found")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("db locked")
	err := Wrap(CodeEventVersionMismatch, "update event", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if CodeOf(err) != CodeEventVersionMismatch {
		t.Fatalf("CodeOf = %q, want %q", CodeOf(err), CodeEventVersionMismatch)
	}
}

func TestCodeOfTraversesWrapping(t *testing.T) {
	inner := New(CodeSchedulingHardConflict, "hard overlap")
	outer := fmt.Errorf("create event: %w", inner)

	if CodeOf(outer) != CodeSchedulingHardConflict {
		t.Fatalf("CodeOf = %q, want %q", CodeOf(outer), CodeSchedulingHardConflict)
	}
	if KindOf(outer) != KindConflict {
		t.Fatalf("KindOf = %v, want KindConflict", KindOf(outer))
	}
	if CodeOf(fmt.Errorf("plain")) != CodeUnknown {
		t.Fatal("expected CodeUnknown for plain errors")
	}
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		code Code
		want Kind
	}{
		{CodeEventInvalidTimeRange, KindValidation},
		{CodeRSVPInvalidStatus, KindValidation},
		{CodeEventNotOrganizer, KindPermission},
		{CodeGroupMembershipRequired, KindPermission},
		{CodeSchedulingHardConflict, KindConflict},
		{CodeSchedulingQuietHours, KindConflict},
		{CodeEventVersionMismatch, KindVersionConflict},
		{CodeNotFound, KindNotFound},
		{CodeUnknown, KindInternal},
	}
	for _, tt := range tests {
		if got := tt.code.Kind(); got != tt.want {
			t.Fatalf("%s Kind = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeEventInvalidTimeRange, codes.InvalidArgument},
		{CodeEventNotOrganizer, codes.PermissionDenied},
		{CodeSchedulingQuietHours, codes.FailedPrecondition},
		{CodeEventVersionMismatch, codes.Aborted},
		{CodeNotFound, codes.NotFound},
		{CodeToolRateLimited, codes.ResourceExhausted},
		{CodeUnknown, codes.Internal},
	}
	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Fatalf("%s GRPCCode = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestToGRPCStatusCarriesErrorInfo(t *testing.T) {
	err := WithMetadata(CodeSchedulingHardConflict, "hard overlap", map[string]string{
		"ConflictingEventID": "evt-1",
	}).ToGRPCStatus()

	st, ok := status.FromError(err)
	if !ok {
		t.Fatal("expected a gRPC status error")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("status code = %v, want FailedPrecondition", st.Code())
	}
	found := false
	for _, detail := range st.Details() {
		if info, ok := detail.(interface{ GetReason() string }); ok {
			if info.GetReason() != string(CodeSchedulingHardConflict) {
				t.Fatalf("reason = %q, want %q", info.GetReason(), CodeSchedulingHardConflict)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("expected ErrorInfo detail on status")
	}
}
