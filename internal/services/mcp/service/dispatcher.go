// Package service exposes the scheduling tools to agents, over MCP stdio
// and over a structured dispatch interface.
package service

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "github.com/quorumcal/quorum/internal/platform/errors"
	"github.com/quorumcal/quorum/internal/services/mcp/domain"
)

// Tool names form the closed set agents may invoke.
const (
	ToolCreateEvent       = "create_event"
	ToolUpdateEvent       = "update_event"
	ToolCancelEvent       = "cancel_event"
	ToolFindAvailability  = "find_availability"
	ToolSummarizeSchedule = "summarize_schedule"
)

const (
	// StatusOK marks a successful dispatch.
	StatusOK = "ok"
	// StatusError marks a rejected or failed dispatch.
	StatusError = "error"
)

// Call is one structured tool invocation.
type Call struct {
	ToolName     string          `json:"tool_name"`
	Arguments    json.RawMessage `json:"arguments"`
	ActingUserID string          `json:"acting_user_id"`
}

// ErrorPayload carries a structured failure to the caller.
type ErrorPayload struct {
	Code     string            `json:"code"`
	Kind     string            `json:"kind"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Response is the dispatch outcome. Data is set when Status is ok, Error
// when it is not.
type Response struct {
	Status string        `json:"status"`
	Data   any           `json:"data,omitempty"`
	Error  *ErrorPayload `json:"error,omitempty"`
}

// Dispatcher routes structured calls to the gateway, which enforces
// identity and per-user rate limits.
type Dispatcher struct {
	gateway *domain.Gateway
}

// NewDispatcher returns a dispatcher backed by the gateway.
func NewDispatcher(gateway *domain.Gateway) *Dispatcher {
	return &Dispatcher{gateway: gateway}
}

// Dispatch runs one call and always returns a response, never an error.
// The acting user id on the call overrides any id inside the arguments.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) Response {
	switch call.ToolName {
	case ToolCreateEvent:
		var input domain.EventCreateInput
		if err := decodeArguments(call, &input); err != nil {
			return errorResponse(err)
		}
		input.ActingUserID = call.ActingUserID
		return result(d.gateway.CreateEvent(ctx, input))
	case ToolUpdateEvent:
		var input domain.EventUpdateInput
		if err := decodeArguments(call, &input); err != nil {
			return errorResponse(err)
		}
		input.ActingUserID = call.ActingUserID
		return result(d.gateway.UpdateEvent(ctx, input))
	case ToolCancelEvent:
		var input domain.EventCancelInput
		if err := decodeArguments(call, &input); err != nil {
			return errorResponse(err)
		}
		input.ActingUserID = call.ActingUserID
		return result(d.gateway.CancelEvent(ctx, input))
	case ToolFindAvailability:
		var input domain.AvailabilityInput
		if err := decodeArguments(call, &input); err != nil {
			return errorResponse(err)
		}
		input.ActingUserID = call.ActingUserID
		return result(d.gateway.FindAvailability(ctx, input))
	case ToolSummarizeSchedule:
		var input domain.ScheduleSummaryInput
		if err := decodeArguments(call, &input); err != nil {
			return errorResponse(err)
		}
		input.ActingUserID = call.ActingUserID
		return result(d.gateway.SummarizeSchedule(ctx, input))
	default:
		return errorResponse(apperrors.WithMetadata(apperrors.CodeToolUnknown,
			"unknown tool", map[string]string{"tool_name": call.ToolName}))
	}
}

func decodeArguments(call Call, target any) error {
	if len(call.Arguments) == 0 {
		return apperrors.New(apperrors.CodeToolBadArgument, "arguments are required")
	}
	if err := json.Unmarshal(call.Arguments, target); err != nil {
		return apperrors.WithMetadata(apperrors.CodeToolBadArgument,
			"arguments do not match the tool schema",
			map[string]string{"tool_name": call.ToolName})
	}
	return nil
}

func result[T any](data T, err error) Response {
	if err != nil {
		return errorResponse(err)
	}
	return Response{Status: StatusOK, Data: data}
}

func errorResponse(err error) Response {
	payload := &ErrorPayload{
		Code:    string(apperrors.CodeOf(err)),
		Kind:    apperrors.KindOf(err).String(),
		Message: err.Error(),
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		payload.Message = appErr.Message
		if len(appErr.Metadata) > 0 {
			payload.Metadata = appErr.Metadata
		}
	}
	return Response{Status: StatusError, Error: payload}
}
