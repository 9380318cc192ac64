package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// EventCreateHandler returns the handler for the create_event tool.
func EventCreateHandler(gateway *Gateway) mcp.ToolHandlerFor[EventCreateInput, EventResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EventCreateInput) (*mcp.CallToolResult, EventResult, error) {
		result, err := gateway.CreateEvent(ctx, input)
		if err != nil {
			return nil, EventResult{}, err
		}
		return nil, result, nil
	}
}

// EventUpdateHandler returns the handler for the update_event tool.
func EventUpdateHandler(gateway *Gateway) mcp.ToolHandlerFor[EventUpdateInput, EventResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EventUpdateInput) (*mcp.CallToolResult, EventResult, error) {
		result, err := gateway.UpdateEvent(ctx, input)
		if err != nil {
			return nil, EventResult{}, err
		}
		return nil, result, nil
	}
}

// EventCancelHandler returns the handler for the cancel_event tool.
func EventCancelHandler(gateway *Gateway) mcp.ToolHandlerFor[EventCancelInput, EventResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EventCancelInput) (*mcp.CallToolResult, EventResult, error) {
		result, err := gateway.CancelEvent(ctx, input)
		if err != nil {
			return nil, EventResult{}, err
		}
		return nil, result, nil
	}
}

// FindAvailabilityHandler returns the handler for the find_availability tool.
func FindAvailabilityHandler(gateway *Gateway) mcp.ToolHandlerFor[AvailabilityInput, AvailabilityResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AvailabilityInput) (*mcp.CallToolResult, AvailabilityResult, error) {
		result, err := gateway.FindAvailability(ctx, input)
		if err != nil {
			return nil, AvailabilityResult{}, err
		}
		return nil, result, nil
	}
}

// SummarizeScheduleHandler returns the handler for the summarize_schedule tool.
func SummarizeScheduleHandler(gateway *Gateway) mcp.ToolHandlerFor[ScheduleSummaryInput, ScheduleSummaryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ScheduleSummaryInput) (*mcp.CallToolResult, ScheduleSummaryResult, error) {
		result, err := gateway.SummarizeSchedule(ctx, input)
		if err != nil {
			return nil, ScheduleSummaryResult{}, err
		}
		return nil, result, nil
	}
}
