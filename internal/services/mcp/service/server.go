package service

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quorumcal/quorum/internal/services/mcp/domain"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "Quorum Scheduler"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Server exposes the scheduling tool set over the Model Context Protocol.
type Server struct {
	mcpServer *mcp.Server
}

// NewServer builds an MCP server with the five scheduling tools registered.
func NewServer(gateway *domain.Gateway) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerTools(mcpServer, gateway)
	return &Server{mcpServer: mcpServer}
}

func registerTools(server *mcp.Server, gateway *domain.Gateway) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolCreateEvent,
		Description: "Schedule a new event for a group, checking hard conflicts and quiet hours.",
	}, domain.EventCreateHandler(gateway))
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolUpdateEvent,
		Description: "Edit an event you organize. Requires the last observed version.",
	}, domain.EventUpdateHandler(gateway))
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolCancelEvent,
		Description: "Cancel an event you organize. Cancellation is terminal.",
	}, domain.EventCancelHandler(gateway))
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolFindAvailability,
		Description: "Report free, busy, and quiet-hours intervals for a set of users.",
	}, domain.FindAvailabilityHandler(gateway))
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSummarizeSchedule,
		Description: "Summarize your own schedule for a time range, grouped by tier and reply.",
	}, domain.SummarizeScheduleHandler(gateway))
}

// Serve runs the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil || s.mcpServer == nil {
		return errors.New("mcp server is not configured")
	}
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
