// Package scheduler wires the scheduling services together and serves the
// agent tool set over MCP stdio.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/time/rate"

	mcpdomain "github.com/quorumcal/quorum/internal/services/mcp/domain"
	mcpservice "github.com/quorumcal/quorum/internal/services/mcp/service"
	"github.com/quorumcal/quorum/internal/services/scheduler/app"
	"github.com/quorumcal/quorum/internal/services/scheduler/storage/sqlite"
)

// Config carries the runtime settings for the scheduler command.
type Config struct {
	// DBPath locates the SQLite database file.
	DBPath string `env:"QUORUM_DB_PATH" envDefault:"quorum.db"`
	// ToolRatePerSecond caps sustained tool calls per user.
	ToolRatePerSecond float64 `env:"QUORUM_TOOL_RATE" envDefault:"5"`
	// ToolBurst caps back-to-back tool calls per user.
	ToolBurst int `env:"QUORUM_TOOL_BURST" envDefault:"10"`
}

// logNotifier records accepted mutations on the process log.
type logNotifier struct{}

func (logNotifier) EventMutated(_ context.Context, signal app.Signal) {
	log.Printf("event %s %s version=%d", signal.EventID, signal.Action, signal.Version)
}

// Run opens the store, builds the services, and serves MCP on stdio until
// the context ends.
func Run(ctx context.Context, cfg Config) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	coordinator := app.NewCoordinator(store, logNotifier{}, nil, nil)
	availability := app.NewAvailability(store)
	gateway := mcpdomain.NewGateway(coordinator, availability,
		rate.Limit(cfg.ToolRatePerSecond), cfg.ToolBurst)

	server := mcpservice.NewServer(gateway)
	return server.Serve(ctx)
}
