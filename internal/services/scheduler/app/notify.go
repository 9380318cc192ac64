package app

import (
	"context"

	"github.com/quorumcal/quorum/internal/services/scheduler/domain"
)

// Signal describes one committed mutation for downstream listeners.
type Signal struct {
	EventID string
	Action  domain.Action
	Version int64
}

// Notifier receives a signal after each committed mutation. Implementations
// must not block; delivery is fire-and-forget and carries no payload beyond
// the identifiers needed to re-read state.
type Notifier interface {
	EventMutated(ctx context.Context, signal Signal)
}

func notify(ctx context.Context, notifier Notifier, signal Signal) {
	if notifier == nil {
		return
	}
	notifier.EventMutated(ctx, signal)
}
