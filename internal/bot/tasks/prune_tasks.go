package tasks

import (
	"context"
	"fmt"
)

// newSpamPruneTask deletes flood-guard trackers that can no longer affect a
// verdict: older than both the window and the block duration.
func newSpamPruneTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "spam_prune")

	return func(ctx context.Context) error {
		retention := max(deps.Config.Spam.Window, deps.Config.Spam.BlockDuration)
		before := deps.now().Add(-retention)

		pruned, err := deps.Store.PruneSpamState(ctx, before)
		if err != nil {
			log.ErrorContext(ctx, "Spam state prune failed", "error", err)
			return fmt.Errorf("spam state prune failed: %w", err)
		}

		log.InfoContext(ctx, "Pruned idle spam trackers", "count", pruned, "before", before)
		return nil
	}
}

// newQuizPollPruneTask deletes remembered quiz polls of chats that left the
// broadcast set.
func newQuizPollPruneTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "quiz_poll_prune")

	return func(ctx context.Context) error {
		pruned, err := deps.Store.PruneQuizPolls(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Quiz poll prune failed", "error", err)
			return fmt.Errorf("quiz poll prune failed: %w", err)
		}

		log.InfoContext(ctx, "Pruned quiz polls of inactive chats", "count", pruned)
		return nil
	}
}
