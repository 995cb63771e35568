package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-ride-notifier/internal/notify"
	"github.com/tinywideclouds/go-ride-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-ride-notifier/pkg/events"
)

// NewJoinProcessor creates the logic for ride_notifications documents: notify
// the creator and existing participants that a new rider joined, then mark
// the notification record processed.
func NewJoinProcessor(
	dispatcher dispatch.Dispatcher,
	users dispatch.UserStore,
	marks dispatch.EventStore,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[events.RideJoinEvent] {
	resolver := notify.NewResolver(users, logger)

	return func(ctx context.Context, original messagepipeline.Message, ev *events.RideJoinEvent) error {
		procLogger := logger.With(
			"notification_id", ev.ID,
			"ride_id", ev.RideID,
			"pubsub_msg_id", original.ID,
		)

		// 1. Idempotency guard. Best effort, not a lock: the trigger
		// source fires once per creation, redeliveries land here.
		if ev.Processed {
			procLogger.Info("Notification already processed, skipping.")
			return nil
		}
		procLogger.Info("Processing join notification", "type", ev.Type)

		// 2. Everyone on the ride except the joiner.
		tokens := resolver.Tokens(ctx, ev.Recipients())
		if len(tokens) == 0 {
			// Successful no-op. Marked without a timestamp: no
			// dispatch was attempted.
			procLogger.Info("No tokens to send notifications to.")
			if err := marks.MarkProcessed(ctx, ev.ID); err != nil {
				procLogger.Error("Failed to mark notification processed", "err", err)
				return err
			}
			return nil
		}
		procLogger.Info("Sending notifications", "devices", len(tokens))

		// 3. Compose and dispatch. A gateway-level failure is logged and
		// the record is still finalized below; delivery is best effort.
		invalidTokens, err := dispatcher.Dispatch(ctx, notify.RiderJoined(ev, tokens))
		if err != nil {
			procLogger.Error("Multicast send failed", "err", err)
		}
		if len(invalidTokens) > 0 {
			cleanupInvalidTokens(ctx, users, invalidTokens, procLogger)
		}

		// 4. Finalize regardless of dispatch outcome. If this write fails
		// the message nacks and redelivers; the guard above keeps the
		// retry harmless.
		if err := marks.MarkProcessedAt(ctx, ev.ID); err != nil {
			procLogger.Error("Failed to mark notification processed", "err", err)
			return err
		}
		return nil
	}
}

// cleanupInvalidTokens clears dead tokens from the user records holding them.
// Detached from the critical path: completion and failure are observed only
// via logs, never awaited by the flow that finalizes the event.
func cleanupInvalidTokens(ctx context.Context, users dispatch.UserStore, tokens []string, logger *slog.Logger) {
	logger.Info("Cleaning up invalid tokens", "count", len(tokens))
	cleanupCtx := context.WithoutCancel(ctx)
	go func() {
		for _, token := range tokens {
			if _, err := users.RemoveToken(cleanupCtx, token); err != nil {
				logger.Warn("Failed to remove invalid token", "err", err)
			}
		}
	}()
}
