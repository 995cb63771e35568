package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-ride-notifier/internal/notify"
	"github.com/tinywideclouds/go-ride-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-ride-notifier/pkg/events"
)

// NewChatProcessor creates the logic for chat message documents: notify every
// ride participant except the sender. Chat notifications carry no persisted
// idempotency flag; a redelivered message sends again.
func NewChatProcessor(
	dispatcher dispatch.Dispatcher,
	users dispatch.UserStore,
	rides dispatch.RideStore,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[events.ChatMessageEvent] {
	resolver := notify.NewResolver(users, logger)

	return func(ctx context.Context, original messagepipeline.Message, ev *events.ChatMessageEvent) error {
		procLogger := logger.With(
			"ride_id", ev.RideID,
			"message_id", ev.MessageID,
			"pubsub_msg_id", original.ID,
		)

		// 1. The ride record holds the participant list. A missing ride
		// means it ended or was deleted between trigger and processing.
		ride, err := rides.Ride(ctx, ev.RideID)
		if errors.Is(err, dispatch.ErrRideNotFound) {
			procLogger.Info("Ride not found, dropping chat notification.")
			return nil
		}
		if err != nil {
			procLogger.Error("Failed to fetch ride", "err", err)
			return err
		}

		// 2. Everyone on the ride except the sender.
		tokens := resolver.Tokens(ctx, ride.RecipientsExcluding(ev.SenderID))
		if len(tokens) == 0 {
			return nil
		}

		// 3. Compose and dispatch, best effort.
		invalidTokens, err := dispatcher.Dispatch(ctx, notify.ChatMessage(ev, tokens))
		if err != nil {
			procLogger.Error("Chat multicast send failed", "err", err)
			return nil
		}
		if len(invalidTokens) > 0 {
			cleanupInvalidTokens(ctx, users, invalidTokens, procLogger)
		}

		procLogger.Info("Chat notification sent", "devices", len(tokens))
		return nil
	}
}
