package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tinywideclouds/go-ride-notifier/pkg/dispatch"
)

// Resolver turns a set of user ids into the push tokens registered for them.
type Resolver struct {
	users  dispatch.UserStore
	logger *slog.Logger
}

func NewResolver(users dispatch.UserStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		users:  users,
		logger: logger.With("component", "TokenResolver"),
	}
}

// Tokens looks up each user's token, deduplicating the input ids first.
// Users without a registered token are skipped silently; a failed lookup is
// logged and the remaining ids are still processed, so a partial store outage
// degrades to a smaller recipient set rather than aborting the batch.
// Duplicate tokens across distinct users pass through uncollapsed.
func (r *Resolver) Tokens(ctx context.Context, userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	tokens := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		token, err := r.users.FCMToken(ctx, id)
		if errors.Is(err, dispatch.ErrNoToken) {
			continue
		}
		if err != nil {
			r.logger.Error("Failed to look up token", "user_id", id, "err", err)
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}
