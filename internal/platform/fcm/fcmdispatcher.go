package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Dispatcher struct {
	client MessagingClient
	logger *slog.Logger
}

// NewDispatcher accepts the concrete client but stores it as the interface.
// Note: *messaging.Client automatically satisfies this interface.
func NewDispatcher(client MessagingClient, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger.With("component", "FCMDispatcher"),
	}
}

// Dispatch sends one multicast message and classifies per-token outcomes.
// Tokens the gateway rejects as permanently invalid (invalid registration
// token, registration token not registered) are returned for cleanup; every
// other per-token failure is logged only, never retried. A non-nil error
// means the batch call itself failed and nothing was delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *messaging.MulticastMessage) ([]string, error) {
	if len(msg.Tokens) == 0 {
		return nil, nil
	}

	br, err := d.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("fcm multicast send failed: %w", err)
	}

	var invalidTokens []string
	if br.FailureCount > 0 {
		for idx, resp := range br.Responses {
			if resp.Success {
				continue
			}

			if messaging.IsInvalidArgument(resp.Error) || messaging.IsRegistrationTokenNotRegistered(resp.Error) {
				invalidTokens = append(invalidTokens, msg.Tokens[idx])
				continue
			}

			d.logger.Warn("Send failed for token",
				"token_prefix", tokenPrefix(msg.Tokens[idx]),
				"err", resp.Error,
			)
		}
	}

	d.logger.Info("Multicast dispatched",
		"success", br.SuccessCount,
		"failure", br.FailureCount,
		"invalid", len(invalidTokens),
	)
	return invalidTokens, nil
}

// tokenPrefix keeps device tokens out of the logs.
func tokenPrefix(token string) string {
	const n = 20
	if len(token) <= n {
		return token
	}
	return token[:n] + "..."
}
