// Package dispatch defines the collaborator contracts the notification flows
// are wired against. Concrete implementations live under internal/ (Firestore,
// Redis, FCM); the interfaces exist so processors can be tested with doubles.
package dispatch

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-ride-notifier/pkg/events"
)

var (
	// ErrNoToken is returned by UserStore.FCMToken when the user record or
	// its token field is absent. Expected for users who never registered
	// for push; never treated as a failure.
	ErrNoToken = errors.New("no fcm token registered")

	// ErrRideNotFound is returned by RideStore.Ride for unknown ride ids.
	ErrRideNotFound = errors.New("ride not found")
)

// Dispatcher sends one composed multicast message to the push gateway and
// reports which tokens the gateway rejected as permanently invalid.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *messaging.MulticastMessage) (invalidTokens []string, err error)
}

// UserStore reads user push tokens and clears tokens reported invalid.
type UserStore interface {
	// FCMToken returns the user's registered token, or ErrNoToken.
	FCMToken(ctx context.Context, userID string) (string, error)

	// RemoveToken deletes the token field from every user record whose
	// token equals the given value, as one atomic batch. It returns the
	// ids of the affected user records.
	RemoveToken(ctx context.Context, token string) ([]string, error)
}

// RideStore reads ride records for chat recipient lookup.
type RideStore interface {
	// Ride returns the ride, or ErrRideNotFound.
	Ride(ctx context.Context, rideID string) (*events.Ride, error)
}

// EventStore marks join notification records as handled.
type EventStore interface {
	// MarkProcessed sets processed=true on the notification record.
	// Used on the no-recipients path, where no dispatch was attempted.
	MarkProcessed(ctx context.Context, notificationID string) error

	// MarkProcessedAt sets processed=true and stamps processedAt with the
	// server clock. Used after a dispatch attempt, successful or not.
	MarkProcessedAt(ctx context.Context, notificationID string) error
}
