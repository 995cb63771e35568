// Package firestore implements the user, ride and notification stores on
// Google Cloud Firestore.
package firestore

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-ride-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-ride-notifier/pkg/events"
)

const (
	usersCollection         = "users"
	ridesCollection         = "rides"
	notificationsCollection = "ride_notifications"

	tokenField       = "fcmToken"
	processedField   = "processed"
	processedAtField = "processedAt"
)

// Store implements dispatch.UserStore, dispatch.RideStore and
// dispatch.EventStore against the collections owned by the ride-sharing app.
type Store struct {
	client *firestore.Client
	logger *slog.Logger
}

func NewStore(client *firestore.Client, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger.With("component", "FirestoreStore"),
	}
}

// userRecord is the slice of a user document we read. The document itself is
// owned by the user-management system and carries many more fields.
type userRecord struct {
	FCMToken string `firestore:"fcmToken"`
}

// FCMToken returns the user's registered push token. An unknown user or a
// user without the token field yields dispatch.ErrNoToken.
func (s *Store) FCMToken(ctx context.Context, userID string) (string, error) {
	doc, err := s.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", dispatch.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("fetch user %s: %w", userID, err)
	}

	var record userRecord
	if err := doc.DataTo(&record); err != nil {
		return "", fmt.Errorf("decode user %s: %w", userID, err)
	}
	if record.FCMToken == "" {
		return "", dispatch.ErrNoToken
	}
	return record.FCMToken, nil
}

// RemoveToken deletes the token field from every user document referencing
// the token. A token can appear on multiple records; all matches are cleared
// in one atomic batch. Returns the affected user ids.
func (s *Store) RemoveToken(ctx context.Context, token string) ([]string, error) {
	iter := s.client.Collection(usersCollection).Where(tokenField, "==", token).Documents(ctx)
	defer iter.Stop()

	batch := s.client.Batch()
	var userIDs []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query users by token: %w", err)
		}
		batch.Update(doc.Ref, []firestore.Update{
			{Path: tokenField, Value: firestore.Delete},
		})
		userIDs = append(userIDs, doc.Ref.ID)
	}

	if len(userIDs) == 0 {
		return nil, nil
	}
	if _, err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit token removal: %w", err)
	}

	s.logger.Info("Removed invalid token", "token_prefix", tokenPrefix(token), "users", len(userIDs))
	return userIDs, nil
}

// Ride fetches the ride document for chat recipient lookup.
func (s *Store) Ride(ctx context.Context, rideID string) (*events.Ride, error) {
	doc, err := s.client.Collection(ridesCollection).Doc(rideID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, dispatch.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch ride %s: %w", rideID, err)
	}

	var ride events.Ride
	if err := doc.DataTo(&ride); err != nil {
		return nil, fmt.Errorf("decode ride %s: %w", rideID, err)
	}
	return &ride, nil
}

// MarkProcessed flags the notification record as handled without a timestamp.
func (s *Store) MarkProcessed(ctx context.Context, notificationID string) error {
	_, err := s.client.Collection(notificationsCollection).Doc(notificationID).Update(ctx, []firestore.Update{
		{Path: processedField, Value: true},
	})
	if err != nil {
		return fmt.Errorf("mark notification %s processed: %w", notificationID, err)
	}
	return nil
}

// MarkProcessedAt flags the notification record as handled and stamps
// processedAt with the write-time server clock.
func (s *Store) MarkProcessedAt(ctx context.Context, notificationID string) error {
	_, err := s.client.Collection(notificationsCollection).Doc(notificationID).Update(ctx, []firestore.Update{
		{Path: processedField, Value: true},
		{Path: processedAtField, Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return fmt.Errorf("mark notification %s processed: %w", notificationID, err)
	}
	return nil
}

func tokenPrefix(token string) string {
	const n = 20
	if len(token) <= n {
		return token
	}
	return token[:n] + "..."
}
