// --- File: ridenotifier/service_integration_test.go ---
//go:build integration

package ridenotifier_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"

	"firebase.google.com/go/v4/messaging"

	fsStore "github.com/tinywideclouds/go-ride-notifier/internal/storage/firestore"
	"github.com/tinywideclouds/go-ride-notifier/pkg/events"
	"github.com/tinywideclouds/go-ride-notifier/ridenotifier"
	"github.com/tinywideclouds/go-ride-notifier/ridenotifier/config"
)

// --- MOCKS ---

type mockDispatcher struct {
	mu         sync.Mutex
	callCount  int
	lastTokens []string
}

func (m *mockDispatcher) Dispatch(ctx context.Context, msg *messaging.MulticastMessage) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastTokens = msg.Tokens
	return nil, nil
}

func (m *mockDispatcher) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockDispatcher) GetLastTokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTokens
}

// --- TEST ---

func TestRideNotifier_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	projectID := "test-project-integ"

	// 1. Emulators
	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { psClient.Close() })

	fsConn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	fsClient, err := firestore.NewClient(ctx, projectID, fsConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { fsClient.Close() })

	// 2. Store
	store := fsStore.NewStore(fsClient, logger)

	// 3. Topics/subscriptions and the service under test
	joinTopicID := "ride-notifications-" + uuid.NewString()
	chatTopicID := "ride-chat-" + uuid.NewString()
	joinSubID := joinTopicID + "-sub"
	chatSubID := chatTopicID + "-sub"
	createPubsubResources(t, ctx, psClient, projectID, joinTopicID, joinSubID)
	createPubsubResources(t, ctx, psClient, projectID, chatTopicID, chatSubID)

	dispatcher := &mockDispatcher{}

	joinConsumerCfg := *messagepipeline.NewGooglePubsubConsumerDefaults(joinSubID)
	joinConsumer, err := messagepipeline.NewGooglePubsubConsumer(&joinConsumerCfg, psClient, logger)
	require.NoError(t, err)
	chatConsumerCfg := *messagepipeline.NewGooglePubsubConsumerDefaults(chatSubID)
	chatConsumer, err := messagepipeline.NewGooglePubsubConsumer(&chatConsumerCfg, psClient, logger)
	require.NoError(t, err)

	svc, err := ridenotifier.New(
		&config.Config{ListenAddr: ":0", NumPipelineWorkers: 2},
		joinConsumer,
		chatConsumer,
		dispatcher,
		store,
		store,
		store,
		logger,
	)
	require.NoError(t, err)

	svcCtx, svcCancel := context.WithCancel(ctx)
	defer svcCancel()
	go func() { _ = svc.Start(svcCtx) }()
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	// Seed users
	for userID, token := range map[string]string{
		"user-creator": "token-creator",
		"user-a":       "token-a",
	} {
		_, err := fsClient.Collection("users").Doc(userID).Set(ctx, map[string]interface{}{"fcmToken": token})
		require.NoError(t, err)
	}
	// The joiner has a token too; it must never be addressed.
	_, err = fsClient.Collection("users").Doc("user-joiner").Set(ctx, map[string]interface{}{"fcmToken": "token-joiner"})
	require.NoError(t, err)

	t.Run("Join flow: notify existing riders and mark processed", func(t *testing.T) {
		notificationID := "notif-" + uuid.NewString()
		_, err := fsClient.Collection("ride_notifications").Doc(notificationID).Set(ctx, map[string]interface{}{
			"type":      "new_rider",
			"rideId":    "ride-1",
			"processed": false,
		})
		require.NoError(t, err)

		ev := events.RideJoinEvent{
			ID:             notificationID,
			Type:           "new_rider",
			RideID:         "ride-1",
			JoinerID:       "user-joiner",
			JoinerName:     "Jordan",
			CreatorID:      "user-creator",
			Destination:    "Campus North",
			ParticipantIDs: []string{"user-a", "user-joiner"},
		}
		payload, err := json.Marshal(&ev)
		require.NoError(t, err)

		_, err = psClient.Publisher(joinTopicID).Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return dispatcher.GetCallCount() == 1
		}, 15*time.Second, 100*time.Millisecond)

		assert.ElementsMatch(t, []string{"token-creator", "token-a"}, dispatcher.GetLastTokens())

		// The triggering record is finalized with a server timestamp.
		require.Eventually(t, func() bool {
			doc, err := fsClient.Collection("ride_notifications").Doc(notificationID).Get(ctx)
			if err != nil {
				return false
			}
			processed, _ := doc.Data()["processed"].(bool)
			return processed && doc.Data()["processedAt"] != nil
		}, 15*time.Second, 100*time.Millisecond)
	})

	t.Run("Chat flow: notify participants except the sender", func(t *testing.T) {
		_, err := fsClient.Collection("rides").Doc("ride-1").Set(ctx, map[string]interface{}{
			"participants": []map[string]interface{}{
				{"userId": "user-creator"},
				{"userId": "user-a"},
			},
		})
		require.NoError(t, err)

		ev := events.ChatMessageEvent{
			RideID:     "ride-1",
			MessageID:  "msg-" + uuid.NewString(),
			SenderID:   "user-a",
			SenderName: "Alex",
			Message:    "heading to the pickup spot",
		}
		payload, err := json.Marshal(&ev)
		require.NoError(t, err)

		before := dispatcher.GetCallCount()
		_, err = psClient.Publisher(chatTopicID).Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return dispatcher.GetCallCount() == before+1
		}, 15*time.Second, 100*time.Millisecond)

		assert.Equal(t, []string{"token-creator"}, dispatcher.GetLastTokens())
	})
}

func createPubsubResources(t *testing.T, ctx context.Context, client *pubsub.Client, projectID, topicID, subID string) {
	t.Helper()
	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err := client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.TopicAdminClient.DeleteTopic(context.Background(), &pubsubpb.DeleteTopicRequest{Topic: topicName})
	})

	subName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
	sub := &pubsubpb.Subscription{
		Name:               subName,
		Topic:              topicName,
		AckDeadlineSeconds: 10,
		RetryPolicy: &pubsubpb.RetryPolicy{
			MinimumBackoff: &durationpb.Duration{Seconds: 1},
		},
	}
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, sub)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.SubscriptionAdminClient.DeleteSubscription(context.Background(), &pubsubpb.DeleteSubscriptionRequest{Subscription: subName})
	})
}
