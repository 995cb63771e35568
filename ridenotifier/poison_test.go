// --- File: ridenotifier/poison_test.go ---
//go:build integration

package ridenotifier_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fsStore "github.com/tinywideclouds/go-ride-notifier/internal/storage/firestore"
	"github.com/tinywideclouds/go-ride-notifier/pkg/events"
	"github.com/tinywideclouds/go-ride-notifier/ridenotifier"
	"github.com/tinywideclouds/go-ride-notifier/ridenotifier/config"
)

// A malformed trigger payload must not wedge the pipeline: the transformer
// skips it and later, well-formed events still get dispatched.
func TestRideNotifier_PoisonPill(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	projectID := "test-project-poison"

	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { psClient.Close() })

	fsConn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	fsClient, err := firestore.NewClient(ctx, projectID, fsConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { fsClient.Close() })

	store := fsStore.NewStore(fsClient, logger)

	joinTopicID := "poison-join-" + uuid.NewString()
	chatTopicID := "poison-chat-" + uuid.NewString()
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
		&config.Config{ListenAddr: ":0", NumPipelineWorkers: 1},
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

	_, err = fsClient.Collection("users").Doc("user-creator").Set(ctx, map[string]interface{}{"fcmToken": "token-creator"})
	require.NoError(t, err)

	publisher := psClient.Publisher(joinTopicID)

	// 1. Poison: not JSON at all
	_, err = publisher.Publish(ctx, &pubsub.Message{Data: []byte("{{{ not json")}).Get(ctx)
	require.NoError(t, err)

	// 2. Poison: JSON missing required fields
	_, err = publisher.Publish(ctx, &pubsub.Message{Data: []byte(`{"rideId": "ride-1"}`)}).Get(ctx)
	require.NoError(t, err)

	// 3. A valid event behind the poison
	notificationID := "notif-" + uuid.NewString()
	_, err = fsClient.Collection("ride_notifications").Doc(notificationID).Set(ctx, map[string]interface{}{
		"type":      "new_rider",
		"rideId":    "ride-1",
		"processed": false,
	})
	require.NoError(t, err)

	payload, err := json.Marshal(&events.RideJoinEvent{
		ID:          notificationID,
		Type:        "new_rider",
		RideID:      "ride-1",
		JoinerID:    "user-joiner",
		JoinerName:  "Jordan",
		CreatorID:   "user-creator",
		Destination: "Campus North",
	})
	require.NoError(t, err)
	_, err = publisher.Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return dispatcher.GetCallCount() >= 1
	}, 15*time.Second, 100*time.Millisecond)

	// The poison messages never produced a dispatch
	assert.Equal(t, 1, dispatcher.GetCallCount())
	assert.Equal(t, []string{"token-creator"}, dispatcher.GetLastTokens())
}
